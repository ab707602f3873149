package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// UserSnapshot bundles the two read-only records the engine consumes for one
// user: the profile attributes and the stated preference weights.
type UserSnapshot struct {
	Profile *Profile
	Prefs   *Preferences
}

// ProfileStore is the engine's read boundary to profile data. The engine
// never writes through it except for the last-active heartbeat.
type ProfileStore interface {
	// Snapshot returns the profile + preferences for one user, or an error
	// wrapping errNotFound.
	Snapshot(ctx context.Context, userID int) (*UserSnapshot, error)
	// Candidates returns the basic-eligibility pool for a discover pass:
	// verified, visible profiles excluding the requester. Pair-state
	// exclusion happens in the ranker.
	Candidates(ctx context.Context, requesterID int) ([]*Profile, error)
	// Profiles batch-loads profiles by id (dataloader backend).
	Profiles(ctx context.Context, ids []int) (map[int]*Profile, error)
	// Touch records user activity "now".
	Touch(ctx context.Context, userID int, now time.Time) error
}

// --- Postgres implementation ---

// Expected schema (created by the seeder with -init-schema):
//
//	profiles(user_id PK, gender, age, location_lat, location_lon,
//	         max_radius_km, children_timeline, desired_children,
//	         education_level, religious_view, parenting_philosophy,
//	         living_arrangement, commitment_timeline, values_tags JSONB,
//	         last_active, verified, visible)
//	preferences(user_id PK, age_min, age_max, preferred_genders JSONB,
//	            weights JSONB)
type pgProfileStore struct {
	db *sql.DB
}

func newPGProfileStore(db *sql.DB) *pgProfileStore {
	return &pgProfileStore{db: db}
}

const profileColumns = `user_id, gender, age, location_lat, location_lon, max_radius_km,
       children_timeline, desired_children, education_level, religious_view,
       parenting_philosophy, living_arrangement, commitment_timeline,
       values_tags, last_active, verified, visible`

func scanProfile(row interface{ Scan(...any) error }) (*Profile, error) {
	var p Profile
	var values []byte
	var lastActive sql.NullTime
	err := row.Scan(
		&p.UserID, &p.Gender, &p.Age, &p.LocationLat, &p.LocationLon, &p.MaxRadiusKm,
		&p.ChildrenTimeline, &p.DesiredChildren, &p.EducationLevel, &p.ReligiousView,
		&p.ParentingPhilosophy, &p.LivingArrangement, &p.CommitmentTimeline,
		&values, &lastActive, &p.Verified, &p.Visible,
	)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(values, &p.Values)
	if lastActive.Valid {
		p.LastActive = lastActive.Time
	}
	return &p, nil
}

func (s *pgProfileStore) Snapshot(ctx context.Context, userID int) (*UserSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: profile %d", errNotFound, userID)
	} else if err != nil {
		return nil, unavailable(err)
	}

	prefs := &Preferences{UserID: userID, Weights: map[Attribute]PrefWeight{}}
	var genders, weights []byte
	err = s.db.QueryRowContext(ctx, `
		SELECT age_min, age_max, preferred_genders, weights
		FROM preferences WHERE user_id = $1
	`, userID).Scan(&prefs.AgeMin, &prefs.AgeMax, &genders, &weights)
	if err != nil && err != sql.ErrNoRows {
		return nil, unavailable(err)
	}
	_ = json.Unmarshal(genders, &prefs.PreferredGenders)
	_ = json.Unmarshal(weights, &prefs.Weights)

	return &UserSnapshot{Profile: p, Prefs: prefs}, nil
}

func (s *pgProfileStore) Candidates(ctx context.Context, requesterID int) ([]*Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		WHERE user_id <> $1 AND verified = TRUE AND visible = TRUE
	`, requesterID)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	var out []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, unavailable(err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *pgProfileStore) Profiles(ctx context.Context, ids []int) (map[int]*Profile, error) {
	out := make(map[int]*Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id IN (` + joinPlaceholders(placeholders) + `)`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, unavailable(err)
		}
		out[p.UserID] = p
	}
	return out, rows.Err()
}

func (s *pgProfileStore) Touch(ctx context.Context, userID int, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE profiles SET last_active = $2 WHERE user_id = $1`, userID, now)
	return err
}

func joinPlaceholders(placeholders []string) string {
	if len(placeholders) == 0 {
		return ""
	}
	result := placeholders[0]
	for i := 1; i < len(placeholders); i++ {
		result += ", " + placeholders[i]
	}
	return result
}

// --- In-memory implementation ---

// memoryProfileStore backs the unit tests and the no-database demo mode.
type memoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[int]*Profile
	prefs    map[int]*Preferences
}

func newMemoryProfileStore() *memoryProfileStore {
	return &memoryProfileStore{
		profiles: make(map[int]*Profile),
		prefs:    make(map[int]*Preferences),
	}
}

func (s *memoryProfileStore) Put(p *Profile, prefs *Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = p
	if prefs != nil {
		s.prefs[p.UserID] = prefs
	}
}

func (s *memoryProfileStore) Snapshot(ctx context.Context, userID int) (*UserSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("%w: profile %d", errNotFound, userID)
	}
	cp := *p
	prefs, ok := s.prefs[userID]
	if !ok {
		prefs = &Preferences{UserID: userID, Weights: map[Attribute]PrefWeight{}}
	}
	return &UserSnapshot{Profile: &cp, Prefs: prefs}, nil
}

func (s *memoryProfileStore) Candidates(ctx context.Context, requesterID int) ([]*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Profile
	for id, p := range s.profiles {
		if id == requesterID || !p.Verified || !p.Visible {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	// Map iteration order is random; callers rely on the ranker's sort, but a
	// stable snapshot order keeps failures reproducible.
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *memoryProfileStore) Profiles(ctx context.Context, ids []int) (map[int]*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]*Profile, len(ids))
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (s *memoryProfileStore) Touch(ctx context.Context, userID int, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[userID]; ok {
		p.LastActive = now
	}
	return nil
}
