package main

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"
)

// transitionFn inspects the current record for a pair (nil when none exists)
// and returns the desired record, nil for "no change", or an error to abort.
// It runs under the pair key's lock and must not block.
type transitionFn func(cur *MatchRecord) (*MatchRecord, error)

// MatchStore owns MatchRecord persistence. Transition is the only mutation
// path: it applies fn atomically under the pair key, so send/respond/block
// for the same pair are strictly serialized while different pairs never
// block each other.
type MatchStore interface {
	Transition(ctx context.Context, a, b int, fn transitionFn) (*MatchRecord, error)
	Get(ctx context.Context, a, b int) (*MatchRecord, error)
	ListByState(ctx context.Context, userID int, state MatchState) ([]*MatchRecord, error)
	// ListIncoming returns pending records where userID is the responder.
	ListIncoming(ctx context.Context, userID int) ([]*MatchRecord, error)
	// Peers returns the current state for every pair userID is part of.
	Peers(ctx context.Context, userID int) (map[int]MatchState, error)
}

// --- In-memory implementation ---

type memoryMatchStore struct {
	mu      sync.RWMutex
	records map[[2]int]*MatchRecord
	locks   sync.Map // [2]int -> *sync.Mutex, one per pair key
	now     func() time.Time
}

func newMemoryMatchStore() *memoryMatchStore {
	return &memoryMatchStore{
		records: make(map[[2]int]*MatchRecord),
		now:     time.Now,
	}
}

func (s *memoryMatchStore) pairLock(key [2]int) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (s *memoryMatchStore) Transition(ctx context.Context, a, b int, fn transitionFn) (*MatchRecord, error) {
	lo, hi := pairKey(a, b)
	key := [2]int{lo, hi}

	l := s.pairLock(key)
	l.Lock()
	defer l.Unlock()

	s.mu.RLock()
	cur := s.records[key].clone()
	s.mu.RUnlock()

	next, err := fn(cur.clone())
	if err != nil {
		return nil, err
	}
	if next == nil {
		return cur, nil
	}

	next.UserLo, next.UserHi = lo, hi
	now := s.now()
	if cur == nil {
		next.CreatedAt = now
	} else {
		next.CreatedAt = cur.CreatedAt
	}
	next.UpdatedAt = now

	s.mu.Lock()
	s.records[key] = next.clone()
	s.mu.Unlock()
	return next, nil
}

func (s *memoryMatchStore) Get(ctx context.Context, a, b int) (*MatchRecord, error) {
	lo, hi := pairKey(a, b)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[[2]int{lo, hi}].clone(), nil
}

func (s *memoryMatchStore) ListByState(ctx context.Context, userID int, state MatchState) ([]*MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*MatchRecord
	for _, r := range s.records {
		if r.Involves(userID) && r.State == state {
			out = append(out, r.clone())
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *memoryMatchStore) ListIncoming(ctx context.Context, userID int) ([]*MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*MatchRecord
	for _, r := range s.records {
		if r.Involves(userID) && r.State == StatePending && r.InitiatorID != userID {
			out = append(out, r.clone())
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *memoryMatchStore) Peers(ctx context.Context, userID int) (map[int]MatchState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]MatchState)
	for _, r := range s.records {
		if r.Involves(userID) {
			out[r.Other(userID)] = r.State
		}
	}
	return out, nil
}

// Newest first, pair key as tie-break.
func sortRecords(records []*MatchRecord) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		if a.UserLo != b.UserLo {
			return a.UserLo < b.UserLo
		}
		return a.UserHi < b.UserHi
	})
}

// --- Postgres implementation ---

// Schema:
//
//	matches(user_lo, user_hi, state, initiator_id, score_at_send,
//	        created_at, updated_at, PRIMARY KEY (user_lo, user_hi))
//
// The primary key IS the pair-key invariant: at most one record per
// unordered pair, enforced by the database.
type pgMatchStore struct {
	db *sql.DB
}

func newPGMatchStore(db *sql.DB) *pgMatchStore {
	return &pgMatchStore{db: db}
}

// lockPair loads the pair row and takes a row lock so no concurrent
// transaction can transition it until ours finishes. (nil, nil) when no
// record exists yet.
func lockPair(tx *sql.Tx, lo, hi int) (*MatchRecord, error) {
	row := tx.QueryRow(`
		SELECT user_lo, user_hi, state, initiator_id, score_at_send, created_at, updated_at
		FROM matches
		WHERE user_lo = $1 AND user_hi = $2
		FOR UPDATE
	`, lo, hi)

	var m MatchRecord
	if err := row.Scan(&m.UserLo, &m.UserHi, &m.State, &m.InitiatorID, &m.ScoreAtSend, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (s *pgMatchStore) Transition(ctx context.Context, a, b int, fn transitionFn) (*MatchRecord, error) {
	lo, hi := pairKey(a, b)
	var out *MatchRecord

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		// Two rounds cover the empty-pair race: if our INSERT loses to a
		// concurrent first send, the conflict leaves zero rows and the second
		// round re-reads the winner's row under lock.
		for attempt := 0; attempt < 2; attempt++ {
			cur, err := lockPair(tx, lo, hi)
			if err != nil {
				return err
			}
			next, err := fn(cur.clone())
			if err != nil {
				return err
			}
			if next == nil {
				out = cur
				return nil
			}
			next.UserLo, next.UserHi = lo, hi

			// RETURNING feeds the database-stamped timestamps back into the
			// record handed to the caller, same contract as the memory store.
			if cur == nil {
				err := tx.QueryRow(`
					INSERT INTO matches (user_lo, user_hi, state, initiator_id, score_at_send, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
					ON CONFLICT (user_lo, user_hi) DO NOTHING
					RETURNING created_at, updated_at
				`, lo, hi, next.State, next.InitiatorID, next.ScoreAtSend).Scan(&next.CreatedAt, &next.UpdatedAt)
				if err == sql.ErrNoRows {
					continue // lost the insert race, re-read under lock
				}
				if err != nil {
					return err
				}
				out = next
				return nil
			}

			err = tx.QueryRow(`
				UPDATE matches SET state = $3, updated_at = NOW()
				WHERE user_lo = $1 AND user_hi = $2
				RETURNING created_at, updated_at
			`, lo, hi, next.State).Scan(&next.CreatedAt, &next.UpdatedAt)
			if err != nil {
				return err
			}
			out = next
			return nil
		}
		return unavailable(sql.ErrTxDone)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *pgMatchStore) Get(ctx context.Context, a, b int) (*MatchRecord, error) {
	lo, hi := pairKey(a, b)
	row := s.db.QueryRowContext(ctx, `
		SELECT user_lo, user_hi, state, initiator_id, score_at_send, created_at, updated_at
		FROM matches WHERE user_lo = $1 AND user_hi = $2
	`, lo, hi)
	var m MatchRecord
	if err := row.Scan(&m.UserLo, &m.UserHi, &m.State, &m.InitiatorID, &m.ScoreAtSend, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, unavailable(err)
	}
	return &m, nil
}

func (s *pgMatchStore) queryRecords(ctx context.Context, query string, args ...any) ([]*MatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()
	var out []*MatchRecord
	for rows.Next() {
		var m MatchRecord
		if err := rows.Scan(&m.UserLo, &m.UserHi, &m.State, &m.InitiatorID, &m.ScoreAtSend, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, unavailable(err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *pgMatchStore) ListByState(ctx context.Context, userID int, state MatchState) ([]*MatchRecord, error) {
	return s.queryRecords(ctx, `
		SELECT user_lo, user_hi, state, initiator_id, score_at_send, created_at, updated_at
		FROM matches
		WHERE (user_lo = $1 OR user_hi = $1) AND state = $2
		ORDER BY updated_at DESC, user_lo, user_hi
	`, userID, state)
}

func (s *pgMatchStore) ListIncoming(ctx context.Context, userID int) ([]*MatchRecord, error) {
	return s.queryRecords(ctx, `
		SELECT user_lo, user_hi, state, initiator_id, score_at_send, created_at, updated_at
		FROM matches
		WHERE (user_lo = $1 OR user_hi = $1) AND state = 'pending' AND initiator_id <> $1
		ORDER BY updated_at DESC, user_lo, user_hi
	`, userID)
}

func (s *pgMatchStore) Peers(ctx context.Context, userID int) (map[int]MatchState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_lo, user_hi, state FROM matches WHERE user_lo = $1 OR user_hi = $1
	`, userID)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()
	out := make(map[int]MatchState)
	for rows.Next() {
		var lo, hi int
		var state MatchState
		if err := rows.Scan(&lo, &hi, &state); err != nil {
			return nil, unavailable(err)
		}
		if lo == userID {
			out[hi] = state
		} else {
			out[lo] = state
		}
	}
	return out, rows.Err()
}
