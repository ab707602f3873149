package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// RankedCandidate pairs a candidate profile with its computed score.
type RankedCandidate struct {
	Profile *Profile
	Score   CompatibilityScore
}

// DiscoverPage is one finite page of ranked candidates. NextToken restarts
// the scan at the following sort key; Partial marks a page cut short by the
// caller's deadline before the whole pool was scored. On a partial page
// NextToken replays the request's own position, so a retry re-scans the
// skipped candidates: results may repeat across the two pages, but none are
// lost.
type DiscoverPage struct {
	Results   []RankedCandidate
	NextToken string
	Partial   bool
}

// pageCursor is the stable sort key of the last returned candidate. The sort
// is total (score desc, last-active desc, user id asc), so the cursor
// identifies an exact resume position given unchanged underlying data.
type pageCursor struct {
	Score      int
	LastActive int64 // unix millis
	UserID     int
}

func encodeCursor(c pageCursor) string {
	raw := fmt.Sprintf("%d:%d:%d", c.Score, c.LastActive, c.UserID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(token string) (pageCursor, error) {
	var c pageCursor
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return c, invalidInput("page token")
	}
	if _, err := fmt.Sscanf(string(raw), "%d:%d:%d", &c.Score, &c.LastActive, &c.UserID); err != nil {
		return c, invalidInput("page token")
	}
	return c, nil
}

func candidateKey(rc RankedCandidate) pageCursor {
	return pageCursor{
		Score:      rc.Score.Score,
		LastActive: rc.Profile.LastActive.UnixMilli(),
		UserID:     rc.Profile.UserID,
	}
}

// afterCursor reports whether key sorts strictly after c in the ranking
// order.
func afterCursor(key, c pageCursor) bool {
	if key.Score != c.Score {
		return key.Score < c.Score
	}
	if key.LastActive != c.LastActive {
		return key.LastActive < c.LastActive
	}
	return key.UserID > c.UserID
}

// Discover scans the eligible pool for the requester, gates it on the
// requester's deal-breakers, scores survivors in parallel, and returns one
// ranked page.
//
// The scan works on a snapshot taken at call start: a profile edited mid-scan
// may or may not be reflected, but records are never torn. Per-candidate
// scoring fans out over a bounded worker group; cancelling ctx abandons the
// call, while hitting its deadline yields the partial page scored so far.
func (s *MatchService) Discover(ctx context.Context, requesterID int, pageToken string, pageSize int) (*DiscoverPage, error) {
	if err := validateUserIDs(requesterID); err != nil {
		return nil, err
	}
	if pageSize < 0 {
		return nil, invalidInput("page size %d", pageSize)
	}
	cfg := &s.cfg.Matching
	if pageSize == 0 {
		pageSize = cfg.DefaultPageSize
	}
	if pageSize > cfg.MaxPageSize {
		pageSize = cfg.MaxPageSize
	}

	var cursor *pageCursor
	if pageToken != "" {
		c, err := decodeCursor(pageToken)
		if err != nil {
			return nil, err
		}
		cursor = &c
	}

	req, err := s.profiles.Snapshot(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if !req.Profile.Verified {
		return nil, notEligible("unverified_profile")
	}
	if err := validatePreferences(req.Prefs); err != nil {
		return nil, err
	}

	peers, err := s.matches.Peers(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	pool, err := s.profiles.Candidates(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	// Deal-breaker gating happens before any scoring work is queued.
	eligible := pool[:0]
	for _, cand := range pool {
		if state, ok := peers[cand.UserID]; ok && state.Terminal() {
			continue
		}
		if ok, _ := passesDealBreakers(cfg, req.Profile, req.Prefs, cand); !ok {
			continue
		}
		eligible = append(eligible, cand)
	}

	now := s.now()
	scored := make([]*RankedCandidate, len(eligible))
	var skipped atomic.Bool

	g := &errgroup.Group{}
	g.SetLimit(cfg.MaxConcurrency)
	for i, cand := range eligible {
		i, cand := i, cand
		g.Go(func() error {
			select {
			case <-ctx.Done():
				skipped.Store(true)
				return nil
			default:
			}
			score := scoreCandidate(cfg, now, req.Profile, req.Prefs, cand)
			scored[i] = &RankedCandidate{Profile: cand, Score: score}
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() == context.Canceled {
		// Abandoned by the caller; nothing may leak into a future call.
		return nil, ctx.Err()
	}
	partial := skipped.Load() && ctx.Err() == context.DeadlineExceeded

	ranked := make([]RankedCandidate, 0, len(scored))
	for _, rc := range scored {
		if rc == nil || rc.Score.Score < cfg.MinScore {
			continue
		}
		if cursor != nil && !afterCursor(candidateKey(*rc), *cursor) {
			continue
		}
		ranked = append(ranked, *rc)
	}

	// The merge must not reorder ties: the same total order is applied after
	// the parallel fan-out.
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score.Score != b.Score.Score {
			return a.Score.Score > b.Score.Score
		}
		if !a.Profile.LastActive.Equal(b.Profile.LastActive) {
			return a.Profile.LastActive.After(b.Profile.LastActive)
		}
		return a.Profile.UserID < b.Profile.UserID
	})

	page := &DiscoverPage{Partial: partial}
	if len(ranked) > pageSize {
		page.Results = ranked[:pageSize]
	} else {
		page.Results = ranked
	}
	switch {
	case partial:
		// Deadline-skipped candidates have unknown rank, so advancing the
		// cursor past this page could orphan any of them that would have
		// sorted above its tail. Hand back the caller's own position.
		page.NextToken = pageToken
	case len(ranked) > pageSize && len(page.Results) > 0:
		page.NextToken = encodeCursor(candidateKey(page.Results[len(page.Results)-1]))
	}
	return page, nil
}

// withDeadline applies the configured discover deadline when the incoming
// context has none.
func (s *MatchService) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.cfg.Matching.DiscoverTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.cfg.Matching.DiscoverTimeout)
}
