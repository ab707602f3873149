package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedDiscoverPool sets up requester 1 weighting age only, with candidates
// whose ages yield distinct scores: 100, 60, 0.
func seedDiscoverPool(e *testEngine) {
	prefs := testPrefs(1)
	prefs.AgeMin, prefs.AgeMax = 25, 30
	prefs.Weights[AttrAge] = PrefWeight{Weight: 1}
	e.profiles.Put(testProfile(1), prefs)

	inRange := testProfile(2)
	inRange.Age = 27 // 100
	e.profiles.Put(inRange, testPrefs(2))

	nearMiss := testProfile(3)
	nearMiss.Age = 32 // 2 outside, decay 5 -> 60
	e.profiles.Put(nearMiss, testPrefs(3))

	farMiss := testProfile(4)
	farMiss.Age = 35 // 5 outside -> 0
	e.profiles.Put(farMiss, testPrefs(4))
}

func TestDiscoverRanksByScore(t *testing.T) {
	e := newTestEngine()
	seedDiscoverPool(e)

	page, err := e.svc.Discover(context.Background(), 1, "", 0)
	require.NoError(t, err)
	require.Len(t, page.Results, 3)
	assert.Equal(t, []int{2, 3, 4}, resultIDs(page))
	assert.Equal(t, 100, page.Results[0].Score.Score)
	assert.Equal(t, 60, page.Results[1].Score.Score)
	assert.Equal(t, 0, page.Results[2].Score.Score)
	assert.Empty(t, page.NextToken, "single full page has no continuation")
	assert.False(t, page.Partial)
}

func TestDiscoverTieBreaks(t *testing.T) {
	e := newTestEngine()
	prefs := testPrefs(1)
	prefs.Weights[AttrLocation] = PrefWeight{Weight: 1}
	e.profiles.Put(testProfile(1), prefs)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	e.fixedNow(now)

	// All same location, same score; only recency and id differ. Last-active
	// beyond the horizon keeps the boost at zero for everyone.
	stale := now.Add(-200 * time.Hour)
	fresher := now.Add(-180 * time.Hour)

	a := testProfile(5)
	a.LastActive = stale
	b := testProfile(3)
	b.LastActive = fresher
	c := testProfile(4)
	c.LastActive = stale
	e.profiles.Put(a, testPrefs(5))
	e.profiles.Put(b, testPrefs(3))
	e.profiles.Put(c, testPrefs(4))

	page, err := e.svc.Discover(context.Background(), 1, "", 0)
	require.NoError(t, err)
	require.Len(t, page.Results, 3)
	// More recently active first; equal recency falls back to id ascending.
	assert.Equal(t, []int{3, 4, 5}, resultIDs(page))
}

func TestDiscoverPagination(t *testing.T) {
	e := newTestEngine()
	seedDiscoverPool(e)
	ctx := context.Background()

	first, err := e.svc.Discover(ctx, 1, "", 2)
	require.NoError(t, err)
	require.Len(t, first.Results, 2)
	require.NotEmpty(t, first.NextToken)
	assert.Equal(t, []int{2, 3}, resultIDs(first))

	second, err := e.svc.Discover(ctx, 1, first.NextToken, 2)
	require.NoError(t, err)
	require.Len(t, second.Results, 1)
	assert.Equal(t, []int{4}, resultIDs(second))
	assert.Empty(t, second.NextToken)

	// Same token, same data: same page. No duplicates across pages.
	again, err := e.svc.Discover(ctx, 1, first.NextToken, 2)
	require.NoError(t, err)
	assert.Equal(t, resultIDs(second), resultIDs(again))
}

func TestDiscoverInvalidToken(t *testing.T) {
	e := newTestEngine()
	seedDiscoverPool(e)

	_, err := e.svc.Discover(context.Background(), 1, "not-a-token", 0)
	assert.ErrorIs(t, err, errInvalidInput)

	_, err = e.svc.Discover(context.Background(), 1, "", -1)
	assert.ErrorIs(t, err, errInvalidInput)
}

func TestDiscoverExcludesDealBreakerFailures(t *testing.T) {
	e := newTestEngine()

	req := testProfile(1)
	req.ReligiousView = "christian"
	prefs := testPrefs(1)
	prefs.Weights[AttrReligion] = PrefWeight{DealBreaker: true}
	e.profiles.Put(req, prefs)

	same := testProfile(2)
	same.ReligiousView = "christian"
	e.profiles.Put(same, testPrefs(2))

	adjacent := testProfile(3)
	adjacent.ReligiousView = "catholic" // 0.7 < 1.0 gate
	e.profiles.Put(adjacent, testPrefs(3))

	opposite := testProfile(4)
	opposite.ReligiousView = "atheist"
	e.profiles.Put(opposite, testPrefs(4))

	page, err := e.svc.Discover(context.Background(), 1, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, resultIDs(page), "gated candidates never surface")
}

func TestDiscoverExcludesTerminalPairs(t *testing.T) {
	e := newTestEngine()
	seedDiscoverPool(e)
	ctx := context.Background()

	// Pending pairs stay visible; settled and blocked pairs do not.
	_, err := e.svc.Send(ctx, 1, 2)
	require.NoError(t, err)
	_, err = e.svc.Block(ctx, 1, 3)
	require.NoError(t, err)
	_, err = e.svc.Send(ctx, 1, 4)
	require.NoError(t, err)
	_, err = e.svc.Respond(ctx, 4, 1, false)
	require.NoError(t, err)

	page, err := e.svc.Discover(ctx, 1, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, resultIDs(page))
}

func TestDiscoverExcludesHiddenAndUnverified(t *testing.T) {
	e := newTestEngine()
	seedDiscoverPool(e)

	hidden := testProfile(5)
	hidden.Visible = false
	e.profiles.Put(hidden, nil)
	unverified := testProfile(6)
	unverified.Verified = false
	e.profiles.Put(unverified, nil)

	page, err := e.svc.Discover(context.Background(), 1, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4}, resultIDs(page))
}

func TestDiscoverUnverifiedRequester(t *testing.T) {
	e := newTestEngine()
	req := testProfile(1)
	req.Verified = false
	e.profiles.Put(req, testPrefs(1))

	_, err := e.svc.Discover(context.Background(), 1, "", 0)
	assert.ErrorIs(t, err, errNotEligible)
}

func TestDiscoverMinScoreFilter(t *testing.T) {
	e := newTestEngine()
	e.cfg.Matching.MinScore = 50
	seedDiscoverPool(e)

	page, err := e.svc.Discover(context.Background(), 1, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, resultIDs(page), "scores below the floor drop out")
}

func TestDiscoverCancelledContext(t *testing.T) {
	e := newTestEngine()
	seedDiscoverPool(e)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.svc.Discover(ctx, 1, "", 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDiscoverDeadlinePartialPage(t *testing.T) {
	e := newTestEngine()
	seedDiscoverPool(e)

	// An already-expired deadline: every worker skips, and the caller gets an
	// explicitly partial (here: empty) page instead of an error.
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	page, err := e.svc.Discover(ctx, 1, "", 0)
	require.NoError(t, err)
	assert.True(t, page.Partial)
	assert.Empty(t, page.Results)
}

// midScanDeadline reports DeadlineExceeded once its Done channel has been
// polled the given number of times, simulating a deadline that expires
// partway through the scoring fan-out.
type midScanDeadline struct {
	mu    sync.Mutex
	polls int
	done  chan struct{}
}

func newMidScanDeadline(polls int) *midScanDeadline {
	return &midScanDeadline{polls: polls, done: make(chan struct{})}
}

func (c *midScanDeadline) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.polls > 0 {
		c.polls--
		if c.polls == 0 {
			close(c.done)
		}
	}
	return c.done
}

func (c *midScanDeadline) Err() error {
	select {
	case <-c.done:
		return context.DeadlineExceeded
	default:
		return nil
	}
}

func (c *midScanDeadline) Deadline() (time.Time, bool) { return time.Now(), true }
func (c *midScanDeadline) Value(any) any               { return nil }

func TestDiscoverMidScanDeadlineKeepsResultsAndToken(t *testing.T) {
	e := newTestEngine()
	seedDiscoverPool(e)
	e.cfg.Matching.MaxConcurrency = 1 // serial fan-out: candidates score in pool order

	// The deadline hits after the first candidate: 2 scores, 3 and 4 skip.
	ctx := newMidScanDeadline(2)
	page, err := e.svc.Discover(ctx, 1, "", 0)
	require.NoError(t, err)
	assert.True(t, page.Partial)
	require.Len(t, page.Results, 1)
	assert.Equal(t, []int{2}, resultIDs(page))
	assert.Empty(t, page.NextToken, "partial page replays the request position")

	// Resuming with the returned token under no deadline pressure re-scans
	// the skipped candidates: candidate 2 repeats, but 3 and 4 are reachable
	// even though they rank below the partial page's tail.
	full, err := e.svc.Discover(context.Background(), 1, page.NextToken, 0)
	require.NoError(t, err)
	assert.False(t, full.Partial)
	assert.Equal(t, []int{2, 3, 4}, resultIDs(full))
}

func TestDiscoverPartialPageEchoesRequestToken(t *testing.T) {
	e := newTestEngine()
	seedDiscoverPool(e)

	first, err := e.svc.Discover(context.Background(), 1, "", 1)
	require.NoError(t, err)
	require.NotEmpty(t, first.NextToken)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	page, err := e.svc.Discover(ctx, 1, first.NextToken, 1)
	require.NoError(t, err)
	assert.True(t, page.Partial)
	assert.Equal(t, first.NextToken, page.NextToken, "cursor must not advance past unscored candidates")
}

func TestCursorRoundTrip(t *testing.T) {
	c := pageCursor{Score: 87, LastActive: 1750000000123, UserID: 42}
	got, err := decodeCursor(encodeCursor(c))
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestPageSizeClamping(t *testing.T) {
	e := newTestEngine()
	e.cfg.Matching.DefaultPageSize = 2
	seedDiscoverPool(e)

	page, err := e.svc.Discover(context.Background(), 1, "", 0)
	require.NoError(t, err)
	assert.Len(t, page.Results, 2, "zero page size falls back to the default")

	e.cfg.Matching.MaxPageSize = 1
	page, err = e.svc.Discover(context.Background(), 1, "", 500)
	require.NoError(t, err)
	assert.Len(t, page.Results, 1, "oversized requests clamp to the max")
}

func resultIDs(page *DiscoverPage) []int {
	ids := make([]int, 0, len(page.Results))
	for _, rc := range page.Results {
		ids = append(ids, rc.Profile.UserID)
	}
	return ids
}
