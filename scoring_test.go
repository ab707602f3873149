package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreCandidateWeightedNormalization(t *testing.T) {
	cfg := &testConfig().Matching
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	req := testProfile(1)
	req.ReligiousView = "christian"
	req.EducationLevel = "bachelors"

	cand := testProfile(2)
	cand.ReligiousView = "catholic" // 0.7
	cand.EducationLevel = "masters" // 0.75

	prefs := testPrefs(1)
	prefs.Weights[AttrReligion] = PrefWeight{Weight: 0.8}
	prefs.Weights[AttrEducation] = PrefWeight{Weight: 0.4}

	got := scoreCandidate(cfg, now, req, prefs, cand)

	// (0.7*0.8 + 0.75*0.4) / 1.2 * 100 = 71.67 -> 72, no boost (stale).
	assert.Equal(t, 72, got.Score)
	assert.Equal(t, 0, got.ActivityBoost)
	assert.Equal(t, 1, got.RequesterID)
	assert.Equal(t, 2, got.CandidateID)
	assert.InDelta(t, 0.7, got.Breakdown[AttrReligion], 1e-9)
	assert.InDelta(t, 0.75, got.Breakdown[AttrEducation], 1e-9)
	assert.NotContains(t, got.Breakdown, AttrValues, "unweighted attributes stay out of the breakdown")
}

func TestScoreCandidateSkipsUnsetAndDealBreakerWeights(t *testing.T) {
	cfg := &testConfig().Matching
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	req := testProfile(1)
	req.ReligiousView = "christian"
	cand := testProfile(2)
	cand.ReligiousView = "atheist" // 0.0 contribution if it counted

	prefs := testPrefs(1)
	prefs.Weights[AttrReligion] = PrefWeight{Weight: 0.9, DealBreaker: true} // gate, not a weight
	prefs.Weights[AttrValues] = PrefWeight{Weight: 0}                        // explicit zero
	prefs.Weights[AttrEducation] = PrefWeight{Weight: 0.5}                   // both unstated -> 0.5

	got := scoreCandidate(cfg, now, req, prefs, cand)

	// Only education counts: 0.5*0.5 / 0.5 * 100 = 50. The mismatched
	// deal-breaker attribute never drags the aggregate down.
	assert.Equal(t, 50, got.Score)
	assert.NotContains(t, got.Breakdown, AttrReligion)
	assert.NotContains(t, got.Breakdown, AttrValues)
}

func TestScoreCandidateAdjacentTimelineHalfCredit(t *testing.T) {
	cfg := &testConfig().Matching
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	req := testProfile(1)
	req.ChildrenTimeline = "1_3_years"
	req.ReligiousView = "christian"

	cand := testProfile(2)
	cand.ChildrenTimeline = "within_1_year" // adjacent bucket -> 0.5
	cand.ReligiousView = "christian"

	prefs := testPrefs(1)
	prefs.Weights[AttrChildrenTimeline] = PrefWeight{Weight: 0.8}
	prefs.Weights[AttrReligion] = PrefWeight{DealBreaker: true}

	ok, _ := passesDealBreakers(cfg, req, prefs, cand)
	require.True(t, ok)

	got := scoreCandidate(cfg, now, req, prefs, cand)
	// 0.5*0.8 / 0.8 * 100 = 50, before any activity boost.
	assert.Equal(t, 50, got.Score)
}

func TestScoreCandidateNoWeights(t *testing.T) {
	cfg := &testConfig().Matching
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	req := testProfile(1)
	cand := testProfile(2)
	cand.LastActive = now // full activity boost

	got := scoreCandidate(cfg, now, req, testPrefs(1), cand)

	// No weights: base 0, only the boost remains.
	assert.Equal(t, cfg.ActivityBoostMax, got.Score)
	assert.Equal(t, cfg.ActivityBoostMax, got.ActivityBoost)
}

func TestScoreCandidateClampedAt100(t *testing.T) {
	cfg := &testConfig().Matching
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	req := testProfile(1)
	cand := testProfile(2)
	cand.Gender = "man"
	cand.LastActive = now

	prefs := testPrefs(1)
	prefs.PreferredGenders = []string{"man"}
	prefs.Weights[AttrGender] = PrefWeight{Weight: 1}

	got := scoreCandidate(cfg, now, req, prefs, cand)
	require.Equal(t, cfg.ActivityBoostMax, got.ActivityBoost)
	assert.Equal(t, 100, got.Score, "base 100 + boost clamps at 100")
}

func TestScoreCandidateDeterministic(t *testing.T) {
	cfg := &testConfig().Matching
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	req := testProfile(1)
	req.Values = []string{"family", "faith"}
	cand := testProfile(2)
	cand.Values = []string{"family", "adventure"}
	cand.LastActive = now.Add(-3 * time.Hour)

	prefs := testPrefs(1)
	prefs.Weights[AttrValues] = PrefWeight{Weight: 0.6}
	prefs.Weights[AttrLocation] = PrefWeight{Weight: 0.3}

	first := scoreCandidate(cfg, now, req, prefs, cand)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, scoreCandidate(cfg, now, req, prefs, cand))
	}
}

func TestActivityBoost(t *testing.T) {
	cfg := &testConfig().Matching // max 10, horizon 168h
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 10, activityBoost(cfg, now, now))
	assert.Equal(t, 5, activityBoost(cfg, now, now.Add(-84*time.Hour)))
	assert.Equal(t, 0, activityBoost(cfg, now, now.Add(-168*time.Hour)))
	assert.Equal(t, 0, activityBoost(cfg, now, now.Add(-500*time.Hour)))
	assert.Equal(t, 0, activityBoost(cfg, now, time.Time{}), "never-active gets nothing")
	assert.Equal(t, 10, activityBoost(cfg, now, now.Add(time.Hour)), "clock skew counts as active now")
}

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, 72, roundHalfUp(71.5))
	assert.Equal(t, 71, roundHalfUp(71.49))
	assert.Equal(t, 72, roundHalfUp(71.99))
	assert.Equal(t, 0, roundHalfUp(0))
}
