package main

import (
	"math"
	"time"
)

// scoreCandidate aggregates the per-attribute contributions into one bounded
// compatibility score for the ordered pair (requester -> candidate).
//
// Each nice-to-have contribution is multiplied by its weight; the sum is
// normalized by the sum of the weights actually applied, so unset or
// zero-weight attributes never drag the score down. The normalized value is
// scaled to [0,100] with round-half-up, then the activity boost is added and
// the result clamped to 100. Pure function of its inputs: identical snapshots
// always produce an identical score.
func scoreCandidate(cfg *MatchingConfig, now time.Time, req *Profile, prefs *Preferences, cand *Profile) CompatibilityScore {
	breakdown := make(map[Attribute]float64)
	var sum, weightSum float64

	for _, attr := range allAttributes {
		pw, ok := prefs.Weights[attr]
		if !ok || pw.DealBreaker || pw.Weight == 0 {
			continue
		}
		c := compareAttribute(cfg, attr, req, prefs, cand)
		breakdown[attr] = c
		sum += c * pw.Weight
		weightSum += pw.Weight
	}

	base := 0
	if weightSum > 0 {
		base = roundHalfUp(sum / weightSum * 100)
	}

	boost := activityBoost(cfg, now, cand.LastActive)
	total := base + boost
	if total > 100 {
		total = 100
	}

	return CompatibilityScore{
		RequesterID:   req.UserID,
		CandidateID:   cand.UserID,
		Score:         total,
		ActivityBoost: boost,
		Breakdown:     breakdown,
	}
}

// activityBoost rewards recently active candidates: the full boost for
// someone active right now, decaying linearly to zero at the staleness
// horizon.
func activityBoost(cfg *MatchingConfig, now, lastActive time.Time) int {
	if cfg.ActivityBoostMax <= 0 || cfg.ActivityHorizon <= 0 || lastActive.IsZero() {
		return 0
	}
	age := now.Sub(lastActive)
	if age < 0 {
		age = 0
	}
	if age >= cfg.ActivityHorizon {
		return 0
	}
	frac := 1 - float64(age)/float64(cfg.ActivityHorizon)
	return roundHalfUp(float64(cfg.ActivityBoostMax) * frac)
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
