package main

import (
	"math"
	"strings"
)

// compareAttribute computes the contribution of one attribute to the
// requester -> candidate compatibility, always in [0,1] and defined for every
// valid profile. Attributes backed by a one-sided preference (gender, age)
// are intentionally asymmetric: compare(A,B) need not equal compare(B,A).
func compareAttribute(cfg *MatchingConfig, attr Attribute, req *Profile, prefs *Preferences, cand *Profile) float64 {
	switch attr {
	case AttrGender:
		return compareGender(prefs, cand)
	case AttrAge:
		return compareAge(cfg, prefs, cand)
	case AttrLocation:
		return compareLocation(req, cand)
	case AttrChildrenTimeline:
		return compareChildrenTimeline(cfg, req.ChildrenTimeline, cand.ChildrenTimeline)
	case AttrChildrenCount:
		return compareChildrenCount(cfg, req.DesiredChildren, cand.DesiredChildren)
	case AttrEducation:
		return compareEducation(cfg, req.EducationLevel, cand.EducationLevel)
	case AttrReligion:
		return compareCategorical(cfg.religionTable, req.ReligiousView, cand.ReligiousView)
	case AttrParenting:
		return compareCategorical(cfg.parentingTable, req.ParentingPhilosophy, cand.ParentingPhilosophy)
	case AttrLivingArrangement:
		return compareCategorical(cfg.livingTable, req.LivingArrangement, cand.LivingArrangement)
	case AttrCommitmentTimeline:
		return compareCategorical(cfg.commitmentTable, req.CommitmentTimeline, cand.CommitmentTimeline)
	case AttrValues:
		return jaccard(req.Values, cand.Values)
	}
	return 0
}

// compareGender checks the candidate against the requester's preferred set.
// No stated preference is not a penalty.
func compareGender(prefs *Preferences, cand *Profile) float64 {
	if len(prefs.PreferredGenders) == 0 {
		return 1
	}
	for _, g := range prefs.PreferredGenders {
		if strings.EqualFold(g, cand.Gender) {
			return 1
		}
	}
	return 0
}

// compareAge: 1.0 while the candidate is inside the requester's stated range,
// then linear decay to 0 at age_decay_years outside it.
func compareAge(cfg *MatchingConfig, prefs *Preferences, cand *Profile) float64 {
	if prefs.AgeMin == 0 && prefs.AgeMax == 0 {
		return 1
	}
	var outside int
	switch {
	case cand.Age < prefs.AgeMin:
		outside = prefs.AgeMin - cand.Age
	case cand.Age > prefs.AgeMax:
		outside = cand.Age - prefs.AgeMax
	default:
		return 1
	}
	return clamp01(1 - float64(outside)/float64(cfg.AgeDecayYears))
}

// compareLocation: 1.0 at zero distance, linear decay to 0 at the smaller of
// the two stated radii, 0 beyond it. A side with no stated radius defers to
// the other; when neither states one, distance does not matter.
func compareLocation(req, cand *Profile) float64 {
	radius := req.MaxRadiusKm
	if radius == 0 || (cand.MaxRadiusKm > 0 && cand.MaxRadiusKm < radius) {
		radius = cand.MaxRadiusKm
	}
	if radius == 0 {
		return 1
	}
	d := haversine(req.LocationLat, req.LocationLon, cand.LocationLat, cand.LocationLon)
	if d >= float64(radius) {
		return 0
	}
	return clamp01(1 - d/float64(radius))
}

// compareChildrenTimeline treats the ordered buckets as categorical with
// partial affinity for adjacent buckets. Unstated values are neutral.
func compareChildrenTimeline(cfg *MatchingConfig, a, b string) float64 {
	if a == "" || b == "" {
		return 0.5
	}
	if strings.EqualFold(a, b) {
		return 1
	}
	ia, okA := childrenTimelineOrder[strings.ToLower(a)]
	ib, okB := childrenTimelineOrder[strings.ToLower(b)]
	if okA && okB && abs(ia-ib) == 1 {
		return cfg.TimelineAdjacentAffinity
	}
	return 0
}

// compareChildrenCount: linear decay over the count delta. 0 means "open"
// and matches anything.
func compareChildrenCount(cfg *MatchingConfig, a, b int) float64 {
	if a == 0 || b == 0 {
		return 1
	}
	return clamp01(1 - float64(abs(a-b))/float64(cfg.ChildrenCountDecay))
}

// compareEducation maps levels onto the hierarchy and decays over the level
// delta. Unstated or unknown levels are neutral.
func compareEducation(cfg *MatchingConfig, a, b string) float64 {
	la, okA := educationLevels[strings.ToLower(a)]
	lb, okB := educationLevels[strings.ToLower(b)]
	if !okA || !okB {
		return 0.5
	}
	return clamp01(1 - float64(abs(la-lb))/float64(cfg.EducationDecayLevels))
}

// compareCategorical: 1.0 on equality, the declared affinity for compatible
// pairs, else 0. Unstated values are neutral.
func compareCategorical(table affinityTable, a, b string) float64 {
	if a == "" || b == "" {
		return 0.5
	}
	if strings.EqualFold(a, b) {
		return 1
	}
	if aff, ok := table[affinityKey(a, b)]; ok {
		return aff
	}
	return 0
}

// jaccard computes |intersection| / |union| over lowercased tags.
// Two empty sets mean neither side stated values, which is not a penalty.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[strings.ToLower(s)] = true
	}
	union := len(set)
	inter := 0
	seen := make(map[string]bool, len(b))
	for _, s := range b {
		k := strings.ToLower(s)
		if seen[k] {
			continue
		}
		seen[k] = true
		if set[k] {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

// haversine returns the great-circle distance in km.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371 // Earth radius in km
	dLat := (lat2 - lat1) * (math.Pi / 180)
	dLon := (lon2 - lon1) * (math.Pi / 180)
	lat1 = lat1 * (math.Pi / 180)
	lat2 = lat2 * (math.Pi / 180)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
