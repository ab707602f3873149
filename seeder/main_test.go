package main

import "testing"

// The engine scores education and children-timeline against closed
// vocabularies; a value outside them silently degrades to the neutral
// fallback. These copies mirror models.go — update both together.
var (
	knownEducations = map[string]bool{
		"high_school":  true,
		"some_college": true,
		"trade_school": true,
		"bachelors":    true,
		"masters":      true,
		"doctorate":    true,
		"other":        true,
	}
	knownTimelines = map[string]bool{
		"within_1_year": true,
		"1_3_years":     true,
		"3_5_years":     true,
		"5_plus_years":  true,
	}
)

func TestSeededEducationsAreRecognized(t *testing.T) {
	for _, e := range educations {
		if !knownEducations[e] {
			t.Errorf("education %q is not in the engine's hierarchy; seeded profiles would score it as unknown", e)
		}
	}
}

func TestSeededTimelinesAreRecognized(t *testing.T) {
	for _, lists := range [][]string{timelines, commitment} {
		for _, tl := range lists {
			if !knownTimelines[tl] {
				t.Errorf("timeline %q is not in the engine's bucket order", tl)
			}
		}
	}
}
