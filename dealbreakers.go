package main

// passesDealBreakers applies the requester's hard gates to a candidate before
// any weighting happens. Every flagged attribute must reach the configured
// threshold on its own; there is no partial credit and no averaging across
// deal-breakers. The check is one-directional: mutual symmetry comes from the
// candidate running their own discover pass.
//
// Returns the first failing attribute for diagnostics.
func passesDealBreakers(cfg *MatchingConfig, req *Profile, prefs *Preferences, cand *Profile) (bool, Attribute) {
	for _, attr := range allAttributes {
		pw, ok := prefs.Weights[attr]
		if !ok || !pw.DealBreaker {
			continue
		}
		if compareAttribute(cfg, attr, req, prefs, cand) < cfg.DealBreakerThreshold {
			return false, attr
		}
	}
	return true, ""
}

// validatePreferences rejects malformed preference records before they reach
// the scoring path: unknown attributes and out-of-range weights are never
// partially applied.
func validatePreferences(prefs *Preferences) error {
	if prefs.AgeMin < 0 || prefs.AgeMax < 0 || (prefs.AgeMax > 0 && prefs.AgeMin > prefs.AgeMax) {
		return invalidInput("age range %d-%d", prefs.AgeMin, prefs.AgeMax)
	}
	for attr, pw := range prefs.Weights {
		if !knownAttribute(attr) {
			return invalidInput("unknown attribute %q", attr)
		}
		if pw.Weight < 0 || pw.Weight > 1 {
			return invalidInput("weight %v for %q out of range", pw.Weight, attr)
		}
	}
	return nil
}
