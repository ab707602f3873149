package main

import (
	"time"
)

// Shared builders for the engine test suites. Everything runs against the
// in-memory stores so the tests need no database.

func testConfig() *Config {
	return defaultConfig()
}

func testProfile(id int) *Profile {
	return &Profile{
		UserID:      id,
		Gender:      "woman",
		Age:         30,
		LocationLat: 60.1699,
		LocationLon: 24.9384,
		Verified:    true,
		Visible:     true,
	}
}

func testPrefs(id int) *Preferences {
	return &Preferences{
		UserID:  id,
		Weights: map[Attribute]PrefWeight{},
	}
}

type testEngine struct {
	svc      *MatchService
	profiles *memoryProfileStore
	matches  *memoryMatchStore
	hub      *EventHub
	cfg      *Config
}

func newTestEngine() *testEngine {
	cfg := testConfig()
	profiles := newMemoryProfileStore()
	matches := newMemoryMatchStore()
	hub := newEventHub()
	return &testEngine{
		svc:      newMatchService(cfg, profiles, matches, hub),
		profiles: profiles,
		matches:  matches,
		hub:      hub,
		cfg:      cfg,
	}
}

// fixedNow pins the service clock so scores and boosts are reproducible.
func (e *testEngine) fixedNow(t time.Time) {
	e.svc.now = func() time.Time { return t }
	e.matches.now = func() time.Time { return t }
}
