package main

import (
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AffinityPair declares a "compatible-but-not-identical" categorical pair and
// its contribution. Pairs are unordered.
type AffinityPair struct {
	A        string  `mapstructure:"a"`
	B        string  `mapstructure:"b"`
	Affinity float64 `mapstructure:"affinity"`
}

type affinityTable map[string]float64

func affinityKey(a, b string) string {
	k := []string{strings.ToLower(a), strings.ToLower(b)}
	sort.Strings(k)
	return k[0] + "|" + k[1]
}

func buildAffinityTable(pairs []AffinityPair) affinityTable {
	t := make(affinityTable, len(pairs))
	for _, p := range pairs {
		t[affinityKey(p.A, p.B)] = p.Affinity
	}
	return t
}

// MatchingConfig is the static configuration surface of the engine: loaded
// once at startup, never re-derived per call.
type MatchingConfig struct {
	// Hard threshold a deal-breaker contribution must reach. 1.0 means
	// exact-match gates.
	DealBreakerThreshold float64 `mapstructure:"deal_breaker_threshold"`

	// Numeric decay distances.
	AgeDecayYears        int `mapstructure:"age_decay_years"`
	ChildrenCountDecay   int `mapstructure:"children_count_decay"`
	EducationDecayLevels int `mapstructure:"education_decay_levels"`

	// Categorical partial-affinity declarations.
	TimelineAdjacentAffinity float64        `mapstructure:"timeline_adjacent_affinity"`
	ReligionAffinities       []AffinityPair `mapstructure:"religion_affinities"`
	ParentingAffinities      []AffinityPair `mapstructure:"parenting_affinities"`
	LivingAffinities         []AffinityPair `mapstructure:"living_affinities"`
	CommitmentAffinities     []AffinityPair `mapstructure:"commitment_affinities"`

	// Activity boost: up to ActivityBoostMax points for a candidate active
	// right now, decaying linearly to zero at ActivityHorizon.
	ActivityBoostMax int           `mapstructure:"activity_boost_max"`
	ActivityHorizon  time.Duration `mapstructure:"activity_horizon"`

	// Ranking and paging.
	MinScore        int           `mapstructure:"min_score"`
	DefaultPageSize int           `mapstructure:"default_page_size"`
	MaxPageSize     int           `mapstructure:"max_page_size"`
	MaxConcurrency  int           `mapstructure:"max_concurrency"`
	DiscoverTimeout time.Duration `mapstructure:"discover_timeout"`

	// Crossing-sends policy: when true, B sending to A while A->B is pending
	// completes the pair as mutual instead of leaving it pending.
	ReciprocalAccept bool `mapstructure:"reciprocal_accept"`

	religionTable   affinityTable
	parentingTable  affinityTable
	livingTable     affinityTable
	commitmentTable affinityTable
}

type Config struct {
	Addr        string         `mapstructure:"addr"`
	DatabaseURL string         `mapstructure:"database_url"`
	JWTSecret   string         `mapstructure:"jwt_secret"`
	Matching    MatchingConfig `mapstructure:"matching"`
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("jwt_secret", "your_secret_key_please_change_in_production")

	v.SetDefault("matching.deal_breaker_threshold", 1.0)
	v.SetDefault("matching.age_decay_years", 5)
	v.SetDefault("matching.children_count_decay", 2)
	v.SetDefault("matching.education_decay_levels", 4)
	v.SetDefault("matching.timeline_adjacent_affinity", 0.5)
	v.SetDefault("matching.activity_boost_max", 10)
	v.SetDefault("matching.activity_horizon", "168h")
	v.SetDefault("matching.min_score", 0)
	v.SetDefault("matching.default_page_size", 10)
	v.SetDefault("matching.max_page_size", 50)
	v.SetDefault("matching.max_concurrency", 8)
	v.SetDefault("matching.discover_timeout", "2s")
	v.SetDefault("matching.reciprocal_accept", true)
}

// defaultReligionPairs mirrors the compatible religious views the platform
// has always treated as adjacent.
func defaultReligionPairs() []AffinityPair {
	return []AffinityPair{
		{A: "christian", B: "catholic", Affinity: 0.7},
		{A: "spiritual", B: "buddhist", Affinity: 0.7},
		{A: "agnostic", B: "atheist", Affinity: 0.7},
	}
}

// loadConfig reads config.yaml (working directory) with env-var overrides
// (prefix KINDRED, e.g. KINDRED_DATABASE_URL). A missing file is fine: the
// defaults describe a runnable engine.
func loadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("kindred")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setConfigDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if len(cfg.Matching.ReligionAffinities) == 0 {
		cfg.Matching.ReligionAffinities = defaultReligionPairs()
	}
	cfg.Matching.finish()
	return &cfg, nil
}

// defaultConfig returns the built-in configuration, used by tests and as the
// fallback shape for the seeder.
func defaultConfig() *Config {
	v := viper.New()
	setConfigDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	cfg.Matching.ReligionAffinities = defaultReligionPairs()
	cfg.Matching.finish()
	return &cfg
}

// finish builds the affinity lookup tables. Must be called once after the
// raw config is populated.
func (m *MatchingConfig) finish() {
	m.religionTable = buildAffinityTable(m.ReligionAffinities)
	m.parentingTable = buildAffinityTable(m.ParentingAffinities)
	m.livingTable = buildAffinityTable(m.LivingAffinities)
	m.commitmentTable = buildAffinityTable(m.CommitmentAffinities)
}
