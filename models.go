package main

import "time"

// Attribute identifies one preference dimension of the matching engine.
// The set is closed: every attribute has a registered comparator in
// attributes.go, so scoring is total over valid profiles.
type Attribute string

const (
	AttrGender             Attribute = "gender"
	AttrAge                Attribute = "age"
	AttrLocation           Attribute = "location"
	AttrChildrenTimeline   Attribute = "children_timeline"
	AttrChildrenCount      Attribute = "children_count"
	AttrEducation          Attribute = "education"
	AttrReligion           Attribute = "religion"
	AttrParenting          Attribute = "parenting"
	AttrLivingArrangement  Attribute = "living_arrangement"
	AttrCommitmentTimeline Attribute = "commitment_timeline"
	AttrValues             Attribute = "values"
)

var allAttributes = []Attribute{
	AttrGender,
	AttrAge,
	AttrLocation,
	AttrChildrenTimeline,
	AttrChildrenCount,
	AttrEducation,
	AttrReligion,
	AttrParenting,
	AttrLivingArrangement,
	AttrCommitmentTimeline,
	AttrValues,
}

func knownAttribute(a Attribute) bool {
	for _, k := range allAttributes {
		if k == a {
			return true
		}
	}
	return false
}

// Children timeline buckets, ordered. Adjacent buckets get the configured
// partial affinity.
var childrenTimelineOrder = map[string]int{
	"within_1_year": 0,
	"1_3_years":     1,
	"3_5_years":     2,
	"5_plus_years":  3,
}

// Education hierarchy used for the numeric-range comparator.
var educationLevels = map[string]int{
	"high_school":  1,
	"some_college": 2,
	"trade_school": 2,
	"bachelors":    3,
	"masters":      4,
	"doctorate":    5,
	"other":        2,
}

// Profile is a read snapshot of a user's attributes for one scoring pass.
// The engine never writes profile data (except the last-active heartbeat).
type Profile struct {
	UserID              int       `json:"user_id"`
	Gender              string    `json:"gender"`
	Age                 int       `json:"age"`
	LocationLat         float64   `json:"location_lat"`
	LocationLon         float64   `json:"location_lon"`
	MaxRadiusKm         int       `json:"max_radius_km"` // 0 = no stated radius
	ChildrenTimeline    string    `json:"children_timeline"`
	DesiredChildren     int       `json:"desired_children"` // 0 = open
	EducationLevel      string    `json:"education_level"`
	ReligiousView       string    `json:"religious_view"`
	ParentingPhilosophy string    `json:"parenting_philosophy"`
	LivingArrangement   string    `json:"living_arrangement"`
	CommitmentTimeline  string    `json:"commitment_timeline"`
	Values              []string  `json:"values"`
	LastActive          time.Time `json:"last_active"`
	Verified            bool      `json:"verified"`
	Visible             bool      `json:"visible"`
}

// PrefWeight is one preference dimension: a soft weight in [0,1] or a hard
// deal-breaker gate. A deal-breaker's weight is ignored by the aggregator.
type PrefWeight struct {
	Weight      float64 `json:"weight"`
	DealBreaker bool    `json:"deal_breaker"`
}

// Preferences is the requester side of a scoring pass. Owned by the
// profile-editing flows; read-only here.
type Preferences struct {
	UserID           int                      `json:"user_id"`
	AgeMin           int                      `json:"age_min"`
	AgeMax           int                      `json:"age_max"`
	PreferredGenders []string                 `json:"preferred_genders"` // empty = no stated preference
	Weights          map[Attribute]PrefWeight `json:"weights"`
}

// CompatibilityScore is the ephemeral result of scoring one ordered pair
// (requester -> candidate). Never persisted except as the optional snapshot
// on a MatchRecord at send time.
type CompatibilityScore struct {
	RequesterID   int                   `json:"requester_id"`
	CandidateID   int                   `json:"candidate_id"`
	Score         int                   `json:"score"` // 0..100
	ActivityBoost int                   `json:"activity_boost"`
	Breakdown     map[Attribute]float64 `json:"breakdown"`
}

// MatchState is the persisted relationship state between two users.
type MatchState string

const (
	StatePending  MatchState = "pending"
	StateMutual   MatchState = "mutual"
	StateDeclined MatchState = "declined"
	StateBlocked  MatchState = "blocked"
)

// Terminal reports whether no transition other than block may leave s.
func (s MatchState) Terminal() bool {
	return s == StateMutual || s == StateDeclined || s == StateBlocked
}

// MatchRecord is the single persisted row per unordered user pair.
// Records are created on first send and never deleted; declines and blocks
// are terminal states, preserving the moderation audit trail.
type MatchRecord struct {
	UserLo      int        `json:"user_lo"`
	UserHi      int        `json:"user_hi"`
	State       MatchState `json:"state"`
	InitiatorID int        `json:"initiator_id"`
	ScoreAtSend int        `json:"score_at_send"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// pairKey canonicalizes two user ids into the unordered pair key.
func pairKey(a, b int) (lo, hi int) {
	if a < b {
		return a, b
	}
	return b, a
}

// Other returns the pair member that is not userID.
func (m *MatchRecord) Other(userID int) int {
	if m.UserLo == userID {
		return m.UserHi
	}
	return m.UserLo
}

// Involves reports whether userID is one side of the pair.
func (m *MatchRecord) Involves(userID int) bool {
	return m.UserLo == userID || m.UserHi == userID
}

func (m *MatchRecord) clone() *MatchRecord {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}
