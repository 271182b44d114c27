// Package cohort defines the shared data model consumed by every analytic
// component: texts, pairwise verdicts, anchors, grading configuration and
// assignment metadata. Its only behaviour is small key and rater helpers
// plus the shared cohort-verdict rules in results.go; the actual analytics
// live in the sibling packages (verdict, connectivity, btfit, grading,
// reliability, raterstats, splithalf, scheduler).
package cohort

import "strconv"

// Outcome is the three-variant result of a pairwise comparison.
type Outcome int

const (
	// AWins indicates the first text (textAId) was judged better.
	AWins Outcome = iota
	// BWins indicates the second text (textBId) was judged better.
	BWins
	// Tie indicates the judge could not distinguish the two texts.
	Tie
)

// UnknownRater is substituted for a missing/empty RaterID so every verdict
// can be bucketed deterministically by rater.
const UnknownRater = "unknown"

// Text is an immutable (from the core's perspective) entry in the cohort
// being ranked.
type Text struct {
	ID             int64
	AssignmentID   int64
	AnonymizedName string
	Content        string
	ContentHTML    string
	OriginalName   string
	CreatedAt      int64
}

// Verdict is a single pairwise judgement. PairKey is derived by
// PairKeyOf(TextAID, TextBID) when not supplied by the caller.
type Verdict struct {
	ID             int64
	AssignmentID   int64
	TextAID        int64
	TextBID        int64
	Outcome        Outcome
	CreatedAt      int64 // monotonic milliseconds since epoch
	RaterID        string
	RaterName      string
	CommentA       string
	CommentB       string
	SupersedesID   int64 // read only when HasSupersedes is true
	HasSupersedes  bool
	Final          bool
	PairKey        string
}

// EffectiveRaterID returns v.RaterID, substituting UnknownRater when empty.
func (v Verdict) EffectiveRaterID() string {
	if v.RaterID == "" {
		return UnknownRater
	}
	return v.RaterID
}

// PairKeyOf builds the canonical "min-max" key for an unordered text pair.
func PairKeyOf(a, b int64) string {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return strconv.FormatInt(lo, 10) + "-" + strconv.FormatInt(hi, 10)
}

// EffectivePairKey returns v.PairKey if set, else the derived canonical key.
func (v Verdict) EffectivePairKey() string {
	if v.PairKey != "" {
		return v.PairKey
	}
	return PairKeyOf(v.TextAID, v.TextBID)
}

// Anchor pins a text to an externally supplied target grade.
type Anchor struct {
	TextID int64
	Grade  float64
}

// GradingConfig parameterises the raw-grade and calibrated-grade mapping.
type GradingConfig struct {
	Base     float64 // g0, default 7
	Scale    float64 // s, default 1.2
	Min      float64 // g_min, default 1
	Max      float64 // g_max, default 10
	Rounding float64 // r, default 0.1 (informational; rounding below is fixed to one decimal)
}

// DefaultGradingConfig returns the spec's default grading configuration.
func DefaultGradingConfig() GradingConfig {
	return GradingConfig{Base: 7, Scale: 1.2, Min: 1, Max: 10, Rounding: 0.1}
}

// JudgementMode records how the boundary collects verdicts for an
// assignment. The canonicaliser (C1) does not take a mode: it applies the
// same rules in every mode.
type JudgementMode int

const (
	// ModeAccumulate keeps every rater's latest verdict per pair.
	ModeAccumulate JudgementMode = iota
	// ModeReplace behaves identically at the canonicaliser level; the
	// distinction is meaningful to the boundary (how new verdicts are
	// recorded), not to the pure canonicaliser.
	ModeReplace
	// ModeModerate marks that a moderator is expected to submit Final
	// verdicts which override rater verdicts for a pair.
	ModeModerate
)

// AssignmentMeta groups the configuration that is constant for one run of
// the engine over one cohort.
type AssignmentMeta struct {
	AssignmentID      int64
	JudgementMode     JudgementMode
	Anchors           []Anchor
	Grading           GradingConfig
	SERepeatThreshold float64 // overrides cohort.SERepeat (1.00) in reliability.Assess's cohort-level "almost" check; 0 uses the default
}
