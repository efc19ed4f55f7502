// Package risk scores the appropriateness of a candidate utterance.
// Five independent checks feed a single 0–100 score; the context check
// is mandatory and short-circuits everything — no scoring combination
// may talk over an active danger.
package risk

import "github.com/talgya/barkeep/internal/situation"

// Level is the tri-state gate derived from the score. High is an
// unconditional suppress.
type Level uint8

const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
)

// LevelName returns a log-friendly label.
func LevelName(l Level) string {
	switch l {
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	default:
		return "high"
	}
}

// ContentTraits describes the shape of the content the arbiter intends
// to select, without knowing its literal text.
type ContentTraits struct {
	SelfDeprecating  bool // Humor at the companion's own expense
	Situational      bool // Commentary on the shared moment
	CompetenceAttack bool // Pokes at the player's skill
	IdentityAttack   bool // Pokes at who the player is
	Reciprocable     bool // The player could plausibly fire back
}

// Weights are the score deltas for each check. Zero value is unusable;
// call DefaultWeights.
type Weights struct {
	Base             float64
	Favorable        float64 // Self-deprecating or situational content
	CompetenceAttack float64
	IdentityAttack   float64
	NonReciprocable  float64
	LowTrust         float64 // Applied when trust < 50
	PerRecentMiss    float64 // Per recent negative outcome, capped at 3
}

// DefaultWeights returns the standard deltas.
func DefaultWeights() Weights {
	return Weights{
		Base:             50,
		Favorable:        25,
		CompetenceAttack: -50,
		IdentityAttack:   -55,
		NonReciprocable:  -20,
		LowTrust:         -10,
		PerRecentMiss:    -5,
	}
}

// Input bundles everything the scorer consumes. Pure data in, score out.
type Input struct {
	Situation      situation.Situation
	Traits         ContentTraits
	HumorMult      float64 // From the mood estimator, 0.0–1.2
	Rapport        float64 // 0–100
	Trust          float64 // 0–100
	RecentMisses   int     // Consecutive negative outcomes for the category
}

// Result carries the numeric score, the derived level, and the reason
// codes that produced it, for observability and tests.
type Result struct {
	Score   float64
	Level   Level
	Reasons []string
}

// Score runs the five checks. The danger/context check fails hard: an
// ongoing dangerous situation yields High regardless of every other
// factor.
func Score(w Weights, in Input) Result {
	r := Result{}

	// Check 1 — context. Mandatory, not weighted.
	if in.Situation.Category == situation.CategoryDanger && in.Situation.Ongoing {
		r.Score = 0
		r.Level = LevelHigh
		r.Reasons = append(r.Reasons, "context_danger")
		return r
	}

	score := w.Base

	// Check 2 — favorable content.
	if in.Traits.SelfDeprecating || in.Traits.Situational {
		score += w.Favorable
		r.Reasons = append(r.Reasons, "content_favorable")
	}

	// Check 3 — attacks.
	if in.Traits.IdentityAttack {
		score += w.IdentityAttack
		r.Reasons = append(r.Reasons, "identity_attack")
	} else if in.Traits.CompetenceAttack {
		score += w.CompetenceAttack
		r.Reasons = append(r.Reasons, "competence_attack")
	}

	// Check 4 — reciprocity.
	if !in.Traits.Reciprocable {
		score += w.NonReciprocable
		r.Reasons = append(r.Reasons, "non_reciprocable")
	}

	// Check 5 — feedback history.
	if in.Trust < 50 {
		score += w.LowTrust
		r.Reasons = append(r.Reasons, "low_trust")
	}
	misses := in.RecentMisses
	if misses > 3 {
		misses = 3
	}
	if misses > 0 {
		score += w.PerRecentMiss * float64(misses)
		r.Reasons = append(r.Reasons, "recent_misses")
	}

	// Mood multiplier applies after every delta.
	score *= in.HumorMult

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	r.Score = score
	switch {
	case score >= 70:
		r.Level = LevelLow
	case score >= 50:
		r.Level = LevelMedium
	default:
		r.Level = LevelHigh
	}
	return r
}
