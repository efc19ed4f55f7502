// Package config supplies the arbitration engine's tunables as plain
// data. Nothing here encodes behavior beyond defaults; the single
// hard-coded rule in the engine — silence during active danger — is
// deliberately not configurable.
package config

import (
	"time"

	"github.com/talgya/barkeep/internal/risk"
	"github.com/talgya/barkeep/internal/situation"
)

// Frequency is the player-facing chattiness setting. It scales cooldown
// durations: quieter settings stretch the silence between lines.
type Frequency uint8

const (
	FrequencyMinimal Frequency = iota
	FrequencyQuiet
	FrequencyBalanced
	FrequencyVerbose
	FrequencyChatty
)

// CooldownMultiplier maps the frequency setting to a duration scale.
func (f Frequency) CooldownMultiplier() float64 {
	switch f {
	case FrequencyMinimal:
		return 3.0
	case FrequencyQuiet:
		return 2.0
	case FrequencyVerbose:
		return 0.75
	case FrequencyChatty:
		return 0.5
	default:
		return 1.0
	}
}

// ParseFrequency reads a setting name, defaulting to Balanced.
func ParseFrequency(s string) Frequency {
	switch s {
	case "minimal":
		return FrequencyMinimal
	case "quiet":
		return FrequencyQuiet
	case "verbose":
		return FrequencyVerbose
	case "chatty":
		return FrequencyChatty
	default:
		return FrequencyBalanced
	}
}

// Config is the full tunable surface of the engine.
type Config struct {
	// Classifier.
	RecoveryWindow time.Duration

	// Cooldowns.
	BaseCooldowns map[situation.Category]time.Duration
	Frequency     Frequency
	RefireWindow  time.Duration // Same-category multiplier window

	// Fire probabilities per category, before rapport and mood scaling.
	BaseFireRates map[situation.Category]float64

	// Memory.
	GagCap             int
	CallbackChance     float64
	CallbackMinRapport float64

	// Recovery escalation.
	RecoveryCooldown time.Duration

	// Delivery.
	InFlightTimeout time.Duration // Clears a stuck in-flight flag
	StaleAfter      time.Duration // Situations older than this are not delivered

	// Risk scoring deltas and the per-category content profile handed
	// to the scorer.
	RiskWeights     risk.Weights
	ContentProfiles map[situation.Category]risk.ContentTraits
}

// Default returns the standard configuration.
func Default() *Config {
	return &Config{
		RecoveryWindow: situation.DefaultRecoveryWindow,

		BaseCooldowns: map[situation.Category]time.Duration{
			situation.CategoryDanger:     20 * time.Second,
			situation.CategoryPostDanger: 45 * time.Second,
			situation.CategorySuccess:    60 * time.Second,
			situation.CategoryFailure:    60 * time.Second,
			situation.CategorySurprise:   90 * time.Second,
			situation.CategoryRoutine:    5 * time.Minute,
		},
		Frequency:    FrequencyBalanced,
		RefireWindow: 60 * time.Second,

		BaseFireRates: map[situation.Category]float64{
			situation.CategorySuccess:    0.30,
			situation.CategoryFailure:    0.50,
			situation.CategorySurprise:   0.40,
			situation.CategoryRoutine:    0.15,
			situation.CategoryPostDanger: 0.20,
			situation.CategoryDanger:     1.0, // Non-ongoing danger alerts always roll through
		},

		GagCap:             30,
		CallbackChance:     0.20,
		CallbackMinRapport: 40,

		RecoveryCooldown: 45 * time.Second,

		InFlightTimeout: 10 * time.Second,
		StaleAfter:      10 * time.Second,

		RiskWeights: risk.DefaultWeights(),
		ContentProfiles: map[situation.Category]risk.ContentTraits{
			situation.CategoryDanger:     {Situational: true},
			situation.CategoryPostDanger: {Situational: true, Reciprocable: true},
			situation.CategorySuccess:    {Situational: true, Reciprocable: true},
			situation.CategoryFailure:    {SelfDeprecating: true, Situational: true, Reciprocable: true},
			situation.CategorySurprise:   {Situational: true, Reciprocable: true},
			situation.CategoryRoutine:    {Situational: true, Reciprocable: true},
		},
	}
}

// BaseCooldown returns the category's base duration, with a safe
// fallback for unknown categories.
func (c *Config) BaseCooldown(cat situation.Category) time.Duration {
	if d, ok := c.BaseCooldowns[cat]; ok {
		return d
	}
	return time.Minute
}

// FireRate returns the category's base fire probability.
func (c *Config) FireRate(cat situation.Category) float64 {
	if r, ok := c.BaseFireRates[cat]; ok {
		return r
	}
	return 0.15
}

// ContentProfile returns the category's content trait profile.
func (c *Config) ContentProfile(cat situation.Category) risk.ContentTraits {
	if t, ok := c.ContentProfiles[cat]; ok {
		return t
	}
	return risk.ContentTraits{Situational: true, Reciprocable: true}
}
