package arbiter

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/talgya/barkeep/internal/config"
	"github.com/talgya/barkeep/internal/cooldown"
	"github.com/talgya/barkeep/internal/feedback"
	"github.com/talgya/barkeep/internal/mood"
	"github.com/talgya/barkeep/internal/risk"
	"github.com/talgya/barkeep/internal/situation"
)

// Arbiter makes utterance decisions for any number of agents. The clock
// and RNG are injected so probability-based behavior is reproducible
// under test. Safe for concurrent Decide calls on distinct agents; the
// shared mood and trust stores serialize per player internally.
type Arbiter struct {
	cfg   *config.Config
	clock Clock
	rng   *rand.Rand
	moods *mood.Estimator
	trust *feedback.Store

	// rngMu serializes draws: math/rand.Rand is not goroutine-safe and
	// agents decide concurrently.
	rngMu sync.Mutex
}

// New creates an arbiter over the shared mood and trust stores.
func New(cfg *config.Config, clock Clock, rng *rand.Rand, moods *mood.Estimator, trust *feedback.Store) *Arbiter {
	if cfg == nil {
		cfg = config.Default()
	}
	trust.RecoveryCooldown = cfg.RecoveryCooldown
	return &Arbiter{
		cfg:   cfg,
		clock: clock,
		rng:   rng,
		moods: moods,
		trust: trust,
	}
}

// Decide runs the full arbitration pipeline for one situation and
// returns at most one firing decision. Any internal failure degrades to
// a suppress — the host simulation loop must never see a panic from
// here.
func (ar *Arbiter) Decide(a *AgentContext, sit situation.Situation) (d Decision) {
	now := ar.clock.Now()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("arbitration panic recovered", "agent", a.ID, "panic", r)
			d = suppress(sit.Category, risk.LevelHigh, now, sit.OccurredAt, "internal_error")
		}
	}()

	// Hard rule: never talk over an active fight. Independent of
	// cooldowns, trust, mood, and everything else.
	if sit.Category == situation.CategoryDanger && sit.Ongoing {
		return suppress(sit.Category, risk.LevelHigh, now, sit.OccurredAt, "danger_ongoing")
	}

	rec := ar.trust.View(a.PlayerID)

	// Forced recovery after repeated misses bypasses risk scoring and
	// the probability roll; it is a fixed low-risk acknowledge-and-pivot
	// with its own short cooldown inside the trust store.
	if ar.trust.ConsumeRecovery(a.PlayerID, sit.Category, now) {
		if !a.tryBeginDelivery(now, ar.cfg.InFlightTimeout) {
			return suppress(sit.Category, risk.LevelLow, now, sit.OccurredAt, "in_flight")
		}
		a.Ledger.Record(sit.Category, sit.Urgency, now, ar.cfg.RecoveryCooldown)
		return Decision{
			Fire:        true,
			Category:    sit.Category,
			Risk:        risk.LevelLow,
			Recovery:    true,
			Reasons:     []string{"recovery_forced"},
			At:          now,
			SituationAt: sit.OccurredAt,
		}
	}

	// Risk gate.
	moodState := ar.moods.Mood(a.PlayerID, now)
	rapport := ar.moods.Rapport(a.PlayerID)
	res := risk.Score(ar.cfg.RiskWeights, risk.Input{
		Situation:    sit,
		Traits:       ar.cfg.ContentProfile(sit.Category),
		HumorMult:    mood.HumorMultiplier(moodState.Current),
		Rapport:      rapport,
		Trust:        rec.Score,
		RecentMisses: rec.Misses[sit.Category],
	})
	if res.Level == risk.LevelHigh {
		return suppress(sit.Category, res.Level, now, sit.OccurredAt, append(res.Reasons, "risk_high")...)
	}

	// Cooldown gate.
	if !a.Ledger.CanFire(sit.Category, sit.Urgency, now) {
		return suppress(sit.Category, res.Level, now, sit.OccurredAt, "cooldown")
	}

	// Probability roll: base rate scaled by rapport, mood, and the
	// adaptive per-category threshold learned from feedback.
	p := ar.cfg.FireRate(sit.Category)
	switch {
	case rapport < 20:
		p *= 0.5
	case rapport >= 60:
		p *= 1.2
	}
	p *= mood.HumorMultiplier(moodState.Current)
	p *= 1 - rec.ThresholdAdjust[sit.Category]
	if p > 1 {
		p = 1
	}
	if p <= 0 || ar.float64() >= p {
		return suppress(sit.Category, res.Level, now, sit.OccurredAt, "probability_roll")
	}

	// At-most-one utterance in flight per agent.
	if !a.tryBeginDelivery(now, ar.cfg.InFlightTimeout) {
		return suppress(sit.Category, res.Level, now, sit.OccurredAt, "in_flight")
	}

	d = Decision{
		Fire:        true,
		Category:    sit.Category,
		Risk:        res.Level,
		Reasons:     append(res.Reasons, "fired"),
		At:          now,
		SituationAt: sit.OccurredAt,
	}

	// Occasionally reach for a running gag instead of fresh content.
	if rapport >= ar.cfg.CallbackMinRapport && ar.float64() < ar.cfg.CallbackChance {
		if relevant := a.Gags.FindRelevant(sit.ContextKey, rapport, now); len(relevant) > 0 {
			d.GagID = relevant[0].ID
			d.Reasons = append(d.Reasons, "gag_callback")
		}
	}

	// Start the cooldown before returning, so a crash after this point
	// errs on the side of silence.
	a.Ledger.Record(sit.Category, sit.Urgency, now, cooldown.FireDuration(cooldown.DurationInputs{
		Base:           ar.cfg.BaseCooldown(sit.Category),
		FrequencyMult:  ar.cfg.Frequency.CooldownMultiplier(),
		RefiredWithin:  a.Ledger.RefiredWithin(sit.Category, ar.cfg.RefireWindow, now),
		FalsePositives: rec.FalsePositives[sit.Category],
		Trust:          rec.Score,
	}))

	return d
}

// Stale reports whether a fired decision's situation has aged out and
// the pending delivery should be discarded instead of arriving late.
func (ar *Arbiter) Stale(d Decision, now time.Time) bool {
	return now.Sub(d.SituationAt) > ar.cfg.StaleAfter
}

// Config exposes the arbiter's configuration to collaborators.
func (ar *Arbiter) Config() *config.Config { return ar.cfg }

// float64 draws from the shared RNG under the lock.
func (ar *Arbiter) float64() float64 {
	ar.rngMu.Lock()
	defer ar.rngMu.Unlock()
	return ar.rng.Float64()
}
