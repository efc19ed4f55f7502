// Package cooldown enforces per-agent anti-spam discipline: one timer
// per utterance category, with priority-aware preemption so urgent
// warnings can cut through routine chatter but never the other way
// around.
package cooldown

import (
	"sync"
	"time"

	"github.com/talgya/barkeep/internal/situation"
)

// MaxMultiplier caps the composed duration multiplier so an unlucky
// streak of false positives cannot silence an agent forever.
const MaxMultiplier = 5.0

// SameCategoryMultiplier applies when a category refires inside the
// refire window.
const SameCategoryMultiplier = 1.5

// LowTrustMultiplier applies when trust has dropped below 50.
const LowTrustMultiplier = 1.5

// Entry is one active or expired timer for (agent, category).
type Entry struct {
	Category  situation.Category `json:"category"`
	Tier      situation.Urgency  `json:"tier"`       // Urgency recorded when set
	StartedAt time.Time          `json:"started_at"`
	Duration  time.Duration      `json:"duration"`
}

// ActiveAt reports whether the timer is still running.
func (e Entry) ActiveAt(now time.Time) bool {
	return e.Duration > 0 && now.Before(e.StartedAt.Add(e.Duration))
}

// Ledger tracks the cooldown state machine for one agent. Arbitration
// ticks the ledger from a worker goroutine while the observation API
// reads snapshots from HTTP handlers, so every method locks.
type Ledger struct {
	mu         sync.Mutex
	entries    map[situation.Category]Entry
	lastGlobal time.Time // Most recent fire across all categories

	// Preemption gates: how long after any fire an Urgent situation
	// must still wait before it may cut through a lower-tier cooldown.
	// The gate depends on the tier being cut through: an Elevated
	// cooldown demands the longer wait, Guarded and Low the shorter.
	GlobalUrgent  time.Duration
	GlobalWarning time.Duration
}

// NewLedger creates an empty ledger with default preemption gates.
func NewLedger() *Ledger {
	return &Ledger{
		entries:       make(map[situation.Category]Entry),
		GlobalUrgent:  15 * time.Second,
		GlobalWarning: 30 * time.Second,
	}
}

// CanFire answers whether a situation of the given category and urgency
// is eligible right now. Critical urgency always passes — the ledger
// never blocks a life-safety alert.
func (l *Ledger) CanFire(cat situation.Category, tier situation.Urgency, now time.Time) bool {
	if tier >= situation.UrgencyCritical {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.evictExpired(now)

	// A warning never preempts silence imposed by an urgent or critical
	// firing, whatever the category.
	if tier < situation.UrgencyUrgent && l.maxActiveTier(now) >= situation.UrgencyUrgent {
		return false
	}

	e, ok := l.entries[cat]
	if !ok || !e.ActiveAt(now) {
		return true
	}

	// Urgent may cut through an active lower-tier cooldown once the
	// global cross-category gate has elapsed.
	if tier >= situation.UrgencyUrgent && e.Tier < situation.UrgencyUrgent {
		return now.Sub(l.lastGlobal) >= l.globalGate(e.Tier)
	}

	return false
}

// DurationInputs are the factors composed into a fire's cooldown.
type DurationInputs struct {
	Base           time.Duration
	FrequencyMult  float64
	RefiredWithin  bool    // Same category fired inside the refire window
	FalsePositives int     // Per-category false positive count
	Trust          float64 // 0–100
}

// FireDuration composes all multipliers, clamped at MaxMultiplier.
func FireDuration(in DurationInputs) time.Duration {
	mult := in.FrequencyMult
	if mult <= 0 {
		mult = 1
	}
	if in.RefiredWithin {
		mult *= SameCategoryMultiplier
	}
	mult *= 1 + float64(in.FalsePositives)*0.5
	if in.Trust < 50 {
		mult *= LowTrustMultiplier
	}
	if mult > MaxMultiplier {
		mult = MaxMultiplier
	}
	return time.Duration(float64(in.Base) * mult)
}

// Record marks a fire and starts the category's cooldown. Critical
// fires record with zero duration: they never block anything, but they
// still advance the global gate.
func (l *Ledger) Record(cat situation.Category, tier situation.Urgency, now time.Time, dur time.Duration) {
	if tier >= situation.UrgencyCritical {
		dur = 0
	}
	if dur < 0 {
		dur = 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[cat] = Entry{Category: cat, Tier: tier, StartedAt: now, Duration: dur}
	l.lastGlobal = now
}

// RefiredWithin reports whether the category last fired inside the
// window, for the same-category multiplier.
func (l *Ledger) RefiredWithin(cat situation.Category, window time.Duration, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[cat]
	if !ok {
		return false
	}
	return now.Sub(e.StartedAt) < window
}

// Snapshot returns all entries for persistence.
func (l *Ledger) Snapshot() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	return out
}

// Restore replaces the ledger's entries from a persisted snapshot.
func (l *Ledger) Restore(entries []Entry, lastGlobal time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[situation.Category]Entry, len(entries))
	for _, e := range entries {
		l.entries[e.Category] = e
	}
	l.lastGlobal = lastGlobal
}

// LastGlobal returns the most recent fire time across categories.
func (l *Ledger) LastGlobal() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastGlobal
}

// globalGate picks the preemption wait from the tier of the cooldown
// being cut through. Caller holds the lock.
func (l *Ledger) globalGate(blocked situation.Urgency) time.Duration {
	if blocked >= situation.UrgencyElevated {
		return l.GlobalWarning
	}
	return l.GlobalUrgent
}

func (l *Ledger) maxActiveTier(now time.Time) situation.Urgency {
	var max situation.Urgency
	for _, e := range l.entries {
		if e.ActiveAt(now) && e.Tier > max {
			max = e.Tier
		}
	}
	return max
}

// evictExpired lazily drops finished timers so the map stays small.
func (l *Ledger) evictExpired(now time.Time) {
	for cat, e := range l.entries {
		if !e.ActiveAt(now) && now.Sub(e.StartedAt) > time.Minute {
			delete(l.entries, cat)
		}
	}
}
