// Package feedback closes the loop on fired utterances: it records how
// the player reacted, moves trust, adapts per-category thresholds, and
// escalates to a forced recovery line after repeated misses.
//
// Trust and mood are shared per player, not per companion — every agent
// talking to the same player reads and writes one relationship model.
// All mutation happens under a per-player lock so simultaneous feedback
// from several agents never loses updates.
package feedback

import (
	"sync"
	"time"

	"github.com/talgya/barkeep/internal/situation"
)

// Outcome is the observed player reaction to a fired utterance.
type Outcome uint8

const (
	OutcomePositive Outcome = iota
	OutcomeNeutral
	OutcomeNegative
)

// Trust movement per outcome, clamped to [0, 100].
const (
	trustGainPositive = 5
	trustLossNegative = 10
)

// MissThreshold is how many consecutive negative outcomes force the
// next decision for that category into recovery mode.
const MissThreshold = 3

// DefaultRecoveryCooldown spaces forced recovery lines so they cannot
// themselves become spam.
const DefaultRecoveryCooldown = 45 * time.Second

// ThresholdStep is how far one outcome moves the per-category adaptive
// threshold, clamped to ±0.5.
const (
	thresholdStepNegative = 0.05
	thresholdStepPositive = 0.02
	thresholdLimit        = 0.5
)

// TrustRecord is the per-player relationship state the engine learns.
type TrustRecord struct {
	PlayerID string `json:"player_id"`
	Score    float64 `json:"score"` // 0–100, starts neutral at 50

	FalsePositives  map[situation.Category]int     `json:"false_positives"`
	ThresholdAdjust map[situation.Category]float64 `json:"threshold_adjust"` // -0.5..+0.5
	Misses          map[situation.Category]int     `json:"misses"`           // Consecutive negatives

	RecoveryPending map[situation.Category]bool `json:"recovery_pending"`
	LastRecoveryAt  time.Time                   `json:"last_recovery_at,omitzero"`
}

// NewTrustRecord returns a fresh record at neutral trust.
func NewTrustRecord(playerID string) TrustRecord {
	return *newRecord(playerID)
}

func newRecord(playerID string) *TrustRecord {
	return &TrustRecord{
		PlayerID:        playerID,
		Score:           50,
		FalsePositives:  make(map[situation.Category]int),
		ThresholdAdjust: make(map[situation.Category]float64),
		Misses:          make(map[situation.Category]int),
		RecoveryPending: make(map[situation.Category]bool),
	}
}

// Store holds trust records keyed by player. Safe for concurrent use;
// each record mutates under its own lock.
type Store struct {
	RecoveryCooldown time.Duration

	mu      sync.RWMutex
	locks   map[string]*sync.Mutex
	records map[string]*TrustRecord
}

// NewStore creates an empty trust store.
func NewStore() *Store {
	return &Store{
		RecoveryCooldown: DefaultRecoveryCooldown,
		locks:            make(map[string]*sync.Mutex),
		records:          make(map[string]*TrustRecord),
	}
}

func (s *Store) lockFor(playerID string) (*sync.Mutex, *TrustRecord) {
	s.mu.RLock()
	l, ok := s.locks[playerID]
	r := s.records[playerID]
	s.mu.RUnlock()
	if ok {
		return l, r
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok = s.locks[playerID]; ok {
		return l, s.records[playerID]
	}
	l = &sync.Mutex{}
	r = newRecord(playerID)
	s.locks[playerID] = l
	s.records[playerID] = r
	return l, r
}

// RecordOutcome applies one observed reaction for (player, category).
//
// Positive: misses reset, trust +5, the category's false-positive count
// halves, and its adaptive threshold relaxes slightly. Negative: one
// more miss and false positive, trust -10, threshold tightens; at
// MissThreshold consecutive misses the category is flagged for a forced
// recovery decision. Neutral records nothing — an unremarked line is
// neither evidence for nor against.
func (s *Store) RecordOutcome(playerID string, cat situation.Category, outcome Outcome) {
	l, r := s.lockFor(playerID)
	l.Lock()
	defer l.Unlock()

	switch outcome {
	case OutcomePositive:
		r.Misses[cat] = 0
		r.Score = clampTrust(r.Score + trustGainPositive)
		r.FalsePositives[cat] /= 2
		r.ThresholdAdjust[cat] = clampAdjust(r.ThresholdAdjust[cat] - thresholdStepPositive)
	case OutcomeNegative:
		r.Misses[cat]++
		r.FalsePositives[cat]++
		r.Score = clampTrust(r.Score - trustLossNegative)
		r.ThresholdAdjust[cat] = clampAdjust(r.ThresholdAdjust[cat] + thresholdStepNegative)
		if r.Misses[cat] >= MissThreshold {
			r.RecoveryPending[cat] = true
		}
	}
}

// View returns a copy of the player's record for read-only use inside
// one arbitration pass.
func (s *Store) View(playerID string) TrustRecord {
	l, r := s.lockFor(playerID)
	l.Lock()
	defer l.Unlock()
	return copyRecord(r)
}

// ConsumeRecovery checks whether a forced recovery decision is due for
// (player, category) and, if so, claims it: the pending flag clears,
// the miss counter resets, and the recovery cooldown restarts. Returns
// false while the previous recovery is still cooling down.
func (s *Store) ConsumeRecovery(playerID string, cat situation.Category, now time.Time) bool {
	l, r := s.lockFor(playerID)
	l.Lock()
	defer l.Unlock()

	if !r.RecoveryPending[cat] {
		return false
	}
	cooldown := s.RecoveryCooldown
	if cooldown <= 0 {
		cooldown = DefaultRecoveryCooldown
	}
	if !r.LastRecoveryAt.IsZero() && now.Sub(r.LastRecoveryAt) < cooldown {
		return false
	}

	r.RecoveryPending[cat] = false
	r.Misses[cat] = 0
	r.LastRecoveryAt = now
	return true
}

// Restore replaces a player's record from a persisted snapshot.
func (s *Store) Restore(rec TrustRecord) {
	l, r := s.lockFor(rec.PlayerID)
	l.Lock()
	defer l.Unlock()

	r.Score = clampTrust(rec.Score)
	r.LastRecoveryAt = rec.LastRecoveryAt
	r.FalsePositives = copyIntMap(rec.FalsePositives)
	r.Misses = copyIntMap(rec.Misses)
	r.RecoveryPending = copyBoolMap(rec.RecoveryPending)
	r.ThresholdAdjust = make(map[situation.Category]float64, len(rec.ThresholdAdjust))
	for k, v := range rec.ThresholdAdjust {
		r.ThresholdAdjust[k] = clampAdjust(v)
	}
}

func copyRecord(r *TrustRecord) TrustRecord {
	return TrustRecord{
		PlayerID:        r.PlayerID,
		Score:           r.Score,
		FalsePositives:  copyIntMap(r.FalsePositives),
		ThresholdAdjust: copyFloatMap(r.ThresholdAdjust),
		Misses:          copyIntMap(r.Misses),
		RecoveryPending: copyBoolMap(r.RecoveryPending),
		LastRecoveryAt:  r.LastRecoveryAt,
	}
}

func copyIntMap(m map[situation.Category]int) map[situation.Category]int {
	out := make(map[situation.Category]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyFloatMap(m map[situation.Category]float64) map[situation.Category]float64 {
	out := make(map[situation.Category]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyBoolMap(m map[situation.Category]bool) map[situation.Category]bool {
	out := make(map[situation.Category]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func clampTrust(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func clampAdjust(v float64) float64 {
	if v < -thresholdLimit {
		return -thresholdLimit
	}
	if v > thresholdLimit {
		return thresholdLimit
	}
	return v
}
