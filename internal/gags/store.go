// Package gags keeps the bounded running-gag memory: recurring callback
// lines that earn reuse through repeated positive reference. A gag is
// born from one good reaction, graduates through four stages, and is
// evicted when the store fills and it scores worst.
package gags

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stage is the gag evolution lifecycle. Stages only move forward; the
// sole way down is eviction.
type Stage uint8

const (
	StagePotential    Stage = iota // Seeded, not yet reusable
	StageRecognized                // Referenced again, eligible for callbacks
	StageIncorporated              // Part of the shared vocabulary
	StageEvolved                   // An institution; highest rapport gate
)

// StageName returns a log-friendly label.
func StageName(s Stage) string {
	switch s {
	case StagePotential:
		return "potential"
	case StageRecognized:
		return "recognized"
	case StageIncorporated:
		return "incorporated"
	default:
		return "evolved"
	}
}

// Rapport gates per stage: a deeper callback needs a closer
// relationship to land.
const (
	IncorporatedMinRapport = 40
	EvolvedMinRapport      = 70
)

// DefaultCap bounds the store per agent.
const DefaultCap = 30

// Gag is one running-gag record.
type Gag struct {
	ID               string    `json:"id"`
	ContextKey       string    `json:"context_key"`
	Template         string    `json:"template"`
	CreatedAt        time.Time `json:"created_at"`
	LastReferencedAt time.Time `json:"last_referenced_at"`
	ReferenceCount   int       `json:"reference_count"`
	PositiveCount    int       `json:"positive_count"`
	NegativeCount    int       `json:"negative_count"`
	Stage            Stage     `json:"stage"`
}

// Effectiveness scores a gag for ranking and eviction: positive ratio,
// a recency bonus, and a small stage bonus.
func (g *Gag) Effectiveness(now time.Time) float64 {
	ratio := 0.0
	if g.ReferenceCount > 0 {
		ratio = float64(g.PositiveCount) / float64(g.ReferenceCount)
	}

	age := now.Sub(g.LastReferencedAt)
	recency := 0.0
	switch {
	case age < 7*24*time.Hour:
		recency = 0.2
	case age < 30*24*time.Hour:
		recency = 0.1
	case age > 90*24*time.Hour:
		recency = -0.1
	}

	return ratio + recency + 0.1*float64(g.Stage)
}

// Store owns one agent's gags. Arbitration reads it from a worker
// goroutine while reactions and API snapshots arrive over HTTP, so
// every method locks.
type Store struct {
	mu   sync.Mutex
	cap  int
	gags []*Gag
}

// NewStore creates a store with the given cap (DefaultCap when <= 0).
func NewStore(cap int) *Store {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &Store{cap: cap}
}

// RecordPotential seeds a new gag from a reaction to a novel situation.
// Negative reactions never seed: returns nil. If a gag already exists
// for the context key, the reaction counts as a reference instead.
func (s *Store) RecordPotential(contextKey, template string, positive bool, now time.Time) *Gag {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing := s.byKey(contextKey); existing != nil {
		s.reference(existing, positive, now)
		return existing
	}
	if !positive {
		return nil
	}

	g := &Gag{
		ID:               uuid.NewString(),
		ContextKey:       contextKey,
		Template:         template,
		CreatedAt:        now,
		LastReferencedAt: now,
		ReferenceCount:   1,
		PositiveCount:    1,
		Stage:            StagePotential,
	}
	s.gags = append(s.gags, g)
	s.evictOver(now)
	return g
}

// RecordReference records one more use of a gag and advances its stage
// when the thresholds allow. Unknown IDs are ignored.
func (s *Store) RecordReference(id string, positive bool, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.gags {
		if g.ID == id {
			s.reference(g, positive, now)
			return
		}
	}
}

func (s *Store) reference(g *Gag, positive bool, now time.Time) {
	g.ReferenceCount++
	if positive {
		g.PositiveCount++
	} else {
		g.NegativeCount++
	}
	g.LastReferencedAt = now

	// Monotonic gates — a gag can only move up.
	switch {
	case g.ReferenceCount >= 10 && g.PositiveCount >= 7:
		if g.Stage < StageEvolved {
			g.Stage = StageEvolved
		}
	case g.ReferenceCount >= 5 && g.PositiveCount >= 3:
		if g.Stage < StageIncorporated {
			g.Stage = StageIncorporated
		}
	case g.ReferenceCount >= 2 && g.PositiveCount >= 1:
		if g.Stage < StageRecognized {
			g.Stage = StageRecognized
		}
	}
}

// FindRelevant returns copies of reusable gags matching the context
// key, filtered by stage and rapport gates, best effectiveness first.
// Potential gags never come back — a gag must prove itself once more
// before reuse.
func (s *Store) FindRelevant(contextKey string, rapport float64, now time.Time) []Gag {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Gag
	for _, g := range s.gags {
		if g.Stage == StagePotential {
			continue
		}
		if !keyMatches(g.ContextKey, contextKey) {
			continue
		}
		if g.Stage == StageIncorporated && rapport < IncorporatedMinRapport {
			continue
		}
		if g.Stage == StageEvolved && rapport < EvolvedMinRapport {
			continue
		}
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Effectiveness(now) > out[j].Effectiveness(now)
	})
	return out
}

// Len returns the number of stored gags.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.gags)
}

// Snapshot returns copies of all gags for persistence.
func (s *Store) Snapshot() []Gag {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Gag, 0, len(s.gags))
	for _, g := range s.gags {
		out = append(out, *g)
	}
	return out
}

// Restore replaces the store's contents from a persisted snapshot.
func (s *Store) Restore(list []Gag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gags = make([]*Gag, 0, len(list))
	for i := range list {
		g := list[i]
		s.gags = append(s.gags, &g)
	}
}

func (s *Store) byKey(contextKey string) *Gag {
	for _, g := range s.gags {
		if g.ContextKey == contextKey {
			return g
		}
	}
	return nil
}

// evictOver removes the single lowest-effectiveness gag while over cap.
func (s *Store) evictOver(now time.Time) {
	for len(s.gags) > s.cap {
		worst := 0
		for i := 1; i < len(s.gags); i++ {
			if s.gags[i].Effectiveness(now) < s.gags[worst].Effectiveness(now) {
				worst = i
			}
		}
		s.gags = append(s.gags[:worst], s.gags[worst+1:]...)
	}
}

// keyMatches accepts exact or substring matches in either direction, so
// "creeper_ambush" finds gags tagged "creeper".
func keyMatches(gagKey, situationKey string) bool {
	if gagKey == "" || situationKey == "" {
		return false
	}
	return gagKey == situationKey ||
		strings.Contains(situationKey, gagKey) ||
		strings.Contains(gagKey, situationKey)
}
