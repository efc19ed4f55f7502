// Package arbiter is the engine's orchestrator: it takes one classified
// situation per agent tick and decides — against the cooldown ledger,
// the risk scorer, and the gag store — whether the companion says
// anything at all. Its one absolute rule: silence is always the safe
// default, and nothing escapes past its boundary as a panic.
package arbiter

import (
	"sync"
	"time"

	"github.com/talgya/barkeep/internal/cooldown"
	"github.com/talgya/barkeep/internal/gags"
	"github.com/talgya/barkeep/internal/risk"
	"github.com/talgya/barkeep/internal/situation"
)

// Decision is the arbiter's verdict for one situation. Produced and
// consumed within a single arbitration call; never persisted.
type Decision struct {
	Fire        bool               `json:"fire"`
	Category    situation.Category `json:"category"`
	Risk        risk.Level         `json:"risk"`
	GagID       string             `json:"gag_id,omitempty"`  // Callback reference, when chosen
	Recovery    bool               `json:"recovery"`          // Forced acknowledge-and-pivot
	Reasons     []string           `json:"reasons,omitempty"` // For observability and tests
	At          time.Time          `json:"at"`
	SituationAt time.Time          `json:"situation_at"`
}

func suppress(cat situation.Category, level risk.Level, at, sitAt time.Time, reasons ...string) Decision {
	return Decision{
		Category:    cat,
		Risk:        level,
		Reasons:     reasons,
		At:          at,
		SituationAt: sitAt,
	}
}

// AgentContext is one companion's arbitration state: its cooldown
// ledger, its gag store, and the at-most-one in-flight delivery flag.
// Ledger and gags are owned exclusively by the agent's tick; the
// in-flight flag is shared with the async delivery path and guarded.
type AgentContext struct {
	ID       string
	Name     string
	PlayerID string

	Ledger *cooldown.Ledger
	Gags   *gags.Store

	mu            sync.Mutex
	inFlight      bool
	inFlightSince time.Time
}

// NewAgentContext creates an agent with a fresh ledger and gag store.
func NewAgentContext(id, name, playerID string, gagCap int) *AgentContext {
	return &AgentContext{
		ID:       id,
		Name:     name,
		PlayerID: playerID,
		Ledger:   cooldown.NewLedger(),
		Gags:     gags.NewStore(gagCap),
	}
}

// tryBeginDelivery claims the in-flight slot. A stuck flag older than
// timeout is reclaimed rather than wedging the agent forever.
func (a *AgentContext) tryBeginDelivery(now time.Time, timeout time.Duration) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.inFlight && now.Sub(a.inFlightSince) < timeout {
		return false
	}
	a.inFlight = true
	a.inFlightSince = now
	return true
}

// FinishDelivery releases the in-flight slot. Call on completion,
// cancellation, or delivery timeout.
func (a *AgentContext) FinishDelivery() {
	a.mu.Lock()
	a.inFlight = false
	a.mu.Unlock()
}

// InFlight reports whether a delivery is pending.
func (a *AgentContext) InFlight() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inFlight
}
