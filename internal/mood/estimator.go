package mood

import (
	"sync"
	"time"
)

// DefaultWindow is the sliding behavior window.
const DefaultWindow = 30 * time.Second

// RapportEvent enumerates the defined rapport increments. Rapport only
// moves on these events; everything else leaves it stable.
type RapportEvent uint8

const (
	RapportSharedSuccess RapportEvent = iota
	RapportProtection
	RapportGift
	RapportSurvivedCrisis
)

func rapportDelta(ev RapportEvent) float64 {
	switch ev {
	case RapportProtection:
		return 9
	case RapportSurvivedCrisis:
		return 10
	default: // SharedSuccess, Gift
		return 4
	}
}

// Milestone names emitted once when rapport crosses a threshold.
const (
	MilestoneFriends     = "friends"      // rapport >= 50
	MilestoneBestFriends = "best_friends" // rapport >= 80
)

type behaviorEntry struct {
	Kind BehaviorKind
	At   time.Time
}

// playerState is mutated under its own lock so concurrent agents
// reporting behavior for the same player never lose updates.
type playerState struct {
	mu         sync.Mutex
	window     []behaviorEntry
	rapport    float64
	milestones map[string]bool
}

// Estimator holds per-player mood windows and rapport. Shared across
// every companion agent observing the same players; safe for concurrent
// use.
type Estimator struct {
	Window time.Duration

	mu      sync.RWMutex
	players map[string]*playerState
}

// NewEstimator creates an empty estimator with the default window.
func NewEstimator() *Estimator {
	return &Estimator{
		Window:  DefaultWindow,
		players: make(map[string]*playerState),
	}
}

func (e *Estimator) player(playerID string) *playerState {
	e.mu.RLock()
	p := e.players[playerID]
	e.mu.RUnlock()
	if p != nil {
		return p
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if p = e.players[playerID]; p != nil {
		return p
	}
	p = &playerState{milestones: make(map[string]bool)}
	e.players[playerID] = p
	return p
}

// Observe appends one behavior event to the player's window and trims
// anything that has aged out.
func (e *Estimator) Observe(playerID string, kind BehaviorKind, at time.Time) {
	p := e.player(playerID)
	p.mu.Lock()
	defer p.mu.Unlock()

	p.window = append(p.window, behaviorEntry{Kind: kind, At: at})

	// Trim: drop entries older than the window. The slice stays small —
	// one player cannot generate more than a handful of behaviors per
	// second.
	cutoff := at.Add(-e.window())
	keep := p.window[:0]
	for _, entry := range p.window {
		if !entry.At.Before(cutoff) {
			keep = append(keep, entry)
		}
	}
	p.window = keep
}

// Mood computes the player's current mood from the window.
func (e *Estimator) Mood(playerID string, now time.Time) State {
	p := e.player(playerID)
	p.mu.Lock()
	defer p.mu.Unlock()

	bucket, score := scoreWindow(p.window, now, e.window())
	return State{
		PlayerID:    playerID,
		Current:     bucket,
		Score:       score,
		LastUpdated: now,
	}
}

// Rapport returns the player's rapport in [0, 100].
func (e *Estimator) Rapport(playerID string) float64 {
	p := e.player(playerID)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rapport
}

// AdjustRapport applies one defined rapport event and returns the name
// of any milestone crossed, or "".
func (e *Estimator) AdjustRapport(playerID string, ev RapportEvent) string {
	p := e.player(playerID)
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rapport = clampRapport(p.rapport + rapportDelta(ev))

	if p.rapport >= 80 && !p.milestones[MilestoneBestFriends] {
		p.milestones[MilestoneBestFriends] = true
		return MilestoneBestFriends
	}
	if p.rapport >= 50 && !p.milestones[MilestoneFriends] {
		p.milestones[MilestoneFriends] = true
		return MilestoneFriends
	}
	return ""
}

// SetRapport restores rapport from a persisted snapshot. Milestones at
// or below the restored value are marked delivered so they do not
// re-fire after a reload.
func (e *Estimator) SetRapport(playerID string, value float64) {
	p := e.player(playerID)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rapport = clampRapport(value)
	if p.rapport >= 50 {
		p.milestones[MilestoneFriends] = true
	}
	if p.rapport >= 80 {
		p.milestones[MilestoneBestFriends] = true
	}
}

func (e *Estimator) window() time.Duration {
	if e.Window > 0 {
		return e.Window
	}
	return DefaultWindow
}

func clampRapport(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
