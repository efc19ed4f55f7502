// Package situation normalizes raw world and player events into typed
// situations for the arbitration pipeline.
package situation

import "time"

// Category classifies what kind of moment an event represents.
// Lower values dominate: a dangerous success is Danger, never Success,
// because life-safety messaging always wins.
type Category uint8

const (
	CategoryDanger     Category = iota // Active threat to the player
	CategoryPostDanger                 // Threat resolved within the recovery window
	CategorySuccess                    // Task or goal completed
	CategoryFailure                    // Task or goal failed
	CategorySurprise                   // Unexpected turn of events
	CategoryRoutine                    // Everything else, including idle
)

// NumCategories is the total number of situation categories.
const NumCategories = 6

// CategoryName returns a human-readable category label for logs.
func CategoryName(c Category) string {
	switch c {
	case CategoryDanger:
		return "danger"
	case CategoryPostDanger:
		return "post_danger"
	case CategorySuccess:
		return "success"
	case CategoryFailure:
		return "failure"
	case CategorySurprise:
		return "surprise"
	default:
		return "routine"
	}
}

// Urgency grades how pressing a situation is, 1 through 5.
// UrgencyCritical bypasses every cooldown; that is a hard invariant,
// not a tunable.
type Urgency uint8

const (
	UrgencyLow      Urgency = 1
	UrgencyGuarded  Urgency = 2
	UrgencyElevated Urgency = 3
	UrgencyUrgent   Urgency = 4
	UrgencyCritical Urgency = 5
)

// EventKind discriminates the inbound event union delivered by the
// host's sensing layer.
type EventKind uint8

const (
	EventMobProximity EventKind = iota
	EventTaskOutcome
	EventInventoryThreshold
	EventPlayerReaction
	EventIdleTick
	EventEnvironmentShift
	EventProtection // Companion took a hit or a kill for the player
	EventPlayerGift // Player handed the companion an item
)

// TaskResult reports an explicit task outcome on a RawEvent.
type TaskResult uint8

const (
	TaskResultNone TaskResult = iota
	TaskResultSuccess
	TaskResultFailure
)

// RawEvent is one typed observation from the world or the player.
// The sensing subsystem fills whichever fields its kind uses; the
// classifier tolerates any combination.
type RawEvent struct {
	Kind       EventKind  `json:"kind"`
	PlayerID   string     `json:"player_id"`
	OccurredAt time.Time  `json:"occurred_at"`
	ContextKey string     `json:"context_key,omitempty"` // Free-form tag for gag matching

	// Threat fields (MobProximity and friends).
	Dangerous  bool      `json:"dangerous,omitempty"`
	Ongoing    bool      `json:"ongoing,omitempty"`
	ResolvedAt time.Time `json:"resolved_at,omitzero"`
	Distance   float64   `json:"distance,omitempty"` // Blocks to the threat; 0 = unknown
	Severity   float64   `json:"severity,omitempty"` // 0.0–1.0

	// Task fields.
	Result       TaskResult `json:"result,omitempty"`
	CriticalTask bool       `json:"critical_task,omitempty"`

	// Surprise flag.
	Unexpected bool `json:"unexpected,omitempty"`
}

// Situation is the classified, immutable view of one RawEvent. It lives
// for a single arbitration pass and is never persisted.
type Situation struct {
	Category     Category  `json:"category"`
	Urgency      Urgency   `json:"urgency"`
	Ongoing      bool      `json:"ongoing"`
	ResolvedAt   time.Time `json:"resolved_at,omitzero"`
	CriticalTask bool      `json:"critical_task"`
	ContextKey   string    `json:"context_key,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}
