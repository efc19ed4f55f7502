package situation

import "time"

// DefaultRecoveryWindow is how long after a danger resolves that events
// still classify as PostDanger.
const DefaultRecoveryWindow = 10 * time.Second

// Classifier maps raw events to situations. It is stateless; the struct
// only carries tuning.
type Classifier struct {
	// RecoveryWindow overrides DefaultRecoveryWindow when positive.
	RecoveryWindow time.Duration
}

// Classify converts one raw event into a Situation. Total: it never
// fails, and anything it cannot place falls through to Routine at the
// lowest urgency. The predicate order is deliberate — active danger
// beats recent danger beats explicit outcomes beats surprise — so a
// situation that is both dangerous and "just succeeded" still reads as
// Danger.
func (c Classifier) Classify(ev RawEvent, now time.Time) Situation {
	window := c.RecoveryWindow
	if window <= 0 {
		window = DefaultRecoveryWindow
	}

	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}

	sit := Situation{
		Ongoing:      ev.Ongoing,
		ResolvedAt:   ev.ResolvedAt,
		CriticalTask: ev.CriticalTask,
		ContextKey:   ev.ContextKey,
		OccurredAt:   occurred,
	}

	switch {
	case ev.Dangerous && ev.ResolvedAt.IsZero():
		// Active, unresolved threat. The Ongoing flag rides along: the
		// arbiter stays silent while the player is mid-fight and only
		// calls out threats they have not engaged yet.
		sit.Category = CategoryDanger
		sit.Urgency = dangerUrgency(ev)
	case ev.Dangerous && now.Sub(ev.ResolvedAt) < window:
		sit.Category = CategoryPostDanger
		sit.Urgency = UrgencyGuarded
	case ev.Result == TaskResultSuccess:
		sit.Category = CategorySuccess
		sit.Urgency = outcomeUrgency(ev)
	case ev.Result == TaskResultFailure:
		sit.Category = CategoryFailure
		sit.Urgency = outcomeUrgency(ev)
	case ev.Unexpected:
		sit.Category = CategorySurprise
		sit.Urgency = UrgencyGuarded
	default:
		sit.Category = CategoryRoutine
		sit.Urgency = UrgencyLow
	}

	return sit
}

// dangerUrgency grades an active threat from severity and distance.
// Monotonic: more severe or closer never yields a lower tier.
func dangerUrgency(ev RawEvent) Urgency {
	if ev.CriticalTask || ev.Severity >= 0.9 {
		return UrgencyCritical
	}
	if ev.Distance > 0 && ev.Distance < 3 {
		return UrgencyCritical
	}
	if ev.Severity >= 0.6 {
		return UrgencyUrgent
	}
	if ev.Distance > 0 && ev.Distance < 8 {
		return UrgencyUrgent
	}
	return UrgencyElevated
}

func outcomeUrgency(ev RawEvent) Urgency {
	if ev.CriticalTask {
		return UrgencyGuarded
	}
	return UrgencyLow
}
