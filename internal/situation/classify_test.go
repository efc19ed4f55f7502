package situation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var base = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestClassifyActiveDanger(t *testing.T) {
	c := Classifier{}
	sit := c.Classify(RawEvent{
		Kind:       EventMobProximity,
		Dangerous:  true,
		Ongoing:    true,
		Distance:   5,
		Severity:   0.7,
		OccurredAt: base,
	}, base)

	assert.Equal(t, CategoryDanger, sit.Category)
	assert.Equal(t, UrgencyUrgent, sit.Urgency)
	assert.True(t, sit.Ongoing)
}

func TestClassifyDangerDominatesSuccess(t *testing.T) {
	// A dangerous event that also reports a task success reads as Danger.
	c := Classifier{}
	sit := c.Classify(RawEvent{
		Dangerous:  true,
		Result:     TaskResultSuccess,
		OccurredAt: base,
	}, base)

	assert.Equal(t, CategoryDanger, sit.Category)
}

func TestClassifyPostDangerWindow(t *testing.T) {
	c := Classifier{RecoveryWindow: 10 * time.Second}
	resolved := base.Add(-5 * time.Second)

	sit := c.Classify(RawEvent{
		Dangerous:  true,
		ResolvedAt: resolved,
		OccurredAt: base,
	}, base)
	assert.Equal(t, CategoryPostDanger, sit.Category)
	assert.Equal(t, UrgencyGuarded, sit.Urgency)

	// Past the window the same event falls through to Routine.
	late := c.Classify(RawEvent{
		Dangerous:  true,
		ResolvedAt: resolved,
		OccurredAt: base,
	}, base.Add(6*time.Second))
	assert.Equal(t, CategoryRoutine, late.Category)
}

func TestClassifyTaskOutcomes(t *testing.T) {
	c := Classifier{}

	success := c.Classify(RawEvent{Result: TaskResultSuccess, OccurredAt: base}, base)
	assert.Equal(t, CategorySuccess, success.Category)
	assert.Equal(t, UrgencyLow, success.Urgency)

	failure := c.Classify(RawEvent{Result: TaskResultFailure, CriticalTask: true, OccurredAt: base}, base)
	assert.Equal(t, CategoryFailure, failure.Category)
	assert.Equal(t, UrgencyGuarded, failure.Urgency)
}

func TestClassifySurprise(t *testing.T) {
	c := Classifier{}
	sit := c.Classify(RawEvent{Unexpected: true, OccurredAt: base}, base)
	assert.Equal(t, CategorySurprise, sit.Category)
	assert.Equal(t, UrgencyGuarded, sit.Urgency)
}

func TestClassifyTotalFallsThroughToRoutine(t *testing.T) {
	// The zero event must classify, not error.
	c := Classifier{}
	sit := c.Classify(RawEvent{}, base)
	assert.Equal(t, CategoryRoutine, sit.Category)
	assert.Equal(t, UrgencyLow, sit.Urgency)
	assert.Equal(t, base, sit.OccurredAt)
}

func TestDangerUrgencyTiers(t *testing.T) {
	cases := []struct {
		name string
		ev   RawEvent
		want Urgency
	}{
		{"critical_severity", RawEvent{Severity: 0.95}, UrgencyCritical},
		{"critical_distance", RawEvent{Distance: 2}, UrgencyCritical},
		{"critical_task", RawEvent{CriticalTask: true}, UrgencyCritical},
		{"urgent_severity", RawEvent{Severity: 0.7}, UrgencyUrgent},
		{"urgent_distance", RawEvent{Distance: 6}, UrgencyUrgent},
		{"elevated_default", RawEvent{Severity: 0.2, Distance: 30}, UrgencyElevated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, dangerUrgency(tc.ev))
		})
	}
}
