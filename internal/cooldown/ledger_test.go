package cooldown

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/barkeep/internal/situation"
)

var base = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestFreshLedgerAllowsEverything(t *testing.T) {
	l := NewLedger()
	for cat := situation.Category(0); cat < situation.NumCategories; cat++ {
		assert.True(t, l.CanFire(cat, situation.UrgencyLow, base))
	}
}

func TestActiveCooldownBlocksSameCategory(t *testing.T) {
	l := NewLedger()
	l.Record(situation.CategorySuccess, situation.UrgencyLow, base, time.Minute)

	assert.False(t, l.CanFire(situation.CategorySuccess, situation.UrgencyLow, base.Add(30*time.Second)))
	assert.True(t, l.CanFire(situation.CategorySuccess, situation.UrgencyLow, base.Add(61*time.Second)))
}

func TestOtherCategoriesUnaffected(t *testing.T) {
	l := NewLedger()
	l.Record(situation.CategorySuccess, situation.UrgencyLow, base, time.Minute)

	assert.True(t, l.CanFire(situation.CategoryFailure, situation.UrgencyLow, base.Add(time.Second)))
}

func TestCriticalAlwaysPasses(t *testing.T) {
	l := NewLedger()
	for cat := situation.Category(0); cat < situation.NumCategories; cat++ {
		l.Record(cat, situation.UrgencyLow, base, time.Hour)
	}
	assert.True(t, l.CanFire(situation.CategoryDanger, situation.UrgencyCritical, base.Add(time.Second)))
}

func TestCriticalRecordsZeroDuration(t *testing.T) {
	l := NewLedger()
	l.Record(situation.CategoryDanger, situation.UrgencyCritical, base, time.Hour)

	// A critical fire never imposes silence on its own category.
	assert.True(t, l.CanFire(situation.CategoryDanger, situation.UrgencyLow, base.Add(time.Second)))
}

func TestUrgentPreemptsLowerTierAfterGlobalGate(t *testing.T) {
	l := NewLedger()
	l.Record(situation.CategoryDanger, situation.UrgencyLow, base, 10*time.Minute)

	// Inside the 15s global gate: blocked even for Urgent.
	assert.False(t, l.CanFire(situation.CategoryDanger, situation.UrgencyUrgent, base.Add(10*time.Second)))
	// Past the gate: Urgent cuts through the active low-tier cooldown.
	assert.True(t, l.CanFire(situation.CategoryDanger, situation.UrgencyUrgent, base.Add(16*time.Second)))
}

func TestUrgentWaitsLongerToPreemptElevated(t *testing.T) {
	l := NewLedger()
	l.Record(situation.CategoryDanger, situation.UrgencyElevated, base, 10*time.Minute)

	// An elevated cooldown demands the 30s gate, not the 15s one.
	assert.False(t, l.CanFire(situation.CategoryDanger, situation.UrgencyUrgent, base.Add(16*time.Second)))
	assert.True(t, l.CanFire(situation.CategoryDanger, situation.UrgencyUrgent, base.Add(31*time.Second)))
}

func TestWarningNeverPreemptsUrgentSilence(t *testing.T) {
	l := NewLedger()
	l.Record(situation.CategoryDanger, situation.UrgencyUrgent, base, time.Minute)

	// While an urgent cooldown runs, lower-tier chatter in any category
	// stays suppressed.
	assert.False(t, l.CanFire(situation.CategorySuccess, situation.UrgencyLow, base.Add(45*time.Second)))
	assert.True(t, l.CanFire(situation.CategorySuccess, situation.UrgencyLow, base.Add(61*time.Second)))
}

func TestFireDurationComposition(t *testing.T) {
	in := DurationInputs{
		Base:          time.Minute,
		FrequencyMult: 1.0,
		Trust:         60,
	}
	assert.Equal(t, time.Minute, FireDuration(in))

	in.RefiredWithin = true
	assert.Equal(t, 90*time.Second, FireDuration(in))

	in.Trust = 30
	assert.Equal(t, time.Duration(float64(time.Minute)*1.5*1.5), FireDuration(in))
}

func TestFireDurationClampsAtMaxMultiplier(t *testing.T) {
	d := FireDuration(DurationInputs{
		Base:           time.Minute,
		FrequencyMult:  3.0,
		RefiredWithin:  true,
		FalsePositives: 10,
		Trust:          10,
	})
	assert.Equal(t, 5*time.Minute, d)
}

func TestFireDurationZeroFrequencyFallsBackToOne(t *testing.T) {
	d := FireDuration(DurationInputs{Base: time.Minute, Trust: 60})
	assert.Equal(t, time.Minute, d)
}

func TestRefiredWithin(t *testing.T) {
	l := NewLedger()
	assert.False(t, l.RefiredWithin(situation.CategorySuccess, time.Minute, base))

	l.Record(situation.CategorySuccess, situation.UrgencyLow, base, 10*time.Second)
	assert.True(t, l.RefiredWithin(situation.CategorySuccess, time.Minute, base.Add(30*time.Second)))
	assert.False(t, l.RefiredWithin(situation.CategorySuccess, time.Minute, base.Add(2*time.Minute)))
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	l := NewLedger()
	var wg sync.WaitGroup

	// Arbitration path and observation path hammer the same ledger.
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				now := base.Add(time.Duration(i) * time.Second)
				cat := situation.Category(i % int(situation.NumCategories))
				if w%2 == 0 {
					if l.CanFire(cat, situation.UrgencyLow, now) {
						l.Record(cat, situation.UrgencyLow, now, time.Second)
					}
				} else {
					l.Snapshot()
					l.LastGlobal()
					l.RefiredWithin(cat, time.Minute, now)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.NotNil(t, l.Snapshot())
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	l := NewLedger()
	l.Record(situation.CategorySuccess, situation.UrgencyLow, base, time.Minute)
	l.Record(situation.CategoryFailure, situation.UrgencyGuarded, base.Add(time.Second), 2*time.Minute)

	snap := l.Snapshot()
	require.Len(t, snap, 2)

	restored := NewLedger()
	restored.Restore(snap, l.LastGlobal())

	now := base.Add(30 * time.Second)
	assert.False(t, restored.CanFire(situation.CategorySuccess, situation.UrgencyLow, now))
	assert.False(t, restored.CanFire(situation.CategoryFailure, situation.UrgencyLow, now))
	assert.True(t, restored.CanFire(situation.CategoryRoutine, situation.UrgencyLow, now))
	assert.Equal(t, l.LastGlobal(), restored.LastGlobal())
}
