package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepFiresLayeredCallbacks(t *testing.T) {
	e := NewEngine()

	var ticks, arbitrations, minutes int
	e.OnTick = func(uint64) { ticks++ }
	e.OnArbitration = func(uint64) { arbitrations++ }
	e.OnMinute = func(uint64) { minutes++ }

	for i := 0; i < TicksPerMinute; i++ {
		e.Step()
	}

	assert.Equal(t, TicksPerMinute, ticks)
	assert.Equal(t, TicksPerMinute/ArbitrationInterval, arbitrations)
	assert.Equal(t, 1, minutes)
	assert.Equal(t, uint64(TicksPerMinute), e.Tick())
}

func TestSpeedAndStopFromOtherGoroutines(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, 1.0, e.Speed())
	assert.False(t, e.Running())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				switch i % 3 {
				case 0:
					e.SetSpeed(float64(j % 5))
				case 1:
					_ = e.Speed()
					_ = e.Running()
				default:
					e.Step()
				}
			}
		}(i)
	}
	wg.Wait()

	e.Stop()
	assert.False(t, e.Running())
}
