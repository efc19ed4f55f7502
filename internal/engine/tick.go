// Package engine provides the tick loop and the session that drives
// arbitration for every companion agent.
package engine

import (
	"log/slog"
	"math"
	"sync/atomic"
	"time"
)

// Tick cadence. Agents arbitrate every ArbitrationInterval ticks, about
// twice a second at the reference rate.
const (
	TicksPerSecond      = 20
	ArbitrationInterval = 10
	TicksPerMinute      = TicksPerSecond * 60
)

// Engine drives the simulation clock forward. Speed and the running
// flag are poked from the API and signal goroutines while Run spins,
// so both live behind atomics.
type Engine struct {
	Interval time.Duration // Base tick interval

	tick    atomic.Uint64
	speed   atomic.Uint64 // float64 bits
	running atomic.Bool

	// Callbacks per tick layer — populated during setup.
	OnTick        func(tick uint64) // Every tick
	OnArbitration func(tick uint64) // Every ArbitrationInterval ticks
	OnMinute      func(tick uint64) // Every TicksPerMinute ticks (reports, autosave)
}

// NewEngine creates an engine at the reference tick rate.
func NewEngine() *Engine {
	e := &Engine{Interval: time.Second / TicksPerSecond}
	e.SetSpeed(1.0)
	return e
}

// Tick returns the current tick counter (monotonic, never resets).
func (e *Engine) Tick() uint64 { return e.tick.Load() }

// Speed returns the current speed multiplier: 1.0 = real-time, 0 = paused.
func (e *Engine) Speed() float64 { return math.Float64frombits(e.speed.Load()) }

// SetSpeed changes the speed multiplier; 0 pauses the loop.
func (e *Engine) SetSpeed(v float64) { e.speed.Store(math.Float64bits(v)) }

// Running reports whether the loop is active.
func (e *Engine) Running() bool { return e.running.Load() }

// Run starts the loop. Blocks until Stop is called.
func (e *Engine) Run() {
	e.running.Store(true)
	slog.Info("engine started", "tick", e.Tick(), "speed", e.Speed())

	for e.running.Load() {
		speed := e.Speed()
		if speed <= 0 {
			// Paused — sleep briefly and check again.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()

		e.Step()

		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}

	slog.Info("engine stopped", "tick", e.Tick())
}

// Stop halts the loop.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// Step advances the clock by one tick and fires due callbacks.
// Exported so tests and offline drivers can run without the timed loop.
func (e *Engine) Step() {
	tick := e.tick.Add(1)

	if e.OnTick != nil {
		e.OnTick(tick)
	}
	if tick%ArbitrationInterval == 0 && e.OnArbitration != nil {
		e.OnArbitration(tick)
	}
	if tick%TicksPerMinute == 0 && e.OnMinute != nil {
		e.OnMinute(tick)
	}
}
