package main

import (
	"math/rand"
	"time"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/barkeep/internal/engine"
	"github.com/talgya/barkeep/internal/situation"
)

// Threat episode thresholds on the normalized noise curve. Hysteresis
// keeps an episode from flickering on and off at the boundary.
const (
	threatOn  = 0.78
	threatOff = 0.62
)

var taskKeys = []string{
	"bridge_build", "mine_shaft", "wheat_harvest", "nether_run",
	"mob_farm", "roof_repair", "trade_route", "storage_sort",
}

var surpriseKeys = []string{
	"creeper_ambush", "lightning_strike", "villager_raid", "lava_pocket",
}

// generator synthesizes a plausible stream of world events for each
// agent from layered noise curves, so the demo daemon exercises the
// whole pipeline without a real game attached.
type generator struct {
	session *engine.Session
	rng     *rand.Rand

	threat  opensimplex.Noise
	fortune opensimplex.Noise
	flux    opensimplex.Noise

	agents []*agentTrack
}

// agentTrack is per-agent generator state: each companion watches a
// different slice of the noise field so their events decorrelate.
type agentTrack struct {
	id       string
	playerID string
	offset   float64
	inThreat bool
	lastTask uint64
}

func newGenerator(sess *engine.Session, seed int64) *generator {
	g := &generator{
		session: sess,
		rng:     rand.New(rand.NewSource(seed + 100)),
		threat:  opensimplex.NewNormalized(seed + 1),
		fortune: opensimplex.NewNormalized(seed + 2),
		flux:    opensimplex.NewNormalized(seed + 3),
	}
	for _, a := range sess.Agents() {
		g.agents = append(g.agents, &agentTrack{
			id:       a.ID,
			playerID: a.PlayerID,
			offset:   g.rng.Float64() * 1000,
		})
	}
	return g
}

// Tick samples the noise field and submits whatever events crossed a
// threshold this tick. Runs on the engine goroutine.
func (g *generator) Tick(tick uint64) {
	t := float64(tick) / float64(engine.TicksPerSecond)
	now := time.Now()

	for _, a := range g.agents {
		g.tickThreat(a, t, now)
		g.tickTask(a, tick, t, now)
		g.tickFlux(a, t, now)
	}
}

func (g *generator) tickThreat(a *agentTrack, t float64, now time.Time) {
	v := g.threat.Eval2(t*0.05, a.offset)

	switch {
	case !a.inThreat && v >= threatOn:
		a.inThreat = true
		g.session.Submit(a.id, situation.RawEvent{
			Kind:       situation.EventMobProximity,
			PlayerID:   a.playerID,
			OccurredAt: now,
			ContextKey: "mob_skirmish",
			Dangerous:  true,
			Ongoing:    true,
			Distance:   2 + (1-v)*20,
			Severity:   v,
		})
	case a.inThreat && v <= threatOff:
		a.inThreat = false
		kind := situation.EventMobProximity
		if g.rng.Float64() < 0.25 {
			// The companion got the kill this time.
			kind = situation.EventProtection
		}
		g.session.Submit(a.id, situation.RawEvent{
			Kind:       kind,
			PlayerID:   a.playerID,
			OccurredAt: now,
			ContextKey: "mob_skirmish",
			Dangerous:  true,
			ResolvedAt: now,
			Severity:   v,
		})
	}
}

func (g *generator) tickTask(a *agentTrack, tick uint64, t float64, now time.Time) {
	// Task outcomes land every 15-45 seconds per agent.
	if tick-a.lastTask < uint64(15*engine.TicksPerSecond) {
		return
	}
	v := g.fortune.Eval2(t*0.03, a.offset)
	if v < 0.3 || v > 0.7 {
		a.lastTask = tick
		result := situation.TaskResultSuccess
		if v < 0.3 {
			result = situation.TaskResultFailure
		}
		g.session.Submit(a.id, situation.RawEvent{
			Kind:         situation.EventTaskOutcome,
			PlayerID:     a.playerID,
			OccurredAt:   now,
			ContextKey:   taskKeys[g.rng.Intn(len(taskKeys))],
			Result:       result,
			CriticalTask: g.rng.Float64() < 0.1,
		})
	}
}

func (g *generator) tickFlux(a *agentTrack, t float64, now time.Time) {
	v := g.flux.Eval2(t*0.02, a.offset+500)
	switch {
	case v > 0.93:
		g.session.Submit(a.id, situation.RawEvent{
			Kind:       situation.EventEnvironmentShift,
			PlayerID:   a.playerID,
			OccurredAt: now,
			ContextKey: surpriseKeys[g.rng.Intn(len(surpriseKeys))],
			Unexpected: true,
		})
	case v < 0.05:
		if g.rng.Float64() < 0.002 {
			// A quiet stretch is when players hand over snacks.
			g.session.Submit(a.id, situation.RawEvent{
				Kind:       situation.EventPlayerGift,
				PlayerID:   a.playerID,
				OccurredAt: now,
				ContextKey: "gift",
			})
			return
		}
		g.session.Submit(a.id, situation.RawEvent{
			Kind:       situation.EventIdleTick,
			PlayerID:   a.playerID,
			OccurredAt: now,
		})
	}
}
