// Session wires agents, the arbiter, and the external content selector
// together and keeps a bounded log of every decision for observability.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/talgya/barkeep/internal/arbiter"
	"github.com/talgya/barkeep/internal/feedback"
	"github.com/talgya/barkeep/internal/mood"
	"github.com/talgya/barkeep/internal/situation"
)

// ContentSelector resolves a firing decision into literal text. It
// lives outside this engine; returning an empty line or an error
// downgrades the decision to silence.
type ContentSelector interface {
	Select(ctx context.Context, cat situation.Category, gagID string) (string, error)
}

// Emitter receives the final, delivered utterance.
type Emitter func(agentID, playerID, line string, d arbiter.Decision)

// DecisionRecord is one audited arbitration outcome.
type DecisionRecord struct {
	Tick     uint64           `json:"tick"`
	AgentID  string           `json:"agent_id"`
	Decision arbiter.Decision `json:"decision"`
	Line     string           `json:"line,omitempty"`
}

// maxDecisionLog bounds the in-memory audit ring.
const maxDecisionLog = 1000

// deliverTimeout bounds one async content selection.
const deliverTimeout = 5 * time.Second

// firedRef remembers the last fired decision per agent so a later
// player reaction can be attributed to it.
type firedRef struct {
	Category   situation.Category
	GagID      string
	ContextKey string
	Line       string
	At         time.Time
}

// SessionStats are aggregate counters since start.
type SessionStats struct {
	Decisions  uint64 `json:"decisions"`
	Fired      uint64 `json:"fired"`
	Suppressed uint64 `json:"suppressed"`
	Recoveries uint64 `json:"recoveries"`
	Callbacks  uint64 `json:"callbacks"`
	NoContent  uint64 `json:"no_content"`
	Stale      uint64 `json:"stale"`
}

// Session owns the agents and routes events through arbitration.
type Session struct {
	Arbiter    *arbiter.Arbiter
	Classifier situation.Classifier
	Selector   ContentSelector
	Emit       Emitter
	Moods      *mood.Estimator
	Trust      *feedback.Store

	// OnMilestone fires once per rapport threshold crossed, so the host
	// can surface "friends" / "best friends" moments.
	OnMilestone func(playerID, milestone string)

	mu        sync.Mutex
	agents    []*arbiter.AgentContext
	agentByID map[string]*arbiter.AgentContext
	inbox     map[string][]situation.RawEvent
	lastFired map[string]firedRef
	log       []DecisionRecord
	stats     SessionStats
}

// NewSession creates an empty session around the arbiter.
func NewSession(ar *arbiter.Arbiter, moods *mood.Estimator, trust *feedback.Store) *Session {
	return &Session{
		Arbiter:    ar,
		Classifier: situation.Classifier{RecoveryWindow: ar.Config().RecoveryWindow},
		Moods:      moods,
		Trust:      trust,
		agentByID:  make(map[string]*arbiter.AgentContext),
		inbox:      make(map[string][]situation.RawEvent),
		lastFired:  make(map[string]firedRef),
	}
}

// AddAgent registers a companion agent.
func (s *Session) AddAgent(a *arbiter.AgentContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents = append(s.agents, a)
	s.agentByID[a.ID] = a
}

// Agents returns the registered agents.
func (s *Session) Agents() []*arbiter.AgentContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*arbiter.AgentContext, len(s.agents))
	copy(out, s.agents)
	return out
}

// Agent looks up one agent by ID.
func (s *Session) Agent(id string) *arbiter.AgentContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentByID[id]
}

// Submit queues a raw world event for an agent's next arbitration tick.
func (s *Session) Submit(agentID string, ev situation.RawEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agentByID[agentID]; !ok {
		return
	}
	s.inbox[agentID] = append(s.inbox[agentID], ev)
}

// Arbitrate runs one arbitration round. Agents evaluate concurrently
// and independently — there is no cross-agent ordering and none is
// needed; the shared mood/trust stores serialize per player.
func (s *Session) Arbitrate(tick uint64) {
	type job struct {
		agent *arbiter.AgentContext
		ev    situation.RawEvent
	}

	s.mu.Lock()
	work := make([]job, 0, len(s.agents))
	for _, a := range s.agents {
		queue := s.inbox[a.ID]
		if len(queue) == 0 {
			continue
		}
		// Take the newest event; anything older in the queue is already
		// stale at tick cadence.
		ev := queue[len(queue)-1]
		s.inbox[a.ID] = queue[:0]
		work = append(work, job{a, ev})
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range work {
		wg.Add(1)
		go func(a *arbiter.AgentContext, ev situation.RawEvent) {
			defer wg.Done()
			s.arbitrateOne(tick, a, ev)
		}(w.agent, w.ev)
	}
	wg.Wait()
}

func (s *Session) arbitrateOne(tick uint64, a *arbiter.AgentContext, ev situation.RawEvent) {
	now := ev.OccurredAt
	if now.IsZero() {
		now = time.Now()
	}
	sit := s.Classifier.Classify(ev, now)

	// Relationship moments move rapport whether or not the companion
	// ends up saying anything about them.
	if rev, ok := rapportEventFor(ev, sit); ok {
		if milestone := s.Moods.AdjustRapport(a.PlayerID, rev); milestone != "" {
			slog.Info("rapport milestone", "player", a.PlayerID, "milestone", milestone)
			if s.OnMilestone != nil {
				s.OnMilestone(a.PlayerID, milestone)
			}
		}
	}

	d := s.Arbiter.Decide(a, sit)

	s.record(DecisionRecord{Tick: tick, AgentID: a.ID, Decision: d}, d)

	if !d.Fire {
		return
	}

	slog.Debug("utterance decision",
		"agent", a.Name,
		"category", situation.CategoryName(d.Category),
		"recovery", d.Recovery,
		"gag", d.GagID != "",
	)

	go s.deliver(a, sit, d)
}

// deliver resolves content asynchronously and emits it, unless the
// situation went stale or the selector came back empty — in both cases
// the decision quietly becomes a suppress.
func (s *Session) deliver(a *arbiter.AgentContext, sit situation.Situation, d arbiter.Decision) {
	defer a.FinishDelivery()

	if s.Selector == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	line, err := s.Selector.Select(ctx, d.Category, d.GagID)
	if err != nil || line == "" {
		s.bump(func(st *SessionStats) { st.NoContent++ })
		slog.Debug("no eligible content, suppressing", "agent", a.Name, "error", err)
		return
	}

	// Late content for a moment that has passed is worse than silence.
	if s.Arbiter.Stale(d, time.Now()) {
		s.bump(func(st *SessionStats) { st.Stale++ })
		return
	}

	s.mu.Lock()
	s.lastFired[a.ID] = firedRef{
		Category:   d.Category,
		GagID:      d.GagID,
		ContextKey: sit.ContextKey,
		Line:       line,
		At:         d.At,
	}
	for i := len(s.log) - 1; i >= 0; i-- {
		if s.log[i].AgentID == a.ID && s.log[i].Decision.At.Equal(d.At) {
			s.log[i].Line = line
			break
		}
	}
	emit := s.Emit
	s.mu.Unlock()

	if emit != nil {
		emit(a.ID, a.PlayerID, line, d)
	}
}

// RecordReaction attributes an observed player reaction to the agent's
// most recent utterance: trust and thresholds move, the mood window
// gains a behavior event, and the gag memory is seeded or reinforced.
func (s *Session) RecordReaction(agentID string, outcome feedback.Outcome, now time.Time) {
	s.mu.Lock()
	a := s.agentByID[agentID]
	ref, ok := s.lastFired[agentID]
	s.mu.Unlock()
	if a == nil || !ok {
		return
	}

	s.Trust.RecordOutcome(a.PlayerID, ref.Category, outcome)

	switch outcome {
	case feedback.OutcomePositive:
		s.Moods.Observe(a.PlayerID, mood.BehaviorPositiveReaction, now)
	case feedback.OutcomeNegative:
		s.Moods.Observe(a.PlayerID, mood.BehaviorNegativeReaction, now)
	}

	// Gag bookkeeping: reinforced when the line was a callback, seeded
	// when a fresh line in a tagged context landed well.
	switch {
	case ref.GagID != "":
		a.Gags.RecordReference(ref.GagID, outcome == feedback.OutcomePositive, now)
	case ref.ContextKey != "":
		a.Gags.RecordPotential(ref.ContextKey, ref.Line, outcome == feedback.OutcomePositive, now)
	}
}

// rapportEventFor maps a world moment to one of the defined rapport
// increments. Gifts and protection come in as their own event kinds;
// shared successes and survived crises fall out of classification.
func rapportEventFor(ev situation.RawEvent, sit situation.Situation) (mood.RapportEvent, bool) {
	switch {
	case ev.Kind == situation.EventPlayerGift:
		return mood.RapportGift, true
	case ev.Kind == situation.EventProtection:
		return mood.RapportProtection, true
	case sit.Category == situation.CategoryPostDanger:
		return mood.RapportSurvivedCrisis, true
	case sit.Category == situation.CategorySuccess:
		return mood.RapportSharedSuccess, true
	}
	return 0, false
}

func (s *Session) record(rec DecisionRecord, d arbiter.Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Decisions++
	if d.Fire {
		s.stats.Fired++
		if d.Recovery {
			s.stats.Recoveries++
		}
		if d.GagID != "" {
			s.stats.Callbacks++
		}
	} else {
		s.stats.Suppressed++
	}

	s.log = append(s.log, rec)
	if len(s.log) > maxDecisionLog {
		s.log = s.log[len(s.log)-maxDecisionLog:]
	}
}

func (s *Session) bump(f func(*SessionStats)) {
	s.mu.Lock()
	f(&s.stats)
	s.mu.Unlock()
}

// Stats returns a copy of the aggregate counters.
func (s *Session) Stats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// RecentDecisions returns up to limit most recent decision records,
// newest last.
func (s *Session) RecentDecisions(limit int) []DecisionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.log) {
		limit = len(s.log)
	}
	out := make([]DecisionRecord, limit)
	copy(out, s.log[len(s.log)-limit:])
	return out
}

// Report logs a one-line summary, called from the minute tick.
func (s *Session) Report(tick uint64) {
	st := s.Stats()
	slog.Info("arbitration report",
		"tick", tick,
		"decisions", st.Decisions,
		"fired", st.Fired,
		"suppressed", st.Suppressed,
		"recoveries", st.Recoveries,
		"callbacks", st.Callbacks,
		"no_content", st.NoContent,
		"stale", st.Stale,
	)
}

