// Package api provides the HTTP API for observing a running session.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane), except
// the reaction endpoint, which is the game-facing feedback channel.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/barkeep/internal/arbiter"
	"github.com/talgya/barkeep/internal/engine"
	"github.com/talgya/barkeep/internal/feedback"
	"github.com/talgya/barkeep/internal/mood"
	"github.com/talgya/barkeep/internal/persistence"
	"github.com/talgya/barkeep/internal/risk"
	"github.com/talgya/barkeep/internal/situation"
)

// Server serves session state over HTTP.
type Server struct {
	Session   *engine.Session
	Eng       *engine.Engine
	DB        *persistence.DB
	Port      int
	AdminKey  string // Bearer token for POST endpoints. Empty = POST disabled.
	StartedAt time.Time
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	// Reaction endpoint is game-facing and cheap but still abusable.
	reactionLimiter := NewRateLimiter(600, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/agent/", s.handleAgentRoutes(reactionLimiter))
	mux.HandleFunc("/api/v1/decisions", s.handleDecisions)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		handler := corsMiddleware(mux)
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no BARKEEP_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Session.Stats()
	status := map[string]any{
		"name":    "barkeep",
		"tick":    s.Eng.Tick(),
		"speed":   s.Eng.Speed(),
		"running": s.Eng.Running(),
		"uptime":  humanize.Time(s.StartedAt),
		"agents":  len(s.Session.Agents()),
		"stats":   st,
	}
	writeJSON(w, status)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	type agentSummary struct {
		ID        string  `json:"id"`
		Name      string  `json:"name"`
		PlayerID  string  `json:"player_id"`
		InFlight  bool    `json:"in_flight"`
		Gags      int     `json:"gags"`
		Cooldowns int     `json:"cooldowns"`
		Rapport   float64 `json:"rapport"`
	}

	agents := s.Session.Agents()
	out := make([]agentSummary, 0, len(agents))
	for _, a := range agents {
		out = append(out, agentSummary{
			ID:        a.ID,
			Name:      a.Name,
			PlayerID:  a.PlayerID,
			InFlight:  a.InFlight(),
			Gags:      a.Gags.Len(),
			Cooldowns: len(a.Ledger.Snapshot()),
			Rapport:   s.Session.Moods.Rapport(a.PlayerID),
		})
	}
	writeJSON(w, out)
}

// handleAgentRoutes dispatches /api/v1/agent/:id and /api/v1/agent/:id/reaction.
func (s *Server) handleAgentRoutes(reactionLimiter *RateLimiter) http.HandlerFunc {
	rateLimitedReaction := RateLimitMiddleware(reactionLimiter, func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		s.handleReaction(w, r, parts[4])
	})

	return func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		if len(parts) < 5 || parts[4] == "" {
			http.Error(w, "missing agent id", http.StatusBadRequest)
			return
		}
		if s.Session.Agent(parts[4]) == nil {
			http.Error(w, "agent not found", http.StatusNotFound)
			return
		}

		if len(parts) >= 6 && parts[5] == "reaction" {
			rateLimitedReaction(w, r)
			return
		}

		s.handleAgentDetail(w, r, parts[4])
	}
}

func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request, id string) {
	a := s.Session.Agent(id)

	moodState := s.Session.Moods.Mood(a.PlayerID, time.Now())
	trust := s.Session.Trust.View(a.PlayerID)

	writeJSON(w, map[string]any{
		"id":        a.ID,
		"name":      a.Name,
		"player_id": a.PlayerID,
		"in_flight": a.InFlight(),
		"mood": map[string]any{
			"bucket":           mood.BucketName(moodState.Current),
			"score":            moodState.Score,
			"humor_multiplier": mood.HumorMultiplier(moodState.Current),
		},
		"rapport":   s.Session.Moods.Rapport(a.PlayerID),
		"trust":     trust,
		"cooldowns": a.Ledger.Snapshot(),
		"gags":      a.Gags.Snapshot(),
	})
}

// handleReaction ingests one player reaction from the game and routes
// it through the feedback loop.
func (s *Server) handleReaction(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Outcome string `json:"outcome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var outcome feedback.Outcome
	switch strings.ToLower(req.Outcome) {
	case "positive":
		outcome = feedback.OutcomePositive
	case "neutral":
		outcome = feedback.OutcomeNeutral
	case "negative":
		outcome = feedback.OutcomeNegative
	default:
		http.Error(w, "outcome must be positive, neutral, or negative", http.StatusBadRequest)
		return
	}

	s.Session.RecordReaction(id, outcome, time.Now())
	writeJSON(w, map[string]string{"status": "recorded"})
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			http.Error(w, "limit must be 1-1000", http.StatusBadRequest)
			return
		}
		limit = n
	}

	type decisionView struct {
		Tick     uint64 `json:"tick"`
		AgentID  string `json:"agent_id"`
		Fired    bool   `json:"fired"`
		Category string `json:"category"`
		Risk     string `json:"risk"`
		Recovery bool   `json:"recovery,omitempty"`
		GagID    string `json:"gag_id,omitempty"`
		Reasons  string `json:"reasons,omitempty"`
		Line     string `json:"line,omitempty"`
	}

	recs := s.Session.RecentDecisions(limit)
	out := make([]decisionView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, decisionView{
			Tick:     rec.Tick,
			AgentID:  rec.AgentID,
			Fired:    rec.Decision.Fire,
			Category: situation.CategoryName(rec.Decision.Category),
			Risk:     risk.LevelName(rec.Decision.Risk),
			Recovery: rec.Decision.Recovery,
			GagID:    rec.Decision.GagID,
			Reasons:  strings.Join(rec.Decision.Reasons, ","),
			Line:     rec.Line,
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	saved := 0
	for _, a := range s.Session.Agents() {
		if err := s.DB.SaveAgent(snapshotAgent(s.Session, a)); err != nil {
			slog.Error("snapshot save failed", "agent", a.ID, "error", err)
			http.Error(w, "snapshot failed", http.StatusInternalServerError)
			return
		}
		saved++
	}

	writeJSON(w, map[string]any{
		"tick":    s.Eng.Tick(),
		"agents":  saved,
		"message": "snapshot saved",
	})
}

// snapshotAgent assembles the durable slice of one agent's state.
func snapshotAgent(sess *engine.Session, a *arbiter.AgentContext) persistence.Snapshot {
	return persistence.Snapshot{
		AgentID:    a.ID,
		PlayerID:   a.PlayerID,
		Cooldowns:  a.Ledger.Snapshot(),
		LastGlobal: a.Ledger.LastGlobal(),
		Trust:      sess.Trust.View(a.PlayerID),
		Rapport:    sess.Moods.Rapport(a.PlayerID),
		Gags:       a.Gags.Snapshot(),
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
