// Command barksim runs the companion utterance engine against a
// synthetic event stream, with the observation API on top.
package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/talgya/barkeep/internal/api"
	"github.com/talgya/barkeep/internal/arbiter"
	"github.com/talgya/barkeep/internal/config"
	"github.com/talgya/barkeep/internal/engine"
	"github.com/talgya/barkeep/internal/feedback"
	"github.com/talgya/barkeep/internal/mood"
	"github.com/talgya/barkeep/internal/persistence"
	"github.com/talgya/barkeep/internal/situation"
)

// Demo roster. Two companions sharing one player exercises the shared
// trust and mood path; the third has a player of its own.
var roster = []struct {
	id, name, playerID string
}{
	{"scout-1", "Wren", "player-1"},
	{"builder-1", "Moss", "player-1"},
	{"miner-1", "Flint", "player-2"},
}

func main() {
	envCfg, err := config.LoadEnv()
	if err != nil {
		slog.Error("bad environment", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(envCfg.LogLevel),
	}))
	slog.SetDefault(logger)

	slog.Info("barkeep — contextual utterance arbitration",
		"seed", envCfg.Seed,
		"frequency", envCfg.Frequency,
	)

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(envCfg.DBPath), 0755)
	db, err := persistence.Open(envCfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", envCfg.DBPath)

	// ── Arbitration pipeline ─────────────────────────────────────────
	cfg := config.Default()
	cfg.Frequency = config.ParseFrequency(envCfg.Frequency)

	moods := mood.NewEstimator()
	trust := feedback.NewStore()
	rng := rand.New(rand.NewSource(envCfg.Seed))
	arb := arbiter.New(cfg, arbiter.SystemClock{}, rng, moods, trust)

	sess := engine.NewSession(arb, moods, trust)
	sess.Selector = newLineSelector(envCfg.Seed)
	sess.Emit = func(agentID, playerID, line string, d arbiter.Decision) {
		slog.Info("utterance",
			"agent", agentID,
			"player", playerID,
			"category", situation.CategoryName(d.Category),
			"line", line,
		)
	}

	// ── Agents: restore saved state or start fresh ───────────────────
	for _, r := range roster {
		a := arbiter.NewAgentContext(r.id, r.name, r.playerID, cfg.GagCap)
		snap, found, err := db.LoadAgent(r.id)
		if err != nil {
			slog.Error("failed to load agent state", "agent", r.id, "error", err)
			os.Exit(1)
		}
		if found {
			a.Ledger.Restore(snap.Cooldowns, snap.LastGlobal)
			a.Gags.Restore(snap.Gags)
			trust.Restore(snap.Trust)
			moods.SetRapport(r.playerID, snap.Rapport)
			slog.Info("agent state restored", "agent", r.id, "gags", a.Gags.Len())
		}
		sess.AddAgent(a)
	}

	saveAll := func() {
		for _, a := range sess.Agents() {
			snap := persistence.Snapshot{
				AgentID:    a.ID,
				PlayerID:   a.PlayerID,
				Cooldowns:  a.Ledger.Snapshot(),
				LastGlobal: a.Ledger.LastGlobal(),
				Trust:      trust.View(a.PlayerID),
				Rapport:    moods.Rapport(a.PlayerID),
				Gags:       a.Gags.Snapshot(),
			}
			if err := db.SaveAgent(snap); err != nil {
				slog.Error("save failed", "agent", a.ID, "error", err)
			}
		}
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine()
	gen := newGenerator(sess, envCfg.Seed)

	eng.OnTick = gen.Tick
	eng.OnArbitration = sess.Arbitrate
	eng.OnMinute = func(tick uint64) {
		sess.Report(tick)
		saveAll()
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if envCfg.AdminKey == "" {
		slog.Warn("BARKEEP_ADMIN_KEY not set — admin POST endpoints will be disabled")
	}
	apiServer := &api.Server{
		Session:   sess,
		Eng:       eng,
		DB:        db,
		Port:      envCfg.Port,
		AdminKey:  envCfg.AdminKey,
		StartedAt: time.Now(),
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	fmt.Printf("\n%d companions online.\n", len(sess.Agents()))
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", envCfg.Port)
	fmt.Println("Running... (Ctrl+C to stop)")

	eng.Run()

	slog.Info("final save...")
	saveAll()
	fmt.Println("Stopped. Companion state saved.")
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
