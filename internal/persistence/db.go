// Package persistence provides SQLite-based storage for the durable
// slice of companion state: cooldown ledgers, trust records, and gag
// memory. Mood is deliberately transient and never written.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/barkeep/internal/cooldown"
	"github.com/talgya/barkeep/internal/feedback"
	"github.com/talgya/barkeep/internal/gags"
)

// Snapshot is the durable state for one agent/player pairing.
type Snapshot struct {
	AgentID    string
	PlayerID   string
	Cooldowns  []cooldown.Entry
	LastGlobal time.Time
	Trust      feedback.TrustRecord
	Rapport    float64
	Gags       []gags.Gag
}

// DB wraps a SQLite connection for companion state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agent_state (
		agent_id TEXT PRIMARY KEY,
		player_id TEXT NOT NULL,
		last_global TEXT NOT NULL,
		cooldowns_json TEXT NOT NULL,
		gags_json TEXT NOT NULL,
		saved_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS player_trust (
		player_id TEXT PRIMARY KEY,
		score REAL NOT NULL,
		rapport REAL NOT NULL,
		record_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_agent_state_player ON agent_state(player_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveAgent writes one agent's durable state. A failed write is retried
// once before the error is surfaced; the caller keeps running either
// way, so a save failure costs at most one snapshot of drift.
func (db *DB) SaveAgent(snap Snapshot) error {
	err := db.saveAgent(snap)
	if err == nil {
		return nil
	}
	slog.Warn("save failed, retrying once", "agent", snap.AgentID, "error", err)
	if err = db.saveAgent(snap); err != nil {
		return fmt.Errorf("save agent %s: %w", snap.AgentID, err)
	}
	return nil
}

func (db *DB) saveAgent(snap Snapshot) error {
	cooldownsJSON, err := json.Marshal(snap.Cooldowns)
	if err != nil {
		return fmt.Errorf("marshal cooldowns: %w", err)
	}
	gagsJSON, err := json.Marshal(snap.Gags)
	if err != nil {
		return fmt.Errorf("marshal gags: %w", err)
	}
	recordJSON, err := json.Marshal(snap.Trust)
	if err != nil {
		return fmt.Errorf("marshal trust: %w", err)
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT OR REPLACE INTO agent_state
		(agent_id, player_id, last_global, cooldowns_json, gags_json, saved_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		snap.AgentID, snap.PlayerID,
		snap.LastGlobal.UTC().Format(time.RFC3339Nano),
		string(cooldownsJSON), string(gagsJSON),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`INSERT OR REPLACE INTO player_trust
		(player_id, score, rapport, record_json)
		VALUES (?, ?, ?, ?)`,
		snap.PlayerID, snap.Trust.Score, snap.Rapport, string(recordJSON),
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// LoadAgent reads one agent's durable state. A missing row is not an
// error: ok is false and the caller starts from defaults.
func (db *DB) LoadAgent(agentID string) (Snapshot, bool, error) {
	var row struct {
		AgentID       string `db:"agent_id"`
		PlayerID      string `db:"player_id"`
		LastGlobal    string `db:"last_global"`
		CooldownsJSON string `db:"cooldowns_json"`
		GagsJSON      string `db:"gags_json"`
	}
	err := db.conn.Get(&row,
		"SELECT agent_id, player_id, last_global, cooldowns_json, gags_json FROM agent_state WHERE agent_id = ?",
		agentID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("load agent %s: %w", agentID, err)
	}

	snap := Snapshot{AgentID: row.AgentID, PlayerID: row.PlayerID}
	if snap.LastGlobal, err = time.Parse(time.RFC3339Nano, row.LastGlobal); err != nil {
		return Snapshot{}, false, fmt.Errorf("parse last_global: %w", err)
	}
	if err = json.Unmarshal([]byte(row.CooldownsJSON), &snap.Cooldowns); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode cooldowns: %w", err)
	}
	if err = json.Unmarshal([]byte(row.GagsJSON), &snap.Gags); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode gags: %w", err)
	}

	var trustRow struct {
		Score      float64 `db:"score"`
		Rapport    float64 `db:"rapport"`
		RecordJSON string  `db:"record_json"`
	}
	err = db.conn.Get(&trustRow,
		"SELECT score, rapport, record_json FROM player_trust WHERE player_id = ?",
		snap.PlayerID,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		snap.Trust = feedback.NewTrustRecord(snap.PlayerID)
	case err != nil:
		return Snapshot{}, false, fmt.Errorf("load trust %s: %w", snap.PlayerID, err)
	default:
		if err = json.Unmarshal([]byte(trustRow.RecordJSON), &snap.Trust); err != nil {
			return Snapshot{}, false, fmt.Errorf("decode trust: %w", err)
		}
		snap.Trust.Score = trustRow.Score
		snap.Rapport = trustRow.Rapport
	}

	return snap, true, nil
}

// SaveMeta stores a key-value pair in session metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}

// AgentIDs lists every agent with saved state.
func (db *DB) AgentIDs() ([]string, error) {
	var ids []string
	err := db.conn.Select(&ids, "SELECT agent_id FROM agent_state ORDER BY agent_id")
	return ids, err
}
