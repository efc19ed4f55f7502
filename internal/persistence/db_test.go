package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/barkeep/internal/cooldown"
	"github.com/talgya/barkeep/internal/feedback"
	"github.com/talgya/barkeep/internal/gags"
	"github.com/talgya/barkeep/internal/situation"
)

var base = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "barkeep_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleSnapshot() Snapshot {
	trustStore := feedback.NewStore()
	trustStore.RecordOutcome("p1", situation.CategorySuccess, feedback.OutcomeNegative)
	trustStore.RecordOutcome("p1", situation.CategorySuccess, feedback.OutcomeNegative)

	ledger := cooldown.NewLedger()
	ledger.Record(situation.CategorySuccess, situation.UrgencyLow, base, time.Minute)
	ledger.Record(situation.CategoryFailure, situation.UrgencyGuarded, base.Add(time.Second), 2*time.Minute)

	gagStore := gags.NewStore(0)
	g := gagStore.RecordPotential("creeper_ambush", "that creeper again", true, base)
	gagStore.RecordReference(g.ID, true, base.Add(time.Minute))

	return Snapshot{
		AgentID:    "scout-1",
		PlayerID:   "p1",
		Cooldowns:  ledger.Snapshot(),
		LastGlobal: ledger.LastGlobal(),
		Trust:      trustStore.View("p1"),
		Rapport:    62.5,
		Gags:       gagStore.Snapshot(),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	db := openTestDB(t)
	want := sampleSnapshot()
	require.NoError(t, db.SaveAgent(want))

	got, found, err := db.LoadAgent("scout-1")
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, want.AgentID, got.AgentID)
	assert.Equal(t, want.PlayerID, got.PlayerID)
	assert.Equal(t, want.Rapport, got.Rapport)
	assert.True(t, want.LastGlobal.Equal(got.LastGlobal))

	// Cooldown entries survive with categories, tiers, and durations.
	require.Len(t, got.Cooldowns, 2)
	byCat := map[situation.Category]cooldown.Entry{}
	for _, e := range got.Cooldowns {
		byCat[e.Category] = e
	}
	assert.Equal(t, time.Minute, byCat[situation.CategorySuccess].Duration)
	assert.Equal(t, situation.UrgencyGuarded, byCat[situation.CategoryFailure].Tier)

	// Trust state round-trips, including per-category counters.
	assert.Equal(t, want.Trust.Score, got.Trust.Score)
	assert.Equal(t, 2, got.Trust.Misses[situation.CategorySuccess])
	assert.Equal(t, 2, got.Trust.FalsePositives[situation.CategorySuccess])

	// Gags keep their identity, stage, and counters.
	require.Len(t, got.Gags, 1)
	assert.Equal(t, want.Gags[0].ID, got.Gags[0].ID)
	assert.Equal(t, gags.StageRecognized, got.Gags[0].Stage)
	assert.Equal(t, 2, got.Gags[0].ReferenceCount)
}

func TestRestoredStateDrivesBehavior(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveAgent(sampleSnapshot()))

	got, found, err := db.LoadAgent("scout-1")
	require.NoError(t, err)
	require.True(t, found)

	// A restored ledger still blocks inside the original window.
	ledger := cooldown.NewLedger()
	ledger.Restore(got.Cooldowns, got.LastGlobal)
	assert.False(t, ledger.CanFire(situation.CategorySuccess, situation.UrgencyLow, base.Add(30*time.Second)))

	// A restored gag is immediately callback-eligible.
	gagStore := gags.NewStore(0)
	gagStore.Restore(got.Gags)
	assert.Len(t, gagStore.FindRelevant("creeper_ambush", 0, base.Add(time.Minute)), 1)
}

func TestLoadMissingAgent(t *testing.T) {
	db := openTestDB(t)
	_, found, err := db.LoadAgent("nobody")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSaveOverwrites(t *testing.T) {
	db := openTestDB(t)
	snap := sampleSnapshot()
	require.NoError(t, db.SaveAgent(snap))

	snap.Rapport = 80
	snap.Gags = nil
	require.NoError(t, db.SaveAgent(snap))

	got, found, err := db.LoadAgent("scout-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 80.0, got.Rapport)
	assert.Empty(t, got.Gags)
}

func TestMissingTrustRowYieldsNeutralRecord(t *testing.T) {
	db := openTestDB(t)
	snap := sampleSnapshot()
	require.NoError(t, db.SaveAgent(snap))

	// Drop the trust row; the agent row alone should load with defaults.
	_, err := db.conn.Exec("DELETE FROM player_trust WHERE player_id = ?", "p1")
	require.NoError(t, err)

	got, found, err := db.LoadAgent("scout-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 50.0, got.Trust.Score)
	assert.Zero(t, got.Rapport)
}

func TestMetaRoundTrip(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveMeta("last_tick", "12345"))
	require.NoError(t, db.SaveMeta("last_tick", "20000"))

	v, err := db.GetMeta("last_tick")
	require.NoError(t, err)
	assert.Equal(t, "20000", v)
}

func TestAgentIDs(t *testing.T) {
	db := openTestDB(t)

	ids, err := db.AgentIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)

	snap := sampleSnapshot()
	require.NoError(t, db.SaveAgent(snap))
	snap.AgentID = "builder-1"
	require.NoError(t, db.SaveAgent(snap))

	ids, err = db.AgentIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"builder-1", "scout-1"}, ids)
}
