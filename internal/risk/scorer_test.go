package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/barkeep/internal/situation"
)

func neutralInput() Input {
	return Input{
		Situation: situation.Situation{Category: situation.CategorySuccess},
		Traits:    ContentTraits{Situational: true, Reciprocable: true},
		HumorMult: 1.0,
		Rapport:   50,
		Trust:     50,
	}
}

func TestOngoingDangerShortCircuits(t *testing.T) {
	in := neutralInput()
	in.Situation = situation.Situation{Category: situation.CategoryDanger, Ongoing: true}
	// Even maximally favorable content never overrides the context check.
	in.Traits = ContentTraits{SelfDeprecating: true, Situational: true, Reciprocable: true}
	in.HumorMult = 1.2
	in.Trust = 100

	res := Score(DefaultWeights(), in)
	assert.Equal(t, LevelHigh, res.Level)
	assert.Zero(t, res.Score)
	assert.Equal(t, []string{"context_danger"}, res.Reasons)
}

func TestResolvedDangerScoresNormally(t *testing.T) {
	in := neutralInput()
	in.Situation = situation.Situation{Category: situation.CategoryDanger, Ongoing: false}
	res := Score(DefaultWeights(), in)
	assert.NotEqual(t, []string{"context_danger"}, res.Reasons)
	assert.Equal(t, 75.0, res.Score)
}

func TestFavorableContentScoresLow(t *testing.T) {
	res := Score(DefaultWeights(), neutralInput())
	assert.Equal(t, 75.0, res.Score)
	assert.Equal(t, LevelLow, res.Level)
	assert.Contains(t, res.Reasons, "content_favorable")
}

func TestIdentityAttackDominatesCompetenceAttack(t *testing.T) {
	in := neutralInput()
	in.Traits.IdentityAttack = true
	in.Traits.CompetenceAttack = true

	res := Score(DefaultWeights(), in)
	assert.Contains(t, res.Reasons, "identity_attack")
	assert.NotContains(t, res.Reasons, "competence_attack")
	// 50 + 25 - 55 = 20.
	assert.Equal(t, 20.0, res.Score)
	assert.Equal(t, LevelHigh, res.Level)
}

func TestNonReciprocablePenalty(t *testing.T) {
	in := neutralInput()
	in.Traits.Reciprocable = false
	res := Score(DefaultWeights(), in)
	assert.Equal(t, 55.0, res.Score)
	assert.Equal(t, LevelMedium, res.Level)
	assert.Contains(t, res.Reasons, "non_reciprocable")
}

func TestLowTrustAndMissesPenalties(t *testing.T) {
	in := neutralInput()
	in.Trust = 40
	in.RecentMisses = 2
	res := Score(DefaultWeights(), in)
	// 50 + 25 - 10 - 10 = 55.
	assert.Equal(t, 55.0, res.Score)
	assert.Contains(t, res.Reasons, "low_trust")
	assert.Contains(t, res.Reasons, "recent_misses")
}

func TestMissesCapAtThree(t *testing.T) {
	in := neutralInput()
	in.RecentMisses = 10
	res := Score(DefaultWeights(), in)
	// 50 + 25 - 15: the per-miss penalty stops compounding at 3.
	assert.Equal(t, 60.0, res.Score)
}

func TestMoodMultiplierAppliesLast(t *testing.T) {
	in := neutralInput()
	in.HumorMult = 1.2
	res := Score(DefaultWeights(), in)
	assert.InDelta(t, 90.0, res.Score, 1e-9)
	assert.Equal(t, LevelLow, res.Level)

	in.HumorMult = 0
	res = Score(DefaultWeights(), in)
	assert.Zero(t, res.Score)
	assert.Equal(t, LevelHigh, res.Level)
}

func TestScoreClampsToHundred(t *testing.T) {
	in := neutralInput()
	in.HumorMult = 1.2
	w := DefaultWeights()
	w.Base = 90
	res := Score(w, in)
	assert.Equal(t, 100.0, res.Score)
}

func TestLevelBands(t *testing.T) {
	cases := []struct {
		score float64
		want  Level
	}{
		{70, LevelLow},
		{69.9, LevelMedium},
		{50, LevelMedium},
		{49.9, LevelHigh},
		{0, LevelHigh},
	}
	for _, tc := range cases {
		in := neutralInput()
		in.Traits = ContentTraits{Reciprocable: true} // No favorable bonus
		w := DefaultWeights()
		w.Base = tc.score
		res := Score(w, in)
		assert.Equal(t, tc.want, res.Level, "score %.1f", tc.score)
	}
}
