// Package mood tracks each player's short-term mood and long-term
// rapport. Mood is derived from a sliding window of behavior events and
// is never persisted — it is cheap to recompute after a reload. Rapport
// is a slow scalar from 0 to 100 that gates which utterance categories
// are reachable at all.
package mood

import (
	"math"
	"time"
)

// Bucket is a discrete mood. Buckets are ordered from least to most
// humor-tolerant so that vote ties resolve toward the conservative end.
type Bucket uint8

const (
	BucketAngry Bucket = iota
	BucketFrustrated
	BucketConfused
	BucketFocused
	BucketBored
	BucketContent
	BucketExcited
	BucketHappy
)

// NumBuckets is the number of mood buckets.
const NumBuckets = 8

// BucketName returns a log-friendly label.
func BucketName(b Bucket) string {
	switch b {
	case BucketAngry:
		return "angry"
	case BucketFrustrated:
		return "frustrated"
	case BucketConfused:
		return "confused"
	case BucketFocused:
		return "focused"
	case BucketBored:
		return "bored"
	case BucketContent:
		return "content"
	case BucketExcited:
		return "excited"
	default:
		return "happy"
	}
}

// HumorMultiplier maps a mood to the scalar the risk scorer applies
// last. Angry and frustrated players get near-total suppression of
// non-essential chatter.
func HumorMultiplier(b Bucket) float64 {
	switch b {
	case BucketAngry:
		return 0.0
	case BucketFrustrated:
		return 0.25
	case BucketConfused:
		return 0.45
	case BucketFocused:
		return 0.6
	case BucketBored:
		return 0.75
	case BucketContent:
		return 0.9
	case BucketExcited:
		return 1.1
	default: // Happy
		return 1.2
	}
}

// BehaviorKind categorizes one observed player behavior.
type BehaviorKind uint8

const (
	BehaviorRapidCommand BehaviorKind = iota
	BehaviorRepeatedCommand
	BehaviorPositiveReaction
	BehaviorNegativeReaction
	BehaviorIdle
	BehaviorTaskSuccess
	BehaviorTaskFailure
)

// behaviorVotes distributes each behavior's weight across mood buckets.
// Weights decay exponentially with age inside the window, so the most
// recent behavior dominates.
var behaviorVotes = map[BehaviorKind][NumBuckets]float64{
	//                            angry frus  conf  focus bored cont  excit happy
	BehaviorRapidCommand:     {0.3, 0.5, 0.2, 0.8, 0.0, 0.0, 0.3, 0.0},
	BehaviorRepeatedCommand:  {0.6, 0.9, 0.4, 0.2, 0.0, 0.0, 0.0, 0.0},
	BehaviorPositiveReaction: {0.0, 0.0, 0.0, 0.1, 0.0, 0.6, 0.5, 1.0},
	BehaviorNegativeReaction: {0.9, 0.7, 0.3, 0.0, 0.1, 0.0, 0.0, 0.0},
	BehaviorIdle:             {0.0, 0.1, 0.2, 0.0, 0.9, 0.3, 0.0, 0.0},
	BehaviorTaskSuccess:      {0.0, 0.0, 0.0, 0.3, 0.0, 0.7, 0.6, 0.8},
	BehaviorTaskFailure:      {0.4, 0.8, 0.5, 0.1, 0.0, 0.0, 0.0, 0.0},
}

// State is a derived snapshot of one player's mood.
type State struct {
	PlayerID    string    `json:"player_id"`
	Current     Bucket    `json:"current"`
	Score       float64   `json:"score"` // Accumulated weight behind Current
	LastUpdated time.Time `json:"last_updated"`
}

// decayTau controls exponential falloff of a behavior's vote with age.
// At tau=12s a 30s-old event contributes ~8% of its base weight.
const decayTau = 12.0

// scoreWindow accumulates votes for entries within the window and
// returns the winning bucket. Ties break toward the lower (more
// conservative) bucket ordinal.
func scoreWindow(entries []behaviorEntry, now time.Time, window time.Duration) (Bucket, float64) {
	var votes [NumBuckets]float64
	cutoff := now.Add(-window)
	for _, e := range entries {
		if e.At.Before(cutoff) {
			continue
		}
		age := now.Sub(e.At).Seconds()
		decay := math.Exp(-age / decayTau)
		base := behaviorVotes[e.Kind]
		for i := range votes {
			votes[i] += base[i] * decay
		}
	}

	best := BucketContent // Neutral default when the window is empty
	bestScore := 0.0
	if total(votes) == 0 {
		return best, 0
	}
	for i := NumBuckets - 1; i >= 0; i-- {
		// Iterate high-to-low with >= so equal scores settle on the
		// lowest ordinal, the conservative bucket.
		if votes[i] >= bestScore {
			best = Bucket(i)
			bestScore = votes[i]
		}
	}
	return best, bestScore
}

func total(v [NumBuckets]float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum
}
