package main

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/talgya/barkeep/internal/situation"
)

// lineSelector is the demo content source: canned lines per category,
// with a callback phrasing when a running gag was chosen. A real game
// replaces this with its dialogue system.
type lineSelector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

var linesByCategory = map[situation.Category][]string{
	situation.CategoryDanger: {
		"Behind you!",
		"Incoming — get to cover!",
		"That's not friendly. Move!",
	},
	situation.CategoryPostDanger: {
		"Clear. You good?",
		"That was closer than I'd like.",
	},
	situation.CategorySuccess: {
		"Nice work. Didn't doubt you for a second.",
		"And that's how it's done.",
		"Chalk another one up.",
	},
	situation.CategoryFailure: {
		"Well. We don't talk about that one.",
		"I've seen worse. Barely.",
		"The important thing is nobody saw it. Except me.",
	},
	situation.CategorySurprise: {
		"Did NOT expect that.",
		"Okay, that's new.",
	},
	situation.CategoryRoutine: {
		"Quiet out here.",
		"Still with you.",
	},
}

func newLineSelector(seed int64) *lineSelector {
	return &lineSelector{rng: rand.New(rand.NewSource(seed + 200))}
}

func (s *lineSelector) Select(_ context.Context, cat situation.Category, gagID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := linesByCategory[cat]
	if len(lines) == 0 {
		return "", nil
	}
	line := lines[s.rng.Intn(len(lines))]
	if gagID != "" {
		line = fmt.Sprintf("%s ...just like last time, huh?", line)
	}
	return line, nil
}
