package engine

import (
	"sort"
	"sync"
)

// FlagTracker is the learner-local set of questions marked for review.
// Flags never leave the gateway: they are not synced to the answer log and
// are dropped when the attempt ends.
type FlagTracker struct {
	mu      sync.Mutex
	flagged map[uint]struct{}
}

func NewFlagTracker() *FlagTracker {
	return &FlagTracker{flagged: make(map[uint]struct{})}
}

// Toggle flips the flag for a question and returns the new state.
func (f *FlagTracker) Toggle(questionID uint) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.flagged[questionID]; ok {
		delete(f.flagged, questionID)
		return false
	}
	f.flagged[questionID] = struct{}{}
	return true
}

// Flag marks a question for review.
func (f *FlagTracker) Flag(questionID uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flagged[questionID] = struct{}{}
}

// Unflag clears the mark.
func (f *FlagTracker) Unflag(questionID uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.flagged, questionID)
}

func (f *FlagTracker) IsFlagged(questionID uint) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.flagged[questionID]
	return ok
}

// All returns the flagged question IDs in ascending order.
func (f *FlagTracker) All() []uint {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]uint, 0, len(f.flagged))
	for id := range f.flagged {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Reset drops all flags.
func (f *FlagTracker) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flagged = make(map[uint]struct{})
}
