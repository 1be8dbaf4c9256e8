package engine

import "time"

// cooldownLedger tracks when each interruption id last fired so the same
// condition is not surfaced again within the window. Checking and recording
// are separate operations: only the signal actually selected for delivery
// gets its window started, never a candidate that merely evaluated non-nil.
//
// Entries are never pruned; the ledger lives and dies with one engine
// instance and a stale entry is indistinguishable from "fired long ago".
type cooldownLedger struct {
	window time.Duration
	fired  map[string]time.Time
}

func newCooldownLedger(window time.Duration) *cooldownLedger {
	return &cooldownLedger{
		window: window,
		fired:  make(map[string]time.Time),
	}
}

// isSuppressed reports whether id fired within the window before now.
// Pure read; does not extend the window.
func (l *cooldownLedger) isSuppressed(id string, now time.Time) bool {
	last, ok := l.fired[id]
	if !ok {
		return false
	}
	return now.Sub(last) < l.window
}

// recordFired starts (or restarts) the suppression window for id.
func (l *cooldownLedger) recordFired(id string, now time.Time) {
	l.fired[id] = now
}

// size returns the number of tracked ids.
func (l *cooldownLedger) size() int {
	return len(l.fired)
}

// activeSet tracks delivered-but-unacknowledged interruption ids. It is
// bookkeeping for callers only: suppression is cooldown-based, so an open
// interruption about condition X does not prevent a cooldown-expired
// re-fire of X.
type activeSet struct {
	open map[string]*Interruption
}

func newActiveSet() *activeSet {
	return &activeSet{open: make(map[string]*Interruption)}
}

func (s *activeSet) add(in *Interruption) {
	s.open[in.ID] = in
}

func (s *activeSet) remove(id string) {
	delete(s.open, id)
}

func (s *activeSet) ids() []string {
	out := make([]string, 0, len(s.open))
	for id := range s.open {
		out = append(out, id)
	}
	return out
}
