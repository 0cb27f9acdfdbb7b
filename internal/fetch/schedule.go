package fetch

import (
	"errors"
	"fmt"
	"time"
)

var errEmptySchedule = errors.New("retry schedule must have at least one entry")

// Schedule is an ordered, finite list of per-attempt durations consumed
// front to back. It is immutable once constructed.
type Schedule struct {
	waits []time.Duration
}

// NewSchedule copies waits into a Schedule. Every entry must be positive.
func NewSchedule(waits ...time.Duration) (Schedule, error) {
	if len(waits) == 0 {
		return Schedule{}, errEmptySchedule
	}
	out := make([]time.Duration, len(waits))
	for i, w := range waits {
		if w <= 0 {
			return Schedule{}, fmt.Errorf("retry schedule entry %d: duration %s must be positive", i, w)
		}
		out[i] = w
	}
	return Schedule{waits: out}, nil
}

// DefaultSchedule starts at the 300s monclient authentication timeout and
// shrinks from there.
func DefaultSchedule() Schedule {
	return Schedule{waits: []time.Duration{
		300 * time.Second,
		200 * time.Second,
		100 * time.Second,
		50 * time.Second,
	}}
}

func (s Schedule) Len() int { return len(s.waits) }

func (s Schedule) At(i int) time.Duration { return s.waits[i] }

// Durations returns a copy of the entries.
func (s Schedule) Durations() []time.Duration {
	out := make([]time.Duration, len(s.waits))
	copy(out, s.waits)
	return out
}

// Total is the sum of every entry.
func (s Schedule) Total() time.Duration {
	var sum time.Duration
	for _, w := range s.waits {
		sum += w
	}
	return sum
}

func (s Schedule) String() string {
	return fmt.Sprint(s.waits)
}

type phase int

const (
	phaseAttempting phase = iota
	phaseSucceeded
	phaseExhausted
)

func (p phase) String() string {
	switch p {
	case phaseAttempting:
		return "attempting"
	case phaseSucceeded:
		return "succeeded"
	case phaseExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// state drives one Fetch call: Attempting(n remaining) moves to Succeeded
// on a good report or to Exhausted once the last entry has failed. It is
// owned by a single Fetch call and never shared.
type state struct {
	schedule Schedule
	next     int
	phase    phase
}

func newState(s Schedule) *state {
	return &state{schedule: s, phase: phaseAttempting}
}

func (st *state) attempting() bool { return st.phase == phaseAttempting }

func (st *state) remaining() int { return st.schedule.Len() - st.next }

// attempt is the 1-based number of the attempt about to run.
func (st *state) attempt() int { return st.next + 1 }

// timeout is the hard limit for the attempt about to run.
func (st *state) timeout() time.Duration { return st.schedule.At(st.next) }

func (st *state) succeed() { st.phase = phaseSucceeded }

// fail consumes the current entry and reports whether another attempt is
// left.
func (st *state) fail() bool {
	st.next++
	if st.next >= st.schedule.Len() {
		st.phase = phaseExhausted
		return false
	}
	return true
}
