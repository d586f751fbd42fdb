package pagination

import (
	"errors"
	"fmt"
)

const (
	// DefaultSkipStride is how many pages are deferred after a page that
	// shows duplicates.
	DefaultSkipStride = 9

	// DefaultRecentWindow is how many pages after a backtracking trigger are
	// exempt from starting a new skip.
	DefaultRecentWindow = 9

	noSkipYet = -1
)

// ErrInvalidRange is returned for a page range that does not satisfy
// 1 <= start <= end.
var ErrInvalidRange = errors.New("invalid page range")

// Params are the fixed inputs of one crawl schedule.
type Params struct {
	Start        int
	End          int
	SkipStride   int
	RecentWindow int
}

// Validate checks the page range and the heuristic constants.
func (p Params) Validate() error {
	if p.Start < 1 || p.End < p.Start {
		return fmt.Errorf("%w: start=%d end=%d", ErrInvalidRange, p.Start, p.End)
	}
	if p.SkipStride < 0 || p.RecentWindow < 0 {
		return fmt.Errorf("skip stride and recent window must be >= 0 (got %d, %d)", p.SkipStride, p.RecentWindow)
	}
	return nil
}

// Phase is the named state of the schedule.
type Phase string

const (
	PhaseNormal       Phase = "normal"
	PhaseSkipping     Phase = "skipping"
	PhaseBacktracking Phase = "backtracking"
)

// State is the mutable schedule of one run.
type State struct {
	Cursor        int
	Skipped       []int
	Backtracking  bool
	LastSkipStart int
	// ResumeAt is where the cursor continues once backtracking drains the
	// queue; zero when no backtracking sweep is pending. It is the page after
	// the one that started the sweep, so a skip at 6 that backtracks from 16
	// resumes at 17 without revisiting 16.
	ResumeAt int
}

// NewState returns the initial state for a run.
func NewState(p Params) State {
	return State{
		Cursor:        p.Start,
		Skipped:       []int{},
		LastSkipStart: noSkipYet,
	}
}

// Phase derives the named phase from the state.
func (s State) Phase() Phase {
	switch {
	case s.Backtracking:
		return PhaseBacktracking
	case len(s.Skipped) > 0:
		return PhaseSkipping
	default:
		return PhaseNormal
	}
}

// Done reports whether every page of the range has been scheduled.
func (s State) Done(p Params) bool {
	return s.Cursor > p.End && len(s.Skipped) == 0
}

// Observation is what the controller learned from the page at the cursor.
type Observation struct {
	Page       int
	Pattern    Pattern
	Duplicates int
	Failed     bool
}

// Action names the branch a transition took.
type Action string

const (
	ActionAdvance   Action = "advance"
	ActionGuarded   Action = "guarded"
	ActionSkip      Action = "skip"
	ActionBacktrack Action = "backtrack"
	ActionDrain     Action = "drain"
	ActionResume    Action = "resume"
)

// Decision describes a transition for logging and metrics.
type Decision struct {
	Action Action
	Next   int
	Queued []int
}

// Transition computes the state that follows an observation. It never
// mutates s.
func Transition(p Params, s State, obs Observation) (State, Decision) {
	next := s
	next.Skipped = append([]int(nil), s.Skipped...)

	var d Decision
	switch {
	case obs.Failed && !s.Backtracking:
		next.Cursor = obs.Page + 1
		d.Action = ActionAdvance

	case !obs.Failed && obs.Duplicates > 0 && !s.Backtracking:
		d = decideOnDuplicates(p, &next, obs)

	default:
		d = continueSweep(&next, obs)
	}

	// Pages deferred near the end of the range are still owed a visit.
	if next.Cursor > p.End && len(next.Skipped) > 0 && !next.Backtracking {
		next.Backtracking = true
		next.ResumeAt = next.Cursor
		next.Cursor = next.pop()
		d.Action = ActionBacktrack
	}

	d.Next = next.Cursor
	return next, d
}

func decideOnDuplicates(p Params, s *State, obs Observation) Decision {
	if obs.Pattern == PatternStartDuplicateThenNew {
		s.Cursor = obs.Page + 1
		return Decision{Action: ActionAdvance}
	}

	if s.LastSkipStart != noSkipYet && obs.Page <= s.LastSkipStart+p.RecentWindow {
		s.Cursor = obs.Page + 1
		return Decision{Action: ActionGuarded}
	}

	queued := make([]int, 0, p.SkipStride)
	for i := 1; i <= p.SkipStride; i++ {
		if page := obs.Page + i; page < p.End {
			queued = append(queued, page)
		}
	}
	if len(queued) == 0 {
		s.Cursor = obs.Page + 1
		return Decision{Action: ActionAdvance}
	}

	// Appended, never reset: pages already pending still owe a visit.
	s.Skipped = append(s.Skipped, queued...)
	s.Cursor = obs.Page + len(queued) + 1
	return Decision{Action: ActionSkip, Queued: queued}
}

func continueSweep(s *State, obs Observation) Decision {
	switch {
	case !s.Backtracking && len(s.Skipped) > 0:
		s.Backtracking = true
		s.LastSkipStart = obs.Page
		s.ResumeAt = obs.Page + 1
		s.Cursor = s.pop()
		return Decision{Action: ActionBacktrack}

	case s.Backtracking && len(s.Skipped) > 0:
		s.Cursor = s.pop()
		return Decision{Action: ActionDrain}

	case s.Backtracking:
		s.Backtracking = false
		s.Cursor = max(obs.Page+1, s.ResumeAt)
		s.ResumeAt = 0
		return Decision{Action: ActionResume}

	default:
		s.Cursor = obs.Page + 1
		return Decision{Action: ActionAdvance}
	}
}

func (s *State) pop() int {
	page := s.Skipped[0]
	s.Skipped = s.Skipped[1:]
	return page
}
