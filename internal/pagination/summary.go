package pagination

import (
	"time"

	"github.com/google/uuid"

	"listing-crawler/pkg/models"
)

// Summary accumulates the counters of one run.
type Summary struct {
	RunID        string
	Start        int
	End          int
	PagesVisited int
	ItemsSeen    int
	Inserted     int
	Duplicates   int
	FailedItems  int
	FailedPages  int
	Skips        int
	Backtracks   int
	Status       models.RunStatus
	Err          error
	StartedAt    time.Time
	FinishedAt   time.Time
	Duration     time.Duration
}

// PageStats are the per-page counts folded into a Summary.
type PageStats struct {
	Items      int
	Inserted   int
	Duplicates int
	Failed     int
}

// NewSummary starts a running summary for the given range.
func NewSummary(start, end int, now time.Time) *Summary {
	return &Summary{
		RunID:     uuid.NewString(),
		Start:     start,
		End:       end,
		Status:    models.StatusRunning,
		StartedAt: now,
	}
}

// ObservePage adds the counts of a successfully fetched page.
func (s *Summary) ObservePage(st PageStats) {
	s.PagesVisited++
	s.ItemsSeen += st.Items
	s.Inserted += st.Inserted
	s.Duplicates += st.Duplicates
	s.FailedItems += st.Failed
}

// ObserveFailedPage counts a page whose fetch failed.
func (s *Summary) ObserveFailedPage() {
	s.FailedPages++
}

// ObserveDecision counts skip and backtracking triggers.
func (s *Summary) ObserveDecision(d Decision) {
	switch d.Action {
	case ActionSkip:
		s.Skips++
	case ActionBacktrack:
		s.Backtracks++
	}
}

// Finalize sets the terminal status and timing.
func (s *Summary) Finalize(status models.RunStatus, err error, now time.Time) {
	s.Status = status
	s.Err = err
	s.FinishedAt = now
	s.Duration = now.Sub(s.StartedAt)
}

// ErrorMessage returns the error text or an empty string.
func (s *Summary) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}
