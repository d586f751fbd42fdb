package models

import "time"

// Listing represents one row of a listing page
type Listing struct {
	ID                   int64
	Category             string
	Title                string
	// TorrentHref identifies the listing: the torrent download link on
	// index tables, the absolute thread link on forum pages
	TorrentHref          string
	MagnetHref           string
	Size                 string
	Date                 string
	HTML                 string
	PushedToTransmission bool
	CreatedAt            time.Time
}

// Key returns the value that identifies a listing across pages and runs
func (l Listing) Key() string {
	return l.TorrentHref
}

// PageResult is the ordered set of listings extracted from one page
type PageResult struct {
	Page     int
	URL      string
	Listings []Listing
}

// InsertOutcome reports what happened to a single listing on insert
type InsertOutcome string

const (
	OutcomeInserted  InsertOutcome = "inserted"
	OutcomeDuplicate InsertOutcome = "duplicate"
)

// RunStatus is the lifecycle state of a crawl run
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// RunLog is the persisted audit record of one crawl run
type RunLog struct {
	ID             int64
	StartTime      time.Time
	EndTime        *time.Time
	DurationMs     int64
	TotalPages     int
	TotalItems     int
	NewItems       int
	DuplicateItems int
	Status         RunStatus
	ErrorMessage   string
}
