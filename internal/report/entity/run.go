package entity

import "time"

// Run statuses. A run leaves StatusProcessing only for one of the terminal states.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusPartial    = "partial"
	StatusFailed     = "failed"
)

// Ingestion sources.
const (
	SourceScrape = "scrape"
	SourceText   = "text"
	SourceDryRun = "dry_run"
)

// RowCounts reports how many rows an ingestion wrote per table.
type RowCounts struct {
	Reports  int `json:"reports"`
	Scores   int `json:"scores"`
	Accounts int `json:"accounts"`
	Entities int `json:"entities"`
}

// Total is the number of normalized rows, excluding the report document itself.
func (c RowCounts) Total() int { return c.Scores + c.Accounts + c.Entities }

// Run is the ledger entry for one ingestion of (RunID, UserID).
type Run struct {
	RunID           string     `json:"runId"`
	UserID          string     `json:"userId"`
	Source          string     `json:"source"`
	Status          string     `json:"status"`
	RowCounts       RowCounts  `json:"rowCounts"`
	MissingBureaus  []string   `json:"missingBureaus,omitempty"`
	Warnings        []string   `json:"warnings,omitempty"`
	ErrorCode       string     `json:"errorCode,omitempty"`
	Error           string     `json:"error,omitempty"`
	ConfidenceScore *int       `json:"confidenceScore,omitempty"`
	StartedAt       time.Time  `json:"startedAt"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
}

// Terminal reports whether the run has reached a final status.
func (r Run) Terminal() bool {
	switch r.Status {
	case StatusCompleted, StatusPartial, StatusFailed:
		return true
	}
	return false
}

// RawRecord is the verbatim upstream payload kept for replay.
type RawRecord struct {
	RunID       string
	UserID      string
	CollectedAt time.Time
	Source      string
	Payload     []byte
	Digest      string
	StoredAt    time.Time
}
