package types

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// FetchOutcome is the result class of one connector call.
type FetchOutcome string

const (
	OutcomeSuccess FetchOutcome = "success"
	OutcomeFailure FetchOutcome = "failure"
)

// OutcomeFromError maps a fetch error to its outcome.
func OutcomeFromError(err error) FetchOutcome {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// RunKind distinguishes discovery batches from tracking runs.
type RunKind string

const (
	RunKindDiscovery RunKind = "discovery"
	RunKindTrack     RunKind = "track"
)

// RunStatus constants
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RunCounters are the per-run totals.
type RunCounters struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	New       int `json:"new"`
	Closed    int `json:"closed"`
}

// Add accumulates other into c.
func (c *RunCounters) Add(other RunCounters) {
	c.Attempted += other.Attempted
	c.Succeeded += other.Succeeded
	c.Failed += other.Failed
	c.New += other.New
	c.Closed += other.Closed
}

// Run is one execution of discovery or tracking. Only FinishedAt, Status,
// Counters and Error change after creation, and only once.
type Run struct {
	ID         uuid.UUID   `json:"id"`
	Kind       RunKind     `json:"kind"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Status     string      `json:"status"`
	Counters   RunCounters `json:"counters"`
	Error      *string     `json:"error,omitempty"`
}

// SourceRun is the write-once telemetry of one (company, source) attempt within a run.
type SourceRun struct {
	ID           uuid.UUID    `json:"id"`
	RunID        uuid.UUID    `json:"run_id"`
	CompanyID    uuid.UUID    `json:"company_id"`
	SourceType   SourceType   `json:"source_type"`
	Outcome      FetchOutcome `json:"outcome"`
	PostingCount int          `json:"posting_count"`
	NewCount     int          `json:"new_count"`
	ClosedCount  int          `json:"closed_count"`
	ErrorDetail  *string      `json:"error_detail,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
}

// ErrRunFinished is returned when a finished run is finished again.
var ErrRunFinished = errors.New("run already finished")

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")
