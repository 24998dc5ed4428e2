package model

import "time"

// Status is the lifecycle state of a run.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
)

// Terminal reports whether the run has finished.
func (s Status) Terminal() bool { return s == StatusPassed || s == StatusFailed }

// Run is a submitted manifest waiting for, or undergoing, evaluation.
type Run struct {
	ID          string    `json:"id"`
	Manifest    Manifest  `json:"manifest"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Tally counts the outcomes of one check across a run.
type Tally struct {
	Check         string `json:"check"`
	Checked       int    `json:"checked"`
	Passed        int    `json:"passed"`
	Violations    int    `json:"violations"`
	Preconditions int    `json:"preconditions"`
}

// Finding is a failed per-record check.
type Finding struct {
	Check    string `json:"check"`
	Index    int    `json:"index"`
	RecordID string `json:"record_id,omitempty"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

// FatalFinding is a failed dataset invariant.
type FatalFinding struct {
	Check     string `json:"check"`
	Invariant string `json:"invariant"`
	Message   string `json:"message"`
}

// Report is the outcome of a run.
type Report struct {
	RunID             string         `json:"run_id"`
	Name              string         `json:"name"`
	Status            Status         `json:"status"`
	Strategy          string         `json:"strategy,omitempty"`
	Tallies           []Tally        `json:"tallies,omitempty"`
	Findings          []Finding      `json:"findings,omitempty"`
	FindingsTruncated bool           `json:"findings_truncated,omitempty"`
	Fatal             []FatalFinding `json:"fatal,omitempty"`
	Reason            string         `json:"reason,omitempty"`
	SubmittedAt       time.Time      `json:"submitted_at"`
	StartedAt         *time.Time     `json:"started_at,omitempty"`
	FinishedAt        *time.Time     `json:"finished_at,omitempty"`
}

// Violations returns the number of failed per-record checks across all tallies.
func (r *Report) Violations() int {
	n := 0
	for _, t := range r.Tallies {
		n += t.Violations + t.Preconditions
	}
	return n
}

// PendingReport is the report stored when a run is accepted.
func PendingReport(run Run) Report {
	return Report{
		RunID:       run.ID,
		Name:        run.Manifest.Name,
		Status:      StatusPending,
		SubmittedAt: run.SubmittedAt,
	}
}

// Submission acknowledges an accepted manifest.
type Submission struct {
	RunID     string `json:"run_id"`
	Status    Status `json:"status"`
	Duplicate bool   `json:"duplicate"`
}
