package model

import (
	"fmt"
	"time"
)

// RunStatus is the final state of a recorded import run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// RunStatuses lists every run status.
var RunStatuses = []RunStatus{RunSucceeded, RunPartial, RunFailed}

// ValidateRunStatus returns an error if s is not a known run status.
func ValidateRunStatus(s RunStatus) error {
	for _, v := range RunStatuses {
		if s == v {
			return nil
		}
	}
	return fmt.Errorf("invalid run status %q: must be one of %v", s, RunStatuses)
}

// Icon returns a single-character icon for the status.
func (s RunStatus) Icon() string {
	switch s {
	case RunSucceeded:
		return "✔"
	case RunPartial:
		return "◐"
	default:
		return "✘"
	}
}

// Color returns a color name string suitable for terminal rendering.
func (s RunStatus) Color() string {
	switch s {
	case RunSucceeded:
		return "green"
	case RunPartial:
		return "yellow"
	default:
		return "red"
	}
}

// Run is one recorded content import.
type Run struct {
	ID           string        `json:"id"`
	DemoID       string        `json:"demo_id"`
	Admin        string        `json:"admin"`
	SourcePrefix string        `json:"source_prefix"`
	TargetPrefix string        `json:"target_prefix"`
	Imported     int           `json:"imported"`
	Skipped      int           `json:"skipped"`
	Status       RunStatus     `json:"status"`
	Errors       []string      `json:"errors,omitempty"`
	Tables       []TableResult `json:"tables,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
}

// Duration returns how long the run took.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// StatusFor derives the run status from an import result and the error
// returned alongside it.
func StatusFor(res *ImportResult, err error) RunStatus {
	switch {
	case res == nil:
		return RunFailed
	case err != nil || res.Failed():
		return RunPartial
	default:
		return RunSucceeded
	}
}

// NewRun builds the journal record of a finished import.
func NewRun(demoID, admin string, res *ImportResult, err error, started, finished time.Time) *Run {
	run := &Run{
		DemoID:     demoID,
		Admin:      admin,
		Status:     StatusFor(res, err),
		StartedAt:  started,
		FinishedAt: finished,
	}
	switch {
	case res != nil:
		run.SourcePrefix = res.Prefix.Source
		run.TargetPrefix = res.Prefix.Target
		run.Imported = res.Imported
		run.Skipped = res.Skipped
		run.Errors = res.Errors
		run.Tables = res.Tables
	case err != nil:
		run.Errors = []string{err.Error()}
	}
	return run
}
