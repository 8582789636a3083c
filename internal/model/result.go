package model

import "time"

// TableOutcome is the result of importing a single dump file.
type TableOutcome string

const (
	OutcomeImported TableOutcome = "imported"
	OutcomeSkipped  TableOutcome = "skipped"
	OutcomeFailed   TableOutcome = "failed"
)

// Icon returns a single-character icon for the outcome.
func (o TableOutcome) Icon() string {
	switch o {
	case OutcomeImported:
		return "✔"
	case OutcomeSkipped:
		return "–"
	default:
		return "✘"
	}
}

// Color returns a color name string suitable for terminal rendering.
func (o TableOutcome) Color() string {
	switch o {
	case OutcomeImported:
		return "green"
	case OutcomeSkipped:
		return "yellow"
	default:
		return "red"
	}
}

// TableResult describes what happened to one dump file.
type TableResult struct {
	Table       string       `json:"table"`
	Class       TableClass   `json:"class"`
	Outcome     TableOutcome `json:"outcome"`
	Created     bool         `json:"created"`
	Statements  int          `json:"statements"`
	SkippedRows int          `json:"skipped_rows"`
	Options     int          `json:"options,omitempty"`
	Reason      string       `json:"reason,omitempty"`
	Errors      []string     `json:"errors,omitempty"`
}

// ImportResult is accumulated across all dump files of a run and is the sole
// observable outcome of the content step.
type ImportResult struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []string      `json:"errors"`
	Prefix   PrefixMapping `json:"prefix"`
	Tables   []TableResult `json:"tables,omitempty"`
	Duration time.Duration `json:"duration"`
	Healed   []string      `json:"healed,omitempty"`
}

// Failed reports whether any statement-level error was recorded.
func (r *ImportResult) Failed() bool {
	return len(r.Errors) > 0
}
