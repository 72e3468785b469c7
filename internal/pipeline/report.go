package pipeline

import (
	"time"

	"github.com/couchcryptid/air-quality-analysis/internal/processing"
)

// Report describes one completed run.
type Report struct {
	RunID       string
	GeneratedAt time.Time
	InputPath   string
	OutputDir   string
	RowsLoaded  int

	Analysis   Analysis
	Artifacts  []string
	SinkErrors []*SinkError
}

// SinkFailed reports whether any output could not be written.
func (r Report) SinkFailed() bool { return len(r.SinkErrors) > 0 }

// ValidationResult is the outcome of a load-and-clean dry run.
type ValidationResult struct {
	Rows    int
	Columns []string
	First   time.Time
	Last    time.Time
	Clean   processing.CleanStats
}
