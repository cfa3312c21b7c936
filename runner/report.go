package runner

import (
	"time"

	"sqlsim/generation"
)

// Report summarizes one simulation run for the CLI and its formatters.
type Report struct {
	Seed         int64                        `json:"seed"`
	Interactions int                          `json:"interactions"`
	Steps        int                          `json:"steps"`
	Stats        generation.InteractionStats  `json:"stats"`
	Elapsed      time.Duration                `json:"elapsed_ns"`
	Failure      string                       `json:"failure,omitempty"`
}

// OK reports whether the run completed with no failed assertion.
func (r *Report) OK() bool { return r.Failure == "" }
