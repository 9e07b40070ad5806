package domain

import "time"

// Stage names one step of a batch run.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageAggregate Stage = "aggregate"
	StagePackage   Stage = "package"
	StageCheck     Stage = "check"
)

// UnitFailure records one failed unit of work. Failures of independent units
// never abort their siblings.
type UnitFailure struct {
	Unit  string `json:"unit"`
	Error string `json:"error"`
}

// RunReport summarizes one batch run for downstream consumers.
type RunReport struct {
	ID         string        `json:"id"`
	Stage      Stage         `json:"stage"`
	Version    string        `json:"version"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Units      int           `json:"units"`
	Failures   []UnitFailure `json:"failures,omitempty"`

	// Packaging and check results.
	ObjectsWritten int      `json:"objects_written,omitempty"`
	ObjectsFailed  []string `json:"objects_failed,omitempty"`
	Missing        []string `json:"missing,omitempty"`
	Unexpected     []string `json:"unexpected,omitempty"`
}

// OK reports whether every unit succeeded and every object landed.
func (r RunReport) OK() bool {
	return len(r.Failures) == 0 && len(r.ObjectsFailed) == 0 && len(r.Missing) == 0
}
