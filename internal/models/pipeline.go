package models

import "time"

// StepStatus represents the state of a single pipeline step
type StepStatus string

const (
	StepStatusPending  StepStatus = "pending"
	StepStatusRunning  StepStatus = "running"
	StepStatusComplete StepStatus = "complete"
	StepStatusError    StepStatus = "error"
	StepStatusSkipped  StepStatus = "skipped"
)

// RunStatus represents the overall state of a pipeline run
type RunStatus string

const (
	RunStatusIdle      RunStatus = "idle"
	RunStatusRunning   RunStatus = "running"
	RunStatusComplete  RunStatus = "complete"
	RunStatusError     RunStatus = "error"
	RunStatusCancelled RunStatus = "cancelled"
)

// Step identifiers for the three pipeline stages
const (
	StepExtract = "extract"
	StepAnalyze = "analyze"
	StepCombine = "combine"
)

// PipelineStep is one stage of a processing run
type PipelineStep struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      StepStatus `json:"status"`
	Progress    int        `json:"progress"` // 0-100
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// PipelineRun is one execution of a configured subset of pipeline stages
// over a fixed file set. Runs are never resumed; a new run replaces the old.
type PipelineRun struct {
	ID              string          `json:"id"` // run_{uuid}
	Steps           []*PipelineStep `json:"steps"`
	Status          RunStatus       `json:"status"`
	OverallProgress int             `json:"overall_progress"` // derived: completed steps / total steps
	StartTime       *time.Time      `json:"start_time,omitempty"`
	EndTime         *time.Time      `json:"end_time,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// Terminal reports whether the run has reached a final state
func (r *PipelineRun) Terminal() bool {
	return r.Status == RunStatusComplete || r.Status == RunStatusError || r.Status == RunStatusCancelled
}

// AnalyzeOptions configures the analyze stage
type AnalyzeOptions struct {
	Provider ProviderTag `json:"provider"`
	Model    string      `json:"model"`
}

// PipelineConfig selects which stages a run executes and how.
// A nil Analyze or Combine still produces the step when the flag is set;
// the step completes as a no-op (deliberate, not an error).
type PipelineConfig struct {
	Extract      bool                `json:"extract"`
	Analyze      bool                `json:"analyze"`
	Combine      bool                `json:"combine"`
	AnalyzeOpts  *AnalyzeOptions     `json:"analyze_options,omitempty"`
	CombineOpts  *CombinationOptions `json:"combine_options,omitempty"`
	DocumentName string              `json:"document_name,omitempty"`
}

// Enabled returns the ordered step ids this config produces
func (c *PipelineConfig) Enabled() []string {
	steps := make([]string, 0, 3)
	if c.Extract {
		steps = append(steps, StepExtract)
	}
	if c.Analyze {
		steps = append(steps, StepAnalyze)
	}
	if c.Combine {
		steps = append(steps, StepCombine)
	}
	return steps
}
