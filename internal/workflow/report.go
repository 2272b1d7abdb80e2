package workflow

import (
	"time"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task"
)

// ConnectStep is the name of the synthetic first step of every host report.
const ConnectStep = "connect"

// Reasons recorded in the details of skipped steps and aborted hosts.
const (
	ReasonCancelled   = "cancelled"
	ReasonHostTimeout = "host_timeout"
	ReasonBlocked     = "blocked"
)

// StepReport is the outcome of one step on one host.
type StepReport struct {
	Step     string        `json:"step" yaml:"step"`
	Tool     string        `json:"tool" yaml:"tool"`
	Policy   Policy        `json:"policy" yaml:"policy"`
	Result   task.Result   `json:"result" yaml:"result"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// HostReport is the ordered record of a workflow run on one host.
type HostReport struct {
	Host       string         `json:"host" yaml:"host"`
	Address    string         `json:"address" yaml:"address"`
	Workflow   string         `json:"workflow" yaml:"workflow"`
	Status     task.Status    `json:"status" yaml:"status"`
	Partial    bool           `json:"partial,omitempty" yaml:"partial,omitempty"`
	Details    map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
	Steps      []StepReport   `json:"steps" yaml:"steps"`
	StartedAt  time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time      `json:"finished_at" yaml:"finished_at"`
}

// Step returns the report of the named step.
func (r *HostReport) Step(name string) (StepReport, bool) {
	for _, s := range r.Steps {
		if s.Step == name {
			return s, true
		}
	}
	return StepReport{}, false
}

func (r *HostReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failed returns the steps whose result is a failure.
func (r *HostReport) Failed() []StepReport {
	var out []StepReport
	for _, s := range r.Steps {
		if s.Result.Status == task.StatusFailure {
			out = append(out, s)
		}
	}
	return out
}
