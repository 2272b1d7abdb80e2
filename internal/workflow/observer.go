package workflow

import (
	"log/slog"
	"time"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task"
)

// State is the lifecycle position of a host run.
type State string

const (
	StateNotStarted State = "not_started"
	StateConnecting State = "connecting"
	StateRunning    State = "running"
	StateAborted    State = "aborted"
	StateCompleted  State = "completed"
	StateClosed     State = "closed"
)

// Observer receives progress callbacks from the engine. Callbacks for
// different hosts may arrive concurrently.
type Observer interface {
	HostStarted(t server.Target, workflow string)
	StateChanged(host string, state State, step int)
	StepFinished(host string, step StepReport)
	HostFinished(report *HostReport)
}

// NopObserver ignores every callback.
type NopObserver struct{}

func (NopObserver) HostStarted(server.Target, string) {}
func (NopObserver) StateChanged(string, State, int) {}
func (NopObserver) StepFinished(string, StepReport) {}
func (NopObserver) HostFinished(*HostReport) {}

type logObserver struct {
	logger *slog.Logger
}

// NewLogObserver reports progress through logger.
func NewLogObserver(logger *slog.Logger) Observer {
	return &logObserver{logger: logger}
}

func (o *logObserver) HostStarted(t server.Target, workflow string) {
	o.logger.Info("Starting workflow", "server", t.ID(), "address", t.Address(), "workflow", workflow)
}

func (o *logObserver) StateChanged(host string, state State, step int) {
	o.logger.Debug("Host state changed", "server", host, "state", state, "step", step)
}

func (o *logObserver) StepFinished(host string, step StepReport) {
	args := []any{"server", host, "step", step.Step, "status", step.Result.Status, "duration", step.Duration.Round(time.Millisecond), "message", step.Result.Message}
	switch {
	case step.Result.Status != task.StatusFailure:
		o.logger.Info("Step finished", args...)
	case step.Policy == PolicyAdvisory:
		o.logger.Warn("Advisory step failed", append(args, "error", step.Result.Error)...)
	default:
		o.logger.Error("Step failed", append(args, "error", step.Result.Error)...)
	}
}

func (o *logObserver) HostFinished(report *HostReport) {
	args := []any{"server", report.Host, "status", report.Status, "duration", report.Duration().Round(time.Millisecond)}
	if report.Partial {
		args = append(args, "partial", true)
	}
	if report.Status == task.StatusFailure {
		o.logger.Error("Workflow finished", args...)
		return
	}
	o.logger.Info("Workflow finished", args...)
}
