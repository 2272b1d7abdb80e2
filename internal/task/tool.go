package task

import (
	"context"
	"maps"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
)

// Category groups tools by what they do to a host.
type Category string

const (
	CategoryInspect   Category = "inspect"
	CategoryInstall   Category = "install"
	CategoryLifecycle Category = "lifecycle"
	CategoryValidate  Category = "validate"
)

// Tool is a single named capability that can be executed against a host.
// Implementations are stateless; per-invocation input arrives through Params.
type Tool interface {
	// Name returns the registry name, e.g. "disk_check".
	Name() string
	// Description returns a one-line human readable summary.
	Description() string
	Category() Category
	// Params returns the parameter schema used to resolve invocation input.
	Params() []Param
	// Execute runs the tool. It never panics and always returns a Result,
	// reporting failures through Result.Status and Result.Err.
	Execute(ctx context.Context, conn server.Connection, p Params) Result
}

// Status is the outcome of a step or host.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusSkipped Status = "skipped"
)

// Result is the outcome of one tool execution.
type Result struct {
	Status    Status         `json:"status" yaml:"status"`
	Message   string         `json:"message" yaml:"message"`
	Details   map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
	RawOutput string         `json:"raw_output,omitempty" yaml:"raw_output,omitempty"`
	Error     string         `json:"error,omitempty" yaml:"error,omitempty"`
	// Err is the typed cause of a failure.
	Err error `json:"-" yaml:"-"`
}

func Success(message string, details map[string]any) Result {
	return Result{Status: StatusSuccess, Message: message, Details: copyDetails(details)}
}

func Failure(message string, err error, details map[string]any) Result {
	r := Result{Status: StatusFailure, Message: message, Details: copyDetails(details), Err: err}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

func Skipped(message string, details map[string]any) Result {
	return Result{Status: StatusSkipped, Message: message, Details: copyDetails(details)}
}

// WithRawOutput returns a copy of r carrying the remote command output.
func (r Result) WithRawOutput(output string) Result {
	r.Details = copyDetails(r.Details)
	r.RawOutput = output
	return r
}

// Detail returns a single detail value.
func (r Result) Detail(key string) (any, bool) {
	v, ok := r.Details[key]
	return v, ok
}

// Clone returns a deep copy of the details map so callers cannot mutate r.
func (r Result) Clone() Result {
	r.Details = copyDetails(r.Details)
	return r
}

func copyDetails(details map[string]any) map[string]any {
	if len(details) == 0 {
		return nil
	}
	return maps.Clone(details)
}
