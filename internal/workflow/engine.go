package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task"
)

const (
	DefaultHostTimeout    = 30 * time.Minute
	DefaultCommandTimeout = 10 * time.Minute
)

// Engine runs one workflow definition against one host at a time.
// It is safe for concurrent use; every run owns its own connection.
type Engine struct {
	connector      server.Connector
	registry       *task.Registry
	observer       Observer
	hostTimeout    time.Duration
	commandTimeout time.Duration
}

type Option func(*Engine)

func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithHostTimeout bounds a whole host run. Zero or less disables the bound.
func WithHostTimeout(d time.Duration) Option {
	return func(e *Engine) { e.hostTimeout = d }
}

// WithCommandTimeout sets the timeout for remote commands run without an explicit one.
func WithCommandTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.commandTimeout = d
		}
	}
}

func NewEngine(connector server.Connector, registry *task.Registry, opts ...Option) *Engine {
	e := &Engine{
		connector:      connector,
		registry:       registry,
		observer:       NopObserver{},
		hostTimeout:    DefaultHostTimeout,
		commandTimeout: DefaultCommandTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Plan is a definition resolved against one target: every tool looked up and
// every parameter coerced. A Plan is ready to execute without further checks.
type Plan struct {
	Target   server.Target
	Workflow string
	steps    []plannedStep
}

type plannedStep struct {
	name   string
	tool   task.Tool
	policy Policy
	params task.Params
}

// Steps returns the step names of the plan in execution order, excluding connect.
func (p *Plan) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.name
	}
	return names
}

// Prepare resolves def for t. Every problem is reported as a
// *task.ConfigurationError before any connection is attempted.
func (e *Engine) Prepare(t server.Target, def Definition) (*Plan, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	var errs []error
	if t.Host == "" {
		errs = append(errs, errors.New("host address is empty"))
	}
	switch t.User.Method {
	case server.AuthPassword, server.AuthKey, server.AuthAgent:
	case "":
		errs = append(errs, errors.New("no authentication method resolved"))
	default:
		errs = append(errs, fmt.Errorf("unknown authentication method %q", t.User.Method))
	}

	// Injected values are defaults; any configured layer overrides them.
	injected := map[string]any{"host": t.Host}
	plan := &Plan{Target: t, Workflow: def.Name, steps: make([]plannedStep, 0, len(def.Steps))}
	for _, step := range def.Steps {
		tool, err := e.registry.Lookup(step.ToolName())
		if err != nil {
			errs = append(errs, fmt.Errorf("step %s: %w", step.Name, err))
			continue
		}
		params, err := task.ResolveParams(tool.Params(), injected, def.Params, step.Params, t.Params)
		if err != nil {
			errs = append(errs, fmt.Errorf("step %s: %w", step.Name, err))
			continue
		}
		plan.steps = append(plan.steps, plannedStep{
			name:   step.Name,
			tool:   tool,
			policy: step.EffectivePolicy(),
			params: params,
		})
	}
	if len(errs) > 0 {
		return nil, &task.ConfigurationError{Subject: fmt.Sprintf("server %s: workflow %s", t.ID(), def.Name), Err: errors.Join(errs...)}
	}
	return plan, nil
}

// Run prepares and executes def on t. The only error it returns is a
// *task.ConfigurationError; every runtime failure is recorded in the report.
func (e *Engine) Run(ctx context.Context, t server.Target, def Definition) (*HostReport, error) {
	plan, err := e.Prepare(t, def)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, plan), nil
}

// Execute runs a prepared plan. Cancelling ctx stops the run before the next
// step; the executing step is allowed to finish.
func (e *Engine) Execute(ctx context.Context, plan *Plan) *HostReport {
	r := &hostRun{
		engine: e,
		plan:   plan,
		report: &HostReport{
			Host:      plan.Target.ID(),
			Address:   plan.Target.Address(),
			Workflow:  plan.Workflow,
			Steps:     make([]StepReport, 0, len(plan.steps)+1),
			StartedAt: time.Now(),
		},
	}
	e.observer.HostStarted(plan.Target, plan.Workflow)
	r.execute(ctx)
	return r.finish()
}

type hostRun struct {
	engine *Engine
	plan   *Plan
	report *HostReport

	failed    bool
	cancelled bool
	partial   bool
	reason    string
	abortedAt string
}

func (r *hostRun) execute(ctx context.Context) {
	if ctx.Err() != nil {
		r.transition(StateAborted, 0)
		r.append(StepReport{Step: ConnectStep, Tool: ConnectStep, Policy: PolicyHard, Result: skippedFor(ReasonCancelled, "")})
		r.skipFrom(0, ReasonCancelled, "")
		r.cancelled = true
		r.reason = ReasonCancelled
		r.transition(StateClosed, 0)
		return
	}

	// Steps run on a context detached from the caller so that cancellation
	// never interrupts a remote command; only the host deadline does.
	runCtx, cancel := r.runContext(ctx)
	defer cancel()

	conn, ok := r.connect(ctx, runCtx)
	if !ok {
		r.transition(StateClosed, 0)
		return
	}
	stopWatchdog := context.AfterFunc(runCtx, func() { _ = conn.Close() })
	defer func() {
		stopWatchdog()
		_ = conn.Close()
		r.transition(StateClosed, len(r.report.Steps)-1)
	}()

	bounded := &boundedConnection{Connection: conn, timeout: r.engine.commandTimeout}
	for i, ps := range r.plan.steps {
		if deadlineExceeded(runCtx) {
			r.timedOutBefore(i, ps)
			return
		}
		if ctx.Err() != nil {
			r.cancelled = true
			r.abort(StateAborted, i, ReasonCancelled, "")
			return
		}

		r.transition(StateRunning, i+1)
		sr := r.runStep(runCtx, bounded, ps)
		if sr.Result.Status != task.StatusFailure {
			continue
		}

		switch {
		case deadlineExceeded(runCtx):
			r.failed = true
			r.abort(StateAborted, i+1, ReasonHostTimeout, ps.name)
			return
		case server.IsTransportLoss(sr.Result.Err):
			r.failed = true
			r.abort(StateAborted, i+1, ReasonBlocked, ps.name)
			return
		case ps.policy == PolicyHard:
			r.failed = true
			r.abort(StateAborted, i+1, ReasonBlocked, ps.name)
			return
		default:
			r.partial = true
		}
	}
	r.transition(StateCompleted, len(r.plan.steps))
}

func (r *hostRun) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if r.engine.hostTimeout > 0 {
		return context.WithTimeout(detached, r.engine.hostTimeout)
	}
	return context.WithCancel(detached)
}

// connect opens the session and records the connect step. Unlike steps,
// opening a session is abandoned as soon as the caller cancels.
func (r *hostRun) connect(ctx, runCtx context.Context) (server.Connection, bool) {
	r.transition(StateConnecting, 0)

	openCtx, cancelOpen := context.WithCancel(runCtx)
	stop := context.AfterFunc(ctx, cancelOpen)
	start := time.Now()
	conn, err := r.engine.connector.Open(openCtx, r.plan.Target)
	stop()
	cancelOpen()
	elapsed := time.Since(start)

	if err == nil {
		r.append(StepReport{
			Step:     ConnectStep,
			Tool:     ConnectStep,
			Policy:   PolicyHard,
			Result:   task.Success("connected to "+conn.Address(), map[string]any{"address": conn.Address()}),
			Duration: elapsed,
		})
		return conn, true
	}

	if ctx.Err() != nil && !deadlineExceeded(runCtx) {
		r.transition(StateAborted, 0)
		r.append(StepReport{Step: ConnectStep, Tool: ConnectStep, Policy: PolicyHard, Result: skippedFor(ReasonCancelled, ""), Duration: elapsed})
		r.skipFrom(0, ReasonCancelled, "")
		r.cancelled = true
		r.reason = ReasonCancelled
		return nil, false
	}

	details := map[string]any{"address": r.plan.Target.Address()}
	var connErr *server.ConnectionError
	if errors.As(err, &connErr) {
		details["kind"] = string(connErr.Kind)
	}
	if deadlineExceeded(runCtx) {
		details["reason"] = ReasonHostTimeout
	}
	r.transition(StateAborted, 0)
	r.append(StepReport{
		Step:     ConnectStep,
		Tool:     ConnectStep,
		Policy:   PolicyHard,
		Result:   task.Failure("could not connect to "+r.plan.Target.Address(), err, details),
		Duration: elapsed,
	})
	r.failed = true
	r.abortedAt = ConnectStep
	return nil, false
}

func (r *hostRun) runStep(ctx context.Context, conn server.Connection, ps plannedStep) StepReport {
	start := time.Now()
	res := safeExecute(ctx, ps.tool, conn, ps.params)
	if res.Status != task.StatusFailure && deadlineExceeded(ctx) {
		res = task.Failure("host timeout expired during step", ctx.Err(), map[string]any{"reason": ReasonHostTimeout})
	}
	sr := StepReport{
		Step:     ps.name,
		Tool:     ps.tool.Name(),
		Policy:   ps.policy,
		Result:   res.Clone(),
		Duration: time.Since(start),
	}
	r.append(sr)
	return sr
}

// timedOutBefore records step i as failed when the host deadline passed
// before it could start, and skips the rest as blocked by it.
func (r *hostRun) timedOutBefore(i int, ps plannedStep) {
	r.transition(StateRunning, i+1)
	r.append(StepReport{
		Step:   ps.name,
		Tool:   ps.tool.Name(),
		Policy: ps.policy,
		Result: task.Failure("host timeout expired before step started", context.DeadlineExceeded,
			map[string]any{"reason": ReasonHostTimeout}),
	})
	r.failed = true
	r.abort(StateAborted, i+1, ReasonHostTimeout, ps.name)
}

// abort records every step from index from onwards as skipped.
func (r *hostRun) abort(state State, from int, reason, blockedBy string) {
	r.transition(state, from)
	r.reason = reason
	r.abortedAt = blockedBy
	r.skipFrom(from, reason, blockedBy)
}

func (r *hostRun) skipFrom(from int, reason, blockedBy string) {
	for _, ps := range r.plan.steps[from:] {
		r.append(StepReport{
			Step:   ps.name,
			Tool:   ps.tool.Name(),
			Policy: ps.policy,
			Result: skippedFor(reason, blockedBy),
		})
	}
}

func (r *hostRun) append(sr StepReport) {
	r.report.Steps = append(r.report.Steps, sr)
	r.engine.observer.StepFinished(r.report.Host, sr)
}

func (r *hostRun) transition(state State, step int) {
	r.engine.observer.StateChanged(r.report.Host, state, step)
}

func deadlineExceeded(runCtx context.Context) bool {
	return errors.Is(runCtx.Err(), context.DeadlineExceeded)
}

func (r *hostRun) finish() *HostReport {
	report := r.report
	report.FinishedAt = time.Now()

	details := make(map[string]any)
	switch {
	case r.failed || r.reason == ReasonHostTimeout:
		report.Status = task.StatusFailure
	case r.cancelled:
		report.Status = task.StatusSkipped
	default:
		report.Status = task.StatusSuccess
		report.Partial = r.partial
	}
	if report.Partial {
		details["partial"] = true
	}
	if r.reason != "" {
		details["reason"] = r.reason
	}
	if r.abortedAt != "" {
		details["aborted_at"] = r.abortedAt
	}
	if len(details) > 0 {
		report.Details = details
	}

	r.engine.observer.HostFinished(report)
	return report
}

func skippedFor(reason, blockedBy string) task.Result {
	details := map[string]any{"reason": reason}
	msg := "not run: " + reason
	if blockedBy != "" {
		details["blocked_by"] = blockedBy
		msg = "not run: blocked by " + blockedBy
	}
	return task.Skipped(msg, details)
}

func safeExecute(ctx context.Context, tool task.Tool, conn server.Connection, params task.Params) (res task.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			res = task.Failure(tool.Name()+" panicked", fmt.Errorf("panic: %v", rec), nil)
		}
	}()
	res = tool.Execute(ctx, conn, params)
	switch res.Status {
	case task.StatusSuccess, task.StatusFailure, task.StatusSkipped:
		return res
	default:
		return task.Failure(fmt.Sprintf("%s returned unknown status %q", tool.Name(), res.Status), nil, res.Details)
	}
}

// boundedConnection applies the engine command timeout to commands that
// do not set their own.
type boundedConnection struct {
	server.Connection
	timeout time.Duration
}

func (c *boundedConnection) Run(ctx context.Context, command string, timeout time.Duration) (server.Output, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}
	return c.Connection.Run(ctx, command, timeout)
}
