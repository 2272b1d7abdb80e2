package fleet

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/workflow"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultParallelism bounds concurrent host runs when no limit is configured.
const DefaultParallelism = 4

// Summary counts hosts by overall status. Partial hosts are also counted as succeeded.
type Summary struct {
	Total     int `json:"total" yaml:"total"`
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Failed    int `json:"failed" yaml:"failed"`
	Skipped   int `json:"skipped" yaml:"skipped"`
	Partial   int `json:"partial" yaml:"partial"`
}

// Report is the outcome of one workflow across the inventory, ordered by host ID.
type Report struct {
	RunID      string                 `json:"run_id" yaml:"run_id"`
	Workflow   string                 `json:"workflow" yaml:"workflow"`
	StartedAt  time.Time              `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time              `json:"finished_at" yaml:"finished_at"`
	Summary    Summary                `json:"summary" yaml:"summary"`
	Hosts      []*workflow.HostReport `json:"hosts" yaml:"hosts"`
}

// Host returns the report for the host with the given ID.
func (r *Report) Host(id string) (*workflow.HostReport, bool) {
	i, found := slices.BinarySearchFunc(r.Hosts, id, func(h *workflow.HostReport, id string) int {
		return cmp.Compare(h.Host, id)
	})
	if !found {
		return nil, false
	}
	return r.Hosts[i], true
}

// OK reports whether no host failed.
func (r *Report) OK() bool { return r.Summary.Failed == 0 }

func (r *Report) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

func summarize(hosts []*workflow.HostReport) Summary {
	s := Summary{Total: len(hosts)}
	for _, h := range hosts {
		switch h.Status {
		case task.StatusSuccess:
			s.Succeeded++
			if h.Partial {
				s.Partial++
			}
		case task.StatusFailure:
			s.Failed++
		case task.StatusSkipped:
			s.Skipped++
		}
	}
	return s
}

// Orchestrator runs a workflow on many hosts with bounded parallelism.
type Orchestrator struct {
	engine      *workflow.Engine
	parallelism int
	newRunID    func() string
}

type Option func(*Orchestrator)

// WithParallelism sets how many hosts run at once. One runs hosts sequentially.
func WithParallelism(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

func New(engine *workflow.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		engine:      engine,
		parallelism: DefaultParallelism,
		newRunID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes def on every host. Configuration problems on any host are
// returned together before any host is contacted; after that Run always
// returns a report with one entry per host. Cancelling ctx lets running hosts
// finish their current step and marks hosts that have not started as skipped.
func (o *Orchestrator) Run(ctx context.Context, hosts []server.Target, def workflow.Definition) (*Report, error) {
	plans, err := o.prepare(hosts, def)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:     o.newRunID(),
		Workflow:  def.Name,
		StartedAt: time.Now(),
	}

	slots := make([]*workflow.HostReport, len(plans))
	var g errgroup.Group
	g.SetLimit(o.parallelism)
	for i, plan := range plans {
		g.Go(func() error {
			slots[i] = o.engine.Execute(ctx, plan)
			return nil
		})
	}
	_ = g.Wait()

	report.Hosts = slots
	report.Summary = summarize(slots)
	report.FinishedAt = time.Now()
	return report, nil
}

func (o *Orchestrator) prepare(hosts []server.Target, def workflow.Definition) ([]*workflow.Plan, error) {
	if len(hosts) == 0 {
		return nil, task.Configf("servers", "no servers to run on")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	var errs []error
	seen := make(map[string]struct{}, len(hosts))
	plans := make([]*workflow.Plan, 0, len(hosts))
	for _, t := range hosts {
		id := t.ID()
		if _, dup := seen[id]; dup {
			errs = append(errs, task.Configf("server "+id, "duplicate server name"))
			continue
		}
		seen[id] = struct{}{}

		plan, err := o.engine.Prepare(t, def)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		plans = append(plans, plan)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	slices.SortFunc(plans, func(a, b *workflow.Plan) int {
		return cmp.Compare(a.Target.ID(), b.Target.ID())
	})
	return plans, nil
}
