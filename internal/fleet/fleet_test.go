package fleet

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/testutils"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/workflow"
)

// commandTool runs a single remote command and fails on a non-zero exit.
type commandTool struct {
	name    string
	command string
}

func (c *commandTool) Name() string { return c.name }
func (c *commandTool) Description() string { return "runs " + c.command }
func (c *commandTool) Category() task.Category { return task.CategoryInspect }
func (c *commandTool) Params() []task.Param { return nil }
func (c *commandTool) Execute(ctx context.Context, conn server.Connection, _ task.Params) task.Result {
	out, err := conn.Run(ctx, c.command, 0)
	if err != nil {
		return task.Failure(c.name+" did not complete", err, nil)
	}
	if !out.Success() {
		return task.Failure(c.name+" failed", nil, map[string]any{"exit_code": out.ExitCode})
	}
	return task.Success(c.name+" ok", nil)
}

func registry(t *testing.T, names ...string) *task.Registry {
	t.Helper()
	reg := task.NewRegistry()
	for _, name := range names {
		if err := reg.Register(name, func() task.Tool { return &commandTool{name: name, command: name} }); err != nil {
			t.Fatalf("Register(%s) error = %v", name, err)
		}
	}
	return reg
}

func host(name string) server.Target {
	return server.Target{Name: name, Host: name + ".internal", User: server.User{Name: "deploy", Method: server.AuthKey, SSHKey: "~/.ssh/id_ed25519"}}
}

func hostIDs(r *Report) []string {
	ids := make([]string, len(r.Hosts))
	for i, h := range r.Hosts {
		ids[i] = h.Host
	}
	return ids
}

func TestRunOrdersByHostRegardlessOfCompletion(t *testing.T) {
	def := workflow.Definition{Name: "precheck-disk", Steps: []workflow.Step{{Name: "disk_check"}}}
	hosts := []server.Target{host("charlie"), host("alpha"), host("bravo")}

	for _, parallel := range []int{1, 3} {
		connector := testutils.NewFakeConnector().
			Host("alpha", testutils.FakeHost{OpenDelay: 60 * time.Millisecond}).
			Host("bravo", testutils.FakeHost{OpenDelay: 30 * time.Millisecond}).
			Host("charlie", testutils.FakeHost{})
		orch := New(workflow.NewEngine(connector, registry(t, "disk_check")), WithParallelism(parallel))

		report, err := orch.Run(context.Background(), hosts, def)
		if err != nil {
			t.Fatalf("parallel=%d: Run() error = %v", parallel, err)
		}
		if got, want := hostIDs(report), []string{"alpha", "bravo", "charlie"}; !slices.Equal(got, want) {
			t.Errorf("parallel=%d: host order = %v, want %v", parallel, got, want)
		}
		if report.RunID == "" {
			t.Errorf("parallel=%d: empty run ID", parallel)
		}
	}
}

func TestRunMixedInventory(t *testing.T) {
	def := workflow.Definition{Name: "install", Steps: []workflow.Step{
		{Name: "disk_check", Policy: workflow.PolicyAdvisory},
		{Name: "runtime_install"},
		{Name: "start"},
		{Name: "validate", Policy: workflow.PolicyAdvisory},
	}}
	connector := testutils.NewFakeConnector().
		Host("host-a", testutils.FakeHost{Rules: []testutils.Rule{
			{Match: "validate", Output: server.Output{ExitCode: 7}},
		}}).
		Host("host-b", testutils.FakeHost{
			OpenErr: &server.ConnectionError{Kind: server.ConnAuth, Address: "host-b.internal:22", Err: errors.New("unable to authenticate")},
		})
	orch := New(workflow.NewEngine(connector, registry(t, "disk_check", "runtime_install", "start", "validate")))

	report, err := orch.Run(context.Background(), []server.Target{host("host-a"), host("host-b")}, def)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	b, ok := report.Host("host-b")
	if !ok {
		t.Fatal("host-b missing from report")
	}
	if len(b.Steps) != 1 || b.Steps[0].Step != workflow.ConnectStep || b.Steps[0].Result.Status != task.StatusFailure {
		t.Errorf("host-b steps = %+v, want single failed connect", b.Steps)
	}
	if b.Status != task.StatusFailure {
		t.Errorf("host-b status = %s, want failure", b.Status)
	}

	a, ok := report.Host("host-a")
	if !ok {
		t.Fatal("host-a missing from report")
	}
	if len(a.Steps) != 5 {
		t.Fatalf("host-a has %d steps, want 5", len(a.Steps))
	}
	if a.Status != task.StatusSuccess || !a.Partial {
		t.Errorf("host-a status = %s partial = %v, want success with partial", a.Status, a.Partial)
	}

	want := Summary{Total: 2, Succeeded: 1, Failed: 1, Partial: 1}
	if report.Summary != want {
		t.Errorf("Summary = %+v, want %+v", report.Summary, want)
	}
	if report.OK() {
		t.Error("OK() = true with a failed host")
	}
}

func TestRunRespectsParallelism(t *testing.T) {
	def := workflow.Definition{Name: "precheck-disk", Steps: []workflow.Step{{Name: "disk_check"}}}
	slow := testutils.FakeHost{Rules: []testutils.Rule{{Match: "disk_check", Delay: 20 * time.Millisecond}}}
	connector := testutils.NewFakeConnector()
	var hosts []server.Target
	for _, name := range []string{"h1", "h2", "h3", "h4", "h5", "h6"} {
		connector.Host(name, slow)
		hosts = append(hosts, host(name))
	}
	orch := New(workflow.NewEngine(connector, registry(t, "disk_check")), WithParallelism(2))

	report, err := orch.Run(context.Background(), hosts, def)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if peak := connector.PeakOpen(); peak > 2 {
		t.Errorf("PeakOpen() = %d, want <= 2", peak)
	}
	if report.Summary.Succeeded != 6 {
		t.Errorf("Summary = %+v, want 6 succeeded", report.Summary)
	}
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := task.NewRegistry()
	err := reg.Register("stop_all", func() task.Tool {
		return &cancelTool{cancel: cancel}
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	def := workflow.Definition{Name: "stop", Steps: []workflow.Step{{Name: "stop_all"}, {Name: "stop_all_again", Tool: "stop_all"}}}
	connector := testutils.NewFakeConnector()
	orch := New(workflow.NewEngine(connector, reg), WithParallelism(1))

	report, err := orch.Run(ctx, []server.Target{host("a"), host("b"), host("c")}, def)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	first, _ := report.Host("a")
	if got := first.Steps[1].Result.Status; got != task.StatusSuccess {
		t.Errorf("running step status = %s, want success", got)
	}
	if got := first.Steps[2].Result.Status; got != task.StatusSkipped {
		t.Errorf("next step status = %s, want skipped", got)
	}
	for _, id := range []string{"b", "c"} {
		h, _ := report.Host(id)
		if h.Status != task.StatusSkipped {
			t.Errorf("host %s status = %s, want skipped", id, h.Status)
		}
	}
	if opened := connector.Opened(); !slices.Equal(opened, []string{"a"}) {
		t.Errorf("Opened() = %v, want only a", opened)
	}
	if report.Summary.Skipped != 3 {
		t.Errorf("Summary = %+v, want 3 skipped", report.Summary)
	}
}

type cancelTool struct {
	cancel context.CancelFunc
}

func (c *cancelTool) Name() string { return "stop_all" }
func (c *cancelTool) Description() string { return "cancels the run" }
func (c *cancelTool) Category() task.Category { return task.CategoryInspect }
func (c *cancelTool) Params() []task.Param { return nil }
func (c *cancelTool) Execute(context.Context, server.Connection, task.Params) task.Result {
	c.cancel()
	return task.Success("cancelled the run", nil)
}

func TestRunValidatesAllHostsFirst(t *testing.T) {
	def := workflow.Definition{Name: "precheck-disk", Steps: []workflow.Step{{Name: "disk_check"}}}
	noAuth := host("c")
	noAuth.User.Method = ""

	tests := []struct {
		name  string
		hosts []server.Target
	}{
		{name: "duplicate id", hosts: []server.Target{host("a"), host("b"), host("a")}},
		{name: "unresolved auth", hosts: []server.Target{host("a"), noAuth}},
		{name: "empty inventory", hosts: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			connector := testutils.NewFakeConnector()
			orch := New(workflow.NewEngine(connector, registry(t, "disk_check")))

			report, err := orch.Run(context.Background(), tt.hosts, def)
			var cfgErr *task.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Run() error = %v, want ConfigurationError", err)
			}
			if report != nil {
				t.Error("report returned with configuration error")
			}
			if len(connector.Opened()) != 0 {
				t.Errorf("Opened() = %v, want none", connector.Opened())
			}
		})
	}
}
