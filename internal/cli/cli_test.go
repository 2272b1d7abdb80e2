package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/app"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/config"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/fleet"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/testutils"
	"github.com/spf13/cobra"
)

const dfOutput = `Filesystem     1048576-blocks  Used Available Capacity Mounted on
/dev/sda1               51200 20480     30720      40% /
`

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]any
		wantErr bool
	}{
		{name: "empty", pairs: nil, want: map[string]any{}},
		{name: "pairs", pairs: []string{"port=8081", "tomcat_home=/srv/tomcat"}, want: map[string]any{"port": "8081", "tomcat_home": "/srv/tomcat"}},
		{name: "value with equals", pairs: []string{"java_opts=-Dfoo=bar"}, want: map[string]any{"java_opts": "-Dfoo=bar"}},
		{name: "empty value", pairs: []string{"path="}, want: map[string]any{"path": ""}},
		{name: "missing equals", pairs: []string{"port"}, wantErr: true},
		{name: "missing key", pairs: []string{"=8080"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.pairs)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseParams(%v) expected error, got %v", tt.pairs, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseParams(%v) error = %v", tt.pairs, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseParams(%v) = %v, want %v", tt.pairs, got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("param %s = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    outputFormat
		wantErr bool
	}{
		{input: "", want: outputText},
		{input: "text", want: outputText},
		{input: "YAML", want: outputYAML},
		{input: " json ", want: outputJSON},
		{input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseOutputFormat(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", got)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("parseOutputFormat(%q) = %s, %v; want %s", tt.input, got, err, tt.want)
			}
		})
	}
}

func newTestApp(t *testing.T, connector server.Connector) *app.App {
	t.Helper()

	cfg := &config.Config{
		History: config.HistoryConfig{Path: filepath.Join(t.TempDir(), "history.db")},
		Servers: []config.ServerConfig{
			{Name: "web-1", Address: "10.0.0.1", User: config.UserConfig{Name: "deploy", Password: "pw"}},
			{Name: "web-2", Address: "10.0.0.2", User: config.UserConfig{Name: "deploy", Password: "pw"}},
		},
	}
	var logs bytes.Buffer
	a, err := app.NewWithOutput(cfg, &logs)
	if err != nil {
		t.Fatalf("NewWithOutput failed: %v", err)
	}
	a.Connector = connector
	return a
}

func testCommand(out *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetOut(out)
	return cmd
}

func TestRunWorkflowSingleTool(t *testing.T) {
	connector := testutils.NewFakeConnector().
		Host("web-1", testutils.FakeHost{Rules: []testutils.Rule{{Match: "df", Output: server.Output{Stdout: dfOutput}}}}).
		Host("web-2", testutils.FakeHost{OpenErr: &server.ConnectionError{Kind: server.ConnNetwork, Err: errors.New("connection refused")}})
	a := newTestApp(t, connector)

	var out bytes.Buffer
	def := singleToolWorkflow("disk_check", map[string]any{"min_free_mb": "1024"})
	err := runWorkflow(testCommand(&out), a, def, runOptions{format: outputText})
	if err == nil || !strings.Contains(err.Error(), "1 of 2") {
		t.Fatalf("runWorkflow error = %v, want failure on 1 of 2 servers", err)
	}

	text := out.String()
	for _, want := range []string{"web-1 [10.0.0.1:22] success", "web-2 [10.0.0.2:22] failure", "disk_check", "connect"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	store, err := a.OpenHistory()
	if err != nil {
		t.Fatalf("OpenHistory failed: %v", err)
	}
	defer store.Close()
	runs, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(runs) != 1 || runs[0].Workflow != "disk_check" || runs[0].Summary.Failed != 1 {
		t.Fatalf("recorded runs = %+v", runs)
	}
}

func TestRunWorkflowJSONOutput(t *testing.T) {
	connector := testutils.NewFakeConnector().
		Host("web-1", testutils.FakeHost{Rules: []testutils.Rule{{Match: "df", Output: server.Output{Stdout: dfOutput}}}})
	a := newTestApp(t, connector)

	var out bytes.Buffer
	opts := runOptions{servers: []string{"web-1"}, format: outputJSON, noHistory: true}
	if err := runWorkflow(testCommand(&out), a, singleToolWorkflow("disk_check", nil), opts); err != nil {
		t.Fatalf("runWorkflow error = %v", err)
	}

	var report fleet.Report
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("output is not a JSON report: %v\n%s", err, out.String())
	}
	if len(report.Hosts) != 1 || report.Hosts[0].Host != "web-1" {
		t.Fatalf("unexpected hosts in report: %+v", report.Hosts)
	}
	steps := report.Hosts[0].Steps
	if len(steps) != 2 || steps[1].Result.Status != task.StatusSuccess {
		t.Fatalf("unexpected steps: %+v", steps)
	}
	if got := connector.Opened(); len(got) != 1 || got[0] != "web-1" {
		t.Errorf("opened = %v, want only web-1", got)
	}
}

func TestRunWorkflowRejectsBadParams(t *testing.T) {
	connector := testutils.NewFakeConnector()
	a := newTestApp(t, connector)

	var out bytes.Buffer
	def := singleToolWorkflow("disk_check", map[string]any{"min_free_mb": "lots"})
	err := runWorkflow(testCommand(&out), a, def, runOptions{format: outputText, noHistory: true})

	var cfgErr *task.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("runWorkflow error = %v, want ConfigurationError", err)
	}
	if len(connector.Opened()) != 0 {
		t.Errorf("expected no connections, got %v", connector.Opened())
	}
}

func TestRenderWorkflowsAndTools(t *testing.T) {
	a := newTestApp(t, testutils.NewFakeConnector())

	var out bytes.Buffer
	if err := renderWorkflows(&out, outputText, a.Workflows.Definitions()); err != nil {
		t.Fatalf("renderWorkflows failed: %v", err)
	}
	for _, want := range []string{"install:", "uninstall:", "tomcat_install", "advisory"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("workflow listing missing %q:\n%s", want, out.String())
		}
	}

	out.Reset()
	if err := renderTools(&out, outputYAML, a.Registry.Tools()); err != nil {
		t.Fatalf("renderTools failed: %v", err)
	}
	for _, want := range []string{"name: disk_check", "name: min_free_mb", "name: health_check"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("tool listing missing %q:\n%s", want, out.String())
		}
	}
}

func TestVerifyServers(t *testing.T) {
	connector := testutils.NewFakeConnector().
		Host("web-1", testutils.FakeHost{Rules: []testutils.Rule{{Match: "echo", Output: server.Output{Stdout: "pong\n"}}}}).
		Host("web-2", testutils.FakeHost{OpenErr: &server.ConnectionError{Kind: server.ConnAuth, Err: errors.New("permission denied")}})
	a := newTestApp(t, connector)

	targets, err := a.Config.Targets()
	if err != nil {
		t.Fatalf("Targets failed: %v", err)
	}

	var logs bytes.Buffer
	a.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	if failed := verifyServers(context.Background(), a.Logger, a.Connector, targets); failed != 1 {
		t.Fatalf("verifyServers failed = %d, want 1", failed)
	}
	if !strings.Contains(logs.String(), "Verification successful") || !strings.Contains(logs.String(), "server=web-1") {
		t.Errorf("expected success for web-1, got:\n%s", logs.String())
	}
	if !strings.Contains(logs.String(), "Verification failed") || !strings.Contains(logs.String(), "server=web-2") {
		t.Errorf("expected failure for web-2, got:\n%s", logs.String())
	}
}
