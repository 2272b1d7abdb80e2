package task

import (
	"context"
	"reflect"
	"testing"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task"
)

// ExecuteTool resolves raw against the tool schema and executes it.
func ExecuteTool(t *testing.T, ctx context.Context, conn server.Connection, tool task.Tool, raw map[string]any) task.Result {
	t.Helper()

	params, err := task.ResolveParams(tool.Params(), raw)
	if err != nil {
		t.Fatalf("ResolveParams for %q failed: %v", tool.Name(), err)
	}
	return tool.Execute(ctx, conn, params)
}

func RunCommand(t *testing.T, ctx context.Context, conn server.Connection, command string) string {
	t.Helper()

	output, err := conn.Run(ctx, command, 0)
	if err != nil {
		t.Fatalf("command %q failed: %v", command, err)
	}
	if !output.Success() {
		t.Fatalf("command %q exited %d\nOutput: %s", command, output.ExitCode, output.Combined())
	}
	return output.Stdout
}

func AssertStatus(t *testing.T, res task.Result, want task.Status) {
	t.Helper()

	if res.Status != want {
		t.Fatalf("expected status %s, got %s: %s (error: %s)\nOutput: %s", want, res.Status, res.Message, res.Error, res.RawOutput)
	}
}

// AssertIdempotent executes the tool twice with the same input and checks
// that status and details match.
func AssertIdempotent(t *testing.T, ctx context.Context, conn server.Connection, tool task.Tool, raw map[string]any) task.Result {
	t.Helper()

	first := ExecuteTool(t, ctx, conn, tool, raw)
	second := ExecuteTool(t, ctx, conn, tool, raw)
	if first.Status != second.Status {
		t.Fatalf("%s: status changed between runs: %s then %s", tool.Name(), first.Status, second.Status)
	}
	if !reflect.DeepEqual(first.Details, second.Details) {
		t.Fatalf("%s: details changed between runs:\n%v\n%v", tool.Name(), first.Details, second.Details)
	}
	return first
}
