package javainstall

import (
	"context"
	"strings"
	"testing"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/testutils"
)

func TestRenderScript(t *testing.T) {
	script, err := renderForTest(scriptData{
		DownloadURL: "https://example.com/jdk-21.tar.gz",
		InstallDir:  "/opt/java",
		ArchivePath: "/tmp/jdk.tar.gz",
		LinkPath:    "/usr/local/bin/java",
	})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	for _, want := range []string{
		"curl -fsSL -o \"$archive\" 'https://example.com/jdk-21.tar.gz'",
		"--strip-components=1",
		"ln -sf \"$dest/bin/java\" '/usr/local/bin/java'",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q:\n%s", want, script)
		}
	}

	noLink, err := renderForTest(scriptData{DownloadURL: "u", InstallDir: "/opt/java", ArchivePath: "/tmp/a"})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if strings.Contains(noLink, "ln -sf") {
		t.Errorf("unexpected symlink in script:\n%s", noLink)
	}
}

func TestExecuteSkipsWhenJavaPresent(t *testing.T) {
	conn := testutils.NewFakeConnection("web-1",
		testutils.Rule{Match: "java -version", Output: server.Output{Stdout: "openjdk version \"17.0.9\"\n"}},
	)
	params, err := task.ResolveParams(New().Params())
	if err != nil {
		t.Fatalf("ResolveParams failed: %v", err)
	}

	res := New().Execute(context.Background(), conn, params)
	if res.Status != task.StatusSkipped {
		t.Fatalf("expected skipped, got %s: %s", res.Status, res.Message)
	}
	if got := len(conn.Commands()); got != 1 {
		t.Fatalf("expected only the detection command, got %v", conn.Commands())
	}
}

func TestExecuteInstalls(t *testing.T) {
	conn := testutils.NewFakeConnection("web-1",
		testutils.Rule{Match: "'java -version", Output: server.Output{ExitCode: 127, Stdout: "java: not found"}},
		testutils.Rule{Match: "/opt/java/bin/java -version", Output: server.Output{Stdout: "openjdk version \"21.0.2\"\n"}},
		testutils.Rule{Match: "id -u", Output: server.Output{Stdout: "0\n"}},
	)
	params, err := task.ResolveParams(New().Params(), map[string]any{"download_url": "https://example.com/jdk.tar.gz"})
	if err != nil {
		t.Fatalf("ResolveParams failed: %v", err)
	}

	res := New().Execute(context.Background(), conn, params)
	if res.Status != task.StatusSuccess {
		t.Fatalf("expected success, got %s: %s (%v)", res.Status, res.Message, res.Err)
	}
	if v, _ := res.Detail("version"); v != "21.0.2" {
		t.Fatalf("expected version 21.0.2, got %v", v)
	}
}

func TestExecuteWithoutURL(t *testing.T) {
	conn := testutils.NewFakeConnection("web-1",
		testutils.Rule{Match: "java -version", Output: server.Output{ExitCode: 127}},
	)
	params, _ := task.ResolveParams(New().Params())

	res := New().Execute(context.Background(), conn, params)
	if res.Status != task.StatusFailure {
		t.Fatalf("expected failure, got %s", res.Status)
	}
}

func renderForTest(data scriptData) (string, error) {
	var buf strings.Builder
	err := javaInstallScriptTemplates.ExecuteTemplate(&buf, "main", data)
	return buf.String(), err
}
