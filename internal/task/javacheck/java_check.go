// Package javacheck detects the Java runtime on a remote host.
package javacheck

import (
	"context"
	"fmt"
	"regexp"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/taskutil"
)

const (
	Name           = "java_check"
	DefaultJavaBin = "java"
)

var versionPattern = regexp.MustCompile(`version "([^"]+)"`)

type JavaCheck struct{}

func New() task.Tool { return &JavaCheck{} }

func (*JavaCheck) Name() string            { return Name }
func (*JavaCheck) Category() task.Category { return task.CategoryInspect }
func (*JavaCheck) Description() string     { return "Report the installed Java version" }

func (*JavaCheck) Params() []task.Param {
	return []task.Param{
		{Name: "java_bin", Type: task.TypeString, Default: DefaultJavaBin, Description: "Java executable to check"},
	}
}

func (*JavaCheck) Execute(ctx context.Context, conn server.Connection, p task.Params) task.Result {
	javaBin := p.String("java_bin")
	version, out, err := Detect(ctx, conn, javaBin)
	if err != nil {
		details := map[string]any{"java_bin": javaBin}
		if res, ok := task.PlatformFailure(err, details); ok {
			return res.WithRawOutput(out)
		}
		return task.Failure("java not available", err, details).WithRawOutput(out)
	}
	return task.Success("java "+version+" installed", map[string]any{
		"java_bin": javaBin,
		"version":  version,
	}).WithRawOutput(out)
}

// Detect runs `<javaBin> -version` and returns the reported version.
func Detect(ctx context.Context, conn server.Connection, javaBin string) (string, string, error) {
	out, err := conn.Run(ctx, "sh -c "+taskutil.ShellEscape(javaBin+" -version 2>&1"), 0)
	if err != nil {
		return "", "", err
	}
	raw := out.Combined()
	if !out.Success() {
		err := fmt.Errorf("%s -version: exit status %d: %s", javaBin, out.ExitCode, taskutil.FirstLine(raw))
		return "", raw, taskutil.ClassifyPlatform(ctx, conn, err)
	}
	version := ParseVersion(raw)
	if version == "" {
		return "", raw, fmt.Errorf("%s -version: no version in output", javaBin)
	}
	return version, raw, nil
}

// ParseVersion extracts the quoted version from `java -version` output.
func ParseVersion(output string) string {
	m := versionPattern.FindStringSubmatch(output)
	if m == nil {
		return ""
	}
	return m[1]
}
