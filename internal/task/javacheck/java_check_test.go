package javacheck

import (
	"context"
	"testing"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/testutils"
)

func TestParseVersion(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: `openjdk version "17.0.9" 2023-10-17`, want: "17.0.9"},
		{input: "java version \"1.8.0_381\"\nJava(TM) SE Runtime Environment", want: "1.8.0_381"},
		{input: "sh: 1: java: not found", want: ""},
	}
	for _, tc := range cases {
		if got := ParseVersion(tc.input); got != tc.want {
			t.Errorf("ParseVersion(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestExecute(t *testing.T) {
	cases := []struct {
		name    string
		output  server.Output
		want    task.Status
		version string
	}{
		{name: "installed", output: server.Output{Stdout: "openjdk version \"21.0.2\" 2024-01-16\n"}, want: task.StatusSuccess, version: "21.0.2"},
		{name: "missing", output: server.Output{ExitCode: 127, Stdout: "sh: 1: java: not found\n"}, want: task.StatusFailure},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn := testutils.NewFakeConnection("web-1", testutils.Rule{Match: "-version", Output: tc.output})
			params, _ := task.ResolveParams(New().Params())

			res := New().Execute(context.Background(), conn, params)
			if res.Status != tc.want {
				t.Fatalf("expected %s, got %s: %s", tc.want, res.Status, res.Message)
			}
			if tc.version != "" {
				if v, _ := res.Detail("version"); v != tc.version {
					t.Fatalf("expected version %q, got %v", tc.version, v)
				}
			}
		})
	}
}
