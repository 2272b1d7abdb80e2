package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/fleet"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/history"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/workflow"
	"github.com/dustin/go-humanize"
	"github.com/goccy/go-yaml"
)

type outputFormat string

const (
	outputText outputFormat = "text"
	outputYAML outputFormat = "yaml"
	outputJSON outputFormat = "json"
)

func parseOutputFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", outputText:
		return outputText, nil
	case outputYAML, outputJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, yaml or json)", s)
}

// encode writes v as YAML or JSON. Text output is handled by the caller.
func encode(w io.Writer, format outputFormat, v any) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		_, err = w.Write(data)
		return err
	}
	return fmt.Errorf("format %s is not an encoding", format)
}

func renderReport(w io.Writer, format outputFormat, report *fleet.Report) error {
	if format != outputText {
		return encode(w, format, report)
	}

	s := report.Summary
	fmt.Fprintf(w, "Run %s: workflow %s on %d server(s), started %s, took %s\n",
		report.RunID, report.Workflow, s.Total, humanize.Time(report.StartedAt), formatDuration(report.Duration()))
	fmt.Fprintf(w, "  succeeded: %d  failed: %d  skipped: %d  partial: %d\n", s.Succeeded, s.Failed, s.Skipped, s.Partial)

	for _, host := range report.Hosts {
		fmt.Fprintln(w)
		renderHost(w, host)
	}
	return nil
}

func renderHost(w io.Writer, host *workflow.HostReport) {
	status := string(host.Status)
	if host.Partial {
		status += " (partial)"
	}
	fmt.Fprintf(w, "%s [%s] %s\n", host.Host, host.Address, status)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  STEP\tTOOL\tPOLICY\tSTATUS\tDURATION\tMESSAGE")
	for _, step := range host.Steps {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\n",
			step.Step, step.Tool, step.Policy, step.Result.Status, formatDuration(step.Duration), stepMessage(step.Result))
	}
	tw.Flush()
}

func stepMessage(res task.Result) string {
	msg := res.Message
	if res.Status == task.StatusFailure && res.Error != "" && res.Error != msg {
		msg += ": " + res.Error
	}
	return strings.ReplaceAll(msg, "\n", " ")
}

func renderRuns(w io.Writer, format outputFormat, runs []history.Run) error {
	if format != outputText {
		return encode(w, format, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tWORKFLOW\tSTARTED\tDURATION\tSERVERS\tOK\tFAILED\tSKIPPED")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			run.ID, run.Workflow, humanize.Time(run.StartedAt), formatDuration(run.FinishedAt.Sub(run.StartedAt)),
			run.Summary.Total, run.Summary.Succeeded, run.Summary.Failed, run.Summary.Skipped)
	}
	return tw.Flush()
}

func renderTools(w io.Writer, format outputFormat, tools []task.Tool) error {
	type toolInfo struct {
		Name        string       `json:"name" yaml:"name"`
		Category    string       `json:"category" yaml:"category"`
		Description string       `json:"description" yaml:"description"`
		Params      []task.Param `json:"params" yaml:"params"`
	}

	infos := make([]toolInfo, 0, len(tools))
	for _, tool := range tools {
		infos = append(infos, toolInfo{
			Name:        tool.Name(),
			Category:    string(tool.Category()),
			Description: tool.Description(),
			Params:      tool.Params(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	if format != outputText {
		return encode(w, format, infos)
	}

	for i, info := range infos {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%s)\n  %s\n", info.Name, info.Category, info.Description)
		if len(info.Params) == 0 {
			continue
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, p := range info.Params {
			fmt.Fprintf(tw, "    %s\t%s\t%s\t%s\n", p.Name, p.Type, paramDefault(p), p.Description)
		}
		tw.Flush()
	}
	return nil
}

func paramDefault(p task.Param) string {
	switch {
	case p.Required:
		return "required"
	case p.Default == nil:
		return "-"
	}
	return fmt.Sprintf("default %v", p.Default)
}

func renderWorkflows(w io.Writer, format outputFormat, defs []workflow.Definition) error {
	if format != outputText {
		return encode(w, format, defs)
	}

	for i, def := range defs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s: %s\n", def.Name, def.Description)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for n, step := range def.Steps {
			fmt.Fprintf(tw, "  %d.\t%s\t%s\t%s\n", n+1, step.Name, step.ToolName(), step.EffectivePolicy())
		}
		tw.Flush()
	}
	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
