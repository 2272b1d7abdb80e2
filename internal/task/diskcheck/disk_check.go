// Package diskcheck inspects free space on a remote filesystem.
package diskcheck

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/taskutil"
	"github.com/dustin/go-humanize"
)

const Name = "disk_check"

const (
	DefaultPath      = "/"
	DefaultMinFreeMB = 2048
)

type DiskCheck struct{}

func New() task.Tool { return &DiskCheck{} }

func (*DiskCheck) Name() string            { return Name }
func (*DiskCheck) Category() task.Category { return task.CategoryInspect }
func (*DiskCheck) Description() string {
	return "Check free disk space on a path against a minimum threshold"
}

func (*DiskCheck) Params() []task.Param {
	return []task.Param{
		{Name: "path", Type: task.TypeString, Default: DefaultPath, Description: "Filesystem path to inspect"},
		{Name: "min_free_mb", Type: task.TypeInt, Default: DefaultMinFreeMB, Description: "Minimum free space in MiB"},
	}
}

func (*DiskCheck) Execute(ctx context.Context, conn server.Connection, p task.Params) task.Result {
	path := p.String("path")
	threshold := p.Int("min_free_mb")

	out, err := taskutil.RunChecked(ctx, conn, "df -Pm "+taskutil.ShellEscape(path))
	if err != nil {
		if res, ok := task.PlatformFailure(taskutil.ClassifyPlatform(ctx, conn, err), nil); ok {
			return res.WithRawOutput(out.Combined())
		}
		return task.Failure(fmt.Sprintf("df %s failed", path), err, nil).WithRawOutput(out.Combined())
	}

	usage, err := parseDF(out.Stdout)
	if err != nil {
		return task.Failure("unrecognised df output", err, nil).WithRawOutput(out.Stdout)
	}

	details := map[string]any{
		"path":         path,
		"total_mb":     usage.totalMB,
		"used_mb":      usage.usedMB,
		"free_mb":      usage.freeMB,
		"threshold_mb": threshold,
	}
	if usage.freeMB < threshold {
		msg := fmt.Sprintf("free space %s on %s below threshold %s", mib(usage.freeMB), path, mib(threshold))
		return task.Failure(msg, fmt.Errorf("%d MiB free, %d MiB required", usage.freeMB, threshold), details).WithRawOutput(out.Stdout)
	}
	msg := fmt.Sprintf("free space %s on %s meets threshold %s", mib(usage.freeMB), path, mib(threshold))
	return task.Success(msg, details).WithRawOutput(out.Stdout)
}

type diskUsage struct {
	totalMB int
	usedMB  int
	freeMB  int
}

// parseDF reads the last line of POSIX `df -Pm` output:
// Filesystem 1048576-blocks Used Available Capacity Mounted on
func parseDF(output string) (diskUsage, error) {
	var last string
	if err := taskutil.ScanLines(output, func(line string) {
		if strings.TrimSpace(line) != "" {
			last = line
		}
	}); err != nil {
		return diskUsage{}, err
	}

	fields := strings.Fields(last)
	if len(fields) < 4 {
		return diskUsage{}, fmt.Errorf("unexpected df line %q", last)
	}
	var usage diskUsage
	for i, dst := range []*int{&usage.totalMB, &usage.usedMB, &usage.freeMB} {
		n, err := strconv.Atoi(fields[i+1])
		if err != nil {
			return diskUsage{}, fmt.Errorf("unexpected df line %q", last)
		}
		*dst = n
	}
	return usage, nil
}

func mib(n int) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n) * 1024 * 1024)
}
