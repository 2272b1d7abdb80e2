// Package ramcheck inspects physical memory on a remote host.
package ramcheck

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/taskutil"
	"github.com/dustin/go-humanize"
)

const (
	Name         = "ram_check"
	DefaultMinMB = 2048
)

type RAMCheck struct{}

func New() task.Tool { return &RAMCheck{} }

func (*RAMCheck) Name() string            { return Name }
func (*RAMCheck) Category() task.Category { return task.CategoryInspect }
func (*RAMCheck) Description() string {
	return "Check total physical memory against a minimum threshold"
}

func (*RAMCheck) Params() []task.Param {
	return []task.Param{
		{Name: "min_mb", Type: task.TypeInt, Default: DefaultMinMB, Description: "Minimum total memory in MiB"},
	}
}

func (*RAMCheck) Execute(ctx context.Context, conn server.Connection, p task.Params) task.Result {
	threshold := p.Int("min_mb")

	out, err := taskutil.RunChecked(ctx, conn, "free -m")
	if err != nil {
		if res, ok := task.PlatformFailure(taskutil.ClassifyPlatform(ctx, conn, err), nil); ok {
			return res.WithRawOutput(out.Combined())
		}
		return task.Failure("free -m failed", err, nil).WithRawOutput(out.Combined())
	}

	mem, err := parseFree(out.Stdout)
	if err != nil {
		return task.Failure("unrecognised free output", err, nil).WithRawOutput(out.Stdout)
	}

	details := map[string]any{
		"total_mb":     mem.totalMB,
		"available_mb": mem.availableMB,
		"threshold_mb": threshold,
	}
	total := humanize.IBytes(uint64(mem.totalMB) * 1024 * 1024)
	limit := humanize.IBytes(uint64(max(threshold, 0)) * 1024 * 1024)
	if mem.totalMB < threshold {
		return task.Failure(fmt.Sprintf("total RAM %s below threshold %s", total, limit),
			fmt.Errorf("%d MiB total, %d MiB required", mem.totalMB, threshold), details).WithRawOutput(out.Stdout)
	}
	return task.Success(fmt.Sprintf("total RAM %s meets threshold %s", total, limit), details).WithRawOutput(out.Stdout)
}

type memory struct {
	totalMB     int
	availableMB int
}

// parseFree reads the "Mem:" row of `free -m`. Older procps builds have no
// available column, in which case free is reported instead.
func parseFree(output string) (memory, error) {
	var row []string
	if err := taskutil.ScanLines(output, func(line string) {
		fields := strings.Fields(line)
		if len(fields) > 0 && fields[0] == "Mem:" {
			row = fields
		}
	}); err != nil {
		return memory{}, err
	}
	if len(row) < 4 {
		return memory{}, errors.New("no Mem: row in free output")
	}

	total, err := strconv.Atoi(row[1])
	if err != nil {
		return memory{}, fmt.Errorf("parse total %q: %w", row[1], err)
	}
	availableField := row[3]
	if len(row) >= 7 {
		availableField = row[6]
	}
	available, err := strconv.Atoi(availableField)
	if err != nil {
		return memory{}, fmt.Errorf("parse available %q: %w", availableField, err)
	}
	return memory{totalMB: total, availableMB: available}, nil
}
