// Package portcheck reports whether the ports Tomcat needs are free.
package portcheck

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/taskutil"
)

const Name = "port_check"

// DefaultPorts are the HTTP, shutdown and AJP connector ports.
var DefaultPorts = []int{8080, 8005, 8009}

type PortCheck struct{}

func New() task.Tool { return &PortCheck{} }

func (*PortCheck) Name() string            { return Name }
func (*PortCheck) Category() task.Category { return task.CategoryInspect }
func (*PortCheck) Description() string {
	return "Check that TCP ports are not already in use"
}

func (*PortCheck) Params() []task.Param {
	return []task.Param{
		{Name: "ports", Type: task.TypeIntList, Default: DefaultPorts, Description: "Ports that must be free"},
	}
}

func (*PortCheck) Execute(ctx context.Context, conn server.Connection, p task.Params) task.Result {
	ports := p.IntList("ports")
	if len(ports) == 0 {
		return task.Failure("no ports to inspect", task.Configf("ports", "list is empty"), nil)
	}

	listening, raw, err := taskutil.ListeningPorts(ctx, conn)
	if err != nil {
		if res, ok := task.PlatformFailure(err, nil); ok {
			return res.WithRawOutput(raw)
		}
		return task.Failure("unable to list listening ports", err, nil).WithRawOutput(raw)
	}

	states := make(map[string]any, len(ports))
	var busy []string
	for _, port := range ports {
		key := strconv.Itoa(port)
		if _, inUse := listening[port]; inUse {
			states[key] = "in_use"
			busy = append(busy, key)
			continue
		}
		states[key] = "free"
	}

	details := map[string]any{"ports": states}
	if len(busy) > 0 {
		details["in_use"] = busy
		return task.Failure("ports in use: "+strings.Join(busy, ", "),
			fmt.Errorf("%d of %d ports in use", len(busy), len(ports)), details).WithRawOutput(raw)
	}
	return task.Success(fmt.Sprintf("all %d ports free", len(ports)), details).WithRawOutput(raw)
}
