// Package tomcatstart starts Tomcat and waits for its HTTP connector to listen.
package tomcatstart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/taskutil"
)

const (
	Name                = "tomcat_start"
	DefaultPort         = 8080
	DefaultReadyTimeout = 120 * time.Second
	DefaultPollInterval = 2 * time.Second
)

type TomcatStart struct{}

func New() task.Tool { return &TomcatStart{} }

func (*TomcatStart) Name() string            { return Name }
func (*TomcatStart) Category() task.Category { return task.CategoryLifecycle }
func (*TomcatStart) Description() string {
	return "Start Tomcat and wait until its port is listening"
}

func (*TomcatStart) Params() []task.Param {
	return []task.Param{
		{Name: "tomcat_home", Type: task.TypeString, Required: true, Description: "Installation directory (CATALINA_HOME)"},
		{Name: "port", Type: task.TypeInt, Default: DefaultPort, Description: "HTTP connector port"},
		{Name: "start_command", Type: task.TypeString, Description: "Custom start command; {tomcat_home} is substituted"},
		{Name: "ready_timeout", Type: task.TypeDuration, Default: DefaultReadyTimeout, Description: "How long to wait for the port"},
		{Name: "poll_interval", Type: task.TypeDuration, Default: DefaultPollInterval, Description: "Delay between port checks"},
	}
}

type scriptData struct {
	TomcatHome string
}

func (*TomcatStart) Execute(ctx context.Context, conn server.Connection, p task.Params) task.Result {
	home := p.String("tomcat_home")
	port := p.Int("port")
	details := map[string]any{"tomcat_home": home, "port": port}

	listening, raw, err := taskutil.ListeningPorts(ctx, conn)
	if err != nil {
		if res, ok := task.PlatformFailure(err, details); ok {
			return res.WithRawOutput(raw)
		}
		return task.Failure("unable to list listening ports", err, details).WithRawOutput(raw)
	}
	if _, ok := listening[port]; ok {
		return task.Skipped(fmt.Sprintf("port %d already listening", port), details)
	}

	prefix, err := taskutil.SudoPrefix(ctx, conn)
	if err != nil {
		if res, ok := task.PlatformFailure(err, details); ok {
			return res
		}
		return task.Failure("unable to determine privileges", err, details)
	}

	command, err := startCommand(prefix, home, p.String("start_command"))
	if err != nil {
		return task.Failure("render start script", err, details)
	}
	out, err := taskutil.RunChecked(ctx, conn, command)
	if err != nil {
		return task.Failure("tomcat start command failed", err, details).WithRawOutput(out.Combined())
	}
	if stderr := strings.TrimSpace(out.Stderr); stderr != "" {
		details["stderr"] = stderr
	}

	readyTimeout := p.Duration("ready_timeout")
	if err := taskutil.WaitForPort(ctx, conn, port, true, readyTimeout, p.Duration("poll_interval")); err != nil {
		return task.Failure(fmt.Sprintf("timed out waiting for port %d", port), err, details).WithRawOutput(out.Combined())
	}
	return task.Success(fmt.Sprintf("tomcat started and port %d is listening", port), details).WithRawOutput(out.Combined())
}

func startCommand(prefix, home, custom string) (string, error) {
	if custom != "" {
		return strings.ReplaceAll(custom, "{tomcat_home}", taskutil.ShellEscape(home)), nil
	}
	script, err := taskutil.RenderScript(tomcatStartScriptTemplates, scriptData{TomcatHome: home})
	if err != nil {
		return "", err
	}
	return taskutil.ShellCommand(prefix, script), nil
}
