// Package tomcatstop shuts Tomcat down and waits for its port to close.
package tomcatstop

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
	Name                = "tomcat_stop"
	DefaultPort         = 8080
	DefaultStopTimeout  = 60 * time.Second
	DefaultPollInterval = 2 * time.Second
)

type TomcatStop struct{}

func New() task.Tool { return &TomcatStop{} }

func (*TomcatStop) Name() string            { return Name }
func (*TomcatStop) Category() task.Category { return task.CategoryLifecycle }
func (*TomcatStop) Description() string {
	return "Stop Tomcat and wait until its port is released"
}

func (*TomcatStop) Params() []task.Param {
	return []task.Param{
		{Name: "tomcat_home", Type: task.TypeString, Required: true, Description: "Installation directory (CATALINA_HOME)"},
		{Name: "port", Type: task.TypeInt, Default: DefaultPort, Description: "HTTP connector port"},
		{Name: "stop_command", Type: task.TypeString, Description: "Custom stop command; {tomcat_home} is substituted"},
		{Name: "stop_timeout", Type: task.TypeDuration, Default: DefaultStopTimeout, Description: "How long to wait for the port to close"},
		{Name: "poll_interval", Type: task.TypeDuration, Default: DefaultPollInterval, Description: "Delay between port checks"},
	}
}

type scriptData struct {
	TomcatHome string
}

func (*TomcatStop) Execute(ctx context.Context, conn server.Connection, p task.Params) task.Result {
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
	if _, ok := listening[port]; !ok {
		return task.Skipped(fmt.Sprintf("nothing listening on port %d", port), details)
	}

	prefix, err := taskutil.SudoPrefix(ctx, conn)
	if err != nil {
		if res, ok := task.PlatformFailure(err, details); ok {
			return res
		}
		return task.Failure("unable to determine privileges", err, details)
	}

	command, err := stopCommand(prefix, home, p.String("stop_command"))
	if err != nil {
		return task.Failure("render stop script", err, details)
	}
	out, err := taskutil.RunChecked(ctx, conn, command)
	if err != nil {
		return task.Failure("tomcat stop command failed", err, details).WithRawOutput(out.Combined())
	}
	if stderr := strings.TrimSpace(out.Stderr); stderr != "" {
		details["stderr"] = stderr
	}

	if err := taskutil.WaitForPort(ctx, conn, port, false, p.Duration("stop_timeout"), p.Duration("poll_interval")); err != nil {
		return task.Failure(fmt.Sprintf("port %d still listening after shutdown", port), err, details).WithRawOutput(out.Combined())
	}
	return task.Success("tomcat stopped", details).WithRawOutput(out.Combined())
}

func stopCommand(prefix, home, custom string) (string, error) {
	if custom != "" {
		return strings.ReplaceAll(custom, "{tomcat_home}", taskutil.ShellEscape(home)), nil
	}
	script, err := taskutil.RenderScript(tomcatStopScriptTemplates, scriptData{TomcatHome: home})
	if err != nil {
		return "", err
	}
	return taskutil.ShellCommand(prefix, script), nil
}
