// Package tomcatuninstall removes a Tomcat installation directory.
package tomcatuninstall

import (
	"context"
	"fmt"
	"path"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/taskutil"
)

const Name = "tomcat_uninstall"

type TomcatUninstall struct{}

func New() task.Tool { return &TomcatUninstall{} }

func (*TomcatUninstall) Name() string            { return Name }
func (*TomcatUninstall) Category() task.Category { return task.CategoryLifecycle }
func (*TomcatUninstall) Description() string {
	return "Remove the Tomcat installation directory and optionally its logs"
}

func (*TomcatUninstall) Params() []task.Param {
	return []task.Param{
		{Name: "tomcat_home", Type: task.TypeString, Required: true, Description: "Installation directory (CATALINA_HOME)"},
		{Name: "logs_dir", Type: task.TypeString, Description: "Log directory outside tomcat_home"},
		{Name: "cleanup_logs", Type: task.TypeBool, Default: true, Description: "Also remove logs_dir"},
	}
}

func (*TomcatUninstall) Execute(ctx context.Context, conn server.Connection, p task.Params) task.Result {
	home := p.String("tomcat_home")
	logsDir := p.String("logs_dir")
	details := map[string]any{"tomcat_home": home}

	for _, dir := range []string{home, logsDir} {
		if err := checkRemovable(dir); err != nil {
			return task.Failure("refusing to remove "+dir, err, details)
		}
	}

	prefix, err := taskutil.SudoPrefix(ctx, conn)
	if err != nil {
		if res, ok := task.PlatformFailure(err, details); ok {
			return res
		}
		return task.Failure("unable to determine privileges", err, details)
	}

	exists, err := taskutil.PathExists(ctx, conn, prefix, home)
	if err != nil {
		return task.Failure("unable to inspect "+home, err, details)
	}
	if !exists {
		return task.Skipped(home+" not present", details)
	}

	out, err := taskutil.RunChecked(ctx, conn, prefix+"rm -rf "+taskutil.ShellEscape(home))
	if err != nil {
		return task.Failure("remove "+home+" failed", err, details).WithRawOutput(out.Combined())
	}
	details["removed"] = []string{home}

	if logsDir != "" && p.Bool("cleanup_logs") {
		out, err := taskutil.RunChecked(ctx, conn, prefix+"rm -rf "+taskutil.ShellEscape(logsDir))
		if err != nil {
			return task.Failure("remove "+logsDir+" failed", err, details).WithRawOutput(out.Combined())
		}
		details["removed"] = []string{home, logsDir}
	}

	if still, err := taskutil.PathExists(ctx, conn, prefix, home); err != nil || still {
		if err == nil {
			err = fmt.Errorf("%s still exists", home)
		}
		return task.Failure("tomcat directory not removed", err, details)
	}
	return task.Success("tomcat removed from "+home, details)
}

// checkRemovable rejects paths that are relative or too close to the root.
func checkRemovable(dir string) error {
	if dir == "" {
		return nil
	}
	clean := path.Clean(dir)
	if !path.IsAbs(clean) {
		return task.Configf("tomcat_uninstall", "path %q must be absolute", dir)
	}
	if path.Dir(clean) == "/" && clean != "/" {
		switch clean {
		case "/bin", "/boot", "/dev", "/etc", "/home", "/lib", "/lib64", "/opt", "/proc", "/root", "/sbin", "/srv", "/sys", "/tmp", "/usr", "/var":
			return task.Configf("tomcat_uninstall", "path %q is a system directory", dir)
		}
		return nil
	}
	if clean == "/" {
		return task.Configf("tomcat_uninstall", "path %q is the filesystem root", dir)
	}
	return nil
}
