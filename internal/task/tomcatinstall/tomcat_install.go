// Package tomcatinstall downloads and unpacks Apache Tomcat into a fixed home directory.
package tomcatinstall

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/taskutil"
)

const (
	Name                   = "tomcat_install"
	DefaultArchivePath     = "/tmp/apache-tomcat.tar.gz"
	DefaultStripComponents = 1
	DefaultPort            = 8080
)

var versionPattern = regexp.MustCompile(`Apache Tomcat(?: Version |/)([0-9][^\s]*)`)

type TomcatInstall struct{}

func New() task.Tool { return &TomcatInstall{} }

func (*TomcatInstall) Name() string            { return Name }
func (*TomcatInstall) Category() task.Category { return task.CategoryInstall }
func (*TomcatInstall) Description() string {
	return "Download and extract Apache Tomcat unless the requested version is already installed"
}

func (*TomcatInstall) Params() []task.Param {
	return []task.Param{
		{Name: "download_url", Type: task.TypeString, Required: true, Description: "Tomcat archive URL"},
		{Name: "tomcat_home", Type: task.TypeString, Required: true, Description: "Installation directory (CATALINA_HOME)"},
		{Name: "version", Type: task.TypeString, Description: "Expected version; an installed different version is replaced"},
		{Name: "archive_path", Type: task.TypeString, Default: DefaultArchivePath, Description: "Temporary download location"},
		{Name: "strip_components", Type: task.TypeInt, Default: DefaultStripComponents, Description: "Leading path components removed on extract"},
		{Name: "cleanup_archive", Type: task.TypeBool, Default: true, Description: "Remove the archive after extracting"},
		{Name: "port", Type: task.TypeInt, Default: DefaultPort, Description: "HTTP port that must be free before a replaced version is removed"},
	}
}

type scriptData struct {
	DownloadURL     string
	TomcatHome      string
	ArchivePath     string
	StripComponents int
	CleanupArchive  bool
	Replace         bool
}

func (*TomcatInstall) Execute(ctx context.Context, conn server.Connection, p task.Params) task.Result {
	data := scriptData{
		DownloadURL:     p.String("download_url"),
		TomcatHome:      p.String("tomcat_home"),
		ArchivePath:     p.String("archive_path"),
		StripComponents: p.Int("strip_components"),
		CleanupArchive:  p.Bool("cleanup_archive"),
	}
	wantVersion := p.String("version")
	catalina := path.Join(data.TomcatHome, "bin", "catalina.sh")

	prefix, err := taskutil.SudoPrefix(ctx, conn)
	if err != nil {
		if res, ok := task.PlatformFailure(err, nil); ok {
			return res
		}
		return task.Failure("unable to determine privileges", err, nil)
	}

	installed, err := taskutil.PathExists(ctx, conn, prefix, catalina)
	if err != nil {
		return task.Failure("unable to inspect "+data.TomcatHome, err, nil)
	}
	details := map[string]any{"tomcat_home": data.TomcatHome}
	if installed {
		current, raw := installedVersion(ctx, conn, prefix, data.TomcatHome)
		details["version"] = current
		switch {
		case wantVersion == "":
			return task.Skipped("tomcat already installed at "+data.TomcatHome, details).WithRawOutput(raw)
		case current == wantVersion:
			return task.Skipped(fmt.Sprintf("tomcat %s already installed at %s", current, data.TomcatHome), details).WithRawOutput(raw)
		}
		details["replaced_version"] = current
		if res, ok := checkStopped(ctx, conn, p.Int("port"), details); !ok {
			return res
		}
		data.Replace = true
	}

	script, err := taskutil.RenderScript(tomcatInstallScriptTemplates, data)
	if err != nil {
		return task.Failure("render install script", err, nil)
	}
	out, err := taskutil.RunChecked(ctx, conn, taskutil.ShellCommand(prefix, script))
	if err != nil {
		return task.Failure("tomcat installation failed", err, details).WithRawOutput(out.Combined())
	}

	ok, err := taskutil.PathExists(ctx, conn, prefix, catalina)
	if err != nil {
		return task.Failure("unable to verify installation", err, details)
	}
	if !ok {
		return task.Failure("catalina.sh missing after extraction",
			fmt.Errorf("%s not found; check strip_components", catalina), details).WithRawOutput(out.Combined())
	}

	version, _ := installedVersion(ctx, conn, prefix, data.TomcatHome)
	if version != "" {
		details["version"] = version
	}
	details["download_url"] = data.DownloadURL
	return task.Success("tomcat installed to "+data.TomcatHome, details).WithRawOutput(out.Combined())
}

// checkStopped refuses to replace an installation whose connector port is
// still bound. A host without ss or netstat is recorded and allowed through.
func checkStopped(ctx context.Context, conn server.Connection, port int, details map[string]any) (task.Result, bool) {
	ports, raw, err := taskutil.ListeningPorts(ctx, conn)
	switch {
	case errors.Is(err, taskutil.ErrNoPortTool):
		details["port_check"] = "unavailable"
		return task.Result{}, true
	case err != nil:
		if res, ok := task.PlatformFailure(err, details); ok {
			return res.WithRawOutput(raw), false
		}
		return task.Failure("unable to list listening ports", err, details).WithRawOutput(raw), false
	}
	if _, busy := ports[port]; busy {
		details["port"] = port
		return task.Failure(fmt.Sprintf("tomcat still listening on port %d; stop it before replacing", port),
			fmt.Errorf("port %d in use", port), details).WithRawOutput(raw), false
	}
	return task.Result{}, true
}

// installedVersion returns the version reported by an existing installation, or "" if unknown.
func installedVersion(ctx context.Context, conn server.Connection, prefix, home string) (string, string) {
	var buf strings.Builder
	if err := tomcatInstallScriptTemplates.ExecuteTemplate(&buf, "version", scriptData{TomcatHome: home}); err != nil {
		return "", ""
	}
	out, err := conn.Run(ctx, taskutil.ShellCommand(prefix, buf.String()), 0)
	if err != nil {
		return "", ""
	}
	return ParseVersion(out.Stdout), out.Stdout
}

// ParseVersion reads RELEASE-NOTES or version.sh output.
func ParseVersion(output string) string {
	m := versionPattern.FindStringSubmatch(output)
	if m == nil {
		return ""
	}
	return m[1]
}
