// Package javainstall installs a JDK from a tarball when no Java runtime is present.
package javainstall

import (
	"context"
	"fmt"
	"path"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/javacheck"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/taskutil"
)

const (
	Name               = "java_install"
	DefaultInstallDir  = "/opt/java"
	DefaultArchivePath = "/tmp/jdk.tar.gz"
	DefaultLinkPath    = "/usr/local/bin/java"
)

type JavaInstall struct{}

func New() task.Tool { return &JavaInstall{} }

func (*JavaInstall) Name() string            { return Name }
func (*JavaInstall) Category() task.Category { return task.CategoryInstall }
func (*JavaInstall) Description() string {
	return "Install a JDK tarball unless Java is already available"
}

func (*JavaInstall) Params() []task.Param {
	return []task.Param{
		{Name: "download_url", Type: task.TypeString, Description: "JDK .tar.gz URL, needed only when Java is missing"},
		{Name: "install_dir", Type: task.TypeString, Default: DefaultInstallDir, Description: "Directory the JDK is extracted into"},
		{Name: "archive_path", Type: task.TypeString, Default: DefaultArchivePath, Description: "Temporary download location"},
		{Name: "link_path", Type: task.TypeString, Default: DefaultLinkPath, Description: "Symlink created for the java binary; empty to skip"},
		{Name: "java_bin", Type: task.TypeString, Default: javacheck.DefaultJavaBin, Description: "Java executable checked before installing"},
	}
}

type scriptData struct {
	DownloadURL string
	InstallDir  string
	ArchivePath string
	LinkPath    string
}

func (*JavaInstall) Execute(ctx context.Context, conn server.Connection, p task.Params) task.Result {
	if version, raw, err := javacheck.Detect(ctx, conn, p.String("java_bin")); err == nil {
		return task.Skipped("java "+version+" already installed", map[string]any{"version": version}).WithRawOutput(raw)
	} else if res, ok := task.PlatformFailure(err, nil); ok {
		return res.WithRawOutput(raw)
	} else if server.IsTransportLoss(err) {
		return task.Failure("java detection failed", err, nil)
	}

	data := scriptData{
		DownloadURL: p.String("download_url"),
		InstallDir:  p.String("install_dir"),
		ArchivePath: p.String("archive_path"),
		LinkPath:    p.String("link_path"),
	}
	if data.DownloadURL == "" {
		return task.Failure("java is missing and no download_url is configured",
			task.Configf("java_install", "download_url is required when java is not installed"), nil)
	}

	prefix, err := taskutil.SudoPrefix(ctx, conn)
	if err != nil {
		if res, ok := task.PlatformFailure(err, nil); ok {
			return res
		}
		return task.Failure("unable to determine privileges", err, nil)
	}

	script, err := taskutil.RenderScript(javaInstallScriptTemplates, data)
	if err != nil {
		return task.Failure("render install script", err, nil)
	}
	out, err := taskutil.RunChecked(ctx, conn, taskutil.ShellCommand(prefix, script))
	if err != nil {
		return task.Failure("java installation failed", err, map[string]any{"download_url": data.DownloadURL}).WithRawOutput(out.Combined())
	}

	javaBin := path.Join(data.InstallDir, "bin", "java")
	version, raw, err := javacheck.Detect(ctx, conn, javaBin)
	if err != nil {
		return task.Failure("installed java does not run", err, map[string]any{"java_home": data.InstallDir}).WithRawOutput(raw)
	}
	return task.Success(fmt.Sprintf("java %s installed to %s", version, data.InstallDir), map[string]any{
		"java_home":    data.InstallDir,
		"version":      version,
		"download_url": data.DownloadURL,
	}).WithRawOutput(out.Combined())
}
