package tomcatinstall

import (
	"embed"
	"text/template"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/taskutil"
)

//go:embed scripts/*.sh.tmpl
var tomcatInstallScriptsFS embed.FS

var tomcatInstallScriptTemplates = template.Must(template.New("tomcatinstall").
	Funcs(taskutil.ScriptFuncs).
	Option("missingkey=error").
	ParseFS(tomcatInstallScriptsFS, "scripts/*.sh.tmpl"))
