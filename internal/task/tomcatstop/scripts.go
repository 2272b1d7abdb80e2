package tomcatstop

import (
	"embed"
	"text/template"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/taskutil"
)

//go:embed scripts/*.sh.tmpl
var tomcatStopScriptsFS embed.FS

var tomcatStopScriptTemplates = template.Must(template.New("tomcatstop").
	Funcs(taskutil.ScriptFuncs).
	Option("missingkey=error").
	ParseFS(tomcatStopScriptsFS, "scripts/*.sh.tmpl"))
