package tomcatstart

import (
	"embed"
	"text/template"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/taskutil"
)

//go:embed scripts/*.sh.tmpl
var tomcatStartScriptsFS embed.FS

var tomcatStartScriptTemplates = template.Must(template.New("tomcatstart").
	Funcs(taskutil.ScriptFuncs).
	Option("missingkey=error").
	ParseFS(tomcatStartScriptsFS, "scripts/*.sh.tmpl"))
