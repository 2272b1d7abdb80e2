package javainstall

import (
	"embed"
	"text/template"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/taskutil"
)

//go:embed scripts/*.sh.tmpl
var javaInstallScriptsFS embed.FS

var javaInstallScriptTemplates = template.Must(template.New("javainstall").
	Funcs(taskutil.ScriptFuncs).
	Option("missingkey=error").
	ParseFS(javaInstallScriptsFS, "scripts/*.sh.tmpl"))
