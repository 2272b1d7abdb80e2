package taskutil

import (
	"fmt"
	"strings"
	"text/template"
)

// ShellEscape returns a single-quoted shell literal for value.
func ShellEscape(value string) string {
	if value == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}

// ShellCommand wraps script in sh -c behind the sudo prefix.
func ShellCommand(prefix, script string) string {
	return prefix + "sh -c " + ShellEscape(script)
}

// ScriptFuncs are the helpers available to embedded script templates.
var ScriptFuncs = template.FuncMap{
	"shellEscape": ShellEscape,
}

// RenderScript executes the "main" template of a script set.
func RenderScript(tmpl *template.Template, data any) (string, error) {
	var buf strings.Builder
	if err := tmpl.ExecuteTemplate(&buf, "main", data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}
