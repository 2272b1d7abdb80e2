package taskutil

import (
	"context"
	"fmt"
	"strings"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
)

// SudoPrefix returns "sudo -n " unless the session already runs as root.
func SudoPrefix(ctx context.Context, conn server.Connection) (string, error) {
	out, err := conn.Run(ctx, "id -u", 0)
	if err != nil {
		return "", fmt.Errorf("check for root user: %w", err)
	}
	if !out.Success() {
		err := fmt.Errorf("check for root user: exit status %d: %s", out.ExitCode, strings.TrimSpace(out.Combined()))
		return "", ClassifyPlatform(ctx, conn, err)
	}
	if strings.TrimSpace(out.Stdout) == "0" {
		return "", nil
	}
	return "sudo -n ", nil
}

// RunChecked runs command and turns a non-zero exit status into an error.
// Errors from the connection are wrapped so their kind stays inspectable.
func RunChecked(ctx context.Context, conn server.Connection, command string) (server.Output, error) {
	out, err := conn.Run(ctx, command, 0)
	if err != nil {
		return out, err
	}
	if !out.Success() {
		return out, fmt.Errorf("exit status %d: %s", out.ExitCode, Truncate(strings.TrimSpace(out.Combined()), 512))
	}
	return out, nil
}

// PathExists reports whether path exists on the remote host.
func PathExists(ctx context.Context, conn server.Connection, prefix, path string) (bool, error) {
	out, err := conn.Run(ctx, prefix+"test -e "+ShellEscape(path), 0)
	if err != nil {
		return false, fmt.Errorf("check path %q: %w", path, err)
	}
	return out.Success(), nil
}

// Truncate shortens s to at most n bytes, marking the cut.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
