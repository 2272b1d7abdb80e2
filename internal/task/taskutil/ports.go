package taskutil

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
)

const listeningPortsScript = `if command -v ss >/dev/null 2>&1; then ss -ltn; ` +
	`elif command -v netstat >/dev/null 2>&1; then netstat -ltn; ` +
	`else echo 'neither ss nor netstat is available' >&2; exit 127; fi`

// ErrNoPortTool means the host has neither ss nor netstat.
var ErrNoPortTool = errors.New("neither ss nor netstat is available")

// ListeningPorts returns the set of TCP ports in LISTEN state on the host.
func ListeningPorts(ctx context.Context, conn server.Connection) (map[int]struct{}, string, error) {
	out, err := conn.Run(ctx, "sh -c "+ShellEscape(listeningPortsScript), 0)
	if err != nil {
		return nil, "", fmt.Errorf("list listening ports: %w", err)
	}
	if out.ExitCode == 127 {
		return nil, out.Combined(), ErrNoPortTool
	}
	if !out.Success() {
		err := fmt.Errorf("list listening ports: exit status %d: %s", out.ExitCode, strings.TrimSpace(out.Combined()))
		return nil, out.Combined(), ClassifyPlatform(ctx, conn, err)
	}
	ports, err := ParseListeningPorts(out.Stdout)
	return ports, out.Stdout, err
}

// ParseListeningPorts reads `ss -ltn` or `netstat -ltn` output. Both place the
// local address in the fourth column.
func ParseListeningPorts(output string) (map[int]struct{}, error) {
	ports := make(map[int]struct{})
	err := ScanLines(output, func(line string) {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return
		}
		local := fields[3]
		idx := strings.LastIndex(local, ":")
		if idx < 0 {
			return
		}
		port, err := strconv.Atoi(local[idx+1:])
		if err != nil {
			return
		}
		ports[port] = struct{}{}
	})
	if err != nil {
		return nil, err
	}
	return ports, nil
}
