package taskutil

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
)

type stubConn struct {
	out  map[string]server.Output
	err  error
	seen []string
}

func (s *stubConn) ID() string      { return "stub" }
func (s *stubConn) Address() string { return "stub:22" }
func (s *stubConn) Close() error    { return nil }
func (s *stubConn) Run(_ context.Context, command string, _ time.Duration) (server.Output, error) {
	s.seen = append(s.seen, command)
	if s.err != nil {
		return server.Output{ExitCode: -1}, s.err
	}
	for match, out := range s.out {
		if strings.Contains(command, match) {
			return out, nil
		}
	}
	return server.Output{}, nil
}

func TestShellEscape(t *testing.T) {
	cases := map[string]string{
		"":          "''",
		"plain":     "'plain'",
		"it's":      `'it'"'"'s'`,
		"/opt/a b":  "'/opt/a b'",
		"$(reboot)": "'$(reboot)'",
	}
	for in, want := range cases {
		if got := ShellEscape(in); got != want {
			t.Errorf("ShellEscape(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateIdentifier(t *testing.T) {
	cases := []struct {
		value string
		ok    bool
	}{
		{"disk_check", true},
		{"tomcat-start.v2", true},
		{"", false},
		{" disk", false},
		{"rm -rf", false},
	}
	for _, tc := range cases {
		err := ValidateIdentifier("tool", tc.value)
		if (err == nil) != tc.ok {
			t.Errorf("ValidateIdentifier(%q) error = %v, want ok=%v", tc.value, err, tc.ok)
		}
	}
}

func TestSudoPrefix(t *testing.T) {
	cases := []struct {
		name   string
		stdout string
		want   string
	}{
		{name: "root", stdout: "0\n", want: ""},
		{name: "regular user", stdout: "1000\n", want: "sudo -n "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn := &stubConn{out: map[string]server.Output{"id -u": {Stdout: tc.stdout}}}
			got, err := SudoPrefix(context.Background(), conn)
			if err != nil {
				t.Fatalf("SudoPrefix failed: %v", err)
			}
			if got != tc.want {
				t.Fatalf("SudoPrefix = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRunCheckedKeepsTransportErrors(t *testing.T) {
	conn := &stubConn{err: &server.ExecutionError{Kind: server.ExecTransport, Err: errors.New("eof")}}
	_, err := RunChecked(context.Background(), conn, "true")
	if !server.IsTransportLoss(err) {
		t.Fatalf("expected transport loss, got %v", err)
	}

	conn = &stubConn{out: map[string]server.Output{"false": {ExitCode: 1, Stderr: "boom"}}}
	_, err = RunChecked(context.Background(), conn, "false")
	if err == nil || !strings.Contains(err.Error(), "exit status 1: boom") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestParseListeningPorts(t *testing.T) {
	cases := []struct {
		name   string
		output string
		want   []int
	}{
		{
			name: "ss",
			output: `State  Recv-Q Send-Q Local Address:Port Peer Address:Port Process
LISTEN 0      100          0.0.0.0:8080      0.0.0.0:*
LISTEN 0      4096   127.0.0.53%lo:53        0.0.0.0:*
LISTEN 0      100             [::]:8005         [::]:*
`,
			want: []int{8080, 53, 8005},
		},
		{
			name: "netstat",
			output: `Active Internet connections (only servers)
Proto Recv-Q Send-Q Local Address           Foreign Address         State
tcp        0      0 0.0.0.0:22              0.0.0.0:*               LISTEN
tcp6       0      0 :::8009                 :::*                    LISTEN
`,
			want: []int{22, 8009},
		},
		{name: "empty", output: "", want: nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseListeningPorts(tc.output)
			if err != nil {
				t.Fatalf("ParseListeningPorts failed: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d ports, got %v", len(tc.want), got)
			}
			for _, port := range tc.want {
				if _, ok := got[port]; !ok {
					t.Errorf("expected port %d in %v", port, got)
				}
			}
		})
	}
}

func TestListeningPortsWithoutTools(t *testing.T) {
	conn := &stubConn{out: map[string]server.Output{"ss": {ExitCode: 127, Stderr: "neither ss nor netstat is available"}}}
	_, _, err := ListeningPorts(context.Background(), conn)
	if !errors.Is(err, ErrNoPortTool) {
		t.Fatalf("expected ErrNoPortTool, got %v", err)
	}
}

func TestFirstLine(t *testing.T) {
	if got := FirstLine("\n  \n openjdk 17 \nsecond"); got != "openjdk 17" {
		t.Fatalf("FirstLine = %q", got)
	}
}

func TestAttempts(t *testing.T) {
	cases := []struct {
		timeout, interval time.Duration
		want              int
	}{
		{10 * time.Second, 2 * time.Second, 5},
		{time.Second, 2 * time.Second, 1},
		{time.Second, 0, 1},
		{120 * time.Second, 2 * time.Second, 60},
	}
	for _, tc := range cases {
		if got := Attempts(tc.timeout, tc.interval); got != tc.want {
			t.Errorf("Attempts(%s, %s) = %d, want %d", tc.timeout, tc.interval, got, tc.want)
		}
	}
}

func TestWaitForPort(t *testing.T) {
	listening := server.Output{Stdout: "LISTEN 0 100 0.0.0.0:8080 0.0.0.0:*\n"}

	conn := &stubConn{out: map[string]server.Output{"ss -ltn": listening}}
	if err := WaitForPort(context.Background(), conn, 8080, true, 10*time.Millisecond, time.Millisecond); err != nil {
		t.Fatalf("expected port to be listening: %v", err)
	}

	conn = &stubConn{out: map[string]server.Output{"ss -ltn": listening}}
	err := WaitForPort(context.Background(), conn, 8080, false, 5*time.Millisecond, time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout waiting for port to close")
	}
	if len(conn.seen) != 5 {
		t.Fatalf("expected 5 polls, got %d", len(conn.seen))
	}
}

func TestDetectOS(t *testing.T) {
	cases := []struct {
		name string
		out  map[string]server.Output
		want string
	}{
		{name: "linux", out: map[string]server.Output{"uname -s": {Stdout: "Linux\n"}}, want: OSLinux},
		{name: "darwin", out: map[string]server.Output{"uname -s": {Stdout: "Darwin\n"}}, want: OSDarwin},
		{name: "freebsd", out: map[string]server.Output{"uname -s": {Stdout: "FreeBSD\n"}}, want: "freebsd"},
		{name: "git bash on windows", out: map[string]server.Output{"uname -s": {Stdout: "MINGW64_NT-10.0-20348\n"}}, want: OSWindows},
		{
			name: "windows cmd",
			out: map[string]server.Output{
				"uname -s":   {ExitCode: 9009, Stderr: "'uname' is not recognized as an internal or external command"},
				"cmd /c ver": {Stdout: "\r\nMicrosoft Windows [Version 10.0.20348.2113]\r\n"},
			},
			want: OSWindows,
		},
		{name: "no answer", out: nil, want: OSUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DetectOS(context.Background(), &stubConn{out: tc.out})
			if err != nil {
				t.Fatalf("DetectOS failed: %v", err)
			}
			if got != tc.want {
				t.Fatalf("DetectOS = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestClassifyPlatform(t *testing.T) {
	cause := errors.New("exit status 1")
	windows := map[string]server.Output{
		"uname -s":   {ExitCode: 1},
		"cmd /c ver": {Stdout: "Microsoft Windows [Version 10.0.17763.5458]"},
	}

	t.Run("windows host", func(t *testing.T) {
		err := ClassifyPlatform(context.Background(), &stubConn{out: windows}, cause)
		var osErr *UnsupportedOSError
		if !errors.As(err, &osErr) || osErr.OS != OSWindows {
			t.Fatalf("ClassifyPlatform = %v, want UnsupportedOSError for windows", err)
		}
		if !errors.Is(err, cause) {
			t.Fatalf("expected the original error to be wrapped, got %v", err)
		}
	})

	t.Run("linux host keeps error", func(t *testing.T) {
		conn := &stubConn{out: map[string]server.Output{"uname -s": {Stdout: "Linux\n"}}}
		if err := ClassifyPlatform(context.Background(), conn, cause); err != cause {
			t.Fatalf("ClassifyPlatform = %v, want original error", err)
		}
	})

	t.Run("connection errors skip os detection", func(t *testing.T) {
		conn := &stubConn{out: windows}
		execErr := &server.ExecutionError{Kind: server.ExecTransport, Err: errors.New("eof")}
		if err := ClassifyPlatform(context.Background(), conn, execErr); err != execErr {
			t.Fatalf("ClassifyPlatform = %v, want original error", err)
		}
		if len(conn.seen) != 0 {
			t.Fatalf("expected no detection commands, got %v", conn.seen)
		}
	})
}

func TestSudoPrefixOnWindows(t *testing.T) {
	conn := &stubConn{out: map[string]server.Output{
		"id -u":      {ExitCode: 9009, Stderr: "'id' is not recognized as an internal or external command"},
		"uname -s":   {ExitCode: 9009},
		"cmd /c ver": {Stdout: "Microsoft Windows [Version 10.0.20348.2113]"},
	}}
	_, err := SudoPrefix(context.Background(), conn)
	var osErr *UnsupportedOSError
	if !errors.As(err, &osErr) {
		t.Fatalf("SudoPrefix error = %v, want UnsupportedOSError", err)
	}
}
