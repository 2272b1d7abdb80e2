package taskutil

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
)

// Operating systems reported by DetectOS.
const (
	OSLinux   = "linux"
	OSWindows = "windows"
	OSDarwin  = "darwin"
	OSUnknown = "unknown"
)

// UnsupportedOSError means the host runs an operating system the tools cannot drive.
type UnsupportedOSError struct {
	OS  string
	Err error
}

func (e *UnsupportedOSError) Error() string {
	msg := fmt.Sprintf("unsupported operating system %s: only linux hosts are supported", e.OS)
	if e.Err != nil {
		msg += fmt.Sprintf(" (%v)", e.Err)
	}
	return msg
}

func (e *UnsupportedOSError) Unwrap() error { return e.Err }

// DetectOS identifies the remote operating system. Windows OpenSSH runs
// commands through cmd.exe or PowerShell, where uname is missing, so
// `cmd /c ver` is tried when uname gives no answer.
func DetectOS(ctx context.Context, conn server.Connection) (string, error) {
	out, err := conn.Run(ctx, "uname -s", 0)
	if err != nil {
		return OSUnknown, fmt.Errorf("detect os: %w", err)
	}
	if out.Success() {
		name := strings.ToLower(strings.TrimSpace(out.Stdout))
		switch {
		case name == "linux":
			return OSLinux, nil
		case name == "darwin":
			return OSDarwin, nil
		case strings.HasPrefix(name, "mingw"), strings.HasPrefix(name, "msys"), strings.HasPrefix(name, "cygwin"):
			return OSWindows, nil
		case name != "":
			return name, nil
		}
	}

	out, err = conn.Run(ctx, "cmd /c ver", 0)
	if err != nil {
		return OSUnknown, fmt.Errorf("detect os: %w", err)
	}
	if strings.Contains(strings.ToLower(out.Combined()), "windows") {
		return OSWindows, nil
	}
	return OSUnknown, nil
}

// ClassifyPlatform is called on the failure path of a tool's first remote
// command. It returns an *UnsupportedOSError wrapping err when the host is
// identified as something other than Linux, and err unchanged otherwise.
// Connection errors are returned as is since the host cannot be queried.
func ClassifyPlatform(ctx context.Context, conn server.Connection, err error) error {
	var execErr *server.ExecutionError
	var osErr *UnsupportedOSError
	if err == nil || errors.As(err, &execErr) || errors.As(err, &osErr) {
		return err
	}
	name, detectErr := DetectOS(ctx, conn)
	if detectErr != nil || name == OSLinux || name == OSUnknown {
		return err
	}
	return &UnsupportedOSError{OS: name, Err: err}
}
