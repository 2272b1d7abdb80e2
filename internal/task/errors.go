package task

import (
	"errors"
	"fmt"
	"time"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/taskutil"
)

// ConfigurationError reports invalid input detected before any host is contacted.
type ConfigurationError struct {
	Subject string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("configuration: %v", e.Err)
	}
	return fmt.Sprintf("configuration: %s: %v", e.Subject, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Configf builds a ConfigurationError from a format string.
func Configf(subject, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Subject: subject, Err: fmt.Errorf(format, args...)}
}

// ValidationTimeout is returned when a validate tool exhausts its retry budget.
type ValidationTimeout struct {
	Target     string
	Attempts   int
	Elapsed    time.Duration
	LastStatus int
	LastErr    error
}

func (e *ValidationTimeout) Error() string {
	msg := fmt.Sprintf("%s not healthy after %d attempts in %s", e.Target, e.Attempts, e.Elapsed.Round(time.Millisecond))
	switch {
	case e.LastErr != nil:
		msg += fmt.Sprintf(": last error: %v", e.LastErr)
	case e.LastStatus != 0:
		msg += fmt.Sprintf(": last status %d", e.LastStatus)
	}
	return msg
}

func (e *ValidationTimeout) Unwrap() error { return e.LastErr }

// PlatformFailure returns the failure recorded for a host whose operating
// system the tools cannot drive. It reports false when err is not an
// *taskutil.UnsupportedOSError.
func PlatformFailure(err error, details map[string]any) (Result, bool) {
	var osErr *taskutil.UnsupportedOSError
	if !errors.As(err, &osErr) {
		return Result{}, false
	}
	d := copyDetails(details)
	if d == nil {
		d = make(map[string]any, 2)
	}
	d["os"] = osErr.OS
	d["reason"] = "unsupported_os"
	return Failure("unsupported operating system "+osErr.OS, err, d), true
}
