package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"
)

func TestTargetIdentity(t *testing.T) {
	tests := []struct {
		name        string
		target      Target
		wantID      string
		wantAddress string
	}{
		{name: "named", target: Target{Name: "web-1", Host: "10.0.0.5", Port: 2222}, wantID: "web-1", wantAddress: "10.0.0.5:2222"},
		{name: "default port", target: Target{Host: "10.0.0.5"}, wantID: "10.0.0.5:22", wantAddress: "10.0.0.5:22"},
		{name: "ipv6", target: Target{Host: "::1", Port: 22}, wantID: "[::1]:22", wantAddress: "[::1]:22"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.target.ID(); got != tt.wantID {
				t.Errorf("ID() = %q, want %q", got, tt.wantID)
			}
			if got := tt.target.Address(); got != tt.wantAddress {
				t.Errorf("Address() = %q, want %q", got, tt.wantAddress)
			}
		})
	}
}

func TestOutputCombined(t *testing.T) {
	tests := []struct {
		out  Output
		want string
	}{
		{Output{Stdout: "a"}, "a"},
		{Output{Stderr: "b"}, "b"},
		{Output{Stdout: "a", Stderr: "b"}, "a\nb"},
	}
	for _, tt := range tests {
		if got := tt.out.Combined(); got != tt.want {
			t.Errorf("Combined() = %q, want %q", got, tt.want)
		}
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassifyErrors(t *testing.T) {
	ctx := context.Background()
	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	tests := []struct {
		name string
		got  *ConnectionError
		want ConnectionErrorKind
	}{
		{"dial refused", classifyDialError(ctx, "h:22", errors.New("connection refused")), ConnNetwork},
		{"dial timeout", classifyDialError(ctx, "h:22", fmt.Errorf("dial: %w", timeoutErr{})), ConnTimeout},
		{"dial cancelled", classifyDialError(cancelled, "h:22", errors.New("operation was canceled")), ConnTimeout},
		{"auth", classifyHandshakeError(ctx, "h:22", errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none password]")), ConnAuth},
		{"handshake eof", classifyHandshakeError(ctx, "h:22", errors.New("ssh: handshake failed: EOF")), ConnNetwork},
		{"handshake deadline", classifyHandshakeError(ctx, "h:22", context.DeadlineExceeded), ConnTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got.Kind != tt.want {
				t.Fatalf("kind = %q, want %q", tt.got.Kind, tt.want)
			}
			if tt.got.Address != "h:22" {
				t.Fatalf("address = %q", tt.got.Address)
			}
		})
	}
}

func TestIsTransportLoss(t *testing.T) {
	if !IsTransportLoss(fmt.Errorf("wrap: %w", &ExecutionError{Kind: ExecTransport})) {
		t.Fatal("expected transport loss")
	}
	if IsTransportLoss(&ExecutionError{Kind: ExecTimeout}) {
		t.Fatal("timeout is not transport loss")
	}
	if IsTransportLoss(errors.New("other")) {
		t.Fatal("plain error is not transport loss")
	}
}

func TestHandshakeDeadline(t *testing.T) {
	if _, ok := handshakeDeadline(context.Background(), 0); ok {
		t.Fatal("expected no deadline")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	deadline, ok := handshakeDeadline(ctx, time.Hour)
	if !ok {
		t.Fatal("expected deadline")
	}
	if time.Until(deadline) > time.Second {
		t.Fatalf("expected context deadline to win, got %s", time.Until(deadline))
	}
}

func TestAuthMethodsFor(t *testing.T) {
	methods, agentConn, err := authMethodsFor(User{Name: "deploy", Method: AuthPassword, Password: "secret"})
	if err != nil {
		t.Fatalf("password auth: %v", err)
	}
	if agentConn != nil || len(methods) != 2 {
		t.Fatalf("expected password and keyboard-interactive methods, got %d", len(methods))
	}

	if _, _, err := authMethodsFor(User{Name: "deploy", Method: AuthKey, SSHKey: "/nonexistent/id_rsa"}); err == nil {
		t.Fatal("expected error for missing key file")
	}
	if _, _, err := authMethodsFor(User{Name: "deploy"}); err == nil {
		t.Fatal("expected error for unresolved method")
	}
}
