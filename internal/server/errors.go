package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"golang.org/x/crypto/ssh/knownhosts"
)

// ConnectionErrorKind classifies why a session could not be opened.
type ConnectionErrorKind string

const (
	ConnAuth    ConnectionErrorKind = "auth"
	ConnNetwork ConnectionErrorKind = "network"
	ConnTimeout ConnectionErrorKind = "timeout"
	ConnHostKey ConnectionErrorKind = "host_key"
)

// ConnectionError is returned by Connector.Open.
type ConnectionError struct {
	Kind    ConnectionErrorKind
	Address string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s (%s): %v", e.Address, e.Kind, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ExecutionErrorKind classifies why a command did not complete.
type ExecutionErrorKind string

const (
	ExecTimeout   ExecutionErrorKind = "timeout"
	ExecTransport ExecutionErrorKind = "transport"
)

// ExecutionError is returned by Connection.Run when a command produced no exit status.
type ExecutionError struct {
	Kind    ExecutionErrorKind
	Command string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("command %q (%s): %v", e.Command, e.Kind, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// IsTransportLoss reports whether err means the connection can no longer be used.
func IsTransportLoss(err error) bool {
	var execErr *ExecutionError
	return errors.As(err, &execErr) && execErr.Kind == ExecTransport
}

func classifyDialError(ctx context.Context, addr string, err error) *ConnectionError {
	kind := ConnNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = ConnTimeout
	}
	return &ConnectionError{Kind: kind, Address: addr, Err: err}
}

func classifyHandshakeError(ctx context.Context, addr string, err error) *ConnectionError {
	var keyErr *knownhosts.KeyError
	var revoked *knownhosts.RevokedError
	var netErr net.Error
	switch {
	case errors.As(err, &keyErr), errors.As(err, &revoked):
		return &ConnectionError{Kind: ConnHostKey, Address: addr, Err: err}
	case strings.Contains(err.Error(), "unable to authenticate"):
		return &ConnectionError{Kind: ConnAuth, Address: addr, Err: err}
	case errors.Is(err, context.DeadlineExceeded), ctx.Err() != nil, errors.As(err, &netErr) && netErr.Timeout():
		return &ConnectionError{Kind: ConnTimeout, Address: addr, Err: err}
	default:
		return &ConnectionError{Kind: ConnNetwork, Address: addr, Err: err}
	}
}
