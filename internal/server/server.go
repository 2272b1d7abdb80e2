package server

import (
	"context"
	"net"
	"strconv"
	"time"
)

// DefaultSSHPort is used when a target does not specify a port.
const DefaultSSHPort = 22

// Target holds everything needed to reach and provision one host.
type Target struct {
	Name                  string
	Host                  string
	Port                  int
	User                  User
	KnownHostsPath        string
	InsecureIgnoreHostKey bool
	HandshakeTimeout      time.Duration
	// Params are per-host parameter overrides applied to every step that declares them.
	Params map[string]any
}

// ID returns the identity used to key and order reports.
func (t Target) ID() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Address()
}

// Address returns host:port for dialing.
func (t Target) Address() string {
	port := t.Port
	if port <= 0 {
		port = DefaultSSHPort
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

// Output is the outcome of one remote command.
type Output struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Combined returns stdout followed by stderr.
func (o Output) Combined() string {
	if o.Stderr == "" {
		return o.Stdout
	}
	if o.Stdout == "" {
		return o.Stderr
	}
	return o.Stdout + "\n" + o.Stderr
}

// Success reports whether the command exited with status zero.
func (o Output) Success() bool { return o.ExitCode == 0 }

// Connection is an open remote-shell session to a single host.
type Connection interface {
	// ID returns the identity of the connected target.
	ID() string
	// Address returns the dialed host:port.
	Address() string
	// Run executes command and waits for it to finish or for timeout to elapse.
	// A non-zero exit status is reported in Output, not as an error.
	Run(ctx context.Context, command string, timeout time.Duration) (Output, error)
	// Close releases the session. It is safe to call more than once.
	Close() error
}

// Connector opens connections to targets.
type Connector interface {
	Open(ctx context.Context, t Target) (Connection, error)
}
