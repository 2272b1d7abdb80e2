package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	defaultSSHHandshakeTimeout = 15 * time.Second
	defaultCommandTimeout      = 10 * time.Minute
	sudoNonInteractivePrefix   = "sudo -n "
)

// SSHConnector opens SSH sessions with golang.org/x/crypto/ssh.
type SSHConnector struct{}

// NewSSHConnector returns a Connector backed by SSH.
func NewSSHConnector() *SSHConnector { return &SSHConnector{} }

func (c *SSHConnector) Open(ctx context.Context, t Target) (Connection, error) {
	addr := t.Address()

	authMethods, agentConn, err := authMethodsFor(t.User)
	if err != nil {
		return nil, &ConnectionError{Kind: ConnAuth, Address: addr, Err: err}
	}
	closeAgent := func() {
		if agentConn != nil {
			agentConn.Close()
		}
	}

	hostKeyCallback, err := hostKeyCallbackFor(t)
	if err != nil {
		closeAgent()
		return nil, &ConnectionError{Kind: ConnHostKey, Address: addr, Err: err}
	}

	config := &ssh.ClientConfig{
		User:            t.User.Name,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		closeAgent()
		return nil, classifyDialError(ctx, addr, fmt.Errorf("dial: %w", err))
	}

	if err := applyHandshakeDeadline(ctx, conn, handshakeTimeout(t)); err != nil {
		conn.Close()
		closeAgent()
		return nil, &ConnectionError{Kind: ConnNetwork, Address: addr, Err: err}
	}
	handshakeDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-handshakeDone:
		}
	}()

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	close(handshakeDone)
	if err != nil {
		conn.Close()
		closeAgent()
		return nil, classifyHandshakeError(ctx, addr, err)
	}
	if err := clearDeadline(conn); err != nil {
		sshConn.Close()
		closeAgent()
		return nil, &ConnectionError{Kind: ConnNetwork, Address: addr, Err: err}
	}

	return &sshConnection{
		id:           t.ID(),
		address:      addr,
		client:       ssh.NewClient(sshConn, chans, reqs),
		agentConn:    agentConn,
		sudoPassword: t.User.SudoPassword,
	}, nil
}

type sshConnection struct {
	id           string
	address      string
	client       *ssh.Client
	agentConn    net.Conn
	sudoPassword string

	closeOnce sync.Once
	closeErr  error
}

func (c *sshConnection) ID() string      { return c.id }
func (c *sshConnection) Address() string { return c.address }

func (c *sshConnection) Run(ctx context.Context, command string, timeout time.Duration) (Output, error) {
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}

	session, err := c.client.NewSession()
	if err != nil {
		return Output{ExitCode: -1}, &ExecutionError{Kind: ExecTransport, Command: command, Err: fmt.Errorf("create session: %w", err)}
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	commandToRun := command
	if c.sudoPassword != "" && strings.HasPrefix(command, sudoNonInteractivePrefix) {
		commandToRun = "sudo -S -p '' " + strings.TrimPrefix(command, sudoNonInteractivePrefix)
		session.Stdin = strings.NewReader(c.sudoPassword + "\n")
	}

	if err := session.Start(commandToRun); err != nil {
		return Output{ExitCode: -1}, &ExecutionError{Kind: ExecTransport, Command: command, Err: fmt.Errorf("start: %w", err)}
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err = <-done:
	case <-timer.C:
		abort(session)
		return partialOutput(&stdout, &stderr), &ExecutionError{Kind: ExecTimeout, Command: command, Err: fmt.Errorf("no exit status after %s", timeout)}
	case <-ctx.Done():
		abort(session)
		return partialOutput(&stdout, &stderr), &ExecutionError{Kind: ExecTimeout, Command: command, Err: ctx.Err()}
	}

	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return out, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitStatus()
		return out, nil
	}
	out.ExitCode = -1
	return out, &ExecutionError{Kind: ExecTransport, Command: command, Err: err}
}

func (c *sshConnection) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.client.Close()
		if errors.Is(c.closeErr, net.ErrClosed) || errors.Is(c.closeErr, io.EOF) {
			c.closeErr = nil
		}
		if c.agentConn != nil {
			c.agentConn.Close()
		}
	})
	return c.closeErr
}

func abort(session *ssh.Session) {
	_ = session.Signal(ssh.SIGKILL)
	_ = session.Close()
}

func partialOutput(stdout, stderr *bytes.Buffer) Output {
	return Output{ExitCode: -1, Stdout: stdout.String(), Stderr: stderr.String()}
}

func authMethodsFor(user User) ([]ssh.AuthMethod, net.Conn, error) {
	switch user.Method {
	case AuthKey:
		expandedPath, err := expandPath(user.SSHKey)
		if err != nil {
			return nil, nil, fmt.Errorf("expand ssh key path %q: %w", user.SSHKey, err)
		}
		key, err := os.ReadFile(expandedPath)
		if err != nil {
			return nil, nil, fmt.Errorf("read ssh key %q: %w", expandedPath, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, nil, fmt.Errorf("parse ssh key %q: %w", expandedPath, err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil, nil
	case AuthPassword:
		password := user.Password
		return []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		}, nil, nil
	case AuthAgent:
		sock := os.Getenv("SSH_AUTH_SOCK")
		if sock == "" {
			return nil, nil, errors.New("ssh agent requested but SSH_AUTH_SOCK is not set")
		}
		agentConn, err := net.Dial("unix", sock)
		if err != nil {
			return nil, nil, fmt.Errorf("dial ssh agent: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeysCallback(agent.NewClient(agentConn).Signers)}, agentConn, nil
	default:
		return nil, nil, fmt.Errorf("no ssh authentication method resolved for user %q", user.Name)
	}
}

func hostKeyCallbackFor(t Target) (ssh.HostKeyCallback, error) {
	if t.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	knownHostsPath, err := resolveKnownHostsPath(t.KnownHostsPath)
	if err != nil {
		return nil, err
	}
	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts file %q: %w", knownHostsPath, err)
	}
	return callback, nil
}

func handshakeTimeout(t Target) time.Duration {
	if t.HandshakeTimeout > 0 {
		return t.HandshakeTimeout
	}
	return defaultSSHHandshakeTimeout
}

func applyHandshakeDeadline(ctx context.Context, conn net.Conn, timeout time.Duration) error {
	deadline, ok := handshakeDeadline(ctx, timeout)
	if !ok {
		return nil
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("set ssh handshake deadline: %w", err)
	}
	return nil
}

func clearDeadline(conn net.Conn) error {
	if err := conn.SetDeadline(time.Time{}); err != nil {
		return fmt.Errorf("clear ssh handshake deadline: %w", err)
	}
	return nil
}

func handshakeDeadline(ctx context.Context, timeout time.Duration) (time.Time, bool) {
	var deadline time.Time
	now := time.Now()
	if timeout > 0 {
		deadline = now.Add(timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok {
		if deadline.IsZero() || ctxDeadline.Before(deadline) {
			deadline = ctxDeadline
		}
	}
	if deadline.IsZero() {
		return time.Time{}, false
	}
	return deadline, true
}

func resolveKnownHostsPath(path string) (string, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory for known_hosts: %w", err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
