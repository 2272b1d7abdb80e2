package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
)

// Rule scripts the response to any command containing Match. When Sequence
// is set, successive matches return its entries in order and the last one repeats.
type Rule struct {
	Match    string
	Output   server.Output
	Sequence []server.Output
	Err      error
	Delay    time.Duration
}

// FakeHost scripts one target for FakeConnector.
type FakeHost struct {
	OpenErr   error
	OpenDelay time.Duration
	Rules     []Rule
}

// FakeConnector is an in-memory Connector for tests. Unknown targets connect
// and answer every command with exit status 0.
type FakeConnector struct {
	mu      sync.Mutex
	hosts   map[string]*FakeHost
	conns   map[string]*FakeConnection
	opened  []string
	current int
	peak    int
}

func NewFakeConnector() *FakeConnector {
	return &FakeConnector{
		hosts: make(map[string]*FakeHost),
		conns: make(map[string]*FakeConnection),
	}
}

// Host registers the script for the target with the given ID.
func (f *FakeConnector) Host(id string, h FakeHost) *FakeConnector {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hosts[id] = &h
	return f
}

func (f *FakeConnector) Open(ctx context.Context, t server.Target) (server.Connection, error) {
	f.mu.Lock()
	h := f.hosts[t.ID()]
	f.opened = append(f.opened, t.ID())
	f.current++
	if f.current > f.peak {
		f.peak = f.current
	}
	f.mu.Unlock()

	if h == nil {
		h = &FakeHost{}
	}
	if err := sleepCtx(ctx, h.OpenDelay); err != nil {
		f.release()
		return nil, &server.ConnectionError{Kind: server.ConnTimeout, Address: t.Address(), Err: err}
	}
	if h.OpenErr != nil {
		f.release()
		return nil, h.OpenErr
	}

	conn := &FakeConnection{id: t.ID(), address: t.Address(), rules: h.Rules, onClose: f.release}
	f.mu.Lock()
	f.conns[t.ID()] = conn
	f.mu.Unlock()
	return conn, nil
}

func (f *FakeConnector) release() {
	f.mu.Lock()
	f.current--
	f.mu.Unlock()
}

// Opened returns target IDs in the order Open was called.
func (f *FakeConnector) Opened() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opened...)
}

// PeakOpen returns the highest number of simultaneously open connections.
func (f *FakeConnector) PeakOpen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

// Connection returns the connection opened for id, if any.
func (f *FakeConnector) Connection(id string) *FakeConnection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[id]
}

// FakeConnection replays Rules against commands.
type FakeConnection struct {
	id      string
	address string
	rules   []Rule
	onClose func()

	mu       sync.Mutex
	commands []string
	hits     map[int]int
	closes   int
}

// NewFakeConnection returns a standalone scripted connection.
func NewFakeConnection(id string, rules ...Rule) *FakeConnection {
	return &FakeConnection{id: id, address: id + ":22", rules: rules}
}

func (c *FakeConnection) ID() string      { return c.id }
func (c *FakeConnection) Address() string { return c.address }

func (c *FakeConnection) Run(ctx context.Context, command string, timeout time.Duration) (server.Output, error) {
	c.mu.Lock()
	c.commands = append(c.commands, command)
	closed := c.closes > 0
	c.mu.Unlock()

	if closed {
		return server.Output{ExitCode: -1}, &server.ExecutionError{Kind: server.ExecTransport, Command: command, Err: fmt.Errorf("connection closed")}
	}

	for i, r := range c.rules {
		if !strings.Contains(command, r.Match) {
			continue
		}
		out := r.Output
		if len(r.Sequence) > 0 {
			c.mu.Lock()
			if c.hits == nil {
				c.hits = make(map[int]int)
			}
			n := c.hits[i]
			c.hits[i]++
			c.mu.Unlock()
			out = r.Sequence[min(n, len(r.Sequence)-1)]
		}
		if r.Delay > 0 {
			waitCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				waitCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			if err := sleepCtx(waitCtx, r.Delay); err != nil {
				return server.Output{ExitCode: -1}, &server.ExecutionError{Kind: server.ExecTimeout, Command: command, Err: err}
			}
		}
		return out, r.Err
	}
	return server.Output{}, nil
}

func (c *FakeConnection) Close() error {
	c.mu.Lock()
	c.closes++
	first := c.closes == 1
	c.mu.Unlock()
	if first && c.onClose != nil {
		c.onClose()
	}
	return nil
}

// Commands returns every command passed to Run.
func (c *FakeConnection) Commands() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.commands...)
}

// Closes returns how many times Close was called.
func (c *FakeConnection) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
