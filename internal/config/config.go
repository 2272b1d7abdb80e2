package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task"
	goconfig "github.com/tpodg/go-config"
)

const (
	DefaultConfigFileName = ".tomcatctl.yaml"
	EnvPrefix             = "TOMCATCTL"

	DefaultParallelism    = 4
	DefaultHostTimeout    = 30 * time.Minute
	DefaultCommandTimeout = 10 * time.Minute
	DefaultLogLevel       = "info"
	DefaultHistoryPath    = "~/.tomcatctl/history.db"
)

type Config struct {
	Parallelism    int            `yaml:"parallelism"`
	HostTimeout    time.Duration  `yaml:"host_timeout"`
	CommandTimeout time.Duration  `yaml:"command_timeout"`
	LogLevel       string         `yaml:"log_level"`
	History        HistoryConfig  `yaml:"history"`
	Servers        []ServerConfig `yaml:"servers"`
	// Workflows holds raw definitions keyed by name, merged over the built-in workflows.
	Workflows map[string]any `yaml:"workflows"`
}

type HistoryConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

type UserConfig struct {
	Name         string `yaml:"name"`
	Password     string `yaml:"password"`
	SSHKey       string `yaml:"ssh_key"`
	SudoPassword string `yaml:"sudo_password"`
}

type ServerConfig struct {
	Name                  string         `yaml:"name"`
	Address               string         `yaml:"address"`
	Port                  int            `yaml:"port"`
	User                  UserConfig     `yaml:"user"`
	UseAgent              *bool          `yaml:"use_agent"`
	KnownHostsPath        string         `yaml:"known_hosts"`
	InsecureIgnoreHostKey bool           `yaml:"insecure_ignore_host_key"`
	HandshakeTimeout      time.Duration  `yaml:"handshake_timeout"`
	Params                map[string]any `yaml:"params"`
}

// Load the configuration from the given file or default locations.
func Load(cfgFile string) (*Config, error) {
	path, err := findConfigFile(cfgFile)
	if err != nil {
		return nil, err
	}

	c := goconfig.New()
	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for %s: %w", path, err)
		}
		c.WithProviders(&goconfig.Yaml{Path: absPath})
	}

	c.WithProviders(&goconfig.Env{Prefix: EnvPrefix})

	cfg := &Config{}
	if err := c.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Parallelism <= 0 {
		c.Parallelism = DefaultParallelism
	}
	if c.HostTimeout <= 0 {
		c.HostTimeout = DefaultHostTimeout
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.History.Path == "" {
		c.History.Path = DefaultHistoryPath
	}
}

// Level parses LogLevel. Unknown values fall back to info.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Targets resolves every configured server, or the named subset in the
// given order. All problems are reported together.
func (c *Config) Targets(names ...string) ([]server.Target, error) {
	selected := c.Servers
	if len(names) > 0 {
		var err error
		if selected, err = c.selectServers(names); err != nil {
			return nil, err
		}
	}
	if len(selected) == 0 {
		return nil, task.Configf("servers", "no servers configured")
	}

	var errs []error
	targets := make([]server.Target, 0, len(selected))
	for _, s := range selected {
		t, err := s.Target()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		targets = append(targets, t)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return targets, nil
}

func (c *Config) selectServers(names []string) ([]ServerConfig, error) {
	var out []ServerConfig
	var missing []string
	for _, name := range names {
		i := slices.IndexFunc(c.Servers, func(s ServerConfig) bool { return s.id() == name })
		if i < 0 {
			missing = append(missing, name)
			continue
		}
		out = append(out, c.Servers[i])
	}
	if len(missing) > 0 {
		known := make([]string, len(c.Servers))
		for i, s := range c.Servers {
			known[i] = s.id()
		}
		return nil, task.Configf("servers", "unknown server(s) %s (configured: %s)", strings.Join(missing, ", "), strings.Join(known, ", "))
	}
	return out, nil
}

func (s ServerConfig) id() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Address
}

// Target resolves the server into connection parameters. Exactly one of
// user.password, user.ssh_key or use_agent must select the authentication method.
func (s ServerConfig) Target() (server.Target, error) {
	subject := "server " + s.id()
	var errs []error

	host, port, err := splitAddress(s.Address, s.Port)
	if err != nil {
		errs = append(errs, err)
	}
	if s.User.Name == "" {
		errs = append(errs, errors.New("user.name is required"))
	}

	var methods []server.AuthMethod
	if s.User.Password != "" {
		methods = append(methods, server.AuthPassword)
	}
	if s.User.SSHKey != "" {
		methods = append(methods, server.AuthKey)
	}
	if s.UseAgent != nil && *s.UseAgent {
		methods = append(methods, server.AuthAgent)
	}
	var method server.AuthMethod
	switch len(methods) {
	case 0:
		errs = append(errs, errors.New("no authentication method: set user.password, user.ssh_key or use_agent"))
	case 1:
		method = methods[0]
	default:
		errs = append(errs, fmt.Errorf("ambiguous authentication: %v are all set", methods))
	}

	if len(errs) > 0 {
		return server.Target{}, &task.ConfigurationError{Subject: subject, Err: errors.Join(errs...)}
	}

	return server.Target{
		Name: s.Name,
		Host: host,
		Port: port,
		User: server.User{
			Name:         s.User.Name,
			Method:       method,
			Password:     s.User.Password,
			SSHKey:       s.User.SSHKey,
			SudoPassword: s.User.SudoPassword,
		},
		KnownHostsPath:        s.KnownHostsPath,
		InsecureIgnoreHostKey: s.InsecureIgnoreHostKey,
		HandshakeTimeout:      s.HandshakeTimeout,
		Params:                s.Params,
	}, nil
}

// splitAddress accepts "host", "host:port" or "[v6]:port". A port in the
// address must agree with an explicit port.
func splitAddress(address string, port int) (string, int, error) {
	if address == "" {
		return "", 0, errors.New("address is required")
	}
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		host = strings.Trim(address, "[]")
		if port <= 0 {
			port = server.DefaultSSHPort
		}
		return host, port, nil
	}
	addrPort, err := strconv.Atoi(portStr)
	if err != nil || addrPort <= 0 || addrPort > 65535 {
		return "", 0, fmt.Errorf("invalid port in address %q", address)
	}
	if port > 0 && port != addrPort {
		return "", 0, fmt.Errorf("address %q conflicts with port %d", address, port)
	}
	return host, addrPort, nil
}

func findConfigFile(cfgFile string) (string, error) {
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return "", fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
		return cfgFile, nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, DefaultConfigFileName)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	if _, err := os.Stat(DefaultConfigFileName); err == nil {
		return DefaultConfigFileName, nil
	}

	return "", nil
}
