package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/config"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/fleet"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/history"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/catalog"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/workflow"
)

type App struct {
	Logger    *slog.Logger
	Config    *config.Config
	Registry  *task.Registry
	Workflows *workflow.Catalog
	Connector server.Connector
}

// New builds the app with logs on stderr, keeping stdout for reports.
func New(cfg *config.Config) (*App, error) {
	return NewWithOutput(cfg, os.Stderr)
}

// NewWithOutput builds the app with logs written to w.
func NewWithOutput(cfg *config.Config, w io.Writer) (*App, error) {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))

	registry, err := catalog.Builtins()
	if err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}
	workflows, err := workflow.LoadCatalog(cfg.Workflows)
	if err != nil {
		return nil, fmt.Errorf("load workflows: %w", err)
	}

	return &App{
		Logger:    logger,
		Config:    cfg,
		Registry:  registry,
		Workflows: workflows,
		Connector: server.NewSSHConnector(),
	}, nil
}

// Engine returns a workflow engine that logs progress through the app logger.
func (a *App) Engine() *workflow.Engine {
	return workflow.NewEngine(a.Connector, a.Registry,
		workflow.WithObserver(workflow.NewLogObserver(a.Logger)),
		workflow.WithHostTimeout(a.Config.HostTimeout),
		workflow.WithCommandTimeout(a.Config.CommandTimeout),
	)
}

// Orchestrator returns a fleet orchestrator. A positive parallelism overrides the configured one.
func (a *App) Orchestrator(parallelism int) *fleet.Orchestrator {
	if parallelism <= 0 {
		parallelism = a.Config.Parallelism
	}
	return fleet.New(a.Engine(), fleet.WithParallelism(parallelism))
}

// OpenHistory opens the run history. It returns nil when history is disabled.
func (a *App) OpenHistory() (*history.Store, error) {
	if a.Config.History.Disabled {
		return nil, nil
	}
	return history.Open(a.Config.History.Path)
}
