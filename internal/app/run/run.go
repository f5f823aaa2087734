// Package run implements the application service that launches a confined
// program and reports its execution.
package run

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/gardenerik/parent/internal/log"
	"github.com/gardenerik/parent/internal/model"
	"github.com/gardenerik/parent/internal/storage"
	"github.com/gardenerik/parent/internal/supervisor"
)

// ServiceConfig is the configuration for the run service.
type ServiceConfig struct {
	Supervisor supervisor.Runner
	StatsRepo  storage.StatsRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Supervisor == nil {
		return fmt.Errorf("supervisor is required")
	}
	if c.StatsRepo == nil {
		return fmt.Errorf("stats repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Run"})

	return nil
}

// Service launches a program under the configured confinement and produces
// the final execution report.
type Service struct {
	supervisor supervisor.Runner
	statsRepo  storage.StatsRepository
	logger     log.Logger
}

// NewService creates a new run service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		supervisor: cfg.Supervisor,
		statsRepo:  cfg.StatsRepo,
		logger:     cfg.Logger,
	}, nil
}

// Request contains the parameters for one confined run.
type Request struct {
	Program string
	Args    []string
	Config  model.SandboxConfig
}

// Result is the outcome of a confined run.
type Result struct {
	Stats model.ExecutionStats
	// ExitCode is the code the launcher's own process must exit with.
	ExitCode int
}

// Run validates the configuration, supervises the confined execution and
// stores the stats record if an output path is configured. Configuration
// conflicts are rejected here, before any process is forked.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Program == "" {
		return nil, fmt.Errorf("program is required: %w", model.ErrNotValid)
	}

	if err := req.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sandbox configuration: %w", err)
	}

	runID := ulid.Make().String()
	logger := s.logger.WithValues(log.Kv{"run-id": runID, "program": req.Program})
	logger.Debugf("Launching confined program")

	stats, err := s.supervisor.Run(ctx, model.LaunchSpec{
		Program: req.Program,
		Args:    req.Args,
		Config:  req.Config,
	})
	if err != nil {
		return nil, fmt.Errorf("could not supervise execution: %w", err)
	}

	if req.Config.StatsPath != "" {
		if err := s.statsRepo.StoreStats(ctx, req.Config.StatsPath, *stats); err != nil {
			return nil, fmt.Errorf("could not store stats: %w", err)
		}
	}

	logger.Debugf("Run finished: outcome %s, real time %dms, cpu time %dms", stats.Status, stats.RealTimeMS, stats.CPUTimeMS)

	return &Result{
		Stats:    *stats,
		ExitCode: stats.LauncherExitCode(),
	}, nil
}
