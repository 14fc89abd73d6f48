package panel

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/hpungsan/cohesion/internal/config"
	"github.com/hpungsan/cohesion/internal/host"
	"github.com/hpungsan/cohesion/internal/host/local"
	"github.com/hpungsan/cohesion/internal/readiness"
	"github.com/hpungsan/cohesion/internal/request"
	"github.com/hpungsan/cohesion/internal/scoring"
)

// NewLocal wires a Controller to the local SQLite base and the configured
// scoring service.
func NewLocal(database *sql.DB, cfg *config.Config, env host.Environment, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return New(Options{
		Gate:          GateFromConfig(cfg, logger),
		Locator:       local.NewLocator(database),
		Environment:   env,
		Scorer:        scoring.NewClient(cfg.ScoringURL, cfg.ScoringTimeout(), logger),
		Logger:        logger,
		DefaultMethod: request.Method(cfg.DefaultMethod),
	})
}

// GateFromConfig builds the readiness gate from the poll settings.
func GateFromConfig(cfg *config.Config, logger *slog.Logger) *readiness.Gate {
	return readiness.New(cfg.PollInterval(), cfg.PollMaxAttempts, cfg.ProgressEvery, logger)
}

// AnalyzeOnce runs the whole panel flow in one call: init, select both
// fields and the method, then analyze. Used by non-interactive surfaces.
func AnalyzeOnce(ctx context.Context, c *Controller, category, items, method string) (State, error) {
	if st, err := c.Init(ctx); err != nil {
		return st, err
	}
	if st, err := c.SelectCategory(category); err != nil {
		return st, err
	}
	if st, err := c.SelectItems(items); err != nil {
		return st, err
	}
	if method != "" {
		if st, err := c.SelectMethod(method); err != nil {
			return st, err
		}
	}
	return c.Analyze(ctx)
}
