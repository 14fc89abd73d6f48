// Package readiness waits for the host data API to be injected.
package readiness

import (
	"context"
	"log/slog"
	"time"

	"github.com/hpungsan/cohesion/internal/errors"
	"github.com/hpungsan/cohesion/internal/host"
)

// Defaults: check every 100ms for up to 300 attempts (~30s), logging
// progress every 20 attempts (~2s).
const (
	DefaultInterval      = 100 * time.Millisecond
	DefaultMaxAttempts   = 300
	DefaultProgressEvery = 20
)

// Gate polls a host.Locator until the host API surface exists.
type Gate struct {
	Interval      time.Duration
	MaxAttempts   int
	ProgressEvery int
	Logger        *slog.Logger
}

// New creates a Gate. Non-positive values fall back to the defaults.
func New(interval time.Duration, maxAttempts, progressEvery int, logger *slog.Logger) *Gate {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if progressEvery <= 0 {
		progressEvery = DefaultProgressEvery
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		Interval:      interval,
		MaxAttempts:   maxAttempts,
		ProgressEvery: progressEvery,
		Logger:        logger,
	}
}

// Await returns the host Base once loc reports it ready.
//
// The first check is immediate. After that loc is polled once per Interval,
// at most MaxAttempts times. A timeout returns READINESS_TIMEOUT with a
// classification derived from env. The gate never resumes after failing;
// callers restart the whole flow.
func (g *Gate) Await(ctx context.Context, loc host.Locator, env host.Environment) (host.Base, error) {
	if base, ok := loc.Lookup(ctx); ok {
		g.Logger.Debug("host API ready", "attempts", 0)
		return base, nil
	}

	// Advisory only: logged, never used to decide anything.
	hints := DetectEnvironment(env)
	g.Logger.Info("waiting for host API",
		"in_host", hints.InHost(),
		"agent_match", hints.AgentMatch,
		"domain_match", hints.DomainMatch,
		"location", hints.Location,
	)

	ticker := time.NewTicker(g.Interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= g.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		if base, ok := loc.Lookup(ctx); ok {
			g.Logger.Info("host API ready", "attempts", attempt)
			return base, nil
		}

		if attempt%g.ProgressEvery == 0 && attempt < g.MaxAttempts {
			g.Logger.Info("still waiting for host API",
				"attempts", attempt,
				"elapsed", time.Duration(attempt)*g.Interval,
			)
		}
	}

	class := Classify(hints.Location)
	g.Logger.Error("host API not ready",
		"attempts", g.MaxAttempts,
		"classification", class,
		"location", hints.Location,
		"agent", hints.Agent,
		"agent_match", hints.AgentMatch,
		"domain_match", hints.DomainMatch,
	)
	return nil, errors.NewReadinessTimeout(class, g.MaxAttempts, hints.Location)
}
