// Package shutdown provides coordinated shutdown for the agent's background
// components. Components are shut down in reverse order of registration, so
// the loops that write to the job cache and outbox stop before those
// databases are closed.
//
// Usage:
//
//	coord := shutdown.NewCoordinator(logger)
//	coord.Register("job-cache", shutdown.Func(cache.Close))
//	coord.Register("poller", poller)
//	// On shutdown:
//	coord.Shutdown(ctx) // Stops the poller first, then closes the cache
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Shutdowner is the interface that components must implement to participate
// in coordinated shutdown.
type Shutdowner interface {
	// Shutdown gracefully stops the component. It should respect the context's
	// deadline and return ctx.Err() if it cannot complete in time.
	Shutdown(ctx context.Context) error
}

// Func adapts a plain close function (bbolt databases, NATS connections) to
// Shutdowner.
type Func func() error

// Shutdown calls f.
func (f Func) Shutdown(context.Context) error {
	return f()
}

type component struct {
	name       string
	shutdowner Shutdowner
}

// Coordinator manages ordered shutdown of multiple components.
type Coordinator struct {
	components []component
	logger     *slog.Logger
}

// NewCoordinator creates a new shutdown coordinator.
func NewCoordinator(logger *slog.Logger) *Coordinator {
	return &Coordinator{
		logger: logger.With(slog.String("component", "shutdown")),
	}
}

// Register adds a component to be shut down. Components are shut down
// in reverse order of registration (LIFO - last in, first out).
func (c *Coordinator) Register(name string, s Shutdowner) {
	c.components = append(c.components, component{
		name:       name,
		shutdowner: s,
	})
	c.logger.Debug("registered shutdown handler",
		slog.String("handler", name),
	)
}

// Shutdown stops all registered components in reverse order. A failing
// component does not stop the rest; every failure is returned joined.
//
// Once the context's deadline passes the remaining components are skipped
// and reported in the returned error.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.logger.Info("starting coordinated shutdown",
		slog.Int("components", len(c.components)),
	)

	var errs []error

	for i := len(c.components) - 1; i >= 0; i-- {
		comp := c.components[i]

		if ctx.Err() != nil {
			c.logger.Error("shutdown deadline exceeded",
				slog.String("remaining_component", comp.name),
			)
			errs = append(errs, fmt.Errorf("shutdown deadline exceeded at component %s: %w", comp.name, ctx.Err()))
			break
		}

		start := time.Now()
		err := comp.shutdowner.Shutdown(ctx)
		duration := time.Since(start)

		if err != nil {
			c.logger.Error("component shutdown failed",
				slog.String("handler", comp.name),
				slog.Duration("duration", duration),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("failed to shutdown %s: %w", comp.name, err))
			continue
		}
		c.logger.Info("component shutdown complete",
			slog.String("handler", comp.name),
			slog.Duration("duration", duration),
		)
	}

	if len(errs) > 0 {
		c.logger.Warn("coordinated shutdown completed with errors")
		return errors.Join(errs...)
	}
	c.logger.Info("coordinated shutdown complete")
	return nil
}

// ComponentCount returns the number of registered components.
func (c *Coordinator) ComponentCount() int {
	return len(c.components)
}
