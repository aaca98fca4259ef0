package discovery

import (
	"fmt"
	"time"

	"github.com/PentesterFlow/crmprobe/internal/catalog"
	"github.com/PentesterFlow/crmprobe/internal/logger"
	"github.com/PentesterFlow/crmprobe/internal/metrics"
	"github.com/PentesterFlow/crmprobe/internal/progress"
	"github.com/PentesterFlow/crmprobe/internal/store"
	"github.com/PentesterFlow/crmprobe/internal/transport"
)

// Option is a functional option for configuring the Engine.
type Option func(*Engine) error

// WithConfig replaces the configuration with a copy of cfg.
func WithConfig(cfg *Config) Option {
	return func(e *Engine) error {
		if cfg == nil {
			return fmt.Errorf("config is nil")
		}
		e.config = cfg.Clone()
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) error {
		e.logger = l
		return nil
	}
}

// WithTransports replaces the HTTP clients built from the configuration.
func WithTransports(gql transport.GraphQL, rest transport.REST) Option {
	return func(e *Engine) error {
		if gql == nil || rest == nil {
			return fmt.Errorf("both transports are required")
		}
		e.graphql = gql
		e.rest = rest
		return nil
	}
}

// WithCatalog sets the operations the sampler measures.
func WithCatalog(c *catalog.Catalog) Option {
	return func(e *Engine) error {
		e.catalog = c
		return nil
	}
}

// WithMetrics sets the collector the transports record into.
func WithMetrics(m *metrics.Collector) Option {
	return func(e *Engine) error {
		e.metrics = m
		return nil
	}
}

// WithProgress reports analyzer completion to d.
func WithProgress(d *progress.Display) Option {
	return func(e *Engine) error {
		e.progress = d
		return nil
	}
}

// WithClock replaces the wall clock used for timestamps and trial latencies.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) error {
		if now != nil {
			e.now = now
		}
		return nil
	}
}

// WithHistory stores every finished report in s.
func WithHistory(s *store.BoltStore) Option {
	return func(e *Engine) error {
		e.history = s
		return nil
	}
}
