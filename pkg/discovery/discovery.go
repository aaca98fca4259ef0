// Package discovery runs the full dual-API analysis of a CRM instance and
// assembles the DiscoveryReport.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/PentesterFlow/crmprobe/internal/auth"
	"github.com/PentesterFlow/crmprobe/internal/cache"
	"github.com/PentesterFlow/crmprobe/internal/catalog"
	"github.com/PentesterFlow/crmprobe/internal/logger"
	"github.com/PentesterFlow/crmprobe/internal/metrics"
	"github.com/PentesterFlow/crmprobe/internal/output"
	"github.com/PentesterFlow/crmprobe/internal/progress"
	"github.com/PentesterFlow/crmprobe/internal/ratelimit"
	"github.com/PentesterFlow/crmprobe/internal/recommend"
	"github.com/PentesterFlow/crmprobe/internal/report"
	"github.com/PentesterFlow/crmprobe/internal/sampler"
	"github.com/PentesterFlow/crmprobe/internal/schema"
	"github.com/PentesterFlow/crmprobe/internal/store"
	"github.com/PentesterFlow/crmprobe/internal/transport"
)

// Analyzer names, in launch order.
const (
	AnalyzerPerformance = "performance"
	AnalyzerSchema      = "schema"
	AnalyzerAuth        = "auth"
	AnalyzerRateLimit   = "rateLimit"
	AnalyzerCache       = "cache"
)

// Analyzers lists every analyzer a run joins on.
var Analyzers = []string{AnalyzerPerformance, AnalyzerSchema, AnalyzerAuth, AnalyzerRateLimit, AnalyzerCache}

// Engine runs discovery against one CRM instance.
type Engine struct {
	config   *Config
	logger   *logger.Logger
	metrics  *metrics.Collector
	graphql  transport.GraphQL
	rest     transport.REST
	client   *transport.Client
	catalog  *catalog.Catalog
	progress *progress.Display
	history  *store.BoltStore
	now      func() time.Time
}

// New creates an engine with the given options.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		config: DefaultConfig(),
		now:    time.Now,
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := e.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if e.logger == nil {
		level, err := logger.ParseLevel(strings.ToLower(e.config.LogLevel))
		if err != nil || e.config.LogLevel == "" {
			level = logger.InfoLevel
		}
		if e.config.Verbose {
			level = logger.DebugLevel
		}
		e.logger = logger.New(logger.Config{
			Level:     level,
			Pretty:    true,
			Component: "discovery",
		})
	}

	if e.metrics == nil {
		e.metrics = metrics.New()
	}

	if e.graphql == nil || e.rest == nil {
		client, err := transport.New(transport.Config{
			BaseURL:         e.config.APIBaseURL,
			APIKey:          e.config.APIKey,
			Timeout:         e.config.RequestTimeout,
			MaxConnsPerHost: e.config.MaxConcurrentRequests,
			UserAgent:       transport.DefaultConfig().UserAgent,
		}, e.metrics, e.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create transport: %w", err)
		}
		e.client = client
		e.graphql = client
		e.rest = client
	}

	if e.catalog == nil {
		e.catalog = catalog.Default(e.config.SampleRecordID)
	}

	return e, nil
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() *Config {
	return e.config.Clone()
}

// Run performs one discovery. The only error is an unreachable service during
// version detection; analyzer failures degrade to empty sections instead.
func (e *Engine) Run(ctx context.Context) (*report.DiscoveryReport, error) {
	log := e.logger.WithComponent("engine")
	start := e.now()

	version, err := DetectVersion(ctx, e.rest)
	if err != nil {
		return nil, fmt.Errorf("service unreachable at %s: %w", e.config.APIBaseURL, err)
	}
	log.Infof("Service version: %s", version)
	log.WithField("operations", e.catalog.Names()).Debugf("Sampling %d operations", e.catalog.Len())

	if e.progress != nil {
		e.progress.Start(e.config.APIBaseURL)
		defer e.progress.Stop()
	}

	r := &report.DiscoveryReport{
		RunID:          uuid.NewString(),
		ServiceVersion: version,
	}

	// Each task writes only its own section of r, so the join needs no lock.
	var g errgroup.Group
	e.launch(&g, AnalyzerPerformance, func() bool {
		r.PerformanceMetrics = sampler.New(e.graphql, e.rest, e.catalog, sampler.Config{
			Iterations:            e.config.TestIterations,
			MaxConcurrentRequests: e.config.MaxConcurrentRequests,
		}, sampler.WithClock(e.now), sampler.WithLogger(e.logger)).Run(ctx)
		return false
	})
	e.launch(&g, AnalyzerSchema, func() bool {
		r.SchemaAnalysis = schema.NewAnalyzer(e.graphql, e.logger).Run(ctx)
		return r.SchemaAnalysis.SchemaVersion == report.UnknownVersion
	})
	e.launch(&g, AnalyzerAuth, func() bool {
		r.AuthAnalysis = auth.NewProber(e.rest, nil, e.logger).Run(ctx)
		return len(r.AuthAnalysis.PermissionModel) == 0
	})
	e.launch(&g, AnalyzerRateLimit, func() bool {
		r.RateLimiting = ratelimit.NewProber(e.rest, e.config.RateLimit, e.logger).Run(ctx)
		return false
	})
	e.launch(&g, AnalyzerCache, func() bool {
		r.CacheAnalysis = cache.NewAnalyzer(e.rest, e.cacheEndpoints(), e.logger).Run(ctx)
		return false
	})
	_ = g.Wait()

	end := e.now()
	r.Timestamp = end.UTC()
	r.DurationMs = end.Sub(start).Milliseconds()
	r.Recommendations = recommend.Synthesize(r)
	r.ProbeTraffic = e.metrics.Snapshot()

	log.WithField("runId", r.RunID).WithDuration(end.Sub(start)).
		StatsEvent("Discovery complete", r.ProbeTraffic.Summary())

	if e.history != nil {
		if err := e.history.Save(r); err != nil {
			log.WithError(err).Warn("failed to store report in history")
		}
	}

	return r, nil
}

// launch runs one analyzer in g. Analyzers never fail, so g only joins.
func (e *Engine) launch(g *errgroup.Group, name string, run func() (degraded bool)) {
	g.Go(func() error {
		degraded := run()
		if e.progress != nil {
			e.progress.AnalyzerDone(name, degraded)
		}
		return nil
	})
}

func (e *Engine) cacheEndpoints() []string {
	if len(e.config.CacheEndpoints) == 0 {
		return nil
	}
	return e.config.CacheEndpoints
}

// SaveReport writes r as indented JSON to path.
func (e *Engine) SaveReport(r *report.DiscoveryReport, path string) error {
	if err := output.SaveReport(r, path); err != nil {
		return err
	}
	e.logger.WithComponent("engine").Infof("Report saved to %s", path)
	return nil
}

// Close releases the HTTP client built by New.
func (e *Engine) Close() error {
	if e.client != nil {
		e.client.Close()
	}
	return nil
}
