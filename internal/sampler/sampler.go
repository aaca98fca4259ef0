// Package sampler times catalog operations on both API surfaces and compares
// the two protocols.
package sampler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PentesterFlow/crmprobe/internal/catalog"
	"github.com/PentesterFlow/crmprobe/internal/errors"
	"github.com/PentesterFlow/crmprobe/internal/logger"
	"github.com/PentesterFlow/crmprobe/internal/report"
	"github.com/PentesterFlow/crmprobe/internal/transport"
)

// Config controls how many trials are run and whether the protocol sweeps overlap.
type Config struct {
	Iterations            int
	MaxConcurrentRequests int
}

// Sampler runs timed trials. Trials of one operation on one protocol never
// overlap, and a failed trial is recorded rather than retried.
type Sampler struct {
	graphql transport.GraphQL
	rest    transport.REST
	catalog *catalog.Catalog
	cfg     Config
	now     func() time.Time
	log     *logger.Logger
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithClock replaces the wall clock used to time trials.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Sampler) {
		if l != nil {
			s.log = l.WithComponent("sampler")
		}
	}
}

// New creates a sampler over cat.
func New(gql transport.GraphQL, rest transport.REST, cat *catalog.Catalog, cfg Config, opts ...Option) *Sampler {
	s := &Sampler{
		graphql: gql,
		rest:    rest,
		catalog: cat,
		cfg:     cfg,
		now:     time.Now,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MeasureGraphQL samples the named operation over GraphQL.
func (s *Sampler) MeasureGraphQL(ctx context.Context, name string) (report.PerformanceMetrics, error) {
	op, err := s.catalog.Lookup(name)
	if err != nil {
		return report.PerformanceMetrics{}, err
	}
	return s.measure(ctx, report.GraphQL, op), nil
}

// MeasureREST samples the named operation over REST.
func (s *Sampler) MeasureREST(ctx context.Context, name string) (report.PerformanceMetrics, error) {
	op, err := s.catalog.Lookup(name)
	if err != nil {
		return report.PerformanceMetrics{}, err
	}
	return s.measure(ctx, report.REST, op), nil
}

func (s *Sampler) measure(ctx context.Context, proto report.Protocol, op catalog.Operation) report.PerformanceMetrics {
	set := s.Sample(ctx, proto, op)

	var m report.PerformanceMetrics
	if proto == report.GraphQL {
		m = Summarize(op.GraphQLEndpoint(), "POST", set)
	} else {
		m = Summarize(op.RESTPath, op.RESTMethod, set)
	}

	s.log.WithOperation(op.Name).
		WithField("protocol", string(proto)).
		WithField("success_rate", m.SuccessRate).
		Debugf("sampled %d trials, mean %.2fms", m.Attempts, m.AverageLatency)
	return m
}

// Sample runs the configured number of sequential trials of op on proto.
func (s *Sampler) Sample(ctx context.Context, proto report.Protocol, op catalog.Operation) SampleSet {
	n := s.cfg.Iterations
	if n < 0 {
		n = 0
	}

	set := SampleSet{
		Latencies: make([]float64, 0, n),
		Attempts:  n,
	}
	errs := errors.NewErrorSet(n)

	for i := 0; i < n; i++ {
		start := s.now()
		err := s.trial(ctx, proto, op)
		elapsed := s.now().Sub(start)

		if err != nil {
			errs.Add(err)
			continue
		}
		ms := float64(elapsed) / float64(time.Millisecond)
		if ms < 0 {
			ms = 0
		}
		set.Latencies = append(set.Latencies, ms)
	}

	set.Errors = errs.Records()
	return set
}

func (s *Sampler) trial(ctx context.Context, proto report.Protocol, op catalog.Operation) error {
	if proto == report.GraphQL {
		return s.graphql.Request(ctx, op.GraphQLDocument, op.GraphQLVariables, nil)
	}
	var body interface{}
	if op.RESTBody != nil {
		body = op.RESTBody
	}
	_, err := s.rest.Do(ctx, op.RESTMethod, op.RESTPath, body)
	return err
}

// Run samples every catalog operation on both protocols and compares them.
// The two sweeps run side by side when MaxConcurrentRequests allows it.
func (s *Sampler) Run(ctx context.Context) report.Performance {
	var gql, rest []report.PerformanceMetrics

	sweep := func(proto report.Protocol) []report.PerformanceMetrics {
		out := make([]report.PerformanceMetrics, 0, s.catalog.Len())
		for _, op := range s.catalog.Operations() {
			out = append(out, s.measure(ctx, proto, op))
		}
		return out
	}

	if s.cfg.MaxConcurrentRequests >= 2 {
		// Sweeps never fail; errgroup is used for the join only.
		var g errgroup.Group
		g.Go(func() error { gql = sweep(report.GraphQL); return nil })
		g.Go(func() error { rest = sweep(report.REST); return nil })
		_ = g.Wait()
	} else {
		gql = sweep(report.GraphQL)
		rest = sweep(report.REST)
	}

	return report.Performance{
		GraphQL:    gql,
		REST:       rest,
		Comparison: Compare(gql, rest),
	}
}

// Compare declares the protocol with the lower grand mean latency the faster
// one. Operations without a successful trial do not count, so a protocol that
// never succeeded cannot win. GraphQL is kept on ties and when neither
// protocol produced data.
func Compare(gql, rest []report.PerformanceMetrics) report.Comparison {
	gqlMean, gqlOK := grandMean(gql)
	restMean, restOK := grandMean(rest)

	winner := report.GraphQL
	switch {
	case gqlOK && restOK:
		if restMean < gqlMean {
			winner = report.REST
		}
	case restOK:
		winner = report.REST
	}

	return report.Comparison{
		FasterAPI: winner,
		Recommendations: []string{
			fmt.Sprintf("GraphQL average latency: %.2fms, REST average latency: %.2fms", gqlMean, restMean),
			fmt.Sprintf("Recommendation: Use %s for better performance", winner.Label()),
		},
	}
}
