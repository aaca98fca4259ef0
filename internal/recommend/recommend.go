// Package recommend turns an assembled report into integration guidance.
package recommend

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/PentesterFlow/crmprobe/internal/errors"
	"github.com/PentesterFlow/crmprobe/internal/report"
)

// Access patterns in the API selection table.
const (
	ListOperations = "list_operations"
	SingleRecord   = "single_record"
	BulkOperations = "bulk_operations"
	SimpleCRUD     = "simple_crud"
	ComplexQueries = "complex_queries"
)

// SlowGraphQLThreshold is the mean latency above which GraphQL queries are
// flagged for optimization, in milliseconds.
const SlowGraphQLThreshold = 1000

// Hints emitted for observed error classes.
const (
	TimeoutHint   = "Implement timeout retry logic"
	AuthHint      = "Implement token refresh mechanism"
	RateLimitHint = "Implement exponential backoff for rate limiting"
	QueryHint     = "Consider query optimization for slow GraphQL operations"
)

// errorRules are checked in order; each contributes at most one hint.
var errorRules = []struct {
	markers []string
	hint    string
}{
	{[]string{"timeout"}, TimeoutHint},
	{[]string{"401", "403"}, AuthHint},
	{[]string{errors.RateLimit.String(), "429"}, RateLimitHint},
}

// Synthesize derives recommendations from r. It reads nothing but r and
// returns fresh collections, so equal inputs give equal outputs.
func Synthesize(r *report.DiscoveryReport) report.Recommendations {
	faster := r.PerformanceMetrics.Comparison.FasterAPI
	if faster != report.REST {
		faster = report.GraphQL
	}

	rec := report.Recommendations{
		APISelection: map[string]report.Protocol{
			ListOperations: faster,
			SingleRecord:   faster,
			BulkOperations: report.GraphQL,
			SimpleCRUD:     report.REST,
			ComplexQueries: report.GraphQL,
		},
		Optimization:  []string{},
		ErrorHandling: []string{},
	}

	if r.RateLimiting.LimitsDetected {
		rec.Optimization = append(rec.Optimization,
			fmt.Sprintf("Implement batching with max %d requests per batch", r.RateLimiting.RecommendedBatchSize))
	}
	if n := len(r.CacheAnalysis.Cacheable); n > 0 {
		rec.Optimization = append(rec.Optimization, fmt.Sprintf("Implement caching for %d endpoints", n))
	}
	if lo.SomeBy(r.PerformanceMetrics.GraphQL, func(m report.PerformanceMetrics) bool {
		return m.AverageLatency > SlowGraphQLThreshold
	}) {
		rec.Optimization = append(rec.Optimization, QueryHint)
	}

	records := r.PerformanceErrors()
	for _, rule := range errorRules {
		if lo.SomeBy(records, func(e errors.ErrorRecord) bool { return e.Contains(rule.markers...) }) {
			rec.ErrorHandling = append(rec.ErrorHandling, rule.hint)
		}
	}

	return rec
}
