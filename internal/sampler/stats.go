package sampler

import (
	"math"
	"slices"

	"github.com/samber/lo"

	"github.com/PentesterFlow/crmprobe/internal/errors"
	"github.com/PentesterFlow/crmprobe/internal/report"
)

// SampleSet is the raw outcome of the trials of one operation on one protocol.
type SampleSet struct {
	// Latencies holds the wall-clock time of each successful trial in
	// milliseconds, in trial order.
	Latencies []float64
	// Attempts is the number of trials run, successful or not.
	Attempts int
	// Errors holds the distinct failures in first-seen order.
	Errors []errors.ErrorRecord
}

// Successes returns the number of successful trials.
func (s SampleSet) Successes() int {
	return len(s.Latencies)
}

// Summarize reduces s to summary statistics. Every latency figure is 0 when
// no trial succeeded, and the success rate is 0 when nothing was attempted.
func Summarize(endpoint, method string, s SampleSet) report.PerformanceMetrics {
	m := report.PerformanceMetrics{
		Endpoint:  endpoint,
		Method:    method,
		Attempts:  s.Attempts,
		Successes: s.Successes(),
		Errors:    append([]errors.ErrorRecord{}, s.Errors...),
	}

	if s.Attempts > 0 {
		m.SuccessRate = math.Min(1, float64(m.Successes)/float64(s.Attempts))
	}
	if len(s.Latencies) == 0 {
		return m
	}

	m.AverageLatency = lo.Sum(s.Latencies) / float64(len(s.Latencies))
	m.MinLatency = lo.Min(s.Latencies)
	m.MaxLatency = lo.Max(s.Latencies)

	sorted := slices.Clone(s.Latencies)
	slices.Sort(sorted)
	m.MedianLatency = median(sorted)
	m.P95Latency = percentile(sorted, 95)

	if m.AverageLatency > 0 {
		m.RequestsPerSecond = 1000 / m.AverageLatency
	}
	return m
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// percentile uses the nearest-rank method.
func percentile(sorted []float64, p float64) float64 {
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

// grandMean averages the per-operation means of operations that had at least
// one successful trial. ok is false when none did.
func grandMean(ms []report.PerformanceMetrics) (mean float64, ok bool) {
	measured := lo.Filter(ms, func(m report.PerformanceMetrics, _ int) bool {
		return m.Successes > 0
	})
	if len(measured) == 0 {
		return 0, false
	}
	return lo.SumBy(measured, func(m report.PerformanceMetrics) float64 {
		return m.AverageLatency
	}) / float64(len(measured)), true
}
