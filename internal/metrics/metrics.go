// Package metrics records the traffic the probes put on the remote service.
package metrics

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/PentesterFlow/crmprobe/internal/errors"
)

const numErrorTypes = int(errors.Cancelled) + 1

// Collector collects and aggregates probe traffic. All state is atomic, so the
// analyzers may share one collector without locking.
type Collector struct {
	requestsTotal atomic.Int64
	errorsTotal   atomic.Int64
	rateLimitHits atomic.Int64
	bytesReceived atomic.Int64

	// Response time tracking
	responseTimesSum atomic.Int64
	responseTimesNum atomic.Int64

	// Histogram buckets for response times in ms:
	// <10, <50, <100, <250, <500, <1000, <2500, <5000, <10000, >=10000
	responseTimeBuckets [10]atomic.Int64

	// Status classes 1xx..5xx at index 1..5
	statusClasses [6]atomic.Int64

	errorCounts [numErrorTypes]atomic.Int64

	startTime time.Time
}

// New creates a new metrics collector.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// RecordRequest records one remote call.
func (c *Collector) RecordRequest() {
	c.requestsTotal.Add(1)
}

// RecordError records a failed call by category.
func (c *Collector) RecordError(errType errors.ErrorType) {
	c.errorsTotal.Add(1)
	if errType == errors.RateLimit {
		c.rateLimitHits.Add(1)
	}
	if i := int(errType); i >= 0 && i < numErrorTypes {
		c.errorCounts[i].Add(1)
	}
}

// RecordResponseTime records a response time.
func (c *Collector) RecordResponseTime(d time.Duration) {
	ms := d.Milliseconds()
	c.responseTimesSum.Add(ms)
	c.responseTimesNum.Add(1)
	c.responseTimeBuckets[bucketFor(ms)].Add(1)
}

// RecordStatusCode records an HTTP status code by class.
func (c *Collector) RecordStatusCode(code int) {
	class := code / 100
	if class < 1 || class > 5 {
		return
	}
	c.statusClasses[class].Add(1)
}

// RecordBytes records received body bytes.
func (c *Collector) RecordBytes(n int64) {
	c.bytesReceived.Add(n)
}

// bucketFor returns the histogram bucket for a given response time.
func bucketFor(ms int64) int {
	switch {
	case ms < 10:
		return 0
	case ms < 50:
		return 1
	case ms < 100:
		return 2
	case ms < 250:
		return 3
	case ms < 500:
		return 4
	case ms < 1000:
		return 5
	case ms < 2500:
		return 6
	case ms < 5000:
		return 7
	case ms < 10000:
		return 8
	default:
		return 9
	}
}

// AverageResponseTime returns the mean response time.
func (c *Collector) AverageResponseTime() time.Duration {
	sum := c.responseTimesSum.Load()
	num := c.responseTimesNum.Load()
	if num == 0 {
		return 0
	}
	return time.Duration(sum/num) * time.Millisecond
}

// Snapshot returns a point-in-time copy of all metrics.
func (c *Collector) Snapshot() Snapshot {
	s := Snapshot{
		Uptime:                time.Since(c.startTime),
		RequestsTotal:         c.requestsTotal.Load(),
		ErrorsTotal:           c.errorsTotal.Load(),
		RateLimitHits:         c.rateLimitHits.Load(),
		BytesReceived:         c.bytesReceived.Load(),
		AverageResponseTimeMs: c.AverageResponseTime().Milliseconds(),
		ErrorCounts:           make(map[string]int64),
		StatusClasses:         make(map[string]int64),
		ResponseTimeHist:      make([]int64, len(c.responseTimeBuckets)),
	}

	for i := range c.errorCounts {
		if n := c.errorCounts[i].Load(); n > 0 {
			s.ErrorCounts[errors.ErrorType(i).String()] = n
		}
	}
	for class := 1; class < len(c.statusClasses); class++ {
		if n := c.statusClasses[class].Load(); n > 0 {
			s.StatusClasses[fmt.Sprintf("%dxx", class)] = n
		}
	}
	for i := range c.responseTimeBuckets {
		s.ResponseTimeHist[i] = c.responseTimeBuckets[i].Load()
	}

	return s
}

// Snapshot represents a point-in-time view of probe traffic.
type Snapshot struct {
	Uptime                time.Duration    `json:"-"`
	RequestsTotal         int64            `json:"requestsTotal"`
	ErrorsTotal           int64            `json:"errorsTotal"`
	RateLimitHits         int64            `json:"rateLimitHits"`
	BytesReceived         int64            `json:"bytesReceived"`
	AverageResponseTimeMs int64            `json:"averageResponseTimeMs"`
	ErrorCounts           map[string]int64 `json:"errorCounts"`
	StatusClasses         map[string]int64 `json:"statusClasses"`
	ResponseTimeHist      []int64          `json:"responseTimeHistogram"`
}

// ErrorRate returns the error rate (errors/requests).
func (s Snapshot) ErrorRate() float64 {
	if s.RequestsTotal == 0 {
		return 0
	}
	return float64(s.ErrorsTotal) / float64(s.RequestsTotal)
}

// Summary returns a flat map suitable for a stats log line.
func (s Snapshot) Summary() map[string]interface{} {
	return map[string]interface{}{
		"uptime":               s.Uptime.Round(time.Millisecond).String(),
		"requests_total":       s.RequestsTotal,
		"errors_total":         s.ErrorsTotal,
		"error_rate":           s.ErrorRate(),
		"rate_limit_hits":      s.RateLimitHits,
		"avg_response_time_ms": s.AverageResponseTimeMs,
	}
}
