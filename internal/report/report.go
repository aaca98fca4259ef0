// Package report defines the discovery report and the values each analyzer
// contributes to it.
package report

import (
	"time"

	"github.com/samber/lo"

	"github.com/PentesterFlow/crmprobe/internal/errors"
	"github.com/PentesterFlow/crmprobe/internal/metrics"
)

// Protocol names one of the two API surfaces.
type Protocol string

const (
	GraphQL Protocol = "graphql"
	REST    Protocol = "rest"
)

// Label returns the display name used in rationale text.
func (p Protocol) Label() string {
	if p == REST {
		return "REST"
	}
	return "GraphQL"
}

// PerformanceMetrics summarizes the trials of one operation on one protocol.
// Latencies are milliseconds and are all 0 when no trial succeeded.
type PerformanceMetrics struct {
	Endpoint          string               `json:"endpoint"`
	Method            string               `json:"method"`
	AverageLatency    float64              `json:"averageLatency"`
	MinLatency        float64              `json:"minLatency"`
	MaxLatency        float64              `json:"maxLatency"`
	MedianLatency     float64              `json:"medianLatency"`
	P95Latency        float64              `json:"p95Latency"`
	SuccessRate       float64              `json:"successRate"`
	RequestsPerSecond float64              `json:"requestsPerSecond"`
	Attempts          int                  `json:"attempts"`
	Successes         int                  `json:"successes"`
	Errors            []errors.ErrorRecord `json:"errors"`
}

// Comparison is the protocol verdict with its human-readable rationale.
type Comparison struct {
	FasterAPI       Protocol `json:"fasterAPI"`
	Recommendations []string `json:"recommendations"`
}

// Performance holds both protocol sweeps and their comparison.
type Performance struct {
	GraphQL    []PerformanceMetrics `json:"graphql"`
	REST       []PerformanceMetrics `json:"rest"`
	Comparison Comparison           `json:"comparison"`
}

// FieldInfo describes the declared type of a custom field.
type FieldInfo struct {
	Type string `json:"type"`
	Kind string `json:"kind"`
}

// Relationship describes a field that points at other records.
type Relationship struct {
	TargetType   string `json:"targetType"`
	RelationType string `json:"relationType"`
}

// SchemaAnalysis is the classified view of the introspected schema. Keys of
// CustomFields and Relationships are "Type.field".
type SchemaAnalysis struct {
	CustomFields  map[string]FieldInfo    `json:"customFields"`
	Relationships map[string]Relationship `json:"relationships"`
	DataTypes     []string                `json:"dataTypes"`
	SchemaVersion string                  `json:"schemaVersion"`
}

// UnknownVersion marks a schema or service whose version could not be read.
const UnknownVersion = "unknown"

// EmptySchemaAnalysis is the result when introspection is unavailable.
func EmptySchemaAnalysis() SchemaAnalysis {
	return SchemaAnalysis{
		CustomFields:  map[string]FieldInfo{},
		Relationships: map[string]Relationship{},
		DataTypes:     []string{},
		SchemaVersion: UnknownVersion,
	}
}

// AuthProfile describes what the configured credential was observed to do.
//
// TokenScopes is an empirical lower bound: a scope is listed only when a call
// needing it succeeded, so a granted scope whose probe failed for another
// reason is missing.
type AuthProfile struct {
	ValidationTime  float64                `json:"validationTime"`
	TokenScopes     []string               `json:"tokenScopes"`
	PermissionModel map[string]interface{} `json:"permissionModel"`
	ErrorPatterns   []errors.ErrorRecord   `json:"errorPatterns"`
}

// RateLimitOutcome is the terminal state of the rate-limit probe.
type RateLimitOutcome string

const (
	LimitDetected RateLimitOutcome = "limit_detected"
	TimedOut      RateLimitOutcome = "timed_out"
)

// RateLimitProfile is the result of the rate-limit probe. When no limit was
// hit, MaxRequestsPerMinute is the achieved rate and so a lower bound.
type RateLimitProfile struct {
	LimitsDetected       bool             `json:"limitsDetected"`
	MaxRequestsPerMinute int              `json:"maxRequestsPerMinute"`
	RecommendedBatchSize int              `json:"recommendedBatchSize"`
	RequestsIssued       int              `json:"requestsIssued"`
	ElapsedSeconds       float64          `json:"elapsedSeconds"`
	Outcome              RateLimitOutcome `json:"outcome"`
}

// CacheProfile lists endpoints that expose cache headers and a TTL for each.
type CacheProfile struct {
	Cacheable          []string       `json:"cacheable"`
	TTLRecommendations map[string]int `json:"ttlRecommendations"`
}

// Recommendations is the synthesized guidance for an integration.
type Recommendations struct {
	APISelection  map[string]Protocol `json:"apiSelection"`
	Optimization  []string            `json:"optimization"`
	ErrorHandling []string            `json:"errorHandling"`
}

// DiscoveryReport is the complete result of one run.
type DiscoveryReport struct {
	RunID              string           `json:"runId"`
	Timestamp          time.Time        `json:"timestamp"`
	ServiceVersion     string           `json:"serviceVersion"`
	DurationMs         int64            `json:"durationMs"`
	PerformanceMetrics Performance      `json:"performanceMetrics"`
	SchemaAnalysis     SchemaAnalysis   `json:"schemaAnalysis"`
	AuthAnalysis       AuthProfile      `json:"authAnalysis"`
	RateLimiting       RateLimitProfile `json:"rateLimiting"`
	CacheAnalysis      CacheProfile     `json:"cacheAnalysis"`
	Recommendations    Recommendations  `json:"recommendations"`
	ProbeTraffic       metrics.Snapshot `json:"probeTraffic"`
}

// PerformanceErrors returns every error record from both sweeps, GraphQL first.
func (r *DiscoveryReport) PerformanceErrors() []errors.ErrorRecord {
	all := append(append([]PerformanceMetrics{}, r.PerformanceMetrics.GraphQL...), r.PerformanceMetrics.REST...)
	return lo.FlatMap(all, func(m PerformanceMetrics, _ int) []errors.ErrorRecord {
		return m.Errors
	})
}
