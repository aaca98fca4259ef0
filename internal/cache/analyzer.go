// Package cache classifies REST endpoints by the cache headers they send.
package cache

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PentesterFlow/crmprobe/internal/logger"
	"github.com/PentesterFlow/crmprobe/internal/report"
	"github.com/PentesterFlow/crmprobe/internal/transport"
)

// TTLs in seconds.
const (
	LongTTL  = 3600
	ShortTTL = 300
)

// DefaultEndpoints is the fixed endpoint set checked by default.
var DefaultEndpoints = []string{
	"/rest/me",
	"/rest/people",
	"/rest/companies",
	"/rest/workspace",
}

var cacheHeaders = []string{"Cache-Control", "ETag", "Last-Modified"}

// Path segments naming identity or workspace data, which changes rarely.
var lowChurnSegments = map[string]struct{}{
	"me":          {},
	"workspace":   {},
	"workspaces":  {},
	"currentUser": {},
}

// Analyzer checks a fixed endpoint list.
type Analyzer struct {
	rest      transport.REST
	endpoints []string
	log       *logger.Logger
}

// NewAnalyzer creates an analyzer over endpoints. Nil selects DefaultEndpoints.
func NewAnalyzer(rest transport.REST, endpoints []string, log *logger.Logger) *Analyzer {
	if endpoints == nil {
		endpoints = DefaultEndpoints
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Analyzer{rest: rest, endpoints: endpoints, log: log.WithComponent("cache")}
}

// Run issues one GET per endpoint. Endpoints that fail or answer non-2xx are
// left out of the profile.
func (a *Analyzer) Run(ctx context.Context) report.CacheProfile {
	profile := report.CacheProfile{
		Cacheable:          []string{},
		TTLRecommendations: map[string]int{},
	}

	for _, endpoint := range a.endpoints {
		resp, err := a.rest.Do(ctx, "GET", endpoint, nil)
		if err != nil || resp == nil {
			a.log.WithField("endpoint", endpoint).WithError(err).Debug("endpoint skipped")
			continue
		}
		if !IsCacheable(resp.Header) {
			continue
		}
		profile.Cacheable = append(profile.Cacheable, endpoint)
		profile.TTLRecommendations[endpoint] = RecommendTTL(endpoint)
	}

	a.log.Infof("Cache: %d/%d endpoints cacheable", len(profile.Cacheable), len(a.endpoints))
	return profile
}

// IsCacheable reports whether h carries any cache-relevant header.
func IsCacheable(h http.Header) bool {
	for _, name := range cacheHeaders {
		if h.Get(name) != "" {
			return true
		}
	}
	return false
}

// RecommendTTL returns LongTTL for identity and workspace endpoints and
// ShortTTL for everything else.
func RecommendTTL(endpoint string) int {
	path := endpoint
	if u, err := url.Parse(endpoint); err == nil {
		path = u.Path
	}
	for _, seg := range strings.Split(path, "/") {
		if _, ok := lowChurnSegments[seg]; ok {
			return LongTTL
		}
	}
	return ShortTTL
}
