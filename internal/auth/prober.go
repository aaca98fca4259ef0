// Package auth measures what the configured API credential can do.
package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/PentesterFlow/crmprobe/internal/errors"
	"github.com/PentesterFlow/crmprobe/internal/logger"
	"github.com/PentesterFlow/crmprobe/internal/report"
	"github.com/PentesterFlow/crmprobe/internal/transport"
)

// IdentityPath is the cheap identity call used to validate the token.
const IdentityPath = "/rest/me"

// ScopeCheck is one call whose success proves a scope.
type ScopeCheck struct {
	Scope  string
	Method string
	Path   string
	Body   interface{}
}

// DefaultScopeChecks covers read and write on people and companies.
func DefaultScopeChecks() []ScopeCheck {
	probe := map[string]interface{}{"name": "test"}
	return []ScopeCheck{
		{Scope: "read:people", Method: "GET", Path: "/rest/people"},
		{Scope: "write:people", Method: "POST", Path: "/rest/people", Body: probe},
		{Scope: "read:companies", Method: "GET", Path: "/rest/companies"},
		{Scope: "write:companies", Method: "POST", Path: "/rest/companies", Body: probe},
	}
}

// Prober builds an AuthProfile.
type Prober struct {
	rest   transport.REST
	checks []ScopeCheck
	now    func() time.Time
	log    *logger.Logger
}

// NewProber creates a prober running checks. Nil checks select DefaultScopeChecks.
func NewProber(rest transport.REST, checks []ScopeCheck, log *logger.Logger) *Prober {
	if checks == nil {
		checks = DefaultScopeChecks()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Prober{
		rest:   rest,
		checks: checks,
		now:    time.Now,
		log:    log.WithComponent("auth"),
	}
}

// Run validates the token, then attempts every scope check.
//
// The reported scopes are a lower bound. A check can fail for reasons other
// than a missing grant, such as validation of the probe payload, and the
// scope is then left out even though the token holds it.
func (p *Prober) Run(ctx context.Context) report.AuthProfile {
	errs := errors.NewErrorSet(len(p.checks) + 2)

	start := p.now()
	_, err := p.rest.Do(ctx, "GET", IdentityPath, nil)
	validation := millis(p.now().Sub(start))

	if err != nil {
		errs.Add(err)
		if errors.IsAuthError(err) {
			p.log.WithField("status", errors.GetStatusCode(err)).Warn("token rejected by identity check")
		}
		p.log.DegradedEvent("auth", err)
		return report.AuthProfile{
			ValidationTime:  validation,
			TokenScopes:     []string{},
			PermissionModel: map[string]interface{}{},
			ErrorPatterns:   errs.Records(),
		}
	}

	scopes := make([]string, 0, len(p.checks))
	for _, c := range p.checks {
		if _, err := p.rest.Do(ctx, c.Method, c.Path, c.Body); err != nil {
			errs.Add(err)
			if errors.IsAuthError(err) {
				p.log.WithField("scope", c.Scope).WithField("status", errors.GetStatusCode(err)).Debug("scope denied")
			} else {
				p.log.WithField("scope", c.Scope).WithError(err).Debug("scope check failed")
			}
			continue
		}
		scopes = append(scopes, c.Scope)
	}

	profile := report.AuthProfile{
		ValidationTime:  validation,
		TokenScopes:     scopes,
		PermissionModel: p.permissions(ctx),
		ErrorPatterns:   errs.Records(),
	}
	p.log.Infof("Auth: token validated in %.0fms, %d/%d scopes confirmed",
		validation, len(scopes), len(p.checks))
	return profile
}

// permissions samples identity data. Any failure yields an empty map.
func (p *Prober) permissions(ctx context.Context) map[string]interface{} {
	resp, err := p.rest.Do(ctx, "GET", IdentityPath, nil)
	if err != nil || resp == nil {
		return map[string]interface{}{}
	}
	return PermissionModel(resp.Body)
}

// PermissionModel extracts userId, workspaceId and permissions from an
// identity response. Both bare and {"data": {...}} envelopes are accepted.
func PermissionModel(body []byte) map[string]interface{} {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return map[string]interface{}{}
	}
	if inner, ok := raw["data"]; ok {
		var data map[string]json.RawMessage
		if json.Unmarshal(inner, &data) == nil {
			raw = data
		}
	}

	model := map[string]interface{}{
		"userId":      stringOr(raw["id"], "unknown"),
		"workspaceId": stringOr(raw["workspaceId"], "unknown"),
		"permissions": []string{},
	}
	var perms []string
	if len(raw["permissions"]) > 0 && json.Unmarshal(raw["permissions"], &perms) == nil && perms != nil {
		model["permissions"] = perms
	}
	return model
}

func stringOr(raw json.RawMessage, fallback string) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil || s == "" {
		return fallback
	}
	return s
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
