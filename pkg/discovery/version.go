package discovery

import (
	"context"
	"encoding/json"

	"github.com/PentesterFlow/crmprobe/internal/errors"
	"github.com/PentesterFlow/crmprobe/internal/report"
	"github.com/PentesterFlow/crmprobe/internal/transport"
)

// HealthPath answers with the service version.
const HealthPath = "/health"

// DetectVersion reads the version field of the health endpoint. Only an
// unreachable service is an error; any answer without a version yields
// report.UnknownVersion.
func DetectVersion(ctx context.Context, rest transport.REST) (string, error) {
	resp, err := rest.Do(ctx, "GET", HealthPath, nil)
	if err != nil {
		if errors.IsUnreachable(err) {
			return "", err
		}
		return report.UnknownVersion, nil
	}

	var health struct {
		Version json.RawMessage `json:"version"`
	}
	if resp == nil || resp.JSON(&health) != nil {
		return report.UnknownVersion, nil
	}

	var version string
	if json.Unmarshal(health.Version, &version) != nil || version == "" {
		return report.UnknownVersion, nil
	}
	return version, nil
}
