package ratelimit

import (
	"context"
	"math"
	"time"

	"github.com/PentesterFlow/crmprobe/internal/errors"
	"github.com/PentesterFlow/crmprobe/internal/logger"
	"github.com/PentesterFlow/crmprobe/internal/report"
	"github.com/PentesterFlow/crmprobe/internal/transport"
)

// State is the probe's position in Probing -> LimitDetected | TimedOut.
type State int

const (
	Probing State = iota
	LimitDetected
	TimedOut
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case LimitDetected:
		return string(report.LimitDetected)
	case TimedOut:
		return string(report.TimedOut)
	default:
		return "probing"
	}
}

// batchDivisor keeps recommended batches well under the measured ceiling.
const batchDivisor = 10

// Config controls the probe.
type Config struct {
	// Interval is the fixed delay between probe requests.
	Interval time.Duration `json:"interval" yaml:"interval"`
	// Budget is the wall-clock limit of the whole probe.
	Budget time.Duration `json:"budget" yaml:"budget"`
	// Path is the cheap call that is repeated.
	Path string `json:"path" yaml:"path"`
}

// DefaultConfig returns the standard probe settings.
func DefaultConfig() Config {
	return Config{
		Interval: 100 * time.Millisecond,
		Budget:   30 * time.Second,
		Path:     "/rest/me",
	}
}

// Prober repeats a cheap call until the service throttles it or the budget
// runs out.
type Prober struct {
	rest     transport.REST
	cfg      Config
	throttle *Limiter
	log      *logger.Logger
}

// NewProber creates a prober. Zero config fields take their defaults.
func NewProber(rest transport.REST, cfg Config, log *logger.Logger) *Prober {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Budget <= 0 {
		cfg.Budget = def.Budget
	}
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Prober{
		rest:     rest,
		cfg:      cfg,
		throttle: NewLimiter(cfg.Interval),
		log:      log.WithComponent("ratelimit"),
	}
}

// Run executes the probe. Failures that are not a rate-limit signal are
// ignored and probing continues.
func (p *Prober) Run(ctx context.Context) report.RateLimitProfile {
	budgetCtx, cancel := context.WithTimeout(ctx, p.cfg.Budget)
	defer cancel()

	start := time.Now()
	state := Probing
	issued := 0

	for state == Probing {
		if err := p.throttle.Wait(budgetCtx); err != nil {
			state = TimedOut
			break
		}

		_, err := p.rest.Do(budgetCtx, "GET", p.cfg.Path, nil)
		issued++

		switch {
		case errors.IsRateLimitError(err):
			state = LimitDetected
		case budgetCtx.Err() != nil:
			state = TimedOut
		case err != nil:
			p.log.WithError(err).Debug("probe request failed")
		}
	}

	profile := Profile(issued, time.Since(start), state == LimitDetected)
	p.log.WithField("outcome", state.String()).
		Infof("Rate limit: %d requests in %.1fs, ~%d req/min",
			issued, profile.ElapsedSeconds, profile.MaxRequestsPerMinute)
	return profile
}

// Profile derives the report figures from a finished probe. Without a limit
// the achieved rate is reported, which understates the true ceiling.
func Profile(issued int, elapsed time.Duration, limited bool) report.RateLimitProfile {
	rpm := 0
	if minutes := elapsed.Minutes(); minutes > 0 && issued > 0 {
		rpm = int(math.Floor(float64(issued) / minutes))
	}

	outcome := report.TimedOut
	if limited {
		outcome = report.LimitDetected
	}

	return report.RateLimitProfile{
		LimitsDetected:       limited,
		MaxRequestsPerMinute: rpm,
		RecommendedBatchSize: BatchSize(rpm),
		RequestsIssued:       issued,
		ElapsedSeconds:       elapsed.Seconds(),
		Outcome:              outcome,
	}
}

// BatchSize is a tenth of the per-minute rate, never below 1.
func BatchSize(requestsPerMinute int) int {
	return max(1, requestsPerMinute/batchDivisor)
}
