// Package progress shows analyzer completion while a discovery run is active.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"

	"github.com/PentesterFlow/crmprobe/internal/report"
)

// Display tracks how many analyzers have finished.
type Display struct {
	mu      sync.Mutex
	out     io.Writer
	started bool
	stopped bool

	// Stats
	total    int
	done     atomic.Int64
	degraded atomic.Int64

	// Timing
	startTime time.Time
	target    string

	// Display
	lastLine string
	finished []string
}

// New creates a display for total analyzers writing to out. Nil out selects
// stderr.
func New(out io.Writer, total int) *Display {
	if out == nil {
		out = os.Stderr
	}
	return &Display{out: out, total: total}
}

// Start begins the progress display.
func (d *Display) Start(target string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return
	}

	d.started = true
	d.startTime = time.Now()
	d.target = target
}

// AnalyzerDone records that the named analyzer finished. Degraded analyzers
// returned their empty fallback.
func (d *Display) AnalyzerDone(name string, degraded bool) {
	done := d.done.Add(1)
	if degraded {
		d.degraded.Add(1)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.finished = append(d.finished, name)
	if !d.started || d.stopped {
		return
	}

	total := max(d.total, 1)
	progress := min(int(done)*100/total, 100)

	barWidth := 30
	filled := progress * barWidth / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	line := fmt.Sprintf("\r[%s] %3d%% | %d/%d analyzers | last: %s | %s",
		bar, progress, done, d.total, name, formatDuration(time.Since(d.startTime)))

	// Clear previous line and print new one
	if len(line) < len(d.lastLine) {
		fmt.Fprint(d.out, "\r"+strings.Repeat(" ", len(d.lastLine)))
	}
	fmt.Fprint(d.out, line)
	d.lastLine = line
}

// Stop stops the progress display.
func (d *Display) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || !d.started {
		return
	}

	d.stopped = true
	fmt.Fprintln(d.out)
}

// Stats returns the finished and degraded analyzer counts.
func (d *Display) Stats() (done, degraded int64) {
	return d.done.Load(), d.degraded.Load()
}

// Finished returns analyzer names in completion order.
func (d *Display) Finished() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.finished...)
}

// PrintSummary prints the headline figures of r.
func (d *Display) PrintSummary(r *report.DiscoveryReport) {
	bold := color.New(color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	w := d.out
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║                      Discovery Complete                      ║")
	fmt.Fprintln(w, "╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Target:              %s\n", truncateURL(d.target, 50))
	fmt.Fprintf(w, "  Run ID:              %s\n", r.RunID)
	fmt.Fprintf(w, "  Service Version:     %s\n", r.ServiceVersion)
	fmt.Fprintf(w, "  Duration:            %s\n", formatDuration(time.Duration(r.DurationMs)*time.Millisecond))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  GraphQL Operations:  %d tested\n", len(r.PerformanceMetrics.GraphQL))
	fmt.Fprintf(w, "  REST Operations:     %d tested\n", len(r.PerformanceMetrics.REST))
	fmt.Fprintf(w, "  Faster API:          %s\n", bold(green(r.PerformanceMetrics.Comparison.FasterAPI.Label())))
	fmt.Fprintf(w, "  Custom Fields:       %d\n", len(r.SchemaAnalysis.CustomFields))
	fmt.Fprintf(w, "  Relationships:       %d\n", len(r.SchemaAnalysis.Relationships))
	fmt.Fprintf(w, "  Data Types:          %d\n", len(r.SchemaAnalysis.DataTypes))
	fmt.Fprintf(w, "  Schema Version:      %s\n", r.SchemaAnalysis.SchemaVersion)
	fmt.Fprintf(w, "  Token Scopes:        %s\n", strings.Join(r.AuthAnalysis.TokenScopes, ", "))

	limit := fmt.Sprintf("%d req/min (not limited)", r.RateLimiting.MaxRequestsPerMinute)
	if r.RateLimiting.LimitsDetected {
		limit = yellow(fmt.Sprintf("%d req/min (limited)", r.RateLimiting.MaxRequestsPerMinute))
	}
	fmt.Fprintf(w, "  Rate Limit:          %s\n", limit)
	fmt.Fprintf(w, "  Batch Size:          %d\n", r.RateLimiting.RecommendedBatchSize)
	fmt.Fprintf(w, "  Cacheable Endpoints: %d\n", len(r.CacheAnalysis.Cacheable))

	if finished := d.Finished(); len(finished) > 0 {
		fmt.Fprintf(w, "  Analyzer Order:      %s\n", strings.Join(finished, ", "))
	}
	if _, degraded := d.Stats(); degraded > 0 {
		fmt.Fprintf(w, "  Degraded Analyzers:  %s\n", yellow(degraded))
	}

	if opts := r.Recommendations.Optimization; len(opts) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, bold("  Top Optimizations:"))
		for _, o := range opts[:min(len(opts), 3)] {
			fmt.Fprintf(w, "    - %s\n", o)
		}
	}
	fmt.Fprintln(w)
}

// truncateURL truncates a URL to maxLen characters.
func truncateURL(url string, maxLen int) string {
	if len(url) <= maxLen {
		return url
	}
	return url[:maxLen-3] + "..."
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
