// Package output writes discovery reports.
package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/PentesterFlow/crmprobe/internal/report"
)

// Writer defines the interface for report writers.
type Writer interface {
	// WriteReport writes one complete report
	WriteReport(r *report.DiscoveryReport) error

	// Close closes the writer
	Close() error
}

// Config holds output configuration.
type Config struct {
	Format   string
	Pretty   bool
	FilePath string
}

// NewWriter creates a new output writer.
func NewWriter(w io.Writer, config Config) Writer {
	switch config.Format {
	case "json":
		return NewJSONWriter(w, config.Pretty)
	default:
		return NewJSONWriter(w, config.Pretty)
	}
}

// SaveReport writes r as indented JSON to path, creating parent directories.
func SaveReport(r *report.DiscoveryReport, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}

	w := NewJSONWriter(f, true)
	if err := w.WriteReport(r); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}
