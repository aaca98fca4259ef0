package output

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/PentesterFlow/crmprobe/internal/report"
)

// JSONWriter writes reports in JSON format.
type JSONWriter struct {
	mu     sync.Mutex
	writer io.Writer
	pretty bool
	closed bool
}

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter(w io.Writer, pretty bool) *JSONWriter {
	return &JSONWriter{
		writer: w,
		pretty: pretty,
	}
}

// WriteReport writes the complete report followed by a newline.
func (j *JSONWriter) WriteReport(r *report.DiscoveryReport) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}

	var data []byte
	var err error

	if j.pretty {
		data, err = json.MarshalIndent(r, "", "  ")
	} else {
		data, err = json.Marshal(r)
	}

	if err != nil {
		return err
	}

	_, err = j.writer.Write(append(data, '\n'))
	return err
}

// Close marks the writer closed. Closers are closed too.
func (j *JSONWriter) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true

	if closer, ok := j.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
