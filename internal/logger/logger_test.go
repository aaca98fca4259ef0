package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func newBufferLogger(level Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Config{
		Level:  level,
		Pretty: false,
		Output: &buf,
	}), &buf
}

func TestNew(t *testing.T) {
	if New(DefaultConfig()) == nil {
		t.Fatal("New() returned nil")
	}
	if NewJSON(InfoLevel) == nil {
		t.Fatal("NewJSON() returned nil")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != InfoLevel {
		t.Errorf("Level = %v, want InfoLevel", cfg.Level)
	}
	if !cfg.Pretty {
		t.Error("Pretty should be true by default")
	}
	if cfg.Output == nil {
		t.Error("Output should not be nil")
	}
}

func TestNew_ComponentFromConfig(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: InfoLevel, Output: &buf, Component: "sampler"})

	l.Info("hello")

	if !strings.Contains(buf.String(), "sampler") {
		t.Errorf("Output should contain component: %s", buf.String())
	}
}

func TestLogger_WithComponent(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel)

	l.WithComponent("schema").Info("test message")

	if !strings.Contains(buf.String(), `"component":"schema"`) {
		t.Errorf("Output should contain component: %s", buf.String())
	}
}

func TestLogger_WithField(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel)

	l.WithField("custom_field", "custom_value").Info("test message")

	output := buf.String()
	if !strings.Contains(output, "custom_field") || !strings.Contains(output, "custom_value") {
		t.Errorf("Output should contain field: %s", output)
	}
}

func TestLogger_WithOperation(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel)

	l.WithOperation("list_contacts").Info("sampling")

	if !strings.Contains(buf.String(), `"operation":"list_contacts"`) {
		t.Errorf("Output should contain operation: %s", buf.String())
	}
}

func TestLogger_WithError(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel)

	l.WithError(errors.New("boom")).Info("failed")

	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("Output should contain error: %s", buf.String())
	}
}

func TestLogger_WithDuration(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel)

	l.WithDuration(150 * time.Millisecond).Info("done")

	if !strings.Contains(buf.String(), "duration") {
		t.Errorf("Output should contain duration: %s", buf.String())
	}
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		level Level
		log   func(l *Logger)
		want  string
	}{
		{"debug", DebugLevel, func(l *Logger) { l.Debug("debug message") }, "debug message"},
		{"debugf", DebugLevel, func(l *Logger) { l.Debugf("debug %s %d", "test", 123) }, "debug test 123"},
		{"info", InfoLevel, func(l *Logger) { l.Info("info message") }, "info message"},
		{"infof", InfoLevel, func(l *Logger) { l.Infof("info %s", "formatted") }, "info formatted"},
		{"warn", WarnLevel, func(l *Logger) { l.Warn("warning message") }, "warning message"},
		{"warnf", WarnLevel, func(l *Logger) { l.Warnf("warn %d", 7) }, "warn 7"},
		{"error", ErrorLevel, func(l *Logger) { l.Error("error message") }, "error message"},
		{"errorf", ErrorLevel, func(l *Logger) { l.Errorf("error %s", "x") }, "error x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, buf := newBufferLogger(tt.level)
			tt.log(l)
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("Output should contain %q: %s", tt.want, buf.String())
			}
		})
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(WarnLevel)

	l.Debug("debug")
	l.Info("info")
	l.Warn("warning")

	output := buf.String()
	if strings.Contains(output, `"message":"debug"`) {
		t.Error("Debug should be filtered")
	}
	if strings.Contains(output, `"message":"info"`) {
		t.Error("Info should be filtered")
	}
	if !strings.Contains(output, "warning") {
		t.Error("Warning should be present")
	}
}

func TestLogger_RequestEvent(t *testing.T) {
	l, buf := newBufferLogger(DebugLevel)

	l.RequestEvent("GET", "https://crm.example.com/rest/me", 200, 100*time.Millisecond)

	output := buf.String()
	for _, want := range []string{"GET", "https://crm.example.com/rest/me", "200"} {
		if !strings.Contains(output, want) {
			t.Errorf("Output should contain %q: %s", want, output)
		}
	}
}

func TestLogger_RequestEvent_HiddenAtInfo(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel)

	l.RequestEvent("GET", "https://crm.example.com/rest/me", 200, time.Millisecond)

	if buf.Len() != 0 {
		t.Errorf("request events are debug level, got: %s", buf.String())
	}
}

func TestLogger_DegradedEvent(t *testing.T) {
	l, buf := newBufferLogger(WarnLevel)

	l.DegradedEvent("schema", errors.New("introspection disabled"))

	output := buf.String()
	if !strings.Contains(output, `"analyzer":"schema"`) {
		t.Errorf("Output should contain analyzer: %s", output)
	}
	if !strings.Contains(output, "introspection disabled") {
		t.Errorf("Output should contain error: %s", output)
	}
}

func TestLogger_StatsEvent(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel)

	l.StatsEvent("Probe statistics", map[string]interface{}{
		"requests_total": 100,
		"errors_total":   5,
	})

	output := buf.String()
	if !strings.Contains(output, "requests_total") {
		t.Errorf("Output should contain requests_total: %s", output)
	}
	if !strings.Contains(output, "Probe statistics") {
		t.Errorf("Output should contain message: %s", output)
	}
}

func TestLogger_SetLevel(t *testing.T) {
	l, buf := newBufferLogger(DebugLevel)

	l.Debug("should appear")
	l.SetLevel(ErrorLevel)
	l.Debug("should not appear")

	output := buf.String()
	if !strings.Contains(output, "should appear") {
		t.Error("First debug should appear")
	}
	if strings.Contains(output, "should not appear") {
		t.Error("Debug after SetLevel(ErrorLevel) should be filtered")
	}
}

func TestLogger_Nop(t *testing.T) {
	l := Nop()
	l.Error("discarded")
	l.WithComponent("x").Warn("discarded")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"debug", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"error", ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if err != nil {
				t.Fatalf("ParseLevel() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel(loud) should fail")
	}
}

func TestLogger_JSONOutput(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel)

	l.Info("json test")

	var data map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if data["message"] != "json test" {
		t.Errorf("Message = %v, want 'json test'", data["message"])
	}
	if data["level"] != "info" {
		t.Errorf("Level = %v, want 'info'", data["level"])
	}
}
