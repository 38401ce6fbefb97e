package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"mercator-hq/procmetrics/pkg/config"
)

func newTestLogger(t *testing.T, level, format string) (*Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger, err := New(Config{Level: level, Format: format, Writer: buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return logger, buf
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "valid JSON config", config: Config{Level: "info", Format: "json"}},
		{name: "valid text config", config: Config{Level: "debug", Format: "text"}},
		{name: "valid console config", config: Config{Level: "warn", Format: "console"}},
		{name: "empty config uses defaults", config: Config{}},
		{name: "invalid log level", config: Config{Level: "invalid", Format: "json"}, wantErr: true},
		{name: "invalid format", config: Config{Level: "info", Format: "invalid"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.Writer = &bytes.Buffer{}
			_, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromConfig(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := FromConfig(config.LoggingConfig{Level: "warn", Format: "text", AddSource: true}, buf)

	if cfg.Level != "warn" || cfg.Format != "text" || !cfg.AddSource || cfg.Writer != buf {
		t.Errorf("FromConfig() = %+v", cfg)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name      string
		logLevel  string
		logMethod func(*Logger, string)
		wantLog   bool
	}{
		{"debug level logs debug", "debug", func(l *Logger, msg string) { l.Debug(msg) }, true},
		{"info level filters debug", "info", func(l *Logger, msg string) { l.Debug(msg) }, false},
		{"info level logs info", "info", func(l *Logger, msg string) { l.Info(msg) }, true},
		{"warn level filters info", "warn", func(l *Logger, msg string) { l.Info(msg) }, false},
		{"warn level logs warn", "warn", func(l *Logger, msg string) { l.Warn(msg) }, true},
		{"error level filters warn", "error", func(l *Logger, msg string) { l.Warn(msg) }, false},
		{"error level logs error", "error", func(l *Logger, msg string) { l.Error(msg) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newTestLogger(t, tt.logLevel, "json")
			tt.logMethod(logger, "test message")

			hasLog := strings.Contains(buf.String(), "test message")
			if hasLog != tt.wantLog {
				t.Errorf("expected log output %v, got %v: %s", tt.wantLog, hasLog, buf.String())
			}
		})
	}
}

func TestLogger_SetLevel(t *testing.T) {
	logger, buf := newTestLogger(t, "info", "json")
	child := logger.WithComponent("multiproc.collector")

	child.Debug("hidden")
	if err := logger.SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	child.Debug("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug record logged before SetLevel")
	}
	if !strings.Contains(out, "visible") {
		t.Error("child logger did not pick up the new level")
	}
	if err := logger.SetLevel("loud"); err == nil {
		t.Error("SetLevel() with unknown level expected error")
	}
}

func TestLogger_StructuredFields(t *testing.T) {
	logger, buf := newTestLogger(t, "info", "json")
	logger.Info("scrape served", "files", 4, "partial_errors", 0)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v", err)
	}
	if entry["msg"] != "scrape served" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["files"] != float64(4) {
		t.Errorf("files = %v, want 4", entry["files"])
	}
}

func TestLogger_WithComponent(t *testing.T) {
	logger, buf := newTestLogger(t, "info", "json")
	logger.WithComponent("multiproc.reaper").With("pid", "12").Info("marked dead")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v", err)
	}
	if entry["component"] != "multiproc.reaper" || entry["pid"] != "12" {
		t.Errorf("unexpected fields: %v", entry)
	}
}

func TestLogger_ContextFields(t *testing.T) {
	logger, buf := newTestLogger(t, "info", "json")
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithProcessID(ctx, "7")

	t.Run("context methods", func(t *testing.T) {
		buf.Reset()
		logger.InfoContext(ctx, "handled")
		out := buf.String()
		if !strings.Contains(out, `"request_id":"req-1"`) || !strings.Contains(out, `"process_id":"7"`) {
			t.Errorf("context fields missing: %s", out)
		}
	})

	t.Run("underlying slog logger", func(t *testing.T) {
		buf.Reset()
		logger.Slog().WarnContext(ctx, "from library")
		if !strings.Contains(buf.String(), `"request_id":"req-1"`) {
			t.Errorf("context fields missing from slog record: %s", buf.String())
		}
	})

	t.Run("bound with WithContext", func(t *testing.T) {
		buf.Reset()
		logger.WithContext(ctx).Info("bound")
		if !strings.Contains(buf.String(), `"process_id":"7"`) {
			t.Errorf("bound fields missing: %s", buf.String())
		}
	})

	t.Run("empty context", func(t *testing.T) {
		if logger.WithContext(context.Background()) != logger {
			t.Error("WithContext() without fields should return the same logger")
		}
	})
}

func TestLogger_Formats(t *testing.T) {
	jsonLogger, jsonBuf := newTestLogger(t, "info", "json")
	jsonLogger.Info("hello", "k", "v")
	if !json.Valid(bytes.TrimSpace(jsonBuf.Bytes())) {
		t.Errorf("json format produced invalid JSON: %s", jsonBuf.String())
	}

	textLogger, textBuf := newTestLogger(t, "info", "text")
	textLogger.Info("hello", "k", "v")
	if !strings.Contains(textBuf.String(), "k=v") {
		t.Errorf("text format missing key=value: %s", textBuf.String())
	}
	if textLogger.Format() != FormatText {
		t.Errorf("Format() = %q", textLogger.Format())
	}
}

func TestLogger_AddSource(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Level: "info", Format: "json", AddSource: true, Writer: buf})
	if err != nil {
		t.Fatal(err)
	}
	logger.Slog().Info("with source")

	if !strings.Contains(buf.String(), `"source"`) {
		t.Errorf("source not included: %s", buf.String())
	}
}

func TestLogger_SetDefault(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	logger, buf := newTestLogger(t, "info", "json")
	logger.SetDefault()
	slog.Info("through default")

	if !strings.Contains(buf.String(), "through default") {
		t.Errorf("default logger not replaced: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    LogFormat
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"", FormatJSON, false},
		{"TEXT", FormatText, false},
		{"console", FormatConsole, false},
		{"xml", FormatJSON, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
