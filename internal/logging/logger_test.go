package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shelfcast/internal/config"
	"shelfcast/internal/services"
)

func TestNewConsoleInfoOmitsSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := New(Options{Level: "info", Format: "console", Outputs: []string{path, path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello", String(FieldComponent, "transfer"), String(FieldBookID, "b1"), Int("files", 3))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "INFO transfer[b1]: hello") {
		t.Fatalf("unexpected console line: %q", line)
	}
	if !strings.Contains(line, "files=3") {
		t.Fatalf("expected attribute in line: %q", line)
	}
	if strings.Contains(line, "logger_test.go") {
		t.Fatalf("info logger should not include source: %q", line)
	}
}

func TestNewConsoleDebugIncludesSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := New(Options{Level: "debug", Format: "console", Outputs: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("probing")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "logger_test.go:") {
		t.Fatalf("debug logger should include source: %q", data)
	}
}

func TestNewJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := New(Options{Level: "warn", Format: "json", Outputs: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("dropped")
	logger.Warn("kept", String("file", "part1.mp3"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d: %q", len(lines), data)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["level"] != "warn" || entry["msg"] != "kept" || entry["file"] != "part1.mp3" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key: %v", entry)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.Logging.Format = "json"

	logger, err := NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	logger.Info("ready")

	if _, err := os.Stat(filepath.Join(cfg.Paths.LogDir, "shelfcast.log")); err != nil {
		t.Fatalf("expected log file: %v", err)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := services.WithBookID(context.Background(), "book-7")
	ctx = services.WithJobID(ctx, "job-1")
	ctx = services.WithOperation(ctx, "fetch")

	WithContext(ctx, base).Info("started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry[FieldBookID] != "book-7" || entry[FieldJobID] != "job-1" || entry[FieldOperation] != "fetch" {
		t.Fatalf("missing context fields: %v", entry)
	}
	if _, ok := entry[FieldCorrelationID]; ok {
		t.Fatalf("unexpected correlation id: %v", entry)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	WarnWithContext(logger, "fallback", "transcode_fallback", String(FieldImpact, "original file served"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry[FieldEventType] != "transcode_fallback" {
		t.Fatalf("event_type = %v", entry[FieldEventType])
	}
	if entry[FieldImpact] != "original file served" {
		t.Fatalf("impact overridden: %v", entry[FieldImpact])
	}
	if entry[FieldErrorHint] == nil {
		t.Fatal("expected default error_hint")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewComponentLogger(nil, "test")
	logger.Error("nothing")
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should not be enabled")
	}
}

func TestNewJSONDebugReportsCaller(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.log")
	logger, err := New(Options{Level: "debug", Format: "json", Outputs: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("probe", BookID("b2"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	caller, _ := entry["caller"].(string)
	if !strings.HasPrefix(caller, "logger_test.go:") {
		t.Fatalf("caller = %q", caller)
	}
	if entry[FieldBookID] != "b2" {
		t.Fatalf("book id missing: %v", entry)
	}
}

func TestErrorWithContextKeepsCallerHint(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ErrorWithContext(logger, "failed", "transfer_failed", String(FieldErrorHint, "check disk space"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry[FieldErrorHint] != "check disk space" || entry[FieldEventType] != "transfer_failed" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if _, ok := entry[FieldImpact]; ok {
		t.Fatalf("error records should not gain an impact default: %v", entry)
	}
}

func TestConsoleLiftsAlertAndFlattensGroups(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl, false)).
		With(String(FieldComponent, "streaming"), BookID("42")).
		WithGroup("stall")

	logger.Warn("stream ended early", Alert("stream_truncated"), Int("retries", 3), String("path", "a b.mp3"))

	line := buf.String()
	for _, want := range []string{
		"WARN [STREAM_TRUNCATED] streaming[42]: stream ended early",
		"stall.retries=3",
		`stall.path="a b.mp3"`,
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("missing %q in %q", want, line)
		}
	}
}
