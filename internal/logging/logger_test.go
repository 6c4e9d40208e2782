package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"contentfactory/internal/config"
	"contentfactory/internal/logging"
	"contentfactory/internal/services"
)

func tempLogPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name+".log")
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestNewFromConfigWritesJSONFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Level = "info"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("file message", logging.String("key", "value"))

	content := readLog(t, filepath.Join(cfg.Paths.LogDir, "contentfactory.log"))
	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &record); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", content, err)
	}
	if record["msg"] != "file message" || record["key"] != "value" {
		t.Fatalf("unexpected record: %v", record)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := tempLogPath(t, "console-info")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message without caller")

	if content := readLog(t, logPath); strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := tempLogPath(t, "console-debug")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message with caller")

	if content := readLog(t, logPath); !strings.Contains(content, ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleSubjectUsesRunAndWorker(t *testing.T) {
	logPath := tempLogPath(t, "console-subject")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("worker finished",
		logging.String(logging.FieldRunID, "0123456789abcdef"),
		logging.String(logging.FieldWorker, "translator"),
		logging.Int("attempt", 2),
	)

	content := readLog(t, logPath)
	if !strings.Contains(content, "[01234567/translator] worker finished") {
		t.Fatalf("expected run/worker subject, got %q", content)
	}
	if !strings.Contains(content, "attempt=2") {
		t.Fatalf("expected attribute, got %q", content)
	}
	if strings.Contains(content, "\x1b[") {
		t.Fatalf("expected no color codes when color disabled, got %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestForWorkerAppliesLevelOverride(t *testing.T) {
	logPath := tempLogPath(t, "json-override")
	base, err := logging.New(logging.Options{Format: "json", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	overrides := map[string]string{"translator": "warn"}

	logging.ForWorker(base, overrides, "translator").Info("suppressed")
	logging.ForWorker(base, overrides, "translator").Warn("kept")
	logging.ForWorker(base, overrides, "media-processor").Info("untouched")

	content := readLog(t, logPath)
	if strings.Contains(content, "suppressed") {
		t.Fatalf("expected info to be filtered for overridden worker, got %q", content)
	}
	if !strings.Contains(content, "kept") || !strings.Contains(content, "untouched") {
		t.Fatalf("expected remaining records, got %q", content)
	}
	if !strings.Contains(content, `"worker":"media-processor"`) {
		t.Fatalf("expected worker field, got %q", content)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-123")
	ctx = services.WithWorker(ctx, "seo-optimizer")
	ctx = services.WithPipeline(ctx, "seo")
	ctx = services.WithRequestID(ctx, "req-xyz")

	fields := logging.ContextFields(ctx)
	want := map[string]string{
		logging.FieldRunID:         "run-123",
		logging.FieldWorker:        "seo-optimizer",
		logging.FieldPipeline:      "seo",
		logging.FieldCorrelationID: "req-xyz",
	}
	if len(fields) != len(want) {
		t.Fatalf("expected %d fields, got %d", len(want), len(fields))
	}
	for _, f := range fields {
		if want[f.Key] != f.Value.String() {
			t.Fatalf("field %s = %q, want %q", f.Key, f.Value.String(), want[f.Key])
		}
	}
	if logging.WithContext(ctx, nil) == nil {
		t.Fatal("expected logger")
	}
}

func TestFailureAttrsCarryKind(t *testing.T) {
	err := services.Wrap(services.ErrTimeout, "media-processor", "await image", "", nil)
	attrs := logging.FailureAttrs(err)
	if !logging.HasAttrKey(attrs, logging.FieldErrorKind) || !logging.HasAttrKey(attrs, "operation") {
		t.Fatalf("unexpected attrs: %v", attrs)
	}
	if attrs[0].Value.String() != string(services.KindTimeout) {
		t.Fatalf("unexpected kind: %v", attrs[0].Value)
	}
	if logging.FailureAttrs(nil) != nil {
		t.Fatal("expected nil attrs for nil error")
	}
}
