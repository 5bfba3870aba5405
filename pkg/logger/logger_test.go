package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
}

func TestLoggerTextOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf, FormatText); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	_ = SetLevelString("info")

	Get().Named("store").Info(context.Background(), "snapshot loaded", Int("users", 3), Bool("calibrated", true))

	out := buf.String()
	for _, want := range []string{"snapshot loaded", "component=store", "users=3", "calibrated=true", "source=logger/logger_test.go:"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got %q", want, out)
		}
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf, FormatJSON); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	_ = SetLevelString("info")

	Get().With(String("run_id", "abc")).Warn(context.Background(), "record skipped", Uint64("user_id", 42))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not json: %v (%q)", err, buf.String())
	}
	if entry["run_id"] != "abc" {
		t.Errorf("expected run_id abc, got %v", entry["run_id"])
	}
	if entry["msg"] != "record skipped" {
		t.Errorf("unexpected msg %v", entry["msg"])
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf, FormatText); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	if err := SetLevelString("warn"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = SetLevelString("info") }()

	Get().Info(context.Background(), "hidden")
	Get().Debug(context.Background(), "hidden too")
	if buf.Len() != 0 {
		t.Errorf("expected no output below warn, got %q", buf.String())
	}

	Get().Error(context.Background(), "shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected error line, got %q", buf.String())
	}
}

func TestSetLevelString(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "", "WARN", "warning", "error"} {
		if err := SetLevelString(lvl); err != nil {
			t.Errorf("level %q: unexpected error %v", lvl, err)
		}
	}
	if err := SetLevelString("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
	_ = SetLevelString("info")
}

func TestInitWithWriterRejectsUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf, "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
	if err := InitWithWriter(nil, FormatText); err == nil {
		t.Error("expected error for nil writer")
	}
}
