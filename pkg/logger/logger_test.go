package logger

import (
	"bytes"
	"context"
	"errors"
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

func TestNewWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "debug")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	log.Named("acquirer").Warn(context.Background(), "fetch failed",
		String("dataset", "affliction_currency"),
		Int("attempt", 2),
		Error(errors.New("status 404")),
	)

	out := buf.String()
	for _, want := range []string{"level=WARN", "component=acquirer", "dataset=affliction_currency", "attempt=2", `error="status 404"`, "source="} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "error")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info(context.Background(), "ignored")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	for _, lvl := range []string{"debug", "INFO", "", "warning", "warn", "error"} {
		if _, err := ParseLevel(lvl); err != nil {
			t.Errorf("ParseLevel(%q) unexpected error: %v", lvl, err)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("ParseLevel(verbose) expected error")
	}
	if err := SetLevelString("loud"); err == nil {
		t.Error("SetLevelString(loud) expected error")
	}
}
