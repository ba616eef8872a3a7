package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mkexporter/internal/config"
)

// TestColorLineWriter_HighlightsLevelAndTokens verifies level and token coloring.
// Params: testing.T for assertions.
// Returns: none.
func TestColorLineWriter_HighlightsLevelAndTokens(t *testing.T) {
	var dst bytes.Buffer
	writer := &colorLineWriter{dst: &dst}

	line := `level=INFO msg="hello" peer=10.20.30.40 retries=3`
	if _, err := writer.Write([]byte(line)); err != nil {
		t.Fatalf("write: %v", err)
	}

	rendered := dst.String()
	if !strings.HasPrefix(rendered, ansiBlue) {
		t.Fatalf("expected INFO line base color")
	}
	if !strings.Contains(rendered, ansiGreen+`"hello"`+ansiReset+ansiBlue) {
		t.Fatalf("expected quoted string token color")
	}
	if !strings.Contains(rendered, ansiCyan+`10.20.30.40`+ansiReset+ansiBlue) {
		t.Fatalf("expected IP token color")
	}
	if !strings.Contains(rendered, ansiYellow+`3`+ansiReset+ansiBlue) {
		t.Fatalf("expected number token color")
	}
	if !strings.HasSuffix(rendered, ansiReset) {
		t.Fatalf("expected trailing reset sequence")
	}
}

// TestColorLineWriter_NoLevelColor verifies passthrough for unknown levels.
// Params: testing.T for assertions.
// Returns: none.
func TestColorLineWriter_NoLevelColor(t *testing.T) {
	var dst bytes.Buffer
	writer := &colorLineWriter{dst: &dst}

	line := `msg="plain" value=42`
	if _, err := writer.Write([]byte(line)); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got := dst.String(); got != line {
		t.Fatalf("expected passthrough line, got %q", got)
	}
}

// TestColorLineWriter_KeepsNewlineAfterReset verifies multi-line writes.
// Params: testing.T for assertions.
// Returns: none.
func TestColorLineWriter_KeepsNewlineAfterReset(t *testing.T) {
	var dst bytes.Buffer
	writer := &colorLineWriter{dst: &dst}

	input := "level=WARN msg=\"a\"\nlevel=ERROR addr=192.168.88.1:80\n"
	n, err := writer.Write([]byte(input))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != len(input) {
		t.Fatalf("unexpected written length: %d", n)
	}

	lines := strings.Split(strings.TrimSuffix(dst.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("unexpected line count: %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], ansiMagenta) || !strings.HasSuffix(lines[0], ansiReset) {
		t.Fatalf("unexpected WARN rendering: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], ansiRed) {
		t.Fatalf("unexpected ERROR rendering: %q", lines[1])
	}
	if !strings.Contains(lines[1], ansiCyan+"192.168.88.1:80"+ansiReset+ansiRed) {
		t.Fatalf("expected IP:port token color: %q", lines[1])
	}
}

// TestNew_FileSinkWritesJSON verifies file sink creation and level filtering.
// Params: testing.T for assertions.
// Returns: none.
func TestNew_FileSinkWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "exporter.log")

	logger, closeFn, err := New(config.LogConfig{
		File: config.LogSinkConfig{Enabled: true, Level: "warn", Format: "json", Path: path},
	})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	logger.Info("skipped")
	logger.Warn("collector failed", slog.String("router", "office"))
	logger.Log(context.Background(), LevelPanic, "fatal")
	closeFn()
	closeFn()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	body := string(raw)
	if strings.Contains(body, "skipped") {
		t.Fatalf("expected info record to be filtered: %s", body)
	}
	if !strings.Contains(body, `"router":"office"`) {
		t.Fatalf("expected warn record with attrs: %s", body)
	}
	if !strings.Contains(body, `"level":"PANIC"`) {
		t.Fatalf("expected panic level label: %s", body)
	}
}

// TestParseLevel verifies config level mapping.
// Params: testing.T for assertions.
// Returns: none.
func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"panic":   LevelPanic,
		"unknown": slog.LevelInfo,
	}
	for name, want := range cases {
		if got := ParseLevel(name); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

// TestFanoutHandler_RespectsPerSinkLevel verifies fanout routing.
// Params: testing.T for assertions.
// Returns: none.
func TestFanoutHandler_RespectsPerSinkLevel(t *testing.T) {
	var debugSink, errorSink bytes.Buffer
	handler := fanoutHandler{
		slog.NewTextHandler(&debugSink, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&errorSink, &slog.HandlerOptions{Level: slog.LevelError}),
	}
	logger := slog.New(handler).With(slog.String("component", "exporter"))

	logger.Debug("scrape")
	if !strings.Contains(debugSink.String(), "component=exporter") {
		t.Fatalf("expected debug sink record: %q", debugSink.String())
	}
	if errorSink.Len() != 0 {
		t.Fatalf("expected error sink to stay empty: %q", errorSink.String())
	}
}
