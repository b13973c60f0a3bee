package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// tempOut returns a regular file standing in for stderr, and a reader for
// everything written to it so far.
func tempOut(t *testing.T) (*os.File, func() string) {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "out.log"))
	if err != nil {
		t.Fatalf("creating output file: %v", err)
	}
	t.Cleanup(func() { f.Close() }) //nolint:errcheck
	return f, func() string {
		data, err := os.ReadFile(f.Name())
		if err != nil {
			t.Fatalf("reading output: %v", err)
		}
		return string(data)
	}
}

func TestNewManager_DefaultConfig(t *testing.T) {
	out, _ := tempOut(t)
	mgr, logger := NewManager(DefaultConfig(), out)
	defer mgr.Close() //nolint:errcheck

	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	if mgr.Config().Level != "info" {
		t.Errorf("expected level info, got %s", mgr.Config().Level)
	}
	if mgr.Config().Format != FormatAuto {
		t.Errorf("expected format auto, got %s", mgr.Config().Format)
	}
}

func TestManager_LevelSwap(t *testing.T) {
	out, _ := tempOut(t)
	mgr, logger := NewManager(Config{Level: "info", Format: FormatJSON}, out)
	defer mgr.Close() //nolint:errcheck

	if !logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected info to be enabled")
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug to be disabled")
	}

	mgr.Reconfigure(Config{Level: "debug", Format: FormatJSON})
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug to be enabled after reconfigure")
	}

	mgr.Reconfigure(Config{Level: "error", Format: FormatJSON})
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected info to be disabled when level is error")
	}
}

func TestManager_DerivedLoggerFollowsSwap(t *testing.T) {
	out, read := tempOut(t)
	mgr, logger := NewManager(Config{Level: "info", Format: FormatJSON}, out)
	defer mgr.Close() //nolint:errcheck

	derived := logger.With(slog.String("component", "pricing"))
	derived.Info("before")

	mgr.Reconfigure(Config{Level: "info", Format: FormatText})
	derived.Info("after")

	lines := strings.Split(strings.TrimSpace(read()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "{") || !strings.Contains(lines[0], `"component":"pricing"`) {
		t.Errorf("expected JSON with component, got %q", lines[0])
	}
	if strings.HasPrefix(lines[1], "{") || !strings.Contains(lines[1], "component=pricing") {
		t.Errorf("expected text with component after swap, got %q", lines[1])
	}
}

func TestManager_FileOutput(t *testing.T) {
	out, read := tempOut(t)
	logFile := filepath.Join(t.TempDir(), "spinmatch.log")

	mgr, logger := NewManager(Config{
		Level:          "info",
		Format:         FormatJSON,
		FilePath:       logFile,
		FileMaxSizeMB:  1,
		FileMaxFiles:   1,
		FileMaxAgeDays: 1,
	}, out)

	logger.Info("hello from test")

	if err := mgr.Close(); err != nil {
		t.Fatalf("closing manager: %v", err)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Error("expected log file to contain the message")
	}
	if !strings.Contains(read(), "hello from test") {
		t.Error("expected the message on the primary output too")
	}
}

func TestManager_CloseIdempotent(t *testing.T) {
	out, _ := tempOut(t)
	mgr, _ := NewManager(DefaultConfig(), out)
	if err := mgr.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestResolveFormat(t *testing.T) {
	out, _ := tempOut(t)
	if got := ResolveFormat(FormatAuto, out); got != FormatJSON {
		t.Errorf("expected json for a regular file, got %s", got)
	}
	if got := ResolveFormat(FormatText, out); got != FormatText {
		t.Errorf("expected explicit format to pass through, got %s", got)
	}
}

func TestValidLevel(t *testing.T) {
	for _, l := range []string{"debug", "info", "warn", "error"} {
		if !ValidLevel(l) {
			t.Errorf("expected %q to be valid", l)
		}
	}
	for _, l := range []string{"", "trace", "fatal", "DEBUG"} {
		if ValidLevel(l) {
			t.Errorf("expected %q to be invalid", l)
		}
	}
}

func TestValidFormat(t *testing.T) {
	for _, f := range []string{"text", "json", "auto"} {
		if !ValidFormat(f) {
			t.Errorf("expected %q to be valid", f)
		}
	}
	if ValidFormat("xml") || ValidFormat("") {
		t.Error("xml and empty should be invalid")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in  string
		out slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"unknown", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.out {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.out)
		}
	}
}

func TestConfig_String(t *testing.T) {
	cfg := Config{Level: "info", Format: "json"}
	if s := cfg.String(); s != "level=info format=json" {
		t.Errorf("unexpected string: %s", s)
	}

	cfg.FilePath = "/var/log/spinmatch.log"
	cfg.FileMaxSizeMB = 50
	cfg.FileMaxFiles = 5
	cfg.FileMaxAgeDays = 7
	expected := "level=info format=json file=/var/log/spinmatch.log max_size=50MB max_files=5 max_age=7d"
	if s := cfg.String(); s != expected {
		t.Errorf("got %q, want %q", s, expected)
	}
}
