package common

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewLogger_FileAndConsoleWriters(t *testing.T) {
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Logging.Level = "debug"
	cfg.Logging.Outputs = []string{"console", "file"}
	cfg.Logging.FilePath = filepath.Join(dir, "logs", "pulse.log")

	logger := NewLogger(cfg)
	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}
	logger.Info().Str("component", "test").Msg("logger ready")

	if _, err := os.Stat(filepath.Join(dir, "logs")); err != nil {
		t.Errorf("log directory not created: %v", err)
	}
}

func TestNewLogger_DefaultsToConsole(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Logging.Outputs = nil

	if NewLogger(cfg) == nil {
		t.Fatal("NewLogger returned nil")
	}
}
