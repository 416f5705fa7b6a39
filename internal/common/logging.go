package common

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	arbormodels "github.com/ternarybob/arbor/models"
)

// NewLogger builds the arbor logger described by the logging config.
// Console output is used when no outputs are configured.
func NewLogger(config *Config) arbor.ILogger {
	logger := arbor.NewLogger()

	hasFile := false
	hasConsole := false
	for _, output := range config.Logging.Outputs {
		switch output {
		case "file":
			hasFile = true
		case "console", "stdout":
			hasConsole = true
		}
	}
	if !hasFile && !hasConsole {
		hasConsole = true
	}

	if hasFile && config.Logging.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(config.Logging.FilePath), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to create log directory: %v\n", err)
		} else {
			logger = logger.WithFileWriter(arbormodels.WriterConfiguration{
				Type:       arbormodels.LogWriterTypeFile,
				FileName:   config.Logging.FilePath,
				TimeFormat: "15:04:05",
				MaxSize:    50 * 1024 * 1024,
				MaxBackups: 3,
				OutputType: arbormodels.OutputFormatLogfmt,
			})
		}
	}

	if hasConsole {
		logger = logger.WithConsoleWriter(arbormodels.WriterConfiguration{
			Type:       arbormodels.LogWriterTypeConsole,
			TimeFormat: "15:04:05",
		})
	}

	return logger.WithLevelFromString(config.Logging.Level)
}

// NewSilentLogger returns a logger with no writers attached.
func NewSilentLogger() arbor.ILogger {
	return arbor.NewLogger()
}
