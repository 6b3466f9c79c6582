package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init initializes the global logger with the specified level and format
func Init(level, format string) {
	InitWithFile(level, format, "")
}

// InitWithFile initializes the global logger and optionally tees output
// to a log file, so recovery sessions leave an audit trail on disk
func InitWithFile(level, format, logFile string) {
	zerolog.SetGlobalLevel(parseLevel(level))

	var out io.Writer = os.Stdout
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			out = zerolog.MultiLevelWriter(out, f)
		}
		// If the file cannot be opened we still log to stdout
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// Get returns a reference to the global logger
func Get() *zerolog.Logger {
	return &log.Logger
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
