package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the process-wide logger
	Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// Init configures the process-wide logger for the given level
func Init(level string) {
	InitWithWriter(level, nil)
}

// InitWithWriter is Init with an explicit output; nil selects stdout
func InitWithWriter(level string, out io.Writer) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if out == nil {
		out = os.Stdout
		if os.Getenv("ENV") == "development" {
			out = zerolog.ConsoleWriter{
				Out:        os.Stdout,
				TimeFormat: time.RFC3339,
			}
		}
	}

	Logger = zerolog.New(out).
		With().
		Timestamp().
		Caller().
		Logger()

	Logger.Debug().
		Str("level", logLevel.String()).
		Msg("logger initialized")
}

// WithComponent returns a logger tagged with a component field
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithRecord returns a component logger tagged with the record key
func WithRecord(component, tenantID, logID string) zerolog.Logger {
	return Logger.With().
		Str("component", component).
		Str("tenant_id", tenantID).
		Str("log_id", logID).
		Logger()
}
