package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is the global logger instance, reconfigured once at startup by
// Init and then read by WithComponent for the rest of the process.
var Logger zerolog.Logger

func init() {
	Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = Logger
}

// Init (re)configures the global logger with the given level and output
// style, called once from cmd/displayencoderd after flags are parsed.
func Init(level string, pretty bool) {
	// Parse log level
	var zlLevel zerolog.Level
	switch strings.ToLower(level) {
	case "debug":
		zlLevel = zerolog.DebugLevel
	case "info":
		zlLevel = zerolog.InfoLevel
	case "warn", "warning":
		zlLevel = zerolog.WarnLevel
	case "error":
		zlLevel = zerolog.ErrorLevel
	default:
		zlLevel = zerolog.InfoLevel
	}

	// Set global log level
	zerolog.SetGlobalLevel(zlLevel)

	// Configure output
	var output io.Writer = os.Stdout
	if pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	Logger = zerolog.New(output).With().Timestamp().Logger()
	log.Logger = Logger
}

// WithComponent returns a logger tagged with a component field, e.g.
// "pipeline", "codec", "statusapi".
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}
