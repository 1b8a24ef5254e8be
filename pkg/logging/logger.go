package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is a type alias for zerolog.Logger.
type Logger = zerolog.Logger

// Config contains logging configuration options.
type Config struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `json:"level"`

	// Format is "json" or "text".
	Format string `json:"format"`

	// File redirects output to a file. The terminal UI always sets this so
	// log lines do not land on the alternate screen.
	File string `json:"file,omitempty"`
}

// DefaultConfig returns the defaults used when the config file has no logging section.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "text",
	}
}

// NewLoggerFromConfig builds a logger writing to stderr or Config.File. The
// returned closer releases the file, if any.
func NewLoggerFromConfig(config Config) (Logger, io.Closer, error) {
	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	if config.File != "" {
		f, err := os.OpenFile(config.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return zerolog.Nop(), closer, err
		}
		out = f
		closer = f
	}

	return NewLogger(out, config), closer, nil
}

// NewLogger builds a logger on an arbitrary writer.
func NewLogger(out io.Writer, config Config) Logger {
	if strings.ToLower(config.Format) == "text" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
			NoColor:    config.File != "",
		}
	}
	return zerolog.New(out).Level(parseLevel(config.Level)).With().Timestamp().Logger()
}

// parseLevel returns the zerolog.Level for the given string. It returns InfoLevel
// if the string is not recognized.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
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

// ForComponent returns a child logger with the component field set.
func ForComponent(logger Logger, component string) Logger {
	return logger.With().Str(FieldComponent, component).Logger()
}

// WithChain returns a child logger with the chain field set.
func WithChain(logger Logger, chain string) Logger {
	return logger.With().Str(FieldChain, chain).Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
