// Package logger builds the zerolog logger shared by ordinator components
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// envLogLevel sets the minimum level, info by default
	envLogLevel = "ORDINATOR_LOG_LEVEL"

	// envLogFormatJSON switches the output to json when not empty
	envLogFormatJSON = "ORDINATOR_LOG_FORMAT_JSON"
)

// level returns the level set in the environment.
// Unknown values fall back to info
func level() zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(envLogLevel))) {
	case "panic":
		return zerolog.PanicLevel
	case "fatal":
		return zerolog.FatalLevel
	case "error":
		return zerolog.ErrorLevel
	case "warn":
		return zerolog.WarnLevel
	case "debug":
		return zerolog.DebugLevel
	case "trace":
		return zerolog.TraceLevel
	}
	return zerolog.InfoLevel
}

// output returns the writer of the logger depending on the environment
func output(out io.Writer) io.Writer {
	if strings.TrimSpace(os.Getenv(envLogFormatJSON)) != "" {
		return out
	}

	console := zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: time.RFC3339}
	console.FormatLevel = func(i any) string {
		return strings.ToUpper(fmt.Sprintf("| %s |", i))
	}
	console.FormatMessage = func(i any) string {
		return fmt.Sprintf("%s", i)
	}
	return console
}

// NewLogger instantiate zerolog configuration
func NewLogger() *zerolog.Logger {
	zerolog.SetGlobalLevel(level())
	logger := zerolog.New(output(os.Stdout)).With().Timestamp().Caller().Logger()
	return &logger
}

// NewComponentLogger returns a logger tagging every entry with the component name
func NewComponentLogger(component string) *zerolog.Logger {
	logger := NewLogger().With().Str("component", component).Logger()
	return &logger
}
