// Package log provides structured, colored logging for the minter.
package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Component loggers for different parts of the system.
var (
	Mint     zerolog.Logger
	Indexer  zerolog.Logger
	Wallet   zerolog.Logger
	Contract zerolog.Logger
	Journal  zerolog.Logger
	Storage  zerolog.Logger
)

func init() {
	Logger = NewConsoleLogger(os.Stderr, "info")
	initComponentLoggers()
}

// Init initializes the logger with the given configuration.
// When file is non-empty, logs are written to both the console (colored or
// JSON depending on jsonOutput) and the file (always JSON for machine parsing).
func Init(level string, jsonOutput bool, file string) error {
	var console io.Writer = os.Stderr
	if !jsonOutput {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}

	out := console
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		out = zerolog.MultiLevelWriter(console, f)
	}

	Logger = zerolog.New(out).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()
	initComponentLoggers()
	return nil
}

// NewConsoleLogger creates a colored console logger.
func NewConsoleLogger(w io.Writer, level string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}
	return zerolog.New(output).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// NewJSONLogger creates a structured JSON logger.
func NewJSONLogger(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// parseLevel maps a level name to a zerolog level. Unknown or empty names
// fall back to info.
func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func initComponentLoggers() {
	Mint = WithComponent("mint")
	Indexer = WithComponent("indexer")
	Wallet = WithComponent("wallet")
	Contract = WithComponent("contract")
	Journal = WithComponent("journal")
	Storage = WithComponent("storage")
}

// WithComponent returns a logger with a component field.
func WithComponent(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// WithTicker returns the mint logger tagged with a token ticker.
func WithTicker(tick string) zerolog.Logger {
	return Mint.With().Str("tick", tick).Logger()
}

// Benchmark times an operation and logs its duration to l at debug level
// when the returned func is called.
func Benchmark(l zerolog.Logger, name string) func() {
	start := time.Now()
	return func() {
		l.Debug().
			Str("operation", name).
			Dur("duration", time.Since(start)).
			Msg("benchmark")
	}
}
