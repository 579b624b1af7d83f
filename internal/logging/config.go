package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config selects level, format and destination of a logger.
type Config struct {
	Level string // trace, debug, info, warn, error, off
	// Format is console, json or auto. Auto picks console for a terminal stderr.
	Format string
	// Output is stderr, stdout, discard or a file path opened for append.
	Output  string
	NoColor bool
	// AddCaller adds file:line; debug and trace levels always do.
	AddCaller bool
}

// DefaultConfig returns info level, auto format on stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:   "info",
		Format:  "auto",
		Output:  "stderr",
		NoColor: os.Getenv("NO_COLOR") != "",
	}
}

// NewLoggerFromConfig builds a logger and sets the zerolog global level to match.
func NewLoggerFromConfig(cfg *Config) zerolog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	level := ParseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	ctx := zerolog.New(writerFor(cfg)).Level(level).With().Timestamp()
	if cfg.AddCaller || level <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// Configure replaces the process logger.
func Configure(cfg *Config) {
	SetDefault(NewLoggerFromConfig(cfg))
}

func writerFor(cfg *Config) io.Writer {
	var out io.Writer = os.Stderr
	terminal := false
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		terminal = isTerminal()
	case "stdout":
		out = os.Stdout
	case "discard", "none":
		return io.Discard
	default:
		if f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			out = f
		}
	}

	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
	case "json":
		return out
	default:
		if !terminal {
			return out
		}
	}
	return zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen, NoColor: cfg.NoColor}
}

// ParseLevel parses a level name. Unknown names give info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "", "info":
		return zerolog.InfoLevel
	case "warning":
		return zerolog.WarnLevel
	case "none", "off":
		return zerolog.Disabled
	}
	if l, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil {
		return l
	}
	return zerolog.InfoLevel
}
