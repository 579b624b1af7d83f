// Package logging wraps zerolog for the journal monitor. Components take a
// tagged child of the process logger; request scoped code reads the logger
// from the context.
//
//	log := logging.Component("scanner")
//	log.Debug().Str("journal", path).Int("lines", n).Msg("Read journal")
package logging

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var defaultLogger = NewLoggerFromConfig(envConfig())

// envConfig reads LOG_LEVEL, LOG_FORMAT, LOG_OUTPUT and NO_COLOR. DEBUG set
// without LOG_LEVEL selects debug.
func envConfig() *Config {
	cfg := DefaultConfig()
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Level = v
	} else if os.Getenv("DEBUG") != "" {
		cfg.Level = "debug"
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Format = v
	}
	if v := os.Getenv("LOG_OUTPUT"); v != "" {
		cfg.Output = v
	}
	return cfg
}

// Default returns the process logger.
func Default() *zerolog.Logger {
	return &defaultLogger
}

// SetDefault replaces the process logger. Loggers already handed out by
// Component keep their writer.
func SetDefault(logger zerolog.Logger) {
	defaultLogger = logger
	log.Logger = logger
}

// Component returns a child of the process logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return defaultLogger.With().Str("component", name).Logger()
}

// Fatal logs at fatal level on the process logger and exits.
func Fatal() *zerolog.Event {
	return defaultLogger.Fatal()
}

func isTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
