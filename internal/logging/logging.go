package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"
)

// New returns the process logger. Development gets a console writer, everything else JSON.
func New(development bool) zerolog.Logger {
	var w io.Writer = os.Stdout
	level := zerolog.InfoLevel
	if development {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
		level = zerolog.DebugLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Component tags a child logger the way the old "[tag]" prefixes did.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

type gormWriter struct {
	log zerolog.Logger
}

func (g gormWriter) Printf(format string, args ...interface{}) {
	g.log.Info().Msgf(strings.TrimSpace(format), args...)
}

// Gorm bridges GORM's logger onto zerolog. Slow queries and errors surface at Warn.
func Gorm(log zerolog.Logger, development bool) gormlogger.Interface {
	level := gormlogger.Warn
	if development {
		level = gormlogger.Info
	}
	return gormlogger.New(
		gormWriter{log: Component(log, "gorm")},
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
