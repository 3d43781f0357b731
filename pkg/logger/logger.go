// Package logx wraps zerolog's global logger so call sites stay one import
// away from structured logging. Init selects output and level from the
// deployment environment; until it runs, the zerolog defaults apply.
package logx

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/adam-npc/dialogue-core/internal/core"
)

var DefaultLoggerOpts = &LoggerOpts{
	Environment: core.Development,
	Service:     "dialogue-core",
}

type LoggerOpts struct {
	Environment core.Environment
	// Service tags every event; useful when logs from several processes land
	// in one stream.
	Service string
}

func safe(opts ...LoggerOpts) *LoggerOpts {
	if len(opts) == 0 {
		return DefaultLoggerOpts
	}
	o := opts[0]
	if o.Service == "" {
		o.Service = DefaultLoggerOpts.Service
	}
	return &o
}

// Init configures the global logger. Production logs JSON at info level;
// everything else gets the console writer at debug level with caller info.
func Init(opts ...LoggerOpts) {
	o := safe(opts...)
	if o.Environment.IsProduction() {
		log.Logger = zerolog.New(os.Stderr).With().
			Timestamp().
			Str("service", o.Service).
			Logger().
			Level(zerolog.InfoLevel)
		return
	}
	log.Logger = zerolog.New(zerolog.NewConsoleWriter()).With().
		Timestamp().
		Caller().
		Str("service", o.Service).
		Logger().
		Level(zerolog.DebugLevel)
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Panic() *zerolog.Event {
	return log.Panic()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}
