package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/virto-network/subskribinto/extrinsicClient/config"
)

// New creates the logger for one invocation. Command results own stdout, so
// callers pass stderr or a test buffer. Entries are tagged with the app name;
// components add their own "component" field. The sampler only thins debug
// and info entries, so rejections and dispatch failures are always logged.
func New(w io.Writer, cfg config.Config) zerolog.Logger {
	if cfg.LogFormat != "json" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(w).
		Level(zerolog.Level(cfg.LogLevel)).
		With().
		Timestamp().
		Str("app", "subskribinto").
		Logger()

	if cfg.LogSampler {
		sampler := &zerolog.BasicSampler{N: 5}
		logger = logger.Sample(&zerolog.LevelSampler{
			TraceSampler: sampler,
			DebugSampler: sampler,
			InfoSampler:  sampler,
		})
	}
	return logger
}

// Init builds the process logger from the loaded configuration.
func Init(cfg config.Config) zerolog.Logger {
	return New(os.Stderr, cfg)
}
