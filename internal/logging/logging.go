package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"together-sync/internal/config"
)

var sink io.Writer = os.Stdout

// Init configures the global logger. When cfg.File is set, output goes to a
// size-capped file so a long-running client cannot fill the disk.
func Init(cfg config.LogConfig) {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level))); err == nil && cfg.Level != "" {
		level = parsed
	}

	var output io.Writer = os.Stdout
	if cfg.File != "" {
		if w, err := newCappedFileWriter(cfg.File, cfg.MaxMB); err == nil {
			output = w
		}
	}
	sink = output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// Writer returns the raw log sink, for handing to non-zerolog loggers
// (the HTTP request logger writes slog JSON to the same place).
func Writer() io.Writer {
	return sink
}
