package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"teenpatti-casino/internal/config"
)

var (
	writerMu sync.RWMutex
	writer   io.Writer = os.Stdout
)

// Init configures the global zerolog logger. When cfg.File is set, output
// goes to stdout and to a size-limited file.
func Init(cfg config.LogConfig) error {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var raw io.Writer = os.Stdout
	if path := strings.TrimSpace(cfg.File); path != "" {
		fw, err := newSizeLimitedWriter(path, cfg.MaxMB)
		if err != nil {
			return err
		}
		raw = io.MultiWriter(os.Stdout, fw)
	}
	setWriter(raw)

	output := raw
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: raw}
	}

	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(output).With().Timestamp().Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
	return nil
}

// Writer is the raw log sink, shared with the HTTP access logger.
func Writer() io.Writer {
	writerMu.RLock()
	defer writerMu.RUnlock()
	return writer
}

func setWriter(w io.Writer) {
	writerMu.Lock()
	defer writerMu.Unlock()
	writer = w
}
