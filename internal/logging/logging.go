package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"party-beacon/internal/config"
)

var (
	mu     sync.Mutex
	writer io.Writer = os.Stdout
	file   *rotatingWriter
)

// Init configures the global zerolog logger. When a log file is configured
// output goes to stdout and the file, rotated at LOG_MAX_MB.
func Init(cfg config.LogConfig) error {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var out io.Writer = os.Stdout
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		_ = file.Close()
		file = nil
	}
	if cfg.File != "" {
		w, err := newRotatingWriter(cfg.File, cfg.MaxMB, cfg.Backups)
		if err != nil {
			return err
		}
		file = w
		out = zerolog.MultiLevelWriter(out, w)
	}
	writer = out

	zerolog.SetGlobalLevel(level)
	ctx := zerolog.New(out).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
	return nil
}

// Writer is the sink chosen by Init, shared with the HTTP access log.
func Writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return writer
}

func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}
