// Package logger configures the process-wide slog logger. Components log
// through slog directly and tag records with a "module" attribute.
package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

type Backend string

const (
	BackendStd Backend = "std" // text in dev, JSON in stage/prod
	BackendZap Backend = "zap"
)

type Config struct {
	Service    string
	Version    string
	InstanceID string

	Env     Env
	Backend Backend // default: std in dev, zap elsewhere
	Level   slog.Level
	Debug   bool

	// zap sampling per second: first SampleInitial records, then every SampleThereafter-th
	SampleInitial    int
	SampleThereafter int

	AddSource bool

	// Output defaults to os.Stdout.
	Output io.Writer
}

var (
	mu  sync.Mutex
	def *slog.Logger
)

// Init builds the logger described by cfg and installs it as slog's default.
func Init(cfg Config) *slog.Logger {
	cfg = withDefaults(cfg)

	var h slog.Handler
	switch cfg.Backend {
	case BackendZap:
		h = newZapHandler(cfg)
	default:
		h = newStdHandler(cfg)
	}
	h = traceHandler{Handler: h.WithAttrs(commonAttrs(cfg))}

	l := slog.New(h)
	mu.Lock()
	def = l
	mu.Unlock()
	slog.SetDefault(l)
	return l
}

// L returns the installed logger, initialising a default one on first use.
func L() *slog.Logger {
	mu.Lock()
	l := def
	mu.Unlock()
	if l != nil {
		return l
	}
	return Init(Config{})
}

// For returns a logger tagged with the component name.
func For(module string) *slog.Logger {
	return L().With(slog.String("module", module))
}

func withDefaults(cfg Config) Config {
	if cfg.Env == "" {
		cfg.Env = DetectEnv()
	}
	if cfg.Service == "" {
		cfg.Service = "qaroom"
	}
	if cfg.Backend == "" {
		if cfg.Env == EnvDev {
			cfg.Backend = BackendStd
		} else {
			cfg.Backend = BackendZap
		}
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	cfg.InstanceID = ensureInstanceID(cfg.InstanceID)
	return cfg
}

func level(cfg Config) slog.Level {
	if cfg.Debug && cfg.Level == 0 {
		return slog.LevelDebug
	}
	return cfg.Level
}
