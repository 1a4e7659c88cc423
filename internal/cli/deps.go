package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cwrk-planet/qaroom/config"
	"github.com/cwrk-planet/qaroom/internal/domain"
	"github.com/cwrk-planet/qaroom/internal/identity"
	"github.com/cwrk-planet/qaroom/internal/logger"
	"github.com/cwrk-planet/qaroom/internal/store"
	"github.com/cwrk-planet/qaroom/internal/store/memory"
	"github.com/cwrk-planet/qaroom/internal/store/postgres"
	"github.com/cwrk-planet/qaroom/internal/store/sqlite"
)

func loadConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}
	return config.LoadConfig()
}

func initLogger(cfg *config.Config, verbose bool) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(cfg.Logging.Level))); err != nil {
		lvl = slog.LevelInfo
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		Level:     lvl,
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug || verbose,
	})
}

// openedStore — стор плюс проверка живости для /healthz.
type openedStore struct {
	store.RemoteStore
	ping func(ctx context.Context) error
}

func openStore(ctx context.Context, cfg config.Store) (*openedStore, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		return &openedStore{
			RemoteStore: memory.New(),
			ping:        func(context.Context) error { return nil },
		}, nil
	case config.DriverSQLite:
		st, err := sqlite.Open(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return &openedStore{RemoteStore: st, ping: st.DB().PingContext}, nil
	case config.DriverPostgres:
		st, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return &openedStore{RemoteStore: st, ping: st.Ping}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

type tokenVerifier interface {
	Verify(token string, now time.Time) (*domain.Viewer, error)
}

// newVerifier возвращает nil, если токены не настроены: тогда все зрители анонимны.
func newVerifier(cfg config.Auth) (tokenVerifier, error) {
	switch {
	case cfg.HMACSecret != "":
		return identity.NewHMACVerifier([]byte(cfg.HMACSecret), cfg.Issuer, cfg.Audience, cfg.ClockSkewDuration()), nil
	case cfg.PublicKeyPath != "":
		pub, err := identity.LoadRSAPublicKeyFromPEM(cfg.PublicKeyPath)
		if err != nil {
			return nil, err
		}
		return identity.NewRSAVerifier(pub, cfg.Issuer, cfg.Audience, cfg.ClockSkewDuration()), nil
	default:
		return nil, nil
	}
}

func newSigner(cfg config.Auth) (*identity.Signer, error) {
	switch {
	case cfg.HMACSecret != "":
		return identity.NewHMACSigner([]byte(cfg.HMACSecret), cfg.Issuer, cfg.Audience, cfg.TokenTTLDuration()), nil
	case cfg.PrivateKeyPath != "":
		priv, err := identity.LoadRSAPrivateKeyFromPEM(cfg.PrivateKeyPath)
		if err != nil {
			return nil, err
		}
		return identity.NewRSASigner(priv, cfg.Issuer, cfg.Audience, cfg.TokenTTLDuration()), nil
	default:
		return nil, fmt.Errorf("auth: neither hmacSecret nor privateKeyPath is configured")
	}
}
