package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type GRPC struct {
	Addr string `yaml:"addr"` // пусто — gRPC не поднимается
}

type HTTP struct {
	Addr            string   `yaml:"addr"`
	CORSOrigins     []string `yaml:"corsOrigins"`
	ShutdownTimeout string   `yaml:"shutdownTimeout"` // 10s
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // qaroom
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	Level     string `yaml:"level"`     // debug|info|warn|error
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Store struct {
	Driver string `yaml:"driver"` // memory|sqlite|postgres
	Path   string `yaml:"path"`   // sqlite
	DSN    string `yaml:"dsn"`    // postgres
}

type Auth struct {
	HMACSecret     string `yaml:"hmacSecret"`
	PublicKeyPath  string `yaml:"publicKeyPath"`
	PrivateKeyPath string `yaml:"privateKeyPath"` // только для `qaroom token`
	Issuer         string `yaml:"issuer"`
	Audience       string `yaml:"audience"`
	ClockSkew      string `yaml:"clockSkew"` // 30s
	TokenTTL       string `yaml:"tokenTTL"`  // 24h
}

type WS struct {
	PingEvery    string `yaml:"pingEvery"`    // 30s
	WriteTimeout string `yaml:"writeTimeout"` // 10s
}

type Config struct {
	HTTP    HTTP    `yaml:"http"`
	GRPC    GRPC    `yaml:"grpc"`
	Logging Logging `yaml:"logging"`
	Store   Store   `yaml:"store"`
	Auth    Auth    `yaml:"auth"`
	WS      WS      `yaml:"ws"`
}

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// LoadConfig читает путь из CONFIG_PATH (по умолчанию ./config/config.yaml).
func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	return Load(path)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}

	// установка дефолтов, если значения не указаны
	if c.Store.Driver == "" {
		c.Store.Driver = DriverMemory
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Store.Path == "" {
			c.Store.Path = "qaroom.db"
		}
	case DriverPostgres:
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("store.driver: unknown %q", c.Store.Driver)
	}

	if c.Auth.HMACSecret != "" && c.Auth.PublicKeyPath != "" {
		return errors.New("auth: set either hmacSecret or publicKeyPath, not both")
	}

	if c.Logging.Service == "" {
		c.Logging.Service = "qaroom"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	switch c.Logging.Backend {
	case "std", "zap":
	default:
		return fmt.Errorf("logging.backend: unknown %q", c.Logging.Backend)
	}
	return nil
}

func (h HTTP) ShutdownTimeoutDuration() time.Duration {
	return parseDurationOr(10*time.Second, h.ShutdownTimeout)
}

func (a Auth) ClockSkewDuration() time.Duration {
	return parseDurationOr(30*time.Second, a.ClockSkew)
}

func (a Auth) TokenTTLDuration() time.Duration {
	return parseDurationOr(24*time.Hour, a.TokenTTL)
}

func (w WS) PingInterval() time.Duration {
	return parseDurationOr(30*time.Second, w.PingEvery)
}

func (w WS) WriteTimeoutDuration() time.Duration {
	return parseDurationOr(10*time.Second, w.WriteTimeout)
}

// helper для парсинга timeout-ов
func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}
