// Package config loads server configuration from the environment and
// command-line flags. Environment variables provide defaults; flags win.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/warp/point-engine/point"
)

const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Config is the full server configuration.
type Config struct {
	Port    int    `env:"POINT_PORT"    envDefault:"8080"`
	Storage string `env:"POINT_STORAGE" envDefault:"memory"`
	DBPath  string `env:"POINT_DB_PATH" envDefault:"points.db"`

	LockPolicy      string `env:"POINT_LOCK_POLICY"      envDefault:"blocking"`
	MaxBalance      int64  `env:"POINT_MAX_BALANCE"      envDefault:"1000000"`
	ConsistentReads bool   `env:"POINT_CONSISTENT_READS" envDefault:"false"`

	// StoreLatency slows every memory-store call down; demo/testing only.
	StoreLatency time.Duration `env:"POINT_STORE_LATENCY" envDefault:"0s"`

	// LockSweepInterval is how often idle per-user locks are pruned; <= 0 disables.
	LockSweepInterval time.Duration `env:"POINT_LOCK_SWEEP_INTERVAL" envDefault:"10m"`

	AllowedOrigins  []string      `env:"POINT_CORS_ORIGINS"     envSeparator:"," envDefault:"http://localhost:5173,http://localhost:8080"`
	ShutdownTimeout time.Duration `env:"POINT_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// OTelEndpoint enables OTLP/HTTP trace export when set.
	OTelEndpoint string `env:"POINT_OTEL_ENDPOINT"`
}

// Load parses the environment, then args (without the program name).
func Load(args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path (\":memory:\" for in-memory)")
	fs.StringVar(&cfg.Storage, "storage", cfg.Storage, "storage backend: memory or sqlite")
	fs.StringVar(&cfg.LockPolicy, "lock-policy", cfg.LockPolicy, "per-user lock policy: blocking or try")
	fs.Int64Var(&cfg.MaxBalance, "max-balance", cfg.MaxBalance, "balance ceiling (<= 0 disables)")
	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch c.Storage {
	case StorageMemory:
	case StorageSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("sqlite storage requires a db path"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage %q (want memory or sqlite)", c.Storage))
	}
	if _, err := point.ParseLockPolicy(c.LockPolicy); err != nil {
		errs = append(errs, err)
	}
	if c.StoreLatency < 0 {
		errs = append(errs, errors.New("store latency must not be negative"))
	}
	return errors.Join(errs...)
}

// Policy converts the configuration into the engine's policy.
func (c Config) Policy() (point.Policy, error) {
	lp, err := point.ParseLockPolicy(c.LockPolicy)
	if err != nil {
		return point.Policy{}, err
	}
	return point.Policy{
		MaxBalance:      c.MaxBalance,
		LockPolicy:      lp,
		ConsistentReads: c.ConsistentReads,
	}, nil
}
