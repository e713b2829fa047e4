// apps/go-server/internal/config/config.go
//
// Process configuration. A .env file in the working directory is loaded
// first (if present), then the environment is parsed into Config.

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR"             envDefault:":3000"`
	RelayHost       string        `env:"RELAY_HOST"`
	RelayBasePort   int           `env:"RELAY_BASE_PORT"       envDefault:"9000"`
	PendingTimeout  time.Duration `env:"RELAY_PENDING_TIMEOUT" envDefault:"60s"`
	SendBuffer      int           `env:"RELAY_SEND_BUFFER"     envDefault:"16"`
	ClientOrigin    string        `env:"CLIENT_ORIGIN"         envDefault:"http://localhost:5174"`
	DatabasePath    string        `env:"DATABASE_PATH"`
	JWTSecret       string        `env:"JWT_SECRET"`
	LogLevel        string        `env:"LOG_LEVEL"             envDefault:"info"`
	LogPretty       bool          `env:"LOG_PRETTY"            envDefault:"false"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"      envDefault:"5s"`
}

// Load reads .env files then the environment. Missing .env files are ignored.
func Load(files ...string) (Config, error) {
	_ = godotenv.Load(files...)
	return Parse()
}

// Parse reads Config from the environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.RelayBasePort <= 0 || c.RelayBasePort > 65535 {
		return fmt.Errorf("RELAY_BASE_PORT out of range: %d", c.RelayBasePort)
	}
	if c.PendingTimeout < 0 {
		return errors.New("RELAY_PENDING_TIMEOUT must not be negative")
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("RELAY_SEND_BUFFER must be positive: %d", c.SendBuffer)
	}
	return nil
}

// Level is the parsed LOG_LEVEL, info when unparseable.
func (c Config) Level() zerolog.Level {
	if lvl, err := zerolog.ParseLevel(c.LogLevel); err == nil {
		return lvl
	}
	return zerolog.InfoLevel
}
