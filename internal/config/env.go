package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Env is the process-level configuration read at startup. Tuning knobs
// for the arbitration pipeline itself live in Config; Env only covers
// where the process listens, where it stores state, and the seed.
type Env struct {
	DBPath    string `env:"BARKEEP_DB" envDefault:"data/barkeep.db"`
	Port      int    `env:"BARKEEP_PORT" envDefault:"8080"`
	Seed      int64  `env:"BARKEEP_SEED" envDefault:"42"`
	Frequency string `env:"BARKEEP_FREQUENCY" envDefault:"balanced"`
	AdminKey  string `env:"BARKEEP_ADMIN_KEY"`
	LogLevel  string `env:"BARKEEP_LOG_LEVEL" envDefault:"info"`
}

// LoadEnv reads a .env file if one exists, then parses the process
// environment over it.
func LoadEnv() (Env, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using system environment")
	}
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse environment: %w", err)
	}
	return e, nil
}
