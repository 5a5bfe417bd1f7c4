package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"

	"usd/internal/announcer"
	"usd/internal/catalog"
)

type Config struct {
	Env       string           `yaml:"env" env-default:"local" env:"ENV"`
	Announcer announcer.Config `yaml:"announcer"`
	Catalog   catalog.Config   `yaml:"catalog"`
	Metrics   Metrics          `yaml:"metrics"`
}

type Metrics struct {
	// Address of the /metrics endpoint, empty disables it
	Address string `yaml:"address" env:"USD_METRICS_ADDRESS"`
	Path    string `yaml:"path" env:"USD_METRICS_PATH" env-default:"/metrics"`
}

// Load reads the config file at path, then the environment. Without a path only
// the environment and defaults are used.
func Load(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("cannot read env: %w", err)
		}
		return &cfg, nil
	}

	// check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}

	return &cfg, nil
}

func MustLoad(path string) *Config {
	cfg, err := Load(FetchConfigPath(path))
	if err != nil {
		panic(err)
	}
	return cfg
}

// FetchConfigPath resolves the config path.
// Priority: flag > env > default.
// default value is empty string.
func FetchConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("CONFIG_PATH")
}
