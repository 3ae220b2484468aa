package config

import "github.com/caarlos0/env/v11"

type LogConfig struct {
	Level       string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty      bool   `env:"LOG_PRETTY" envDefault:"false"`
	SampleEvery int    `env:"LOG_SAMPLE_EVERY" envDefault:"0"`
	File        string `env:"LOG_FILE"`
	MaxMB       int    `env:"LOG_MAX_MB" envDefault:"10"`
	Backups     int    `env:"LOG_BACKUPS" envDefault:"1"`
	// Service tags every line; binaries fill it in when unset.
	Service string `env:"LOG_SERVICE"`
}

func LoadLog() (LogConfig, error) {
	var cfg LogConfig
	err := env.Parse(&cfg)
	return cfg, err
}

// LoadLogFor is LoadLog with a default service name.
func LoadLogFor(service string) (LogConfig, error) {
	cfg, err := LoadLog()
	if err == nil && cfg.Service == "" {
		cfg.Service = service
	}
	return cfg, err
}
