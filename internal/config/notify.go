package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type NotifyConfig struct {
	Enabled        bool          `env:"NOTIFY_ENABLED" envDefault:"false"`
	TargetsJSON    string        `env:"NOTIFY_TARGETS_JSON"`
	TargetsPath    string        `env:"NOTIFY_TARGETS_PATH"`
	ConfigReload   time.Duration `env:"NOTIFY_CONFIG_RELOAD" envDefault:"1s"`
	Workers        int           `env:"NOTIFY_WORKERS" envDefault:"2"`
	RetryMax       int           `env:"NOTIFY_RETRY_MAX" envDefault:"3"`
	RetryBase      time.Duration `env:"NOTIFY_RETRY_BASE" envDefault:"500ms"`
	RequestTimeout time.Duration `env:"NOTIFY_REQUEST_TIMEOUT" envDefault:"5s"`
	// RatePerSecond caps deliveries per target; 0 disables the cap.
	RatePerSecond int `env:"NOTIFY_RATE_PER_SEC" envDefault:"5"`
}

func LoadNotify() (NotifyConfig, error) {
	var cfg NotifyConfig
	err := env.Parse(&cfg)
	return cfg, err
}
