package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

type ClientConfig struct {
	HostURL        string        `env:"HOST_URL" envDefault:"ws://localhost:8080/beacon"`
	SessionID      string        `env:"SESSION_ID"`
	LeaderID       string        `env:"LEADER_ID"`
	Members        []string      `env:"MEMBERS" envSeparator:","`
	Validation     string        `env:"VALIDATION" envDefault:""`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"10s"`
	CancelTimeout  time.Duration `env:"CANCEL_TIMEOUT" envDefault:"5s"`
}

// ParseClient reads the environment without validating, so command line
// flags can fill the gaps before Validate runs.
func ParseClient() (ClientConfig, error) {
	var cfg ClientConfig
	err := env.Parse(&cfg)
	return cfg, err
}

func LoadClient() (ClientConfig, error) {
	cfg, err := ParseClient()
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c ClientConfig) Validate() error {
	var errs []error
	if c.HostURL == "" {
		errs = append(errs, errors.New("host url is required"))
	}
	if c.SessionID == "" {
		errs = append(errs, errors.New("session id is required"))
	}
	if c.LeaderID == "" {
		errs = append(errs, errors.New("leader id is required"))
	}
	if c.ConnectTimeout <= 0 || c.CancelTimeout <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	return errors.Join(errs...)
}
