package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

type HostConfig struct {
	HTTPAddr  string `env:"HTTP_ADDR" envDefault:":8080"`
	SessionID string `env:"SESSION_ID"`
	OwnerID   string `env:"OWNER_ID,required,notEmpty"`

	TeamCount       int    `env:"TEAM_COUNT" envDefault:"2"`
	TeamSize        int    `env:"TEAM_SIZE" envDefault:"4"`
	MaxReservations int    `env:"MAX_RESERVATIONS" envDefault:"0"`
	TeamAssignment  string `env:"TEAM_ASSIGNMENT" envDefault:"smallest"`
	ForceTeam       int    `env:"FORCE_TEAM" envDefault:"0"`

	ReservationPolicy string   `env:"RESERVATION_POLICY" envDefault:"open"`
	BannedPlayers     []string `env:"BANNED_PLAYERS" envSeparator:","`
	MaxPartySize      int      `env:"MAX_PARTY_SIZE" envDefault:"0"`

	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"1s"`
	TravelTimeout  time.Duration `env:"TRAVEL_TIMEOUT" envDefault:"10s"`
	SessionTimeout time.Duration `env:"SESSION_TIMEOUT" envDefault:"45s"`

	PostgresDSN      string `env:"POSTGRES_DSN"`
	PostgresMaxConns int32  `env:"POSTGRES_MAX_CONNS" envDefault:"4"`
	AdminAPIKey      string `env:"ADMIN_API_KEY"`
	StrictInvariants bool   `env:"STRICT_INVARIANTS" envDefault:"false"`
}

func LoadHost() (HostConfig, error) {
	var cfg HostConfig
	err := env.Parse(&cfg)
	return cfg, err
}

// Validate catches values the ledger cannot start with. Team layout is
// checked again by ledger.New.
func (c HostConfig) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR is empty"))
	}
	if c.TeamCount < 1 || c.TeamSize < 1 {
		errs = append(errs, errors.New("TEAM_COUNT and TEAM_SIZE must be positive"))
	}
	if c.MaxReservations < 0 {
		errs = append(errs, errors.New("MAX_RESERVATIONS must not be negative"))
	}
	if c.SweepInterval < 0 || c.TravelTimeout <= 0 || c.SessionTimeout <= 0 {
		errs = append(errs, errors.New("sweep and timeout durations must be positive"))
	}
	// Players never seen in the session get the shorter grace period.
	if c.TravelTimeout >= c.SessionTimeout {
		errs = append(errs, errors.New("TRAVEL_TIMEOUT must be shorter than SESSION_TIMEOUT"))
	}
	return errors.Join(errs...)
}
