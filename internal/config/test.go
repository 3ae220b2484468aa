package config

import "github.com/caarlos0/env/v11"

// TestConfig points database tests at a disposable Postgres. Each test
// gets its own schema named SchemaPrefix plus a timestamp.
type TestConfig struct {
	TestPostgresDSN string `env:"TEST_POSTGRES_DSN,required,notEmpty"`
	SchemaPrefix    string `env:"TEST_SCHEMA_PREFIX" envDefault:"beacon_test"`
}

func LoadTest() (TestConfig, error) {
	var cfg TestConfig
	err := env.Parse(&cfg)
	return cfg, err
}
