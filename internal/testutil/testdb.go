package testutil

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"
	"time"

	"party-beacon/internal/beacon"
	"party-beacon/internal/config"
	"party-beacon/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var testSchemaNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// OpenTestStore returns a store bound to a fresh schema with every up
// migration applied. Tests are skipped when TEST_POSTGRES_DSN is unset.
func OpenTestStore(t *testing.T) (*store.Store, func()) {
	t.Helper()
	cfg, err := config.LoadTest()
	if err != nil {
		t.Skipf("skip test db: %v", err)
	}
	ctx := context.Background()
	dsn := cfg.TestPostgresDSN
	schema := fmt.Sprintf("%s_%d", cfg.SchemaPrefix, time.Now().UnixNano())
	if err := execSchemaDDL(ctx, dsn, "CREATE SCHEMA %s", schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	st, err := store.New(ctx, withSearchPath(dsn, schema), store.WithMaxConns(2))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := applyMigrations(ctx, st); err != nil {
		st.Close()
		t.Fatalf("apply migrations: %v", err)
	}

	cleanup := func() {
		st.Close()
		_ = execSchemaDDL(context.Background(), dsn, "DROP SCHEMA %s CASCADE", schema)
	}
	return st, cleanup
}

// MustCreateSession seeds a hosted session and joins the extra players.
func MustCreateSession(t *testing.T, st *store.Store, sessionID string, owner beacon.PlayerID, players ...beacon.PlayerID) {
	t.Helper()
	ctx := context.Background()
	if err := st.CreateSession(ctx, sessionID, owner); err != nil {
		t.Fatalf("create session %s: %v", sessionID, err)
	}
	for _, p := range players {
		if err := st.JoinSession(ctx, sessionID, p); err != nil {
			t.Fatalf("join %s: %v", p, err)
		}
	}
}

func applyMigrations(ctx context.Context, st *store.Store) error {
	dir, err := findMigrationsDir()
	if err != nil {
		return err
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, path := range files {
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := st.Pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

func findMigrationsDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		p := filepath.Join(dir, "migrations")
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			return p, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("migrations directory not found from %s", dir)
}

func execSchemaDDL(ctx context.Context, dsn, format, schema string) error {
	if !testSchemaNamePattern.MatchString(schema) {
		return fmt.Errorf("schema %q does not match required pattern", schema)
	}
	base, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return err
	}
	defer base.Close()
	_, err = base.Exec(ctx, fmt.Sprintf(format, pgx.Identifier{schema}.Sanitize()))
	return err
}

func withSearchPath(dsn, schema string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "search_path=" + url.QueryEscape(schema)
}
