// Package dbtest opens a disposable Postgres pool for repository tests.
// Tests using it are skipped unless TEST_DATABASE_URL is set.
package dbtest

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// EnvURL names the variable holding the test database URL.
const EnvURL = "TEST_DATABASE_URL"

const schemaLockKey = 7_310_001

// Open connects to TEST_DATABASE_URL and applies the schema. Tables are not
// emptied; every fixture uses fresh ids. The pool is closed when the test ends.
func Open(t testing.TB) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv(EnvURL)
	if url == "" {
		t.Skipf("%s not set, skipping postgres test", EnvURL)
	}

	cfg, err := pgxpool.ParseConfig(url)
	require.NoError(t, err, "invalid %s", EnvURL)
	cfg.MaxConns = 16
	cfg.MinConns = 0
	cfg.ConnConfig.ConnectTimeout = 5 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err, "error connecting to DB pool in test setup")
	t.Cleanup(pool.Close)

	applySchema(t, ctx, pool)

	return pool
}

// applySchema runs the migration under an advisory lock: test packages run in
// parallel against the same database.
func applySchema(t testing.TB, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()

	schema, err := os.ReadFile(schemaPath())
	require.NoError(t, err, "error reading schema")

	tx, err := pool.Begin(ctx)
	require.NoError(t, err, "error starting schema transaction")
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", schemaLockKey)
	require.NoError(t, err, "error taking schema lock")
	_, err = tx.Exec(ctx, string(schema))
	require.NoError(t, err, "error applying schema")
	require.NoError(t, tx.Commit(ctx), "error committing schema")
}

// GivenTitle inserts a title with the given stock and returns its id.
func GivenTitle(t testing.TB, pool *pgxpool.Pool, stock int) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO titles (id, isbn, title, stock) VALUES ($1, $2, $3, $4)`,
		id, id.String()[:13], "The Go Programming Language", stock,
	)
	require.NoError(t, err, "error inserting title")
	return id
}

// GivenMember inserts an active member and returns its id.
func GivenMember(t testing.TB, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO members (id, name, email) VALUES ($1, $2, $3)`,
		id, "Ada Lovelace", id.String()+"@example.org",
	)
	require.NoError(t, err, "error inserting member")
	return id
}

// Stock reads the current counter of a title.
func Stock(t testing.TB, pool *pgxpool.Pool, titleID uuid.UUID) int {
	t.Helper()

	var stock int
	err := pool.QueryRow(context.Background(), `SELECT stock FROM titles WHERE id = $1`, titleID).Scan(&stock)
	require.NoError(t, err, "error reading stock")
	return stock
}

func schemaPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations", "001_init.sql")
}
