// Package pgtest runs repository tests against a real PostgreSQL database.
//
// Tests call Open, which skips unless CONSIGNA_TEST_DSN (or PG_DSN) points at a database the
// test may create schemas in. Every call gets a fresh schema with the migrations applied; the schema
// is dropped when the test ends.
package pgtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// EnvDSN names the variable holding the test database DSN. EnvDSNFallback is read when it is unset.
const (
	EnvDSN         = "CONSIGNA_TEST_DSN"
	EnvDSNFallback = "PG_DSN"
)

// Open returns a pool whose search_path is a freshly migrated schema.
func Open(t testing.TB) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(EnvDSN)
	if dsn == "" {
		dsn = os.Getenv(EnvDSNFallback)
	}
	if dsn == "" {
		t.Skipf("%s and %s not set; skipping PostgreSQL test", EnvDSN, EnvDSNFallback)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	admin, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgtest: connect: %v", err)
	}
	schema := "consigna_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if _, err := admin.Exec(ctx, "CREATE SCHEMA "+schema); err != nil {
		admin.Close()
		t.Fatalf("pgtest: create schema: %v", err)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		admin.Close()
		t.Fatalf("pgtest: parse dsn: %v", err)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		admin.Close()
		t.Fatalf("pgtest: connect schema: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer dropCancel()
		if _, err := admin.Exec(dropCtx, "DROP SCHEMA "+schema+" CASCADE"); err != nil {
			t.Logf("pgtest: drop schema %s: %v", schema, err)
		}
		admin.Close()
	})

	for _, file := range migrationFiles(t) {
		body, err := os.ReadFile(file)
		if err != nil {
			t.Fatalf("pgtest: read %s: %v", file, err)
		}
		// No arguments, so pgx sends the file over the simple protocol as one batch.
		if _, err := pool.Exec(ctx, string(body)); err != nil {
			t.Fatalf("pgtest: apply %s: %v", filepath.Base(file), err)
		}
	}
	return pool
}

func migrationFiles(t testing.TB) []string {
	t.Helper()
	_, self, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("pgtest: locate migrations")
	}
	dir := filepath.Join(filepath.Dir(self), "..", "..", "..", "migrations")
	files, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil || len(files) == 0 {
		t.Fatalf("pgtest: no migrations in %s: %v", dir, err)
	}
	sort.Strings(files)
	return files
}

// Store describes a stores row to insert.
type Store struct {
	OwnerID     int64
	Name        string
	CutoffTime  string
	GraceMins   int
	AutoCancel  bool
	Timezone    string
	Unavailable bool
}

// CreateStore inserts a store and returns its id.
func CreateStore(t testing.TB, pool *pgxpool.Pool, s Store) int64 {
	t.Helper()
	var cutoff, tz *string
	if s.CutoffTime != "" {
		cutoff = &s.CutoffTime
	}
	if s.Timezone != "" {
		tz = &s.Timezone
	}
	name := s.Name
	if name == "" {
		name = fmt.Sprintf("store of %d", s.OwnerID)
	}
	var id int64
	err := pool.QueryRow(context.Background(), `INSERT INTO stores (owner_id, name, cutoff_time, grace_period_minutes,
auto_cancel_enabled, is_open, timezone) VALUES ($1, $2, $3::time, $4, $5, $6, $7) RETURNING id`,
		s.OwnerID, name, cutoff, s.GraceMins, s.AutoCancel, !s.Unavailable, tz).Scan(&id)
	if err != nil {
		t.Fatalf("pgtest: insert store: %v", err)
	}
	return id
}

// CreateProduct inserts an approved product and returns its id.
func CreateProduct(t testing.TB, pool *pgxpool.Pool, supplierID int64, priceBuy decimal.Decimal) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(), `INSERT INTO products (supplier_id, name, price_buy, price_sell, status)
VALUES ($1, $2, $3, $4, 'approved') RETURNING id`,
		supplierID, fmt.Sprintf("product of %d", supplierID), priceBuy, priceBuy.Mul(decimal.NewFromInt(2))).Scan(&id)
	if err != nil {
		t.Fatalf("pgtest: insert product: %v", err)
	}
	return id
}
