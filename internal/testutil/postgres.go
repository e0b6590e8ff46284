// Package testutil starts throwaway PostgreSQL containers for package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"discount-rules/internal/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB starts a PostgreSQL container with the service schema applied.
// It is skipped under -short. The container is terminated when the test ends.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	pc := database.DefaultPoolConfig()
	pc.MinConns = 1
	pool, err := database.Open(ctx, connStr, pc)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	if err := database.EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: container,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// InsertRule stores a minimal active rule so usage rows can reference it.
func InsertRule(t *testing.T, pool *pgxpool.Pool, code string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO discount_rules (id, code, name, emc_code, discount_rule_type, amount)
		VALUES ($1, $2, $2, 'EMC', 'CUSTOMER', 10)
	`, id, code)
	if err != nil {
		t.Fatalf("failed to insert rule %s: %v", code, err)
	}
	return id
}

// Cleanup removes all rows from the service tables.
func Cleanup(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	for _, table := range []string{"customer_rule_usage", "discount_rules"} {
		if _, err := pool.Exec(context.Background(), "DELETE FROM "+table); err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}
