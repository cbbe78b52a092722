// Package testhelpers provides shared fixtures for integration tests.
package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/sellercentry/account-health/migrations"
	"github.com/sellercentry/account-health/pkg/database"
)

// PostgresImage is the image used for directory integration tests.
const PostgresImage = "postgres:16-alpine"

// DirectoryDB holds a migrated tenant directory database.
type DirectoryDB struct {
	Container testcontainers.Container
	DB        *database.DB
	ConnStr   string
}

var (
	sharedDirectoryDB     *DirectoryDB
	sharedDirectoryDBOnce sync.Once
	sharedDirectoryDBErr  error
)

// GetDirectoryDB returns a shared PostgreSQL container with the directory
// schema applied. The container is created once and reused across the run.
func GetDirectoryDB(t *testing.T) *DirectoryDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedDirectoryDBOnce.Do(func() {
		sharedDirectoryDB, sharedDirectoryDBErr = setupDirectoryDB()
	})

	if sharedDirectoryDBErr != nil {
		t.Fatalf("Failed to setup directory database: %v", sharedDirectoryDBErr)
	}

	return sharedDirectoryDB
}

// Reset empties every directory table.
func (d *DirectoryDB) Reset(t *testing.T) {
	t.Helper()
	_, err := d.DB.Exec(context.Background(),
		"TRUNCATE team_members, tenant_accounts, tenants CASCADE")
	if err != nil {
		t.Fatalf("Failed to reset directory tables: %v", err)
	}
}

func setupDirectoryDB() (*DirectoryDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "account_health_test",
			"POSTGRES_USER":     "health",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://health:test_password@%s:%s/account_health_test?sslmode=disable",
		host, port.Port())

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            connStr,
		MaxConnections: 5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to directory database: %w", err)
	}

	sqlDB := db.SQL()
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, migrations.FS, zap.NewNop()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DirectoryDB{
		Container: container,
		DB:        db,
		ConnStr:   connStr,
	}, nil
}
