//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	"gorm.io/gorm"

	"timeclock/internal/platform/database"
)

// MySQLContainer wraps a testcontainers MySQL instance with a gorm handle.
type MySQLContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *gorm.DB
}

// NewMySQLContainer starts a MySQL container and opens gorm against it.
func NewMySQLContainer(t *testing.T) *MySQLContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcmysql.Run(ctx, "mysql:8.0",
		tcmysql.WithDatabase("timeclock"),
		tcmysql.WithUsername("timeclock"),
		tcmysql.WithPassword("timeclock"),
	)
	if err != nil {
		t.Fatalf("failed to start mysql container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "charset=utf8mb4", "parseTime=True", "loc=UTC")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get mysql connection string: %v", err)
	}

	db, err := database.OpenMySQL(dsn, nil)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open mysql: %v", err)
	}

	return &MySQLContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}
}

// Truncate empties the given tables.
func (m *MySQLContainer) Truncate(tables ...string) error {
	for _, table := range tables {
		if err := m.DB.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}
	return nil
}
