package db

import (
	"fmt"

	"github.com/hotvault/hotvault-backend/pkg/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupTestDB returns a migrated in-memory SQLite database. The pool is
// pinned to one connection because every ":memory:" connection is its own
// database.
func SetupTestDB() (*gorm.DB, error) {
	conn, err := Open(sqlite.Open(":memory:"))
	if err != nil {
		return nil, fmt.Errorf("failed to open test database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get test database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := MigrateDB(conn); err != nil {
		CleanupTestDB(conn)
		return nil, fmt.Errorf("failed to migrate test database: %w", err)
	}
	return conn, nil
}

func CleanupTestDB(conn *gorm.DB) {
	sqlDB, err := conn.DB()
	if err != nil {
		logger.Warn("Failed to get test database instance", logger.Fields{"error": err.Error()})
		return
	}
	sqlDB.Close()
}

// TruncateAllTables empties every table MigrateDB creates.
func TruncateAllTables(conn *gorm.DB) error {
	for _, table := range []string{"carts", "hotwheels"} {
		if err := conn.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}
	return nil
}
