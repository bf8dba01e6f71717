package db

import (
	"fmt"

	"github.com/hotvault/hotvault-backend/internal/app/model"
	"github.com/hotvault/hotvault-backend/pkg/logger"
	"gorm.io/gorm"
)

// OpenCartIndex enforces at most one open cart per user.
const OpenCartIndex = "idx_carts_open_user"

// Migrate runs database migrations against the global connection.
func Migrate() error {
	logger.Info("Running database migrations...")

	if err := MigrateDB(DB); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models()),
	})
	return nil
}

// MigrateDB creates the schema on db, including the partial unique index
// scoped to open carts.
func MigrateDB(db *gorm.DB) error {
	if err := db.AutoMigrate(models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// Postgres and SQLite both accept partial indexes with this syntax.
	stmt := fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS %s ON carts (user_id) WHERE state = '%s'",
		OpenCartIndex, model.CartStateOpen,
	)
	if err := db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("create %s: %w", OpenCartIndex, err)
	}
	return nil
}

func models() []interface{} {
	return []interface{}{
		&model.Cart{},
		&model.Hotwheel{},
	}
}
