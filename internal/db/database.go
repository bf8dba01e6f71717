package db

import (
	"fmt"
	"time"

	"github.com/hotvault/hotvault-backend/config"
	appLogger "github.com/hotvault/hotvault-backend/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	maxIdleConns    = 10
	maxOpenConns    = 100
	connMaxLifetime = 30 * time.Minute
)

var DB *gorm.DB

// Initialize connects to Postgres, retrying while the server comes up, and
// stores the handle for GetDB.
func Initialize(cfg *config.DatabaseConfig) error {
	attempts := cfg.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		appLogger.Info("Connecting to database", map[string]interface{}{
			"host":     cfg.Host,
			"port":     cfg.Port,
			"database": cfg.DBName,
			"from_url": cfg.URL != "",
			"attempt":  attempt,
		})

		conn, err := Open(postgres.Open(cfg.DSN()))
		if err == nil {
			DB = conn
			appLogger.Info("Database connection established successfully", map[string]interface{}{
				"max_idle_conns": maxIdleConns,
				"max_open_conns": maxOpenConns,
			})
			return nil
		}

		lastErr = err
		if attempt < attempts {
			appLogger.Warn("Database not ready, retrying", map[string]interface{}{
				"error":   err.Error(),
				"backoff": cfg.ConnectBackoff.String(),
			})
			time.Sleep(cfg.ConnectBackoff)
		}
	}
	return fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, lastErr)
}

// Open configures the pool on a dialector and pings it.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func GetDB() *gorm.DB {
	return DB
}
