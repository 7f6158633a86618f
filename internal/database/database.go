package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"facemark-go/config"
	"facemark-go/internal/core/models"

	"github.com/glebarez/sqlite" // Pure Go SQLite driver
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlog "gorm.io/gorm/logger"
)

// Init opens the SQLite database and runs migrations. The returned handle is
// injected into the repository; there is no package-level connection.
func Init(cfg config.DBConfig) (*gorm.DB, error) {
	// Ensure the directory for the database file exists
	if cfg.File != "" {
		dbDir := filepath.Dir(cfg.File)
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			log.Errorf("Failed to create database directory '%s': %v", dbDir, err)
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Route GORM logging through the configured logrus logger
	gormConfiguredLogger := gormlog.New(
		log.StandardLogger(),
		gormlog.Config{
			SlowThreshold:             time.Second * 2,
			LogLevel:                  gormlog.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	log.Infof("Connecting to database: %s", cfg.File)
	db, err := gorm.Open(sqlite.Open(cfg.File), &gorm.Config{
		Logger: gormConfiguredLogger,
		// Surface unique-index violations as gorm.ErrDuplicatedKey so the
		// ledger can map them to its duplicate-attendance outcome
		TranslateError: true,
	})
	if err != nil {
		log.Errorf("Failed to connect to database '%s': %v", cfg.File, err)
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("Database connection established.")

	log.Info("Running database migrations...")
	if err := db.AutoMigrate(
		&models.Person{},
		&models.Session{},
		&models.AttendanceRecord{},
	); err != nil {
		log.Errorf("Database migration failed: %v", err)
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	log.Info("Database migrations completed.")

	return db, nil
}
