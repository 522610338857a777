package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/argus-sec/argus/internal/models"
)

// Open bootstraps a SQLite database using the provided filesystem path.
func Open(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	return db, nil
}

// Migrate applies the archive schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.ThreatRecord{},
		&models.WorkflowRecord{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	return nil
}
