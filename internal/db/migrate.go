package db

import (
	"fmt"

	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the GORM models that make up the schema.
func AllModels() []interface{} {
	return []interface{}{
		&models.Agent{},
		&models.Message{},
		&models.Counter{},
	}
}

// AutoMigrate creates or updates all tables and seeds the message counter.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	if err := SeedCounters(db); err != nil {
		return err
	}
	return nil
}

// SeedCounters creates the message counter row if it is missing. An
// existing counter is never reset.
func SeedCounters(db *gorm.DB) error {
	err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Counter{Name: models.MessageCounter, Value: 0}).Error
	if err != nil {
		return fmt.Errorf("db: seed counter %q: %w", models.MessageCounter, err)
	}
	return nil
}

// Open connects and migrates in one step.
func Open(cfg config.StorageConfig) (*gorm.DB, error) {
	gdb, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(gdb); err != nil {
		_ = Close(gdb)
		return nil, err
	}
	return gdb, nil
}
