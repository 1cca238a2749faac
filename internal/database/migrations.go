package database

import (
	"gorm.io/gorm"

	"github.com/asinehq/asine-console/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Profile{},
		&models.Subscription{},
	)
}
