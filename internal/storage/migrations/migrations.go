// Package migrations brings the database schema up to date at startup.
package migrations

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/rberts/delibera/internal/domain/agenda"
	"github.com/rberts/delibera/internal/domain/assembly"
	"github.com/rberts/delibera/internal/domain/checkin"
	"github.com/rberts/delibera/internal/domain/credential"
	"github.com/rberts/delibera/internal/domain/voting"
	"github.com/rberts/delibera/internal/logger"
)

// Run migrates all tables in foreign key order
func Run(db *gorm.DB) error {
	log := logger.Migration()
	log.Info("Running database migrations")

	models := []interface{}{
		&assembly.Assembly{},
		&assembly.Unit{},
		&credential.Credential{},
		&checkin.Assignment{},
		&checkin.AssignedUnit{},
		&agenda.Agenda{},
		&agenda.Option{},
		&voting.Vote{},
	}

	for _, model := range models {
		if err := db.AutoMigrate(model); err != nil {
			log.Error("Migration failed", "model", fmt.Sprintf("%T", model), "error", err)
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	log.Info("Database migrations completed", "tables", len(models))
	return nil
}
