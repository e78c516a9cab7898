package services

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/rberts/delibera/internal/domain/agenda"
	"github.com/rberts/delibera/internal/domain/assembly"
	"github.com/rberts/delibera/internal/domain/credential"
	"github.com/rberts/delibera/internal/storage/migrations"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// A single connection keeps every query on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, migrations.Run(db))
	return db
}

func seedAssembly(t *testing.T, db *gorm.DB, tenantID uint, status assembly.Status) *assembly.Assembly {
	t.Helper()

	a := assembly.New(tenantID, "Annual General Assembly", "Main Hall", time.Now().Add(24*time.Hour), assembly.TypeOrdinary)
	a.Status = status
	require.NoError(t, db.Create(a).Error)
	return a
}

func seedUnit(t *testing.T, db *gorm.DB, assemblyID uint, unitNumber, ownerName string, fraction float64) *assembly.Unit {
	t.Helper()

	unit := &assembly.Unit{
		AssemblyID:    assemblyID,
		UnitNumber:    unitNumber,
		OwnerName:     ownerName,
		IdealFraction: fraction,
		TaxID:         "52998224725",
	}
	require.NoError(t, db.Create(unit).Error)
	return unit
}

func seedCredential(t *testing.T, db *gorm.DB, tenantID uint, visualNumber string) *credential.Credential {
	t.Helper()

	c := credential.New(tenantID, visualNumber)
	require.NoError(t, db.Create(c).Error)
	return c
}

func seedAgenda(t *testing.T, db *gorm.DB, assemblyID uint, status agenda.Status, options ...string) *agenda.Agenda {
	t.Helper()

	if len(options) == 0 {
		options = []string{"Approve", "Reject"}
	}
	item := agenda.New(assemblyID, "Budget approval", "", 0, options)
	item.Status = status
	if status == agenda.StatusOpen || status == agenda.StatusClosed {
		now := time.Now().UTC()
		item.OpenedAt = &now
		if status == agenda.StatusClosed {
			item.ClosedAt = &now
		}
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

func ctx() context.Context {
	return context.Background()
}
