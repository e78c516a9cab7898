package services

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/rberts/delibera/internal/domain/assembly"
	"github.com/rberts/delibera/internal/domain/common"
	"github.com/rberts/delibera/internal/logger"
	"github.com/rberts/delibera/internal/validation"
)

// RosterArchiver stores an immutable copy of an imported roster in object
// storage. Implementations must be safe for concurrent use.
type RosterArchiver interface {
	ArchiveRoster(ctx context.Context, tenantID, assemblyID uint, payload []byte) error
}

// UnitImport is one roster row as submitted by the manager
type UnitImport struct {
	UnitNumber    string  `json:"unit_number" binding:"required"`
	OwnerName     string  `json:"owner_name" binding:"required"`
	IdealFraction float64 `json:"ideal_fraction" binding:"required"`
	TaxID         string  `json:"tax_id" binding:"required"`
}

// RosterService imports and serves assembly ownership rosters
type RosterService struct {
	db       *gorm.DB
	archiver RosterArchiver
}

// NewRosterService creates a new roster service. archiver may be nil when
// archiving is disabled.
func NewRosterService(db *gorm.DB, archiver RosterArchiver) *RosterService {
	return &RosterService{db: db, archiver: archiver}
}

// Import loads the full roster for an assembly in one shot. A roster can
// be imported exactly once; re-imports are rejected so the denominator of
// every quorum and result computation stays stable.
func (s *RosterService) Import(ctx context.Context, tenantID, assemblyID uint, rows []UnitImport) ([]assembly.Unit, error) {
	log := logger.Service("roster")
	log.Info("Importing roster", "assembly_id", assemblyID, "rows", len(rows))

	if len(rows) == 0 {
		return nil, common.InvalidRequest("roster must contain at least one unit")
	}

	units := make([]assembly.Unit, 0, len(rows))
	for _, row := range rows {
		unit := assembly.Unit{
			AssemblyID:    assemblyID,
			UnitNumber:    validation.NormalizeUnitNumber(row.UnitNumber),
			OwnerName:     validation.NormalizeOwnerName(row.OwnerName),
			IdealFraction: row.IdealFraction,
			TaxID:         validation.NormalizeTaxID(row.TaxID),
		}
		if err := unit.Validate(); err != nil {
			return nil, common.InvalidRequest(fmt.Sprintf("unit %s: %s", row.UnitNumber, err.Error()))
		}
		if err := validation.ValidateTaxID(unit.TaxID); err != nil {
			return nil, common.InvalidRequest(fmt.Sprintf("unit %s: %s", row.UnitNumber, err.Error()))
		}
		units = append(units, unit)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getAssembly(tx, tenantID, assemblyID); err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&assembly.Unit{}).Where("assembly_id = ?", assemblyID).Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check existing roster: %w", err)
		}
		if existing > 0 {
			return common.Conflict("roster has already been imported for this assembly")
		}

		if err := tx.Create(&units).Error; err != nil {
			if isDuplicateKey(err) {
				return common.InvalidRequest("duplicate unit_number in roster")
			}
			return fmt.Errorf("failed to import roster: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Warn("Roster import rejected", "assembly_id", assemblyID, "error", err)
		return nil, err
	}

	log.Info("Roster imported", "assembly_id", assemblyID, "units", len(units))
	s.archive(tenantID, assemblyID, units)
	return units, nil
}

// ListUnits returns the full roster of an assembly ordered by unit number
func (s *RosterService) ListUnits(ctx context.Context, tenantID, assemblyID uint) ([]assembly.Unit, error) {
	if _, err := getAssembly(s.db.WithContext(ctx), tenantID, assemblyID); err != nil {
		return nil, err
	}

	var units []assembly.Unit
	err := s.db.WithContext(ctx).
		Where("assembly_id = ?", assemblyID).
		Order("unit_number ASC").
		Find(&units).Error
	if err != nil {
		logger.Service("roster").Error("Failed to list units", "assembly_id", assemblyID, "error", err)
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	return units, nil
}

// archive ships the imported roster to object storage without blocking the
// import response. A failed archive only logs; the roster in the database
// is the source of truth.
func (s *RosterService) archive(tenantID, assemblyID uint, units []assembly.Unit) {
	if s.archiver == nil {
		return
	}
	go func() {
		log := logger.Storage()
		payload, err := json.Marshal(units)
		if err != nil {
			log.Error("Failed to encode roster archive", "assembly_id", assemblyID, "error", err)
			return
		}
		if err := s.archiver.ArchiveRoster(context.Background(), tenantID, assemblyID, payload); err != nil {
			log.Error("Failed to archive roster", "assembly_id", assemblyID, "error", err)
			return
		}
		log.Info("Roster archived", "assembly_id", assemblyID, "units", len(units))
	}()
}
