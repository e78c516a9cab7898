package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/rberts/delibera/internal/domain/assembly"
	"github.com/rberts/delibera/internal/domain/checkin"
	"github.com/rberts/delibera/internal/domain/common"
	"github.com/rberts/delibera/internal/domain/credential"
	"github.com/rberts/delibera/internal/domain/voting"
	"github.com/rberts/delibera/internal/logger"
	"github.com/rberts/delibera/internal/realtime"
	"github.com/rberts/delibera/internal/validation"
)

// AttendanceEntry is one row of the attendance list: an assignment with
// its credential, represented units and their combined ideal fraction
type AttendanceEntry struct {
	Assignment  checkin.Assignment    `json:"assignment"`
	Credential  credential.Credential `json:"credential"`
	Units       []assembly.Unit       `json:"units"`
	FractionSum float64               `json:"fraction_sum"`
}

// AttendanceSummary aggregates presence for quorum display
type AttendanceSummary struct {
	PresentUnits    int64   `json:"present_units"`
	PresentFraction float64 `json:"present_fraction"`
}

// CheckinService maintains the check-in ledger of an assembly
type CheckinService struct {
	db          *gorm.DB
	broadcaster *realtime.Broadcaster
}

// NewCheckinService creates a new check-in service
func NewCheckinService(db *gorm.DB, broadcaster *realtime.Broadcaster) *CheckinService {
	return &CheckinService{db: db, broadcaster: broadcaster}
}

// CheckIn assigns a credential to one or more units of an assembly. The
// whole operation runs in one transaction; the unique indexes on
// (assembly_id, credential_id) and on assigned units are the final
// authority under concurrent check-ins.
func (s *CheckinService) CheckIn(ctx context.Context, tenantID, assemblyID uint, selector credential.Selector, unitIDs []uint, isProxy bool, actorID uint) (*checkin.Assignment, error) {
	log := logger.Service("checkin")

	unitIDs = dedupe(unitIDs)
	if len(unitIDs) == 0 {
		return nil, checkin.ErrNoUnits
	}
	if err := selector.Validate(); err != nil {
		return nil, common.InvalidRequest(err.Error())
	}

	var assignment *checkin.Assignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getAssembly(tx, tenantID, assemblyID); err != nil {
			return err
		}

		cred, err := resolveCredential(tx, tenantID, selector)
		if err != nil {
			return err
		}
		if !cred.IsActive() {
			return checkin.ErrCredentialInUse
		}

		var units []assembly.Unit
		if err := tx.Where("assembly_id = ? AND id IN ?", assemblyID, unitIDs).Find(&units).Error; err != nil {
			return fmt.Errorf("failed to load units: %w", err)
		}
		if len(units) != len(unitIDs) {
			return checkin.ErrUnitsOutsideScope
		}

		var existing int64
		err = tx.Model(&checkin.Assignment{}).
			Where("assembly_id = ? AND credential_id = ?", assemblyID, cred.ID).
			Count(&existing).Error
		if err != nil {
			return fmt.Errorf("failed to check existing assignment: %w", err)
		}
		if existing > 0 {
			return checkin.ErrAlreadyAssigned
		}

		var taken int64
		err = tx.Model(&checkin.AssignedUnit{}).
			Joins("JOIN credential_assignments ON credential_assignments.id = assignment_units.assignment_id").
			Where("credential_assignments.assembly_id = ? AND assignment_units.unit_id IN ?", assemblyID, unitIDs).
			Count(&taken).Error
		if err != nil {
			return fmt.Errorf("failed to check unit availability: %w", err)
		}
		if taken > 0 {
			return checkin.ErrUnitAlreadyTaken
		}

		assignment = checkin.New(assemblyID, cred.ID, unitIDs, isProxy, actorID)
		if err := assignment.Validate(); err != nil {
			return common.InvalidRequest(err.Error())
		}
		if err := tx.Create(assignment).Error; err != nil {
			if isDuplicateKey(err) {
				return checkin.ErrAlreadyAssigned
			}
			return fmt.Errorf("failed to create assignment: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Warn("Check-in rejected", "assembly_id", assemblyID, "error", err)
		return nil, err
	}

	log.Info("Credential checked in", "assembly_id", assemblyID, "assignment_id", assignment.ID, "units", len(assignment.Units), "proxy", isProxy)
	s.notifyPresence(ctx, tenantID, assemblyID)
	return assignment, nil
}

// UndoCheckIn removes an assignment, freeing its units and credential. An
// assignment whose credential has cast any vote in this assembly cannot be
// undone; invalidate the votes first.
func (s *CheckinService) UndoCheckIn(ctx context.Context, tenantID, assemblyID, assignmentID uint) error {
	log := logger.Service("checkin")

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getAssembly(tx, tenantID, assemblyID); err != nil {
			return err
		}

		var assignment checkin.Assignment
		err := tx.Preload("Units").
			Where("id = ? AND assembly_id = ?", assignmentID, assemblyID).
			First(&assignment).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.NotFound("assignment")
			}
			return fmt.Errorf("failed to get assignment: %w", err)
		}

		var voteCount int64
		err = tx.Model(&voting.Vote{}).
			Joins("JOIN agendas ON agendas.id = votes.agenda_id").
			Where("agendas.assembly_id = ? AND votes.unit_id IN ?", assemblyID, assignment.UnitIDs()).
			Count(&voteCount).Error
		if err != nil {
			return fmt.Errorf("failed to count votes: %w", err)
		}
		if voteCount > 0 {
			return checkin.ErrHasVotes
		}

		if err := tx.Where("assignment_id = ?", assignment.ID).Delete(&checkin.AssignedUnit{}).Error; err != nil {
			return fmt.Errorf("failed to delete assigned units: %w", err)
		}
		if err := tx.Delete(&assignment).Error; err != nil {
			return fmt.Errorf("failed to delete assignment: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Warn("Undo check-in rejected", "assembly_id", assemblyID, "assignment_id", assignmentID, "error", err)
		return err
	}

	log.Info("Check-in undone", "assembly_id", assemblyID, "assignment_id", assignmentID)
	s.notifyPresence(ctx, tenantID, assemblyID)
	return nil
}

// AttendanceList returns every assignment of the assembly in check-in
// order with its credential and units resolved
func (s *CheckinService) AttendanceList(ctx context.Context, tenantID, assemblyID uint) ([]AttendanceEntry, error) {
	if _, err := getAssembly(s.db.WithContext(ctx), tenantID, assemblyID); err != nil {
		return nil, err
	}

	var assignments []checkin.Assignment
	err := s.db.WithContext(ctx).Preload("Units").
		Where("assembly_id = ?", assemblyID).
		Order("id ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	entries := make([]AttendanceEntry, 0, len(assignments))
	for _, assignment := range assignments {
		var cred credential.Credential
		if err := s.db.WithContext(ctx).First(&cred, assignment.CredentialID).Error; err != nil {
			return nil, fmt.Errorf("failed to load credential: %w", err)
		}

		var units []assembly.Unit
		if len(assignment.Units) > 0 {
			err := s.db.WithContext(ctx).
				Where("id IN ?", assignment.UnitIDs()).
				Order("unit_number ASC").
				Find(&units).Error
			if err != nil {
				return nil, fmt.Errorf("failed to load units: %w", err)
			}
		}

		entry := AttendanceEntry{Assignment: assignment, Credential: cred, Units: units}
		for _, unit := range units {
			entry.FractionSum += unit.IdealFraction
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Summary computes the present unit count and present ideal fraction
func (s *CheckinService) Summary(ctx context.Context, tenantID, assemblyID uint) (*AttendanceSummary, error) {
	if _, err := getAssembly(s.db.WithContext(ctx), tenantID, assemblyID); err != nil {
		return nil, err
	}
	return attendanceSummary(s.db.WithContext(ctx), assemblyID)
}

// SearchUnitsByOwner finds roster units by owner name, matched exactly
// after trimming and case folding, optionally narrowed by tax ID. Used
// by check-in staff to locate the arriving owner's units.
func (s *CheckinService) SearchUnitsByOwner(ctx context.Context, tenantID, assemblyID uint, ownerQuery, taxID string) ([]assembly.Unit, error) {
	if _, err := getAssembly(s.db.WithContext(ctx), tenantID, assemblyID); err != nil {
		return nil, err
	}

	owner := strings.ToLower(validation.NormalizeOwnerName(ownerQuery))
	if owner == "" {
		return nil, common.InvalidRequest("owner_name must be provided")
	}

	query := s.db.WithContext(ctx).
		Where("assembly_id = ?", assemblyID).
		Where("lower(owner_name) = ?", owner)
	if tax := validation.NormalizeTaxID(taxID); tax != "" {
		query = query.Where("tax_id = ?", tax)
	}

	var units []assembly.Unit
	if err := query.Order("unit_number ASC").Find(&units).Error; err != nil {
		return nil, fmt.Errorf("failed to search units: %w", err)
	}
	return units, nil
}

// notifyPresence recomputes the attendance summary after a committed
// change and broadcasts it. Failures only log; presence data is already
// durable.
func (s *CheckinService) notifyPresence(ctx context.Context, tenantID, assemblyID uint) {
	if s.broadcaster == nil {
		return
	}
	summary, err := attendanceSummary(s.db.WithContext(ctx), assemblyID)
	if err != nil {
		logger.Realtime().Error("Failed to compute presence for broadcast", "assembly_id", assemblyID, "error", err)
		return
	}
	s.broadcaster.NotifyCheckin(assemblyID, summary.PresentUnits, summary.PresentFraction)
}

// attendanceSummary aggregates presence on the given handle
func attendanceSummary(tx *gorm.DB, assemblyID uint) (*AttendanceSummary, error) {
	var summary AttendanceSummary
	err := tx.Model(&checkin.AssignedUnit{}).
		Select("COUNT(DISTINCT assignment_units.unit_id) AS present_units, COALESCE(SUM(assembly_units.ideal_fraction), 0) AS present_fraction").
		Joins("JOIN credential_assignments ON credential_assignments.id = assignment_units.assignment_id").
		Joins("JOIN assembly_units ON assembly_units.id = assignment_units.unit_id").
		Where("credential_assignments.assembly_id = ?", assemblyID).
		Scan(&summary).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate attendance: %w", err)
	}
	return &summary, nil
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
