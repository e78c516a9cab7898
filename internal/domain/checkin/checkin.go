package checkin

import (
	"fmt"
	"time"

	"github.com/rberts/delibera/internal/domain/common"
)

// Domain errors for the check-in ledger
var (
	ErrAlreadyAssigned   = common.Conflict("credential is already assigned in this assembly")
	ErrUnitAlreadyTaken  = common.InvalidRequest("one or more units are already checked in")
	ErrNoUnits           = common.InvalidRequest("at least one unit must be assigned")
	ErrCredentialInUse   = common.Inactive("credential is deactivated, contact admin")
	ErrHasVotes          = common.InvalidRequest("votes already exist for this assignment")
	ErrUnitsOutsideScope = common.InvalidRequest("units not found in this assembly")
)

// Assignment binds one credential to one or more units of an assembly for
// the duration of the session. It is the unit of presence: an assembly's
// attendance is the set of its assignments.
type Assignment struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	AssemblyID   uint           `json:"assembly_id" gorm:"not null;uniqueIndex:uq_assignment_credential,priority:1"`
	CredentialID uint           `json:"credential_id" gorm:"not null;uniqueIndex:uq_assignment_credential,priority:2"`
	IsProxy      bool           `json:"is_proxy" gorm:"not null;default:false"`
	AssignedBy   uint           `json:"assigned_by" gorm:"not null"`
	AssignedAt   time.Time      `json:"assigned_at" gorm:"autoCreateTime"`
	Units        []AssignedUnit `json:"units" gorm:"foreignKey:AssignmentID;constraint:OnDelete:CASCADE"`
}

// AssignedUnit links an assignment to a single roster unit. The unique
// index on (assignment_id, unit_id) plus the service-level unit scan keep
// each unit represented by at most one credential per assembly.
type AssignedUnit struct {
	ID           uint `json:"id" gorm:"primaryKey"`
	AssignmentID uint `json:"assignment_id" gorm:"not null;uniqueIndex:uq_assignment_unit,priority:1"`
	UnitID       uint `json:"unit_id" gorm:"not null;uniqueIndex:uq_assignment_unit,priority:2"`
}

// TableName overrides the table name
func (Assignment) TableName() string {
	return "credential_assignments"
}

// TableName overrides the table name
func (AssignedUnit) TableName() string {
	return "assignment_units"
}

// New creates an assignment for the given units
func New(assemblyID, credentialID uint, unitIDs []uint, isProxy bool, assignedBy uint) *Assignment {
	assignment := &Assignment{
		AssemblyID:   assemblyID,
		CredentialID: credentialID,
		IsProxy:      isProxy,
		AssignedBy:   assignedBy,
	}
	for _, unitID := range unitIDs {
		assignment.Units = append(assignment.Units, AssignedUnit{UnitID: unitID})
	}
	return assignment
}

// Validate checks if the assignment data is valid
func (a *Assignment) Validate() error {
	if a.AssemblyID == 0 {
		return fmt.Errorf("assembly_id is required")
	}
	if a.CredentialID == 0 {
		return fmt.Errorf("credential_id is required")
	}
	if a.AssignedBy == 0 {
		return fmt.Errorf("assigned_by is required")
	}
	if len(a.Units) == 0 {
		return fmt.Errorf("at least one unit is required")
	}
	seen := make(map[uint]struct{}, len(a.Units))
	for _, unit := range a.Units {
		if unit.UnitID == 0 {
			return fmt.Errorf("unit_id is required")
		}
		if _, dup := seen[unit.UnitID]; dup {
			return fmt.Errorf("duplicate unit_id %d", unit.UnitID)
		}
		seen[unit.UnitID] = struct{}{}
	}
	return nil
}

// UnitIDs returns the IDs of all units bound to this assignment
func (a *Assignment) UnitIDs() []uint {
	ids := make([]uint, 0, len(a.Units))
	for _, unit := range a.Units {
		ids = append(ids, unit.UnitID)
	}
	return ids
}
