package voting

import (
	"fmt"
	"time"

	"github.com/rberts/delibera/internal/domain/common"
)

// Domain errors for the voting engine
var (
	ErrAgendaNotOpen     = common.InvalidRequest("agenda is not open for voting")
	ErrNotCheckedIn      = common.InvalidRequest("awaiting check-in")
	ErrAlreadyCast       = common.Conflict("a vote has already been cast for this unit on this agenda")
	ErrAlreadyInvalid    = common.InvalidRequest("vote is already invalidated")
	ErrCredentialRevoked = common.Inactive("credential is deactivated, contact admin")
)

// Vote is one unit's recorded choice on one agenda item. Invalidated votes
// stay in the table as an audit trail; the unique index on
// (agenda_id, unit_id) spans valid and invalid rows alike, so an
// invalidated vote still blocks the unit from voting again.
type Vote struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	AgendaID      uint       `json:"agenda_id" gorm:"not null;uniqueIndex:uq_agenda_unit,priority:1"`
	UnitID        uint       `json:"unit_id" gorm:"not null;uniqueIndex:uq_agenda_unit,priority:2"`
	OptionID      uint       `json:"option_id" gorm:"not null;index"`
	CredentialID  uint       `json:"credential_id" gorm:"not null"`
	IsValid       bool       `json:"is_valid" gorm:"not null;default:true"`
	InvalidatedAt *time.Time `json:"invalidated_at"`
	InvalidatedBy *uint      `json:"invalidated_by"`
	CreatedAt     time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// TableName overrides the table name
func (Vote) TableName() string {
	return "votes"
}

// New creates a valid vote
func New(agendaID, unitID, optionID, credentialID uint) *Vote {
	return &Vote{
		AgendaID:     agendaID,
		UnitID:       unitID,
		OptionID:     optionID,
		CredentialID: credentialID,
		IsValid:      true,
	}
}

// Validate checks if the vote data is valid
func (v *Vote) Validate() error {
	if v.AgendaID == 0 {
		return fmt.Errorf("agenda_id is required")
	}
	if v.UnitID == 0 {
		return fmt.Errorf("unit_id is required")
	}
	if v.OptionID == 0 {
		return fmt.Errorf("option_id is required")
	}
	if v.CredentialID == 0 {
		return fmt.Errorf("credential_id is required")
	}
	return nil
}

// Invalidate marks the vote invalid, stamping the audit fields together.
// A vote is either fully valid or fully invalidated; the two stamps are
// never set independently.
func (v *Vote) Invalidate(by uint, at time.Time) error {
	if !v.IsValid {
		return ErrAlreadyInvalid
	}
	v.IsValid = false
	v.InvalidatedAt = &at
	v.InvalidatedBy = &by
	return nil
}
