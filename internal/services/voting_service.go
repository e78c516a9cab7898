package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rberts/delibera/internal/domain/agenda"
	"github.com/rberts/delibera/internal/domain/assembly"
	"github.com/rberts/delibera/internal/domain/checkin"
	"github.com/rberts/delibera/internal/domain/common"
	"github.com/rberts/delibera/internal/domain/voting"
	"github.com/rberts/delibera/internal/logger"
	"github.com/rberts/delibera/internal/realtime"
)

// VoterStatus is everything the voting screen needs for one credential:
// the assembly it is checked in to, its units, and the currently open
// agenda item with whether the units have already voted on it
type VoterStatus struct {
	VisualNumber string             `json:"visual_number"`
	Assembly     *assembly.Assembly `json:"assembly"`
	Units        []assembly.Unit    `json:"units"`
	OpenAgenda   *agenda.Agenda     `json:"open_agenda,omitempty"`
	HasVoted     bool               `json:"has_voted"`
}

// VotingService casts and invalidates votes
type VotingService struct {
	db          *gorm.DB
	broadcaster *realtime.Broadcaster
}

// NewVotingService creates a new voting service
func NewVotingService(db *gorm.DB, broadcaster *realtime.Broadcaster) *VotingService {
	return &VotingService{db: db, broadcaster: broadcaster}
}

// CastVote records one vote per unit the credential represents, all for
// the same option, in a single transaction. The unique index on
// (agenda_id, unit_id) is the final authority under concurrent casts, so
// two racing ballots for the same unit cannot both land.
func (s *VotingService) CastVote(ctx context.Context, token uuid.UUID, agendaID, optionID uint) ([]voting.Vote, error) {
	log := logger.Service("voting")

	var votes []voting.Vote
	var assemblyID uint

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cred, err := resolveCredentialByToken(tx, token)
		if err != nil {
			return err
		}
		if !cred.IsActive() {
			return voting.ErrCredentialRevoked
		}

		item, err := getAgenda(tx, cred.TenantID, agendaID)
		if err != nil {
			return err
		}
		assemblyID = item.AssemblyID

		if !item.IsOpen() {
			return voting.ErrAgendaNotOpen
		}
		if !item.HasOption(optionID) {
			return common.NotFound("option")
		}

		var assignment checkin.Assignment
		err = tx.Preload("Units").
			Where("assembly_id = ? AND credential_id = ?", item.AssemblyID, cred.ID).
			First(&assignment).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return voting.ErrNotCheckedIn
			}
			return fmt.Errorf("failed to get assignment: %w", err)
		}
		unitIDs := assignment.UnitIDs()
		if len(unitIDs) == 0 {
			return voting.ErrNotCheckedIn
		}

		// Invalidated votes count too: invalidation never frees the slot.
		var existing int64
		err = tx.Model(&voting.Vote{}).
			Where("agenda_id = ? AND unit_id IN ?", agendaID, unitIDs).
			Count(&existing).Error
		if err != nil {
			return fmt.Errorf("failed to check existing votes: %w", err)
		}
		if existing > 0 {
			return voting.ErrAlreadyCast
		}

		votes = make([]voting.Vote, 0, len(unitIDs))
		for _, unitID := range unitIDs {
			v := voting.New(agendaID, unitID, optionID, cred.ID)
			if err := v.Validate(); err != nil {
				return common.InvalidRequest(err.Error())
			}
			votes = append(votes, *v)
		}
		if err := tx.Create(&votes).Error; err != nil {
			if isDuplicateKey(err) {
				return voting.ErrAlreadyCast
			}
			return fmt.Errorf("failed to record votes: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Warn("Vote rejected", "agenda_id", agendaID, "error", err)
		return nil, err
	}

	log.Info("Vote cast", "agenda_id", agendaID, "units", len(votes))
	s.notifyVotes(ctx, assemblyID, agendaID)
	return votes, nil
}

// InvalidateVote marks a single unit's vote invalid for the audit trail.
// The unit's voting slot stays consumed; a re-vote requires manual
// intervention at the database level and is deliberately not offered.
func (s *VotingService) InvalidateVote(ctx context.Context, tenantID, voteID, actorID uint) (*voting.Vote, error) {
	log := logger.Service("voting")

	var vote voting.Vote
	var assemblyID, agendaID uint

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Joins("JOIN agendas ON agendas.id = votes.agenda_id").
			Joins("JOIN assemblies ON assemblies.id = agendas.assembly_id").
			Where("votes.id = ? AND assemblies.tenant_id = ?", voteID, tenantID).
			First(&vote).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.NotFound("vote")
			}
			return fmt.Errorf("failed to get vote: %w", err)
		}

		if err := vote.Invalidate(actorID, time.Now().UTC()); err != nil {
			return err
		}

		err = tx.Model(&vote).Updates(map[string]interface{}{
			"is_valid":       vote.IsValid,
			"invalidated_at": vote.InvalidatedAt,
			"invalidated_by": vote.InvalidatedBy,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to invalidate vote: %w", err)
		}

		var item agenda.Agenda
		if err := tx.First(&item, vote.AgendaID).Error; err == nil {
			assemblyID = item.AssemblyID
			agendaID = item.ID
		}
		return nil
	})
	if err != nil {
		log.Warn("Vote invalidation rejected", "vote_id", voteID, "error", err)
		return nil, err
	}

	log.Info("Vote invalidated", "vote_id", voteID, "by", actorID)
	if assemblyID != 0 {
		s.notifyVotes(ctx, assemblyID, agendaID)
	}
	return &vote, nil
}

// VoterStatus assembles the voting screen state for a credential token
func (s *VotingService) VoterStatus(ctx context.Context, token uuid.UUID) (*VoterStatus, error) {
	db := s.db.WithContext(ctx)

	cred, err := resolveCredentialByToken(db, token)
	if err != nil {
		return nil, err
	}

	if !cred.IsActive() {
		return nil, voting.ErrCredentialRevoked
	}

	status := &VoterStatus{VisualNumber: cred.VisualNumber}

	// The newest in-progress assembly the credential is checked in to wins
	// when a tenant somehow runs overlapping sessions. An assignment in an
	// assembly of any other status still counts as checked in.
	var assignment checkin.Assignment
	err = db.Preload("Units").
		Joins("JOIN assemblies ON assemblies.id = credential_assignments.assembly_id").
		Where("credential_assignments.credential_id = ? AND assemblies.status = ?", cred.ID, assembly.StatusInProgress).
		Order("assemblies.assembly_date DESC").
		First(&assignment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = db.Preload("Units").
			Where("credential_id = ?", cred.ID).
			Order("id DESC").
			First(&assignment).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, voting.ErrNotCheckedIn
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}

	var a assembly.Assembly
	if err := db.First(&a, assignment.AssemblyID).Error; err != nil {
		return nil, fmt.Errorf("failed to get assembly: %w", err)
	}
	status.Assembly = &a

	unitIDs := assignment.UnitIDs()
	err = db.Where("id IN ?", unitIDs).Order("unit_number ASC").Find(&status.Units).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load units: %w", err)
	}

	// The state machine keeps at most one agenda open; the tie-break is
	// for reads racing a close/open pair.
	var item agenda.Agenda
	err = db.Preload("Options", func(q *gorm.DB) *gorm.DB {
		return q.Order("display_order ASC")
	}).
		Where("assembly_id = ? AND status = ?", a.ID, agenda.StatusOpen).
		Order("display_order ASC, opened_at ASC").
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return status, nil
		}
		return nil, fmt.Errorf("failed to get open agenda: %w", err)
	}
	status.OpenAgenda = &item

	var voted int64
	err = db.Model(&voting.Vote{}).
		Where("agenda_id = ? AND unit_id IN ? AND is_valid = ?", item.ID, unitIDs, true).
		Count(&voted).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check votes: %w", err)
	}
	status.HasVoted = voted > 0
	return status, nil
}

// notifyVotes recomputes the valid vote count after a committed change
// and broadcasts it
func (s *VotingService) notifyVotes(ctx context.Context, assemblyID, agendaID uint) {
	if s.broadcaster == nil {
		return
	}
	var votesCast int64
	err := s.db.WithContext(ctx).Model(&voting.Vote{}).
		Where("agenda_id = ? AND is_valid = ?", agendaID, true).
		Count(&votesCast).Error
	if err != nil {
		logger.Realtime().Error("Failed to count votes for broadcast", "agenda_id", agendaID, "error", err)
		return
	}
	s.broadcaster.NotifyVoteCast(assemblyID, agendaID, votesCast)
}
