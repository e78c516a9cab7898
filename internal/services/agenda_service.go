package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/rberts/delibera/internal/domain/agenda"
	"github.com/rberts/delibera/internal/domain/common"
	"github.com/rberts/delibera/internal/logger"
	"github.com/rberts/delibera/internal/realtime"
)

// AgendaUpdate carries the editable fields of an agenda. Nil fields are
// left untouched.
type AgendaUpdate struct {
	Title        *string
	Description  *string
	DisplayOrder *int
	Status       *agenda.Status
}

// AgendaService manages agenda items and their voting windows
type AgendaService struct {
	db          *gorm.DB
	broadcaster *realtime.Broadcaster
}

// NewAgendaService creates a new agenda service
func NewAgendaService(db *gorm.DB, broadcaster *realtime.Broadcaster) *AgendaService {
	return &AgendaService{db: db, broadcaster: broadcaster}
}

// Create adds a pending agenda item with its options to an assembly
func (s *AgendaService) Create(ctx context.Context, tenantID, assemblyID uint, title, description string, displayOrder int, optionTexts []string) (*agenda.Agenda, error) {
	log := logger.Service("agenda")

	if _, err := getAssembly(s.db.WithContext(ctx), tenantID, assemblyID); err != nil {
		return nil, err
	}

	item := agenda.New(assemblyID, title, description, displayOrder, optionTexts)
	if err := item.Validate(); err != nil {
		return nil, common.InvalidRequest(err.Error())
	}

	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		log.Error("Failed to create agenda", "assembly_id", assemblyID, "error", err)
		return nil, fmt.Errorf("failed to create agenda: %w", err)
	}

	log.Info("Agenda created", "agenda_id", item.ID, "assembly_id", assemblyID, "options", len(item.Options))
	return item, nil
}

// Get returns one agenda item with its options
func (s *AgendaService) Get(ctx context.Context, tenantID, agendaID uint) (*agenda.Agenda, error) {
	return getAgenda(s.db.WithContext(ctx), tenantID, agendaID)
}

// List returns an assembly's agenda items in display order. Cancelled
// items are hidden unless includeCancelled is set.
func (s *AgendaService) List(ctx context.Context, tenantID, assemblyID uint, includeCancelled bool) ([]agenda.Agenda, error) {
	if _, err := getAssembly(s.db.WithContext(ctx), tenantID, assemblyID); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Preload("Options", func(db *gorm.DB) *gorm.DB {
		return db.Order("display_order ASC")
	}).Where("assembly_id = ?", assemblyID)
	if !includeCancelled {
		query = query.Where("status <> ?", agenda.StatusCancelled)
	}

	var items []agenda.Agenda
	err := query.
		Order("display_order ASC").
		Find(&items).Error
	if err != nil {
		logger.Service("agenda").Error("Failed to list agendas", "assembly_id", assemblyID, "error", err)
		return nil, fmt.Errorf("failed to list agendas: %w", err)
	}
	return items, nil
}

// Update edits an agenda item. Status changes walk the lifecycle machine
// and stamp opened_at and closed_at; closed and cancelled agendas reject
// edits to anything but status.
func (s *AgendaService) Update(ctx context.Context, tenantID, agendaID uint, update AgendaUpdate) (*agenda.Agenda, error) {
	log := logger.Service("agenda")

	var item *agenda.Agenda
	var statusChanged bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		item, err = getAgenda(tx, tenantID, agendaID)
		if err != nil {
			return err
		}

		hasFieldEdits := update.Title != nil || update.Description != nil || update.DisplayOrder != nil
		if hasFieldEdits && (item.Status == agenda.StatusClosed || item.Status == agenda.StatusCancelled) {
			return common.InvalidRequest(fmt.Sprintf("%s agendas can only change status", item.Status))
		}

		if update.Title != nil {
			if *update.Title == "" {
				return common.InvalidRequest("title must not be empty")
			}
			item.Title = *update.Title
		}
		if update.Description != nil {
			item.Description = *update.Description
		}
		if update.DisplayOrder != nil {
			item.DisplayOrder = *update.DisplayOrder
		}

		if update.Status != nil && *update.Status != item.Status {
			if err := item.Transition(*update.Status, time.Now().UTC()); err != nil {
				return common.InvalidRequest(err.Error())
			}
			statusChanged = true
		}

		if err := tx.Omit("Options").Save(item).Error; err != nil {
			return fmt.Errorf("failed to update agenda: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Warn("Agenda update rejected", "agenda_id", agendaID, "error", err)
		return nil, err
	}

	log.Info("Agenda updated", "agenda_id", agendaID, "status", item.Status.String())
	if statusChanged && s.broadcaster != nil {
		s.broadcaster.NotifyAgendaStatus(item.AssemblyID, item.ID, item.Status.String())
	}
	return item, nil
}

// getAgenda fetches a tenant-scoped agenda with options on the given
// handle. Tenant scoping goes through the owning assembly.
func getAgenda(tx *gorm.DB, tenantID, agendaID uint) (*agenda.Agenda, error) {
	var item agenda.Agenda
	err := tx.Preload("Options", func(db *gorm.DB) *gorm.DB {
		return db.Order("display_order ASC")
	}).
		Joins("JOIN assemblies ON assemblies.id = agendas.assembly_id").
		Where("agendas.id = ? AND assemblies.tenant_id = ?", agendaID, tenantID).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("agenda")
		}
		return nil, fmt.Errorf("failed to get agenda: %w", err)
	}
	return &item, nil
}
