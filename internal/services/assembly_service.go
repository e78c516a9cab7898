package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/rberts/delibera/internal/domain/assembly"
	"github.com/rberts/delibera/internal/domain/common"
	"github.com/rberts/delibera/internal/logger"
)

// AssemblyService manages assembly lifecycle and lookup
type AssemblyService struct {
	db *gorm.DB
}

// NewAssemblyService creates a new assembly service
func NewAssemblyService(db *gorm.DB) *AssemblyService {
	return &AssemblyService{db: db}
}

// Create registers a new draft assembly for the tenant
func (s *AssemblyService) Create(ctx context.Context, tenantID uint, title, location string, date time.Time, assemblyType assembly.Type) (*assembly.Assembly, error) {
	log := logger.Service("assembly")

	a := assembly.New(tenantID, title, location, date, assemblyType)
	if err := a.Validate(); err != nil {
		return nil, common.InvalidRequest(err.Error())
	}

	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		log.Error("Failed to create assembly", "tenant_id", tenantID, "error", err)
		return nil, fmt.Errorf("failed to create assembly: %w", err)
	}

	log.Info("Assembly created", "assembly_id", a.ID, "tenant_id", tenantID, "title", title)
	return a, nil
}

// Get returns one assembly of the tenant
func (s *AssemblyService) Get(ctx context.Context, tenantID, assemblyID uint) (*assembly.Assembly, error) {
	return getAssembly(s.db.WithContext(ctx), tenantID, assemblyID)
}

// List returns all assemblies of the tenant, newest session first
func (s *AssemblyService) List(ctx context.Context, tenantID uint) ([]assembly.Assembly, error) {
	var assemblies []assembly.Assembly
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("assembly_date DESC").
		Find(&assemblies).Error
	if err != nil {
		logger.Service("assembly").Error("Failed to list assemblies", "tenant_id", tenantID, "error", err)
		return nil, fmt.Errorf("failed to list assemblies: %w", err)
	}
	return assemblies, nil
}

// Update edits the descriptive fields and status of an assembly
func (s *AssemblyService) Update(ctx context.Context, tenantID, assemblyID uint, updates map[string]interface{}) (*assembly.Assembly, error) {
	log := logger.Service("assembly")

	a, err := getAssembly(s.db.WithContext(ctx), tenantID, assemblyID)
	if err != nil {
		return nil, err
	}

	if len(updates) == 0 {
		return a, nil
	}

	if err := s.db.WithContext(ctx).Model(a).Updates(updates).Error; err != nil {
		log.Error("Failed to update assembly", "assembly_id", assemblyID, "error", err)
		return nil, fmt.Errorf("failed to update assembly: %w", err)
	}

	log.Info("Assembly updated", "assembly_id", assemblyID)
	return getAssembly(s.db.WithContext(ctx), tenantID, assemblyID)
}

// getAssembly fetches a tenant-scoped assembly on the given handle.
// Other tenants' assemblies are indistinguishable from missing ones.
func getAssembly(tx *gorm.DB, tenantID, assemblyID uint) (*assembly.Assembly, error) {
	var a assembly.Assembly
	err := tx.Where("id = ? AND tenant_id = ?", assemblyID, tenantID).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("assembly")
		}
		return nil, fmt.Errorf("failed to get assembly: %w", err)
	}
	return &a, nil
}
