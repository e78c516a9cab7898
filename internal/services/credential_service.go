package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rberts/delibera/internal/domain/common"
	"github.com/rberts/delibera/internal/domain/credential"
	"github.com/rberts/delibera/internal/logger"
)

// CredentialService manages the tenant-scoped registry of voting cards
type CredentialService struct {
	db *gorm.DB
}

// NewCredentialService creates a new credential service
func NewCredentialService(db *gorm.DB) *CredentialService {
	return &CredentialService{db: db}
}

// CreateBatch mints a batch of active credentials with fresh tokens.
// Visual numbers must be unique within the tenant.
func (s *CredentialService) CreateBatch(ctx context.Context, tenantID uint, visualNumbers []string) ([]credential.Credential, error) {
	log := logger.Service("credential")
	log.Info("Creating credential batch", "tenant_id", tenantID, "count", len(visualNumbers))

	if len(visualNumbers) == 0 {
		return nil, common.InvalidRequest("at least one visual_number is required")
	}

	credentials := make([]credential.Credential, 0, len(visualNumbers))
	for _, visualNumber := range visualNumbers {
		c := credential.New(tenantID, visualNumber)
		if err := c.Validate(); err != nil {
			return nil, common.InvalidRequest(err.Error())
		}
		credentials = append(credentials, *c)
	}

	if err := s.db.WithContext(ctx).Create(&credentials).Error; err != nil {
		if isDuplicateKey(err) {
			log.Warn("Duplicate visual number in batch", "tenant_id", tenantID)
			return nil, common.Conflict("visual number already exists for this tenant")
		}
		log.Error("Failed to create credentials", "error", err)
		return nil, fmt.Errorf("failed to create credentials: %w", err)
	}

	log.Info("Credential batch created", "tenant_id", tenantID, "count", len(credentials))
	return credentials, nil
}

// Get returns one credential of the tenant by ID
func (s *CredentialService) Get(ctx context.Context, tenantID, credentialID uint) (*credential.Credential, error) {
	var c credential.Credential
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", credentialID, tenantID).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("credential")
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return &c, nil
}

// List returns a tenant's credentials ordered by visual number, optionally
// filtered by status
func (s *CredentialService) List(ctx context.Context, tenantID uint, status *credential.Status) ([]credential.Credential, error) {
	query := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var credentials []credential.Credential
	err := query.
		Order("visual_number ASC").
		Find(&credentials).Error
	if err != nil {
		logger.Service("credential").Error("Failed to list credentials", "tenant_id", tenantID, "error", err)
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	return credentials, nil
}

// Resolve looks up a single credential of the tenant by selector. A
// credential of another tenant is reported as not found, never as
// belonging elsewhere.
func (s *CredentialService) Resolve(ctx context.Context, tenantID uint, selector credential.Selector) (*credential.Credential, error) {
	if err := selector.Validate(); err != nil {
		return nil, common.InvalidRequest(err.Error())
	}
	return resolveCredential(s.db.WithContext(ctx), tenantID, selector)
}

// SetStatus activates or deactivates a credential. Deactivation does not
// touch existing assignments or votes; it only blocks future use.
func (s *CredentialService) SetStatus(ctx context.Context, tenantID, credentialID uint, status credential.Status) (*credential.Credential, error) {
	log := logger.Service("credential")

	var c credential.Credential
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", credentialID, tenantID).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("credential")
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	if c.Status == status {
		return &c, nil
	}

	c.Status = status
	if err := s.db.WithContext(ctx).Model(&c).Update("status", status).Error; err != nil {
		log.Error("Failed to update credential status", "credential_id", credentialID, "error", err)
		return nil, fmt.Errorf("failed to update credential: %w", err)
	}

	log.Info("Credential status changed", "credential_id", credentialID, "status", status.String())
	return &c, nil
}

// resolveCredential runs the selector lookup on the given handle so that
// callers inside a transaction can share it. Only active credentials
// resolve; a deactivated one reads as not found.
func resolveCredential(tx *gorm.DB, tenantID uint, selector credential.Selector) (*credential.Credential, error) {
	query := tx.Where("tenant_id = ? AND status = ?", tenantID, credential.StatusActive)
	switch {
	case selector.Token != nil:
		query = query.Where("token = ?", *selector.Token)
	case selector.VisualNumber != nil:
		query = query.Where("visual_number = ?", *selector.VisualNumber)
	default:
		return nil, common.InvalidRequest("exactly one of token or visual_number must be provided")
	}

	var c credential.Credential
	if err := query.First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("credential")
		}
		return nil, fmt.Errorf("failed to resolve credential: %w", err)
	}
	return &c, nil
}

// resolveCredentialByToken is the public voting path: token only, no
// tenant context until the credential itself supplies one
func resolveCredentialByToken(tx *gorm.DB, token uuid.UUID) (*credential.Credential, error) {
	var c credential.Credential
	if err := tx.Where("token = ?", token).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("credential")
		}
		return nil, fmt.Errorf("failed to resolve credential: %w", err)
	}
	return &c, nil
}
