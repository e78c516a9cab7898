package credential

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Credential is a physical voting card identified publicly by a visual
// number and privately by an opaque token. The token is what voters use,
// so it must never be guessable from the visual number.
type Credential struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	TenantID     uint      `json:"tenant_id" gorm:"not null;uniqueIndex:uq_tenant_visual_number,priority:1"`
	VisualNumber string    `json:"visual_number" gorm:"size:50;not null;uniqueIndex:uq_tenant_visual_number,priority:2"`
	Token        uuid.UUID `json:"token" gorm:"type:uuid;not null;uniqueIndex"`
	Status       Status    `json:"status" gorm:"type:varchar(20);not null"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName overrides the table name
func (Credential) TableName() string {
	return "credentials"
}

// New creates an active credential with a freshly generated token
func New(tenantID uint, visualNumber string) *Credential {
	return &Credential{
		TenantID:     tenantID,
		VisualNumber: visualNumber,
		Token:        uuid.New(),
		Status:       StatusActive,
	}
}

// Validate checks if the credential data is valid
func (c *Credential) Validate() error {
	if c.TenantID == 0 {
		return fmt.Errorf("tenant_id is required")
	}
	if c.VisualNumber == "" {
		return fmt.Errorf("visual_number is required")
	}
	if c.Token == uuid.Nil {
		return fmt.Errorf("token is required")
	}
	return nil
}

// IsActive reports whether the credential can be used at check-in or voting
func (c *Credential) IsActive() bool {
	return c.Status == StatusActive
}

// Selector identifies a credential by exactly one of its two identifiers.
// The zero value selects nothing and is rejected by Validate.
type Selector struct {
	Token        *uuid.UUID
	VisualNumber *string
}

// ByToken selects a credential by its opaque token
func ByToken(token uuid.UUID) Selector {
	return Selector{Token: &token}
}

// ByVisualNumber selects a credential by its printed number
func ByVisualNumber(visualNumber string) Selector {
	return Selector{VisualNumber: &visualNumber}
}

// Validate enforces that exactly one identifier is set
func (s Selector) Validate() error {
	if (s.Token == nil) == (s.VisualNumber == nil) {
		return fmt.Errorf("exactly one of token or visual_number must be provided")
	}
	return nil
}

// Status represents whether a credential may be used
type Status byte

const (
	StatusActive Status = iota
	StatusInactive
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// StatusFromString converts a string to a Status
func StatusFromString(s string) (Status, bool) {
	switch s {
	case "active":
		return StatusActive, true
	case "inactive":
		return StatusInactive, true
	default:
		return StatusActive, false
	}
}

// MarshalJSON implements the json.Marshaler interface
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (s *Status) UnmarshalJSON(data []byte) error {
	str := string(data)
	if len(str) >= 2 && str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}
	parsed, valid := StatusFromString(str)
	if !valid {
		return fmt.Errorf("invalid credential status: %s", data)
	}
	*s = parsed
	return nil
}

// Scan implements the sql.Scanner interface for database deserialization
func (s *Status) Scan(value interface{}) error {
	if value == nil {
		*s = StatusActive
		return nil
	}
	var str string
	switch v := value.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	default:
		return fmt.Errorf("cannot scan %T into credential.Status", value)
	}
	parsed, valid := StatusFromString(str)
	if !valid {
		return fmt.Errorf("invalid credential status value: %s", str)
	}
	*s = parsed
	return nil
}

// Value implements the driver.Valuer interface for database serialization
func (s Status) Value() (driver.Value, error) {
	return s.String(), nil
}
