package assembly

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Assembly represents a scheduled condominium assembly owned by one tenant
type Assembly struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	TenantID     uint      `json:"tenant_id" gorm:"not null;index"`
	Title        string    `json:"title" gorm:"size:255;not null"`
	Location     string    `json:"location" gorm:"type:text;not null"`
	AssemblyDate time.Time `json:"assembly_date" gorm:"not null"`
	Type         Type      `json:"assembly_type" gorm:"type:varchar(20);not null"`
	Status       Status    `json:"status" gorm:"type:varchar(20);not null"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Unit is one voting unit of an assembly's ownership roster. The roster is
// an immutable snapshot: units are bulk-created once at import time and
// never updated or deleted individually.
type Unit struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	AssemblyID    uint      `json:"assembly_id" gorm:"not null;uniqueIndex:uq_assembly_unit_number,priority:1"`
	UnitNumber    string    `json:"unit_number" gorm:"size:50;not null;uniqueIndex:uq_assembly_unit_number,priority:2"`
	OwnerName     string    `json:"owner_name" gorm:"size:255;not null;index"`
	IdealFraction float64   `json:"ideal_fraction" gorm:"type:decimal(5,2);not null;check:ideal_fraction > 0 AND ideal_fraction <= 100"`
	TaxID         string    `json:"tax_id" gorm:"size:18;not null"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName overrides the table name
func (Assembly) TableName() string {
	return "assemblies"
}

// TableName overrides the table name
func (Unit) TableName() string {
	return "assembly_units"
}

// New creates a new assembly in draft status
func New(tenantID uint, title, location string, date time.Time, assemblyType Type) *Assembly {
	return &Assembly{
		TenantID:     tenantID,
		Title:        title,
		Location:     location,
		AssemblyDate: date,
		Type:         assemblyType,
		Status:       StatusDraft,
	}
}

// Validate checks if the assembly data is valid
func (a *Assembly) Validate() error {
	if a.TenantID == 0 {
		return fmt.Errorf("tenant_id is required")
	}
	if a.Title == "" {
		return fmt.Errorf("title is required")
	}
	if a.Location == "" {
		return fmt.Errorf("location is required")
	}
	if a.AssemblyDate.IsZero() {
		return fmt.Errorf("assembly_date is required")
	}
	return nil
}

// Validate checks if a roster unit is valid
func (u *Unit) Validate() error {
	if u.UnitNumber == "" {
		return fmt.Errorf("unit_number is required")
	}
	if u.OwnerName == "" {
		return fmt.Errorf("owner_name is required")
	}
	if u.IdealFraction <= 0 || u.IdealFraction > 100 {
		return fmt.Errorf("ideal_fraction must be in (0, 100]")
	}
	if u.TaxID == "" {
		return fmt.Errorf("tax_id is required")
	}
	return nil
}

// Type distinguishes ordinary from extraordinary assemblies
type Type byte

const (
	TypeOrdinary Type = iota
	TypeExtraordinary
)

func (t Type) String() string {
	switch t {
	case TypeOrdinary:
		return "ordinary"
	case TypeExtraordinary:
		return "extraordinary"
	default:
		return "unknown"
	}
}

// TypeFromString converts a string to a Type
func TypeFromString(s string) (Type, bool) {
	switch s {
	case "ordinary":
		return TypeOrdinary, true
	case "extraordinary":
		return TypeExtraordinary, true
	default:
		return TypeOrdinary, false
	}
}

// MarshalJSON implements the json.Marshaler interface
func (t Type) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (t *Type) UnmarshalJSON(data []byte) error {
	parsed, valid := TypeFromString(unquote(data))
	if !valid {
		return fmt.Errorf("invalid assembly type: %s", data)
	}
	*t = parsed
	return nil
}

// Scan implements the sql.Scanner interface for database deserialization
func (t *Type) Scan(value interface{}) error {
	str, err := scanString(value)
	if err != nil {
		return fmt.Errorf("cannot scan %T into assembly.Type", value)
	}
	parsed, valid := TypeFromString(str)
	if !valid {
		return fmt.Errorf("invalid assembly type value: %s", str)
	}
	*t = parsed
	return nil
}

// Value implements the driver.Valuer interface for database serialization
func (t Type) Value() (driver.Value, error) {
	return t.String(), nil
}

// Status represents the lifecycle state of an assembly
type Status byte

const (
	StatusDraft Status = iota
	StatusInProgress
	StatusFinished
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusInProgress:
		return "in_progress"
	case StatusFinished:
		return "finished"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// StatusFromString converts a string to a Status
func StatusFromString(s string) (Status, bool) {
	switch s {
	case "draft":
		return StatusDraft, true
	case "in_progress":
		return StatusInProgress, true
	case "finished":
		return StatusFinished, true
	case "cancelled":
		return StatusCancelled, true
	default:
		return StatusDraft, false
	}
}

// MarshalJSON implements the json.Marshaler interface
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (s *Status) UnmarshalJSON(data []byte) error {
	parsed, valid := StatusFromString(unquote(data))
	if !valid {
		return fmt.Errorf("invalid assembly status: %s", data)
	}
	*s = parsed
	return nil
}

// Scan implements the sql.Scanner interface for database deserialization
func (s *Status) Scan(value interface{}) error {
	if value == nil {
		*s = StatusDraft
		return nil
	}
	str, err := scanString(value)
	if err != nil {
		return fmt.Errorf("cannot scan %T into assembly.Status", value)
	}
	parsed, valid := StatusFromString(str)
	if !valid {
		return fmt.Errorf("invalid assembly status value: %s", str)
	}
	*s = parsed
	return nil
}

// Value implements the driver.Valuer interface for database serialization
func (s Status) Value() (driver.Value, error) {
	return s.String(), nil
}

func unquote(data []byte) string {
	str := string(data)
	if len(str) >= 2 && str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}
	return str
}

func scanString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("unsupported type %T", value)
	}
}
