package agenda

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Agenda is a single deliberation item of an assembly. Its lifecycle is a
// one-way state machine: pending -> open -> closed, with cancellation
// possible before closing. Reopening is not supported.
type Agenda struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	AssemblyID   uint       `json:"assembly_id" gorm:"not null;index"`
	Title        string     `json:"title" gorm:"size:255;not null"`
	Description  string     `json:"description" gorm:"type:text"`
	DisplayOrder int        `json:"display_order" gorm:"not null;default:0"`
	Status       Status     `json:"status" gorm:"type:varchar(20);not null"`
	OpenedAt     *time.Time `json:"opened_at"`
	ClosedAt     *time.Time `json:"closed_at"`
	Options      []Option   `json:"options" gorm:"foreignKey:AgendaID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// Option is one of the answers voters choose from on an agenda item
type Option struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	AgendaID     uint   `json:"agenda_id" gorm:"not null;uniqueIndex:uq_agenda_option_order,priority:1"`
	OptionText   string `json:"option_text" gorm:"size:255;not null"`
	DisplayOrder int    `json:"display_order" gorm:"not null;uniqueIndex:uq_agenda_option_order,priority:2"`
}

// TableName overrides the table name
func (Agenda) TableName() string {
	return "agendas"
}

// TableName overrides the table name
func (Option) TableName() string {
	return "agenda_options"
}

// New creates a pending agenda with its options in display order
func New(assemblyID uint, title, description string, displayOrder int, optionTexts []string) *Agenda {
	item := &Agenda{
		AssemblyID:   assemblyID,
		Title:        title,
		Description:  description,
		DisplayOrder: displayOrder,
		Status:       StatusPending,
	}
	for i, text := range optionTexts {
		item.Options = append(item.Options, Option{OptionText: text, DisplayOrder: i})
	}
	return item
}

// Validate checks if the agenda data is valid
func (a *Agenda) Validate() error {
	if a.AssemblyID == 0 {
		return fmt.Errorf("assembly_id is required")
	}
	if a.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(a.Options) < 2 {
		return fmt.Errorf("at least two options are required")
	}
	for _, option := range a.Options {
		if option.OptionText == "" {
			return fmt.Errorf("option_text is required")
		}
	}
	return nil
}

// IsOpen reports whether the agenda currently accepts votes
func (a *Agenda) IsOpen() bool {
	return a.Status == StatusOpen
}

// HasOption reports whether the given option belongs to this agenda
func (a *Agenda) HasOption(optionID uint) bool {
	for _, option := range a.Options {
		if option.ID == optionID {
			return true
		}
	}
	return false
}

// Transition moves the agenda to the target status, stamping opened_at and
// closed_at as appropriate. Timestamps are only ever set, never cleared, so
// an agenda that was opened keeps its opened_at even after cancellation.
func (a *Agenda) Transition(target Status, now time.Time) error {
	if !a.Status.CanTransitionTo(target) {
		return fmt.Errorf("cannot transition agenda from %s to %s", a.Status, target)
	}
	switch target {
	case StatusOpen:
		if a.OpenedAt == nil {
			a.OpenedAt = &now
		}
	case StatusClosed:
		if a.OpenedAt == nil {
			a.OpenedAt = &now
		}
		if a.ClosedAt == nil {
			a.ClosedAt = &now
		}
	}
	a.Status = target
	return nil
}

// Status represents the lifecycle state of an agenda item
type Status byte

const (
	StatusPending Status = iota
	StatusOpen
	StatusClosed
	StatusCancelled
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusOpen, StatusCancelled},
	StatusOpen:      {StatusClosed, StatusCancelled},
	StatusClosed:    {},
	StatusCancelled: {},
}

// CanTransitionTo reports whether the status machine allows moving to target
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// StatusFromString converts a string to a Status
func StatusFromString(s string) (Status, bool) {
	switch s {
	case "pending":
		return StatusPending, true
	case "open":
		return StatusOpen, true
	case "closed":
		return StatusClosed, true
	case "cancelled":
		return StatusCancelled, true
	default:
		return StatusPending, false
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
		return fmt.Errorf("invalid agenda status: %s", data)
	}
	*s = parsed
	return nil
}

// Scan implements the sql.Scanner interface for database deserialization
func (s *Status) Scan(value interface{}) error {
	if value == nil {
		*s = StatusPending
		return nil
	}
	var str string
	switch v := value.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	default:
		return fmt.Errorf("cannot scan %T into agenda.Status", value)
	}
	parsed, valid := StatusFromString(str)
	if !valid {
		return fmt.Errorf("invalid agenda status value: %s", str)
	}
	*s = parsed
	return nil
}

// Value implements the driver.Valuer interface for database serialization
func (s Status) Value() (driver.Value, error) {
	return s.String(), nil
}
