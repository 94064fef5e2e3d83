package tuition

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// FeeLine is one itemized component of a class fee, e.g. tuition,
// development levy, PTA dues
type FeeLine struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// FeeLines is a slice of FeeLine that implements GORM Scanner/Valuer for JSONB storage
type FeeLines []FeeLine

// Value implements driver.Valuer interface for GORM to store as JSONB
func (f FeeLines) Value() (driver.Value, error) {
	if f == nil {
		return "[]", nil
	}
	return json.Marshal(f)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (f *FeeLines) Scan(value interface{}) error {
	if value == nil {
		*f = FeeLines{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan FeeLines: unsupported type")
	}

	if len(bytes) == 0 {
		*f = FeeLines{}
		return nil
	}

	return json.Unmarshal(bytes, f)
}

// Total sums all line amounts
func (f FeeLines) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range f {
		total = total.Add(line.Amount)
	}
	return total
}

// Validate checks every line has a name and a non-negative amount
func (f FeeLines) Validate() error {
	if len(f) == 0 {
		return shared.NewDomainError("INVALID_FEE_LINES", "Fee structure must have at least one fee line")
	}
	seen := make(map[string]bool, len(f))
	for _, line := range f {
		if line.Name == "" {
			return shared.NewDomainError("INVALID_FEE_LINES", "Fee line name cannot be empty")
		}
		if line.Amount.IsNegative() {
			return shared.NewDomainError("INVALID_FEE_LINES", fmt.Sprintf("Fee line %q cannot have a negative amount", line.Name))
		}
		if seen[line.Name] {
			return shared.NewDomainError("INVALID_FEE_LINES", fmt.Sprintf("Duplicate fee line %q", line.Name))
		}
		seen[line.Name] = true
	}
	return nil
}

// FeeStructure defines the base fee for one class in one session.
// The total is fixed when the structure is created or edited by an
// administrator; it is never re-derived from payment history
type FeeStructure struct {
	shared.BaseAggregateRoot
	ClassID string              `json:"class_id"`
	Session valueobject.Session `json:"session"`
	Lines   FeeLines            `json:"lines"`
	Total   decimal.Decimal     `json:"total"`
}

// NewFeeStructure creates a fee structure for a class and session
func NewFeeStructure(classID string, session valueobject.Session, lines FeeLines) (*FeeStructure, error) {
	if classID == "" {
		return nil, shared.NewDomainError("INVALID_CLASS", "Class ID cannot be empty")
	}
	if len(classID) > 50 {
		return nil, shared.NewDomainError("INVALID_CLASS", "Class ID cannot exceed 50 characters")
	}
	if session.IsZero() {
		return nil, shared.NewDomainError("INVALID_SESSION", "Session is required")
	}
	if err := lines.Validate(); err != nil {
		return nil, err
	}

	fs := &FeeStructure{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ClassID:           classID,
		Session:           session,
		Lines:             lines,
		Total:             lines.Total(),
	}

	fs.AddDomainEvent(NewFeeStructureDefinedEvent(fs))

	return fs, nil
}

// UpdateLines replaces the itemized breakdown and recomputes the total
func (fs *FeeStructure) UpdateLines(lines FeeLines) error {
	if err := lines.Validate(); err != nil {
		return err
	}

	fs.Lines = lines
	fs.Total = lines.Total()
	fs.Touch()
	fs.IncrementVersion()

	fs.AddDomainEvent(NewFeeStructureUpdatedEvent(fs))

	return nil
}

// StorageKey returns the canonical slash-free key for this structure,
// e.g. "fee_JSS1A_2023-2024"
func (fs *FeeStructure) StorageKey() string {
	return FeeStorageKey(fs.ClassID, fs.Session)
}

// FeeStorageKey builds the canonical fee structure key from its parts
func FeeStorageKey(classID string, session valueobject.Session) string {
	return fmt.Sprintf("fee_%s_%s", classID, session.StorageKey())
}

// GetTotalMoney returns the precomputed total as Money
func (fs *FeeStructure) GetTotalMoney() valueobject.Money {
	return valueobject.NewMoneyNGN(fs.Total)
}
