package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// sessionPattern matches the canonical academic session label, e.g. "2023/2024"
var sessionPattern = regexp.MustCompile(`^(\d{4})/(\d{4})$`)

// Session is a value object representing an academic session
// spanning two consecutive calendar years, e.g. "2023/2024"
type Session struct {
	startYear int
}

// NewSession creates a Session starting in the given calendar year
func NewSession(startYear int) (Session, error) {
	if startYear < 1900 || startYear > 2999 {
		return Session{}, fmt.Errorf("session start year out of range: %d", startYear)
	}
	return Session{startYear: startYear}, nil
}

// ParseSession parses a canonical session label ("2023/2024")
// The two years must be consecutive
func ParseSession(label string) (Session, error) {
	m := sessionPattern.FindStringSubmatch(label)
	if m == nil {
		return Session{}, fmt.Errorf("invalid session label %q, expected YYYY/YYYY", label)
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	if end != start+1 {
		return Session{}, fmt.Errorf("invalid session label %q, years must be consecutive", label)
	}
	return NewSession(start)
}

// ParseSessionStorageKey parses the slash-free storage form ("2023-2024")
// It is the exact inverse of StorageKey
func ParseSessionStorageKey(key string) (Session, error) {
	return ParseSession(strings.Replace(key, "-", "/", 1))
}

// StartYear returns the first calendar year of the session
func (s Session) StartYear() int {
	return s.startYear
}

// EndYear returns the second calendar year of the session
func (s Session) EndYear() int {
	return s.startYear + 1
}

// Previous returns the session immediately before this one
func (s Session) Previous() Session {
	return Session{startYear: s.startYear - 1}
}

// Next returns the session immediately after this one
func (s Session) Next() Session {
	return Session{startYear: s.startYear + 1}
}

// IsZero returns true for the zero-value Session
func (s Session) IsZero() bool {
	return s.startYear == 0
}

// String returns the canonical label, e.g. "2023/2024"
func (s Session) String() string {
	return fmt.Sprintf("%04d/%04d", s.startYear, s.startYear+1)
}

// StorageKey returns the slash-free form used in composite keys,
// e.g. "2023-2024". ParseSessionStorageKey is the exact inverse
func (s Session) StorageKey() string {
	return fmt.Sprintf("%04d-%04d", s.startYear, s.startYear+1)
}

// Equals returns true if both sessions cover the same years
func (s Session) Equals(other Session) bool {
	return s.startYear == other.startYear
}

// Before returns true if this session precedes the other
func (s Session) Before(other Session) bool {
	return s.startYear < other.startYear
}

// After returns true if this session follows the other
func (s Session) After(other Session) bool {
	return s.startYear > other.startYear
}

// MarshalJSON implements json.Marshaler using the canonical label
func (s Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler from the canonical label
func (s *Session) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	parsed, err := ParseSession(label)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value implements driver.Valuer, storing the canonical label
func (s Session) Value() (driver.Value, error) {
	return s.String(), nil
}

// Scan implements sql.Scanner from the canonical label
func (s *Session) Scan(value any) error {
	if value == nil {
		*s = Session{}
		return nil
	}
	var label string
	switch v := value.(type) {
	case string:
		label = v
	case []byte:
		label = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Session", value)
	}
	parsed, err := ParseSession(label)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
