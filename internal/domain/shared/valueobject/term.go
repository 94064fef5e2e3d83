package valueobject

import "fmt"

// Term is a value object representing one of the three terms
// of an academic session, identified by ordinal 1 to 3
type Term int

const (
	FirstTerm  Term = 1
	SecondTerm Term = 2
	ThirdTerm  Term = 3
)

// TermCount is the number of terms in an academic session
const TermCount = 3

// NewTerm creates a Term from its ordinal
func NewTerm(ordinal int) (Term, error) {
	t := Term(ordinal)
	if !t.IsValid() {
		return 0, fmt.Errorf("invalid term ordinal %d, expected 1 to 3", ordinal)
	}
	return t, nil
}

// AllTerms returns the terms of a session in order
func AllTerms() []Term {
	return []Term{FirstTerm, SecondTerm, ThirdTerm}
}

// IsValid returns true for ordinals 1 to 3
func (t Term) IsValid() bool {
	return t >= FirstTerm && t <= ThirdTerm
}

// Ordinal returns the term's position in the session, 1-based
func (t Term) Ordinal() int {
	return int(t)
}

// IsFirst returns true for the first term of a session
func (t Term) IsFirst() bool {
	return t == FirstTerm
}

// IsFinal returns true for the final term of a session
func (t Term) IsFinal() bool {
	return t == ThirdTerm
}

// PreviousInSession returns the preceding term within the same session
// and false when this is the first term
func (t Term) PreviousInSession() (Term, bool) {
	if t <= FirstTerm {
		return 0, false
	}
	return t - 1, true
}

// Label returns the display name, e.g. "First Term"
func (t Term) Label() string {
	switch t {
	case FirstTerm:
		return "First Term"
	case SecondTerm:
		return "Second Term"
	case ThirdTerm:
		return "Third Term"
	default:
		return fmt.Sprintf("Term %d", int(t))
	}
}

// String returns the ordinal as a string
func (t Term) String() string {
	return fmt.Sprintf("%d", int(t))
}
