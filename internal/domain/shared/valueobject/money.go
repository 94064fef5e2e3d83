package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 currency code.
type Currency string

// NGN is the Nigerian Naira, the only currency fees are billed in.
const NGN Currency = "NGN"

// DefaultCurrency is assumed wherever stored amounts carry no currency.
const DefaultCurrency = NGN

// Money is an immutable amount in a single currency. All operations
// return new values.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney builds a Money, rejecting an empty currency.
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{amount: amount, currency: currency}, nil
}

// NewMoneyNGN builds a Naira amount.
func NewMoneyNGN(amount decimal.Decimal) Money {
	return Money{amount: amount, currency: NGN}
}

// Zero is the zero amount in the given currency.
func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// ZeroNGN is the zero Naira amount.
func ZeroNGN() Money {
	return Zero(NGN)
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() Currency      { return m.currency }
func (m Money) IsZero() bool            { return m.amount.IsZero() }
func (m Money) IsPositive() bool        { return m.amount.IsPositive() }
func (m Money) IsNegative() bool        { return m.amount.IsNegative() }

// sameCurrency guards arithmetic between Money values; mixing
// currencies is always a programming error in this system
func (m Money) sameCurrency(other Money, op string) error {
	if m.currency != other.currency {
		return fmt.Errorf("cannot %s money with different currencies: %s and %s", op, m.currency, other.currency)
	}
	return nil
}

// Add sums two amounts of the same currency.
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other, "add"); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// MustAdd is Add for callers that have already checked the currencies.
func (m Money) MustAdd(other Money) Money {
	sum, err := m.Add(other)
	if err != nil {
		panic(err)
	}
	return sum
}

// CalculatePercentage scales the amount by percent/100. Negative
// percentages are allowed and yield a negative result.
func (m Money) CalculatePercentage(percent decimal.Decimal) Money {
	return Money{
		amount:   m.amount.Mul(percent).Div(decimal.NewFromInt(100)),
		currency: m.currency,
	}
}

// ClampNonNegative floors a negative amount at zero, keeping the
// currency.
func (m Money) ClampNonNegative() Money {
	if m.amount.IsNegative() {
		return Zero(m.currency)
	}
	return m
}

// Equals reports whether amount and currency both match.
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

func (m Money) String() string {
	return m.amount.StringFixed(2) + " " + string(m.currency)
}

// StringFixed renders the amount with the given number of decimal
// places.
func (m Money) StringFixed(places int32) string {
	return m.amount.StringFixed(places)
}

// moneyJSON is the wire shape; amounts travel as strings so no
// precision is lost in transit
type moneyJSON struct {
	Amount   string   `json:"amount"`
	Currency Currency `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.amount.String(), Currency: m.currency})
}

// UnmarshalJSON assigns fields directly without factory validation; an
// empty currency is tolerated here and surfaces on first use.
func (m *Money) UnmarshalJSON(data []byte) error {
	var wire moneyJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	amount, err := decimal.NewFromString(wire.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	*m = Money{amount: amount, currency: wire.Currency}
	return nil
}

// Value stores the bare amount; the column carries no currency.
func (m Money) Value() (driver.Value, error) {
	return m.amount.String(), nil
}

// Scan reads the bare amount back. The currency defaults to
// DefaultCurrency unless already set on the receiver.
func (m *Money) Scan(value any) error {
	var amount decimal.Decimal
	switch v := value.(type) {
	case nil:
		amount = decimal.Zero
	case float64:
		amount = decimal.NewFromFloat(v)
	case string, []byte:
		text, ok := v.(string)
		if !ok {
			text = string(v.([]byte))
		}
		parsed, err := decimal.NewFromString(text)
		if err != nil {
			return fmt.Errorf("invalid decimal value: %w", err)
		}
		amount = parsed
	default:
		return fmt.Errorf("cannot scan %T into Money", value)
	}

	m.amount = amount
	if m.currency == "" {
		m.currency = DefaultCurrency
	}
	return nil
}
