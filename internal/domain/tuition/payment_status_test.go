package tuition

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPaymentStatus_IsValid(t *testing.T) {
	tests := []struct {
		status  PaymentStatus
		isValid bool
	}{
		{StatusPaid, true},
		{StatusPartial, true},
		{StatusOwing, true},
		{StatusOwingWithArrears, true},
		{PaymentStatus("INVALID"), false},
		{PaymentStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.isValid, tt.status.IsValid())
		})
	}
}

func TestPaymentStatus_String(t *testing.T) {
	assert.Equal(t, "paid", StatusPaid.String())
	assert.Equal(t, "owing_with_arrears", StatusOwingWithArrears.String())
}

func TestDerivePaymentStatus(t *testing.T) {
	d := func(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

	tests := []struct {
		name      string
		totalPaid decimal.Decimal
		balance   decimal.Decimal
		arrears   decimal.Decimal
		expected  PaymentStatus
	}{
		{"cleared balance with payment is paid", d(50000), d(0), d(0), StatusPaid},
		{"cleared balance with payment wins over arrears", d(60000), d(0), d(10000), StatusPaid},
		{"payment with open balance is partial", d(30000), d(20000), d(0), StatusPartial},
		{"partial wins over arrears", d(5000), d(30000), d(10000), StatusPartial},
		{"nothing paid with arrears", d(0), d(35000), d(10000), StatusOwingWithArrears},
		{"nothing paid without arrears", d(0), d(50000), d(0), StatusOwing},
		{"nothing due and nothing paid", d(0), d(0), d(0), StatusOwing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DerivePaymentStatus(tt.totalPaid, tt.balance, tt.arrears))
		})
	}
}
