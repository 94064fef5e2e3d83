package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/schoolerp/backend/internal/domain/tuition"
	"github.com/shopspring/decimal"
)

// FeeStructureModel is the persistence model for the FeeStructure aggregate root.
// One row per class per session; the storage key is the slash-free composite
// of the two and stays unique alongside the column pair itself.
type FeeStructureModel struct {
	AggregateModel
	StorageKey string              `gorm:"type:varchar(120);not null;uniqueIndex"`
	ClassID    string              `gorm:"type:varchar(50);not null;uniqueIndex:idx_fee_structures_class_session,priority:1"`
	Session    valueobject.Session `gorm:"type:varchar(9);not null;uniqueIndex:idx_fee_structures_class_session,priority:2;index"`
	Lines      tuition.FeeLines    `gorm:"type:jsonb;not null;default:'[]'"`
	Total      decimal.Decimal     `gorm:"type:decimal(14,2);not null"`
}

// TableName returns the table name for GORM
func (FeeStructureModel) TableName() string {
	return "fee_structures"
}

// ToDomain converts the persistence model to a domain FeeStructure entity.
func (m *FeeStructureModel) ToDomain() *tuition.FeeStructure {
	return &tuition.FeeStructure{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		ClassID:           m.ClassID,
		Session:           m.Session,
		Lines:             m.Lines,
		Total:             m.Total,
	}
}

// FromDomain populates the persistence model from a domain FeeStructure entity.
func (m *FeeStructureModel) FromDomain(fs *tuition.FeeStructure) {
	m.FromDomainAggregateRoot(fs.BaseAggregateRoot)
	m.StorageKey = fs.StorageKey()
	m.ClassID = fs.ClassID
	m.Session = fs.Session
	m.Lines = fs.Lines
	m.Total = fs.Total
}

// FeeStructureModelFromDomain creates a new persistence model from a domain FeeStructure.
func FeeStructureModelFromDomain(fs *tuition.FeeStructure) *FeeStructureModel {
	m := &FeeStructureModel{}
	m.FromDomain(fs)
	return m
}

// PaymentSummaryModel is the persistence model for the PaymentSummary aggregate
// root. The ledger key is unique, so a concurrent first payment for the same
// pupil-session-term fails the insert instead of creating a duplicate account.
type PaymentSummaryModel struct {
	AggregateModel
	LedgerKey     string                `gorm:"type:varchar(100);not null;uniqueIndex"`
	PupilID       uuid.UUID             `gorm:"type:uuid;not null;index:idx_payment_summaries_pupil_session,priority:1"`
	ClassID       string                `gorm:"type:varchar(50);not null;index"`
	Session       valueobject.Session   `gorm:"type:varchar(9);not null;index:idx_payment_summaries_pupil_session,priority:2;index:idx_payment_summaries_session_term,priority:1"`
	Term          valueobject.Term      `gorm:"type:smallint;not null;index:idx_payment_summaries_session_term,priority:2"`
	AmountDue     decimal.Decimal       `gorm:"type:decimal(14,2);not null"`
	Arrears       decimal.Decimal       `gorm:"type:decimal(14,2);not null"`
	ArrearsSource tuition.ArrearsSource `gorm:"type:varchar(20);not null;default:'none'"`
	TotalDue      decimal.Decimal       `gorm:"type:decimal(14,2);not null"`
	TotalPaid     decimal.Decimal       `gorm:"type:decimal(14,2);not null"`
	Balance       decimal.Decimal       `gorm:"type:decimal(14,2);not null;index"`
	Status        tuition.PaymentStatus `gorm:"type:varchar(30);not null;index"`
	LastPaymentAt *time.Time
}

// TableName returns the table name for GORM
func (PaymentSummaryModel) TableName() string {
	return "payment_summaries"
}

// ToDomain converts the persistence model to a domain PaymentSummary entity.
func (m *PaymentSummaryModel) ToDomain() *tuition.PaymentSummary {
	return &tuition.PaymentSummary{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		PupilID:           m.PupilID,
		ClassID:           m.ClassID,
		Session:           m.Session,
		Term:              m.Term,
		AmountDue:         m.AmountDue,
		Arrears:           m.Arrears,
		ArrearsSource:     m.ArrearsSource,
		TotalDue:          m.TotalDue,
		TotalPaid:         m.TotalPaid,
		Balance:           m.Balance,
		Status:            m.Status,
		LastPaymentAt:     m.LastPaymentAt,
	}
}

// FromDomain populates the persistence model from a domain PaymentSummary entity.
func (m *PaymentSummaryModel) FromDomain(s *tuition.PaymentSummary) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.LedgerKey = s.LedgerKey()
	m.PupilID = s.PupilID
	m.ClassID = s.ClassID
	m.Session = s.Session
	m.Term = s.Term
	m.AmountDue = s.AmountDue
	m.Arrears = s.Arrears
	m.ArrearsSource = s.ArrearsSource
	m.TotalDue = s.TotalDue
	m.TotalPaid = s.TotalPaid
	m.Balance = s.Balance
	m.Status = s.Status
	m.LastPaymentAt = s.LastPaymentAt
}

// PaymentSummaryModelFromDomain creates a new persistence model from a domain PaymentSummary.
func PaymentSummaryModelFromDomain(s *tuition.PaymentSummary) *PaymentSummaryModel {
	m := &PaymentSummaryModel{}
	m.FromDomain(s)
	return m
}

// PaymentTransactionModel is the persistence model for the PaymentTransaction
// entity. Rows are inserted once and never updated.
type PaymentTransactionModel struct {
	BaseModel
	ReceiptNo          string                `gorm:"type:varchar(50);not null;uniqueIndex"`
	PupilID            uuid.UUID             `gorm:"type:uuid;not null;index:idx_payment_transactions_pupil_session,priority:1"`
	PupilName          string                `gorm:"type:varchar(120);not null"`
	ClassID            string                `gorm:"type:varchar(50);not null;index"`
	Session            valueobject.Session   `gorm:"type:varchar(9);not null;index:idx_payment_transactions_pupil_session,priority:2"`
	Term               valueobject.Term      `gorm:"type:smallint;not null"`
	AmountDue          decimal.Decimal       `gorm:"type:decimal(14,2);not null"`
	Arrears            decimal.Decimal       `gorm:"type:decimal(14,2);not null"`
	TotalDue           decimal.Decimal       `gorm:"type:decimal(14,2);not null"`
	AmountPaid         decimal.Decimal       `gorm:"type:decimal(14,2);not null"`
	ArrearsPayment     decimal.Decimal       `gorm:"type:decimal(14,2);not null"`
	CurrentTermPayment decimal.Decimal       `gorm:"type:decimal(14,2);not null"`
	TotalPaidBefore    decimal.Decimal       `gorm:"type:decimal(14,2);not null"`
	TotalPaidAfter     decimal.Decimal       `gorm:"type:decimal(14,2);not null"`
	BalanceBefore      decimal.Decimal       `gorm:"type:decimal(14,2);not null"`
	BalanceAfter       decimal.Decimal       `gorm:"type:decimal(14,2);not null"`
	StatusAfter        tuition.PaymentStatus `gorm:"type:varchar(30);not null"`
	Method             tuition.PaymentMethod `gorm:"type:varchar(20);not null;index"`
	Notes              string                `gorm:"type:text"`
	RecordedBy         string                `gorm:"type:varchar(120);not null"`
	PaidAt             time.Time             `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (PaymentTransactionModel) TableName() string {
	return "payment_transactions"
}

// ToDomain converts the persistence model to a domain PaymentTransaction entity.
func (m *PaymentTransactionModel) ToDomain() *tuition.PaymentTransaction {
	return &tuition.PaymentTransaction{
		BaseEntity:         m.BaseModel.ToDomain(),
		ReceiptNo:          m.ReceiptNo,
		PupilID:            m.PupilID,
		PupilName:          m.PupilName,
		ClassID:            m.ClassID,
		Session:            m.Session,
		Term:               m.Term,
		AmountDue:          m.AmountDue,
		Arrears:            m.Arrears,
		TotalDue:           m.TotalDue,
		AmountPaid:         m.AmountPaid,
		ArrearsPayment:     m.ArrearsPayment,
		CurrentTermPayment: m.CurrentTermPayment,
		TotalPaidBefore:    m.TotalPaidBefore,
		TotalPaidAfter:     m.TotalPaidAfter,
		BalanceBefore:      m.BalanceBefore,
		BalanceAfter:       m.BalanceAfter,
		StatusAfter:        m.StatusAfter,
		Method:             m.Method,
		Notes:              m.Notes,
		RecordedBy:         m.RecordedBy,
		PaidAt:             m.PaidAt,
	}
}

// FromDomain populates the persistence model from a domain PaymentTransaction entity.
func (m *PaymentTransactionModel) FromDomain(t *tuition.PaymentTransaction) {
	m.FromDomainBaseEntity(t.BaseEntity)
	m.ReceiptNo = t.ReceiptNo
	m.PupilID = t.PupilID
	m.PupilName = t.PupilName
	m.ClassID = t.ClassID
	m.Session = t.Session
	m.Term = t.Term
	m.AmountDue = t.AmountDue
	m.Arrears = t.Arrears
	m.TotalDue = t.TotalDue
	m.AmountPaid = t.AmountPaid
	m.ArrearsPayment = t.ArrearsPayment
	m.CurrentTermPayment = t.CurrentTermPayment
	m.TotalPaidBefore = t.TotalPaidBefore
	m.TotalPaidAfter = t.TotalPaidAfter
	m.BalanceBefore = t.BalanceBefore
	m.BalanceAfter = t.BalanceAfter
	m.StatusAfter = t.StatusAfter
	m.Method = t.Method
	m.Notes = t.Notes
	m.RecordedBy = t.RecordedBy
	m.PaidAt = t.PaidAt
}

// PaymentTransactionModelFromDomain creates a new persistence model from a domain PaymentTransaction.
func PaymentTransactionModelFromDomain(t *tuition.PaymentTransaction) *PaymentTransactionModel {
	m := &PaymentTransactionModel{}
	m.FromDomain(t)
	return m
}
