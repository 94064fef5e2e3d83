// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"strings"

	"gorm.io/gorm"
)

// GormArrearsMetricsProvider implements ArrearsMetricsProvider using GORM.
// It queries the payment_summaries table directly for aggregated metrics.
type GormArrearsMetricsProvider struct {
	db *gorm.DB
}

// NewGormArrearsMetricsProvider creates a new GormArrearsMetricsProvider.
func NewGormArrearsMetricsProvider(db *gorm.DB) *GormArrearsMetricsProvider {
	return &GormArrearsMetricsProvider{db: db}
}

// GetOwingCountByClass returns the number of pupils with an open balance
// per class for a session and term.
func (p *GormArrearsMetricsProvider) GetOwingCountByClass(ctx context.Context, session string, term int) (map[string]int64, error) {
	type result struct {
		ClassID    string `gorm:"column:class_id"`
		OwingCount int64  `gorm:"column:owing_count"`
	}

	var results []result
	err := p.db.WithContext(ctx).
		Table("payment_summaries").
		Select("class_id, COUNT(*) as owing_count").
		Where("session = ? AND term = ? AND balance > 0", session, term).
		Group("class_id").
		Find(&results).Error

	if err != nil {
		return nil, err
	}

	m := make(map[string]int64, len(results))
	for _, r := range results {
		m[r.ClassID] = r.OwingCount
	}

	return m, nil
}

// GetOutstandingTotal returns the summed open balance across all pupils
// for a session and term.
func (p *GormArrearsMetricsProvider) GetOutstandingTotal(ctx context.Context, session string, term int) (float64, error) {
	var total float64
	err := p.db.WithContext(ctx).
		Table("payment_summaries").
		Select("COALESCE(SUM(balance), 0)").
		Where("session = ? AND term = ? AND balance > 0", session, term).
		Scan(&total).Error

	return total, err
}

// GormPeriodProvider implements PeriodProvider using GORM. It reads the
// active session and term from the school settings row.
type GormPeriodProvider struct {
	db *gorm.DB
}

// NewGormPeriodProvider creates a new GormPeriodProvider.
func NewGormPeriodProvider(db *gorm.DB) *GormPeriodProvider {
	return &GormPeriodProvider{db: db}
}

// GetCurrentPeriod returns the active session and term.
func (p *GormPeriodProvider) GetCurrentPeriod(ctx context.Context) (string, int, error) {
	type result struct {
		CurrentSession string `gorm:"column:current_session"`
		CurrentTerm    int    `gorm:"column:current_term"`
	}

	var r result
	err := p.db.WithContext(ctx).
		Table("school_settings").
		Select("current_session, current_term").
		Limit(1).
		Scan(&r).Error
	if err != nil {
		return "", 0, err
	}

	return strings.TrimSpace(r.CurrentSession), r.CurrentTerm, nil
}
