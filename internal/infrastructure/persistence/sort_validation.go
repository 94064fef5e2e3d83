package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "ASC") {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	if trimmed := strings.TrimSpace(sortField); allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// sortFields builds a whitelist from the base columns every table carries
// plus the listed entity-specific ones. Sort expressions are interpolated
// into ORDER BY, so only whitelisted names ever reach the query.
func sortFields(names ...string) map[string]bool {
	fields := map[string]bool{"id": true, "created_at": true, "updated_at": true}
	for _, name := range names {
		fields[name] = true
	}
	return fields
}

// FeeStructureSortFields contains allowed sort fields for fee structures
var FeeStructureSortFields = sortFields("class_id", "session", "total")

// EnrollmentRecordSortFields contains allowed sort fields for enrollment records
var EnrollmentRecordSortFields = sortFields(
	"pupil_name", "class_id", "session", "admission_term", "exit_term",
)

// PaymentSummarySortFields contains allowed sort fields for payment summaries
var PaymentSummarySortFields = sortFields(
	"class_id", "session", "term",
	"amount_due", "arrears", "total_due", "total_paid", "balance",
	"status", "last_payment_at",
)

// PaymentTransactionSortFields contains allowed sort fields for payment transactions
var PaymentTransactionSortFields = sortFields(
	"receipt_no", "pupil_name", "class_id", "session", "term",
	"amount_paid", "method", "recorded_by", "paid_at",
)
