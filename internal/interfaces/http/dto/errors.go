package dto

import "net/http"

// Wire error codes, ERR_<CATEGORY> form. This is the catalog the admin
// console switches on, so codes are append-only.
const (
	ErrCodeInternal = "ERR_INTERNAL"

	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"

	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"

	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"

	// Ledger business rules
	ErrCodeInvalidState           = "ERR_INVALID_STATE"
	ErrCodeBusinessRule           = "ERR_BUSINESS_RULE"
	ErrCodeOverpayment            = "ERR_OVERPAYMENT"
	ErrCodeDuplicatePayment       = "ERR_DUPLICATE_PAYMENT"
	ErrCodeNoFeeStructure         = "ERR_NO_FEE_STRUCTURE"
	ErrCodePupilNotEnrolled       = "ERR_PUPIL_NOT_ENROLLED"
	ErrCodeSettingsNotInitialized = "ERR_SETTINGS_NOT_INITIALIZED"

	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes. Populated
// from statusClasses at init.
var ErrorCodeHTTPStatus = map[string]int{}

// statusClasses groups the catalog by response status. Business rule
// breaches are 422, except duplicate payments which conflict with an
// earlier submission.
var statusClasses = map[int][]string{
	http.StatusInternalServerError: {ErrCodeInternal},
	http.StatusBadRequest:          {ErrCodeValidation, ErrCodeBadRequest, ErrCodeInvalidInput},
	http.StatusUnauthorized:        {ErrCodeUnauthorized, ErrCodeTokenExpired},
	http.StatusForbidden:           {ErrCodeForbidden},
	http.StatusNotFound:            {ErrCodeNotFound},
	http.StatusConflict: {
		ErrCodeAlreadyExists, ErrCodeConflict, ErrCodeConcurrencyConflict,
		ErrCodeDuplicatePayment,
	},
	http.StatusUnprocessableEntity: {
		ErrCodeInvalidState, ErrCodeBusinessRule, ErrCodeOverpayment,
		ErrCodeNoFeeStructure, ErrCodePupilNotEnrolled, ErrCodeSettingsNotInitialized,
	},
	http.StatusTooManyRequests: {ErrCodeRateLimited},
}

func init() {
	for status, codes := range statusClasses {
		for _, code := range codes {
			ErrorCodeHTTPStatus[code] = status
		}
	}
	for _, code := range validationDomainCodes {
		DomainErrorCodeMapping[code] = ErrCodeValidation
	}
}

// GetHTTPStatus returns the HTTP status for a wire error code, falling
// back to 500 for anything outside the catalog.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to their HTTP-facing
// standardized codes. Domain code strings stay close to the business
// language; the HTTP surface exposes the ERR_* catalog above.
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":         ErrCodeNotFound,
	"RECEIPT_NOT_FOUND": ErrCodeNotFound,

	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"FEE_STRUCTURE_EXISTS": ErrCodeAlreadyExists,
	"ALREADY_ENROLLED":     ErrCodeAlreadyExists,
	"SETTINGS_EXIST":       ErrCodeAlreadyExists,

	"CONCURRENCY_CONFLICT":  ErrCodeConcurrencyConflict,
	"OPTIMISTIC_LOCK_ERROR": ErrCodeConcurrencyConflict,

	"OVERPAYMENT":              ErrCodeOverpayment,
	"EXCEEDS_OUTSTANDING":      ErrCodeOverpayment,
	"DUPLICATE_PAYMENT":        ErrCodeDuplicatePayment,
	"NO_FEE_STRUCTURE":         ErrCodeNoFeeStructure,
	"PUPIL_NOT_ENROLLED":       ErrCodePupilNotEnrolled,
	"SETTINGS_NOT_INITIALIZED": ErrCodeSettingsNotInitialized,

	"VALIDATION_ERROR": ErrCodeValidation,
	"INVALID_INPUT":    ErrCodeInvalidInput,
	"INVALID_STATE":    ErrCodeInvalidState,
	"BAD_REQUEST":      ErrCodeBadRequest,

	"UNAUTHORIZED": ErrCodeUnauthorized,
	"FORBIDDEN":    ErrCodeForbidden,

	// Split and summary invariant breaches are bugs, not user errors
	"INCONSISTENT_SPLIT": ErrCodeInternal,
	"INVALID_SPLIT":      ErrCodeInternal,
	"INVALID_SUMMARY":    ErrCodeInternal,
	"INTERNAL_ERROR":     ErrCodeInternal,
}

// validationDomainCodes are the domain codes raised by value object
// constructors; they all normalize to ERR_VALIDATION.
var validationDomainCodes = []string{
	"INVALID_SESSION",
	"INVALID_TERM",
	"INVALID_AMOUNT",
	"INVALID_CLASS",
	"INVALID_PUPIL",
	"INVALID_PUPIL_NAME",
	"INVALID_FEE_LINES",
	"INVALID_METHOD",
	"INVALID_RECEIPT",
	"INVALID_RECORDER",
	"INVALID_SCHOOL_NAME",
	"INVALID_ADJUSTMENT",
	"INVALID_STORAGE_KEY",
}

// NormalizeErrorCode converts a domain error code to the standardized format
// If the code is already in the new format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
