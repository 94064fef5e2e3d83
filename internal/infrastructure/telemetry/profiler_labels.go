// Package telemetry provides Pyroscope continuous profiling integration.
package telemetry

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys. Values under these keys show up as flame graph
// dimensions in the Pyroscope UI.
const (
	ProfilingLabelController    = "controller"
	ProfilingLabelRoute         = "route"
	ProfilingLabelMethod        = "method"
	ProfilingLabelOperation     = "operation"
	ProfilingLabelPaymentMethod = "payment_method"
	// ProfilingLabelRegion marks code regions inside an operation,
	// e.g. "db_query".
	ProfilingLabelRegion = "region"
)

// Ledger operation names used as profiling label values.
const (
	OperationRecordPayment      = "record_payment"
	OperationOutstandingBalance = "outstanding_balance"
	OperationResolveArrears     = "resolve_arrears"
	OperationGenerateReceipt    = "generate_receipt"
	OperationDailyCollections   = "daily_collections"
)

// MaxLabelValueLength caps label values; longer values are truncated
// before they reach Pyroscope.
const MaxLabelValueLength = 128

// HighCardinalityLabels lists label keys that sanitizeLabels drops.
// Per-pupil and per-request identifiers would explode series cardinality
// in Pyroscope. Treat the map as read-only.
var HighCardinalityLabels = map[string]bool{
	"user_id":    true,
	"pupil_id":   true,
	"request_id": true,
	"receipt_no": true,
	"trace_id":   true,
	"span_id":    true,
	"session_id": true,
}

// WithProfilingLabels runs fn with the given labels attached to the
// goroutine's profile samples. Labels are sanitized first: empty and
// high-cardinality entries are dropped, keys are normalized to
// snake_case and values truncated to MaxLabelValueLength. Label pairs
// are extracted up front, so the caller may reuse the map afterwards.
//
//	telemetry.WithProfilingLabels(ctx, telemetry.LedgerOperationLabels(
//	    telemetry.OperationRecordPayment, "bank_transfer",
//	), func(c context.Context) {
//	    // hot path
//	})
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	if pairs := sanitizeLabels(labels); len(pairs) > 0 {
		pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
		return
	}
	fn(ctx)
}

// ProfilingScope accumulates labels incrementally before running a
// function under them.
type ProfilingScope struct {
	labels map[string]string
}

// NewProfilingScope creates a scope seeded with a copy of the given
// labels. A nil map is fine.
func NewProfilingScope(labels map[string]string) *ProfilingScope {
	return &ProfilingScope{labels: cloneLabels(labels)}
}

// WithLabel adds or overwrites a single label.
func (s *ProfilingScope) WithLabel(key, value string) *ProfilingScope {
	s.labels[key] = value
	return s
}

// WithOperation sets the operation label.
func (s *ProfilingScope) WithOperation(operation string) *ProfilingScope {
	return s.WithLabel(ProfilingLabelOperation, operation)
}

// Labels returns a copy of the accumulated labels.
func (s *ProfilingScope) Labels() map[string]string {
	return cloneLabels(s.labels)
}

// Run executes fn with the accumulated labels attached.
func (s *ProfilingScope) Run(ctx context.Context, fn func(context.Context)) {
	WithProfilingLabels(ctx, s.labels, fn)
}

func cloneLabels(labels map[string]string) map[string]string {
	clone := make(map[string]string, len(labels))
	maps.Copy(clone, labels)
	return clone
}

// sanitizeLabels flattens a label map into the alternating key/value
// slice pprof expects, in sorted key order so output is deterministic.
func sanitizeLabels(labels map[string]string) []string {
	pairs := make([]string, 0, len(labels)*2)
	for _, key := range slices.Sorted(maps.Keys(labels)) {
		value := labels[key]
		if value == "" || HighCardinalityLabels[key] {
			continue
		}
		if len(value) > MaxLabelValueLength {
			value = value[:MaxLabelValueLength]
		}
		if key = sanitizeLabelKey(key); key != "" {
			pairs = append(pairs, key, value)
		}
	}
	return pairs
}

// sanitizeLabelKey normalizes a label key to snake_case, dropping any
// character that is not [a-z0-9_].
func sanitizeLabelKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z':
			return r + 'a' - 'A'
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r == ' ', r == '-':
			return '_'
		}
		return -1
	}, key)
}

// HTTPRequestLabels builds the standard label set for HTTP request
// profiling. Empty fields are omitted.
func HTTPRequestLabels(controller, route, method string) map[string]string {
	labels := make(map[string]string, 3)
	for key, value := range map[string]string{
		ProfilingLabelController: controller,
		ProfilingLabelRoute:      route,
		ProfilingLabelMethod:     method,
	} {
		if value != "" {
			labels[key] = value
		}
	}
	return labels
}

// OperationLabels builds labels for a named operation plus any extras.
func OperationLabels(operation string, extraLabels map[string]string) map[string]string {
	return taggedLabels(ProfilingLabelOperation, operation, extraLabels)
}

// LedgerOperationLabels builds labels for a ledger operation, optionally
// tagged with the payment method being processed.
func LedgerOperationLabels(operation, paymentMethod string) map[string]string {
	labels := map[string]string{ProfilingLabelOperation: operation}
	if paymentMethod != "" {
		labels[ProfilingLabelPaymentMethod] = paymentMethod
	}
	return labels
}

// RegionLabels builds labels for a code region plus any extras.
func RegionLabels(region string, extraLabels map[string]string) map[string]string {
	return taggedLabels(ProfilingLabelRegion, region, extraLabels)
}

func taggedLabels(key, value string, extraLabels map[string]string) map[string]string {
	labels := make(map[string]string, len(extraLabels)+1)
	labels[key] = value
	maps.Copy(labels, extraLabels)
	return labels
}
