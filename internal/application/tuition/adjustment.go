package tuition

import (
	"github.com/schoolerp/backend/internal/domain/enrollment"
	"github.com/schoolerp/backend/internal/domain/tuition"
)

// feeAdjustmentFor maps an enrollment record onto the fee parameters the
// pricing functions consume: the enrollment window plus any discount or
// surcharge granted to the pupil.
func feeAdjustmentFor(record *enrollment.Record) tuition.FeeAdjustment {
	return tuition.FeeAdjustment{
		AdmissionTerm: record.AdmissionTerm,
		ExitTerm:      record.ExitTerm,
		Percent:       record.FeeAdjustmentPercent,
		Amount:        record.FeeAdjustmentAmount,
	}
}
