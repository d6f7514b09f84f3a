package pipeline

import (
	"fmt"

	"go-person-etl/internal/model"
)

// Bounds checked on canonical records.
const (
	MinAgeUnits = 0.0
	MaxAgeUnits = 24.0
)

// validateRecords checks the canonical batch. Out-of-range age units are
// warnings; negative converted income is an error that clears IsValid.
func validateRecords(records []model.PersonRecord) *model.ValidationReport {
	report := &model.ValidationReport{
		IsValid:    true,
		Errors:     []string{},
		Warnings:   []string{},
		Statistics: computeStatistics(records),
	}

	var missing, ageOut, negIncome int
	for _, r := range records {
		if r.Name == "" || r.GenderLocalized == "" || r.IllnessLocalized == "" || r.ProcessedAt.IsZero() {
			missing++
		}
		if r.AgeUnits < MinAgeUnits || r.AgeUnits > MaxAgeUnits {
			ageOut++
		}
		if r.IncomeTargetCurrency < 0 {
			negIncome++
		}
	}

	if missing > 0 {
		report.IsValid = false
		report.Errors = append(report.Errors, fmt.Sprintf("%d records missing required output fields", missing))
	}
	if negIncome > 0 {
		report.IsValid = false
		report.Errors = append(report.Errors, fmt.Sprintf("%d records with negative income_target_currency", negIncome))
	}
	if ageOut > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("%d records with age_units outside [%.0f, %.0f]", ageOut, MinAgeUnits, MaxAgeUnits))
	}
	return report
}
