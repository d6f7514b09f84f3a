package pipeline

import (
	"time"

	"go-person-etl/internal/model"
	"go-person-etl/pkg/utils"
)

// computeStatistics summarizes a canonical batch.
func computeStatistics(records []model.PersonRecord) model.Statistics {
	stats := model.Statistics{
		RecordCount:         len(records),
		GenderDistribution:  map[string]int{},
		IllnessDistribution: map[string]int{},
	}
	if len(records) == 0 {
		return stats
	}

	units := make([]float64, len(records))
	incomes := make([]float64, len(records))
	for i, r := range records {
		units[i] = r.AgeUnits
		incomes[i] = r.IncomeTargetCurrency
		stats.GenderDistribution[r.GenderLocalized]++
		stats.IllnessDistribution[r.IllnessLocalized]++
	}
	stats.AverageAgeUnits = utils.Round2(utils.Mean(units))
	stats.AverageIncomeTarget = utils.Round2(utils.Mean(incomes))
	return stats
}

// Summary is the statistics artifact written next to the data files.
type Summary struct {
	Metadata   SummaryMetadata   `json:"metadata"`
	Statistics SummaryStatistics `json:"statistics"`
}

// SummaryMetadata describes the summarized dataset.
type SummaryMetadata struct {
	GeneratedAt  time.Time `json:"generated_at"`
	TotalRecords int       `json:"total_records"`
	TotalColumns int       `json:"total_columns"`
	Columns      []string  `json:"columns"`
}

// SummaryStatistics holds per-field aggregates.
type SummaryStatistics struct {
	AgeStats            AgeStats       `json:"age_stats"`
	IncomeStats         IncomeStats    `json:"income_stats"`
	GenderDistribution  map[string]int `json:"gender_distribution"`
	IllnessDistribution map[string]int `json:"illness_distribution"`
	ConversionRateUsed  float64        `json:"conversion_rate_used"`
}

type AgeStats struct {
	AvgYears float64 `json:"avg_years"`
	AvgUnits float64 `json:"avg_units"`
	MinYears int     `json:"min_years"`
	MaxYears int     `json:"max_years"`
}

type IncomeStats struct {
	AvgSource float64 `json:"avg_source"`
	AvgTarget float64 `json:"avg_target"`
	MinSource float64 `json:"min_source"`
	MaxSource float64 `json:"max_source"`
}

// BuildSummary aggregates records into a Summary.
func BuildSummary(records []model.PersonRecord, generatedAt time.Time) Summary {
	s := Summary{
		Metadata: SummaryMetadata{
			GeneratedAt:  generatedAt,
			TotalRecords: len(records),
			TotalColumns: len(model.Columns),
			Columns:      append([]string(nil), model.Columns...),
		},
		Statistics: SummaryStatistics{
			GenderDistribution:  map[string]int{},
			IllnessDistribution: map[string]int{},
		},
	}
	if len(records) == 0 {
		return s
	}

	years := make([]float64, len(records))
	units := make([]float64, len(records))
	source := make([]float64, len(records))
	target := make([]float64, len(records))

	age := AgeStats{MinYears: records[0].AgeYears, MaxYears: records[0].AgeYears}
	inc := IncomeStats{MinSource: records[0].IncomeSourceCurrency, MaxSource: records[0].IncomeSourceCurrency}

	for i, r := range records {
		years[i] = float64(r.AgeYears)
		units[i] = r.AgeUnits
		source[i] = r.IncomeSourceCurrency
		target[i] = r.IncomeTargetCurrency

		age.MinYears = min(age.MinYears, r.AgeYears)
		age.MaxYears = max(age.MaxYears, r.AgeYears)
		inc.MinSource = min(inc.MinSource, r.IncomeSourceCurrency)
		inc.MaxSource = max(inc.MaxSource, r.IncomeSourceCurrency)

		s.Statistics.GenderDistribution[r.GenderLocalized]++
		s.Statistics.IllnessDistribution[r.IllnessLocalized]++
	}

	age.AvgYears = utils.Round2(utils.Mean(years))
	age.AvgUnits = utils.Round2(utils.Mean(units))
	inc.AvgSource = utils.Round2(utils.Mean(source))
	inc.AvgTarget = utils.Round2(utils.Mean(target))

	s.Statistics.AgeStats = age
	s.Statistics.IncomeStats = inc
	s.Statistics.ConversionRateUsed = records[0].ConversionRateUsed
	return s
}
