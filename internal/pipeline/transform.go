package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"go-person-etl/internal/logging"
	"go-person-etl/internal/model"
	"go-person-etl/internal/rate"
	"go-person-etl/internal/vocab"
	"go-person-etl/pkg/utils"
)

// ErrInvalidRate rejects an explicit conversion rate that is not positive.
var ErrInvalidRate = errors.New("conversion rate must be positive")

// AgeUnitYears is the length of one age unit (a lustro).
const AgeUnitYears = 5.0

// Transformations applied to every batch, reported in the validation report.
var Transformations = []string{
	"trim_and_drop_incomplete",
	"age_years_to_units",
	"income_to_target_currency",
	"localize_gender",
	"localize_illness",
	"stamp_processed_at",
}

// RateSource resolves the conversion rate for a batch.
type RateSource interface {
	Lookup(ctx context.Context) rate.Quote
}

// Transformer turns raw records into canonical records.
type Transformer struct {
	rates RateSource
	log   *zap.Logger
	now   func() time.Time
}

// NewTransformer creates a transformer. rates may be nil when every call
// supplies an explicit rate.
func NewTransformer(rates RateSource, logger *zap.Logger) *Transformer {
	return &Transformer{
		rates: rates,
		log:   logging.Component(logger, "transformer"),
		now:   time.Now,
	}
}

// Transform cleans records, resolves one rate for the whole batch, derives
// the canonical fields and validates the result. explicit overrides the
// rate source when non-nil.
//
// It fails with ErrNoData when records is empty or nothing survives cleaning.
func (t *Transformer) Transform(ctx context.Context, records []model.RawRecord, explicit *float64) ([]model.PersonRecord, *model.ValidationReport, error) {
	log := logging.FromContext(ctx, t.log)

	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: input is empty", ErrNoData)
	}

	cleaned := cleanRecords(records, log)
	dropped := len(records) - len(cleaned)
	if len(cleaned) == 0 {
		return nil, nil, fmt.Errorf("%w: all %d records were dropped during cleaning", ErrNoData, dropped)
	}

	quote, err := t.resolveRate(ctx, explicit)
	if err != nil {
		return nil, nil, err
	}

	processedAt := t.now().Truncate(time.Second)
	tracker := vocab.NewTracker()

	out := make([]model.PersonRecord, 0, len(cleaned))
	for _, c := range cleaned {
		out = append(out, model.PersonRecord{
			Name:                 c.name,
			AgeYears:             c.age,
			AgeUnits:             utils.Round2(float64(c.age) / AgeUnitYears),
			GenderOriginal:       c.gender,
			GenderLocalized:      tracker.Gender(c.gender),
			IncomeSourceCurrency: c.income,
			IncomeTargetCurrency: rate.Convert(c.income, quote.Rate),
			ConversionRateUsed:   quote.Rate,
			IllnessOriginal:      c.illness,
			IllnessLocalized:     tracker.Illness(c.illness),
			ProcessedAt:          processedAt,
		})
	}

	report := validateRecords(out)
	report.InputRecords = len(records)
	report.OutputRecords = len(out)
	report.DroppedRecords = dropped
	report.RateUsed = quote.Rate
	report.ProcessedAt = processedAt
	report.Transformations = append([]string(nil), Transformations...)

	vocabWarnings := tracker.Warnings()
	for _, w := range vocabWarnings {
		log.Warn("unmapped vocabulary", zap.String("detail", w))
	}
	report.Warnings = append(vocabWarnings, report.Warnings...)
	if dropped > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%d records dropped for missing or unparseable fields", dropped))
	}
	if quote.Source == rate.SourceFallback {
		report.Warnings = append(report.Warnings, fmt.Sprintf("exchange rate source unavailable, fallback rate %.2f used", quote.Rate))
	}
	if !quote.Valid {
		report.Warnings = append(report.Warnings, fmt.Sprintf("conversion rate %.2f outside expected range [%.0f, %.0f]", quote.Rate, rate.MinValid, rate.MaxValid))
	}

	log.Info("batch transformed",
		zap.Int("input", len(records)),
		zap.Int("output", len(out)),
		zap.Int("dropped", dropped),
		zap.Float64("rate", quote.Rate),
		zap.String("rate_source", string(quote.Source)),
		zap.Bool("valid", report.IsValid),
	)
	return out, report, nil
}

func (t *Transformer) resolveRate(ctx context.Context, explicit *float64) (rate.Quote, error) {
	if explicit != nil {
		if *explicit <= 0 {
			return rate.Quote{}, fmt.Errorf("%w: %v", ErrInvalidRate, *explicit)
		}
		return rate.Quote{
			Rate:   *explicit,
			Source: rate.SourceExplicit,
			Valid:  rate.Validate(*explicit),
			At:     t.now(),
		}, nil
	}
	if t.rates == nil {
		return rate.Quote{}, fmt.Errorf("no rate source configured and no explicit rate given")
	}
	return t.rates.Lookup(ctx), nil
}

type cleanRecord struct {
	name    string
	age     int
	gender  string
	income  float64
	illness string
}

// cleanRecords trims text fields, coerces the numeric ones and drops rows
// missing any required field.
func cleanRecords(records []model.RawRecord, log *zap.Logger) []cleanRecord {
	out := make([]cleanRecord, 0, len(records))
	for _, r := range records {
		c := cleanRecord{
			name:    strings.TrimSpace(r.Name),
			gender:  strings.TrimSpace(r.Gender),
			illness: strings.TrimSpace(r.Illness),
		}
		age, ageOK := parseAge(r.Age)
		income, incomeOK := utils.ParseNumber(r.Income)

		var missing []string
		if c.name == "" {
			missing = append(missing, FieldName)
		}
		if !ageOK {
			missing = append(missing, FieldAge)
		}
		if c.gender == "" {
			missing = append(missing, FieldGender)
		}
		if !incomeOK {
			missing = append(missing, FieldIncome)
		}
		if c.illness == "" {
			missing = append(missing, FieldIllness)
		}
		if len(missing) > 0 {
			log.Debug("record dropped", zap.Int("row", r.Row), zap.Strings("missing", missing))
			continue
		}

		c.age = age
		c.income = income
		out = append(out, c)
	}
	return out
}

// maxAge bounds ages so the int conversion is exact on every platform.
const maxAge = math.MaxInt32

// parseAge accepts whole numbers of years, including "25.0". Fractional or
// out-of-range values count as unparseable.
func parseAge(s string) (int, bool) {
	f, ok := utils.ParseNumber(s)
	if !ok || f != math.Trunc(f) || math.Abs(f) > maxAge {
		return 0, false
	}
	return int(f), true
}
