package model

import "time"

// ProcessedAtLayout is the fixed text layout for processing timestamps.
const ProcessedAtLayout = "2006-01-02 15:04:05"

// RawRecord is one input row as extracted, before cleaning.
// Values are kept as text; the transformer coerces them.
type RawRecord struct {
	Name    string `json:"name"`
	Age     string `json:"age"`
	Gender  string `json:"gender"`
	Income  string `json:"income"`
	Illness string `json:"illness"`
	Row     int    `json:"row"` // 1-based data row in the source
}

// PersonRecord is the canonical, fully transformed output record.
type PersonRecord struct {
	Name                 string    `json:"name"`
	AgeYears             int       `json:"age_years"`
	AgeUnits             float64   `json:"age_units"`
	GenderOriginal       string    `json:"gender_original"`
	GenderLocalized      string    `json:"gender_localized"`
	IncomeSourceCurrency float64   `json:"income_source_currency"`
	IncomeTargetCurrency float64   `json:"income_target_currency"`
	ConversionRateUsed   float64   `json:"conversion_rate_used"`
	IllnessOriginal      string    `json:"illness_original"`
	IllnessLocalized     string    `json:"illness_localized"`
	ProcessedAt          time.Time `json:"processed_at"`
}

// ProcessedAtText renders ProcessedAt in ProcessedAtLayout.
func (p PersonRecord) ProcessedAtText() string {
	return p.ProcessedAt.Format(ProcessedAtLayout)
}

// DuplicateKey identifies a record for duplicate suppression.
type DuplicateKey struct {
	Name     string
	AgeYears int
	Gender   string
	Income   float64
}

// Key returns the duplicate-suppression tuple of the record.
func (p PersonRecord) Key() DuplicateKey {
	return DuplicateKey{
		Name:     p.Name,
		AgeYears: p.AgeYears,
		Gender:   p.GenderOriginal,
		Income:   p.IncomeSourceCurrency,
	}
}

// Columns lists the canonical column order used by every tabular sink.
var Columns = []string{
	"name",
	"age_years",
	"age_units",
	"gender_original",
	"gender_localized",
	"income_source_currency",
	"income_target_currency",
	"conversion_rate_used",
	"illness_original",
	"illness_localized",
	"processed_at",
}

// StoredRecord is a PersonRecord read back from the relational store.
type StoredRecord struct {
	ID int64 `json:"id"`
	PersonRecord
	CreatedAt time.Time `json:"created_at"`
}
