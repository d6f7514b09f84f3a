package pipeline

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"go-person-etl/internal/model"
	"go-person-etl/internal/vocab"
	"go-person-etl/pkg/utils"
)

var (
	// ErrNoData means the input, or what is left of it after cleaning, is empty.
	ErrNoData = errors.New("no data")
	// ErrMissingColumns means a canonical field has no matching column.
	ErrMissingColumns = errors.New("missing required columns")
	// ErrUnsupportedFormat means the input extension is not readable.
	ErrUnsupportedFormat = errors.New("unsupported input format")
)

// Input formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatJSON = "json"
)

//go:embed sample_data.csv
var sampleCSV []byte

// SampleName is the source name reported for the embedded sample dataset.
const SampleName = "sample_data.csv"

// Canonical input fields.
const (
	FieldName    = "name"
	FieldAge     = "age"
	FieldGender  = "gender"
	FieldIncome  = "income"
	FieldIllness = "illness"
)

// ColumnAliases lists, per canonical field, the accepted normalized header
// names in priority order. The first alias present in a file wins.
var ColumnAliases = []struct {
	Field   string
	Aliases []string
}{
	{FieldName, []string{"name", "nombre", "full_name"}},
	{FieldAge, []string{"age", "edad", "edad_anos", "age_years"}},
	{FieldGender, []string{"gender", "genero", "sex", "sexo"}},
	{FieldIncome, []string{"income", "ingreso", "ingreso_usd", "income_usd"}},
	{FieldIllness, []string{"illness", "enfermedad", "sick", "has_illness"}},
}

// null markers treated as missing values
var nullTokens = map[string]bool{"null": true, "n/a": true, "nan": true, "none": true}

// Extract is the output of the extract phase.
type Extract struct {
	Source   string            `json:"source"`
	Format   string            `json:"format"`
	Records  []model.RawRecord `json:"-"`
	Columns  map[string]string `json:"columns"` // canonical field -> source header
	Warnings []string          `json:"warnings,omitempty"`
}

// FormatOf maps a file extension to an input format.
func FormatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Ingest reads a person dataset from a file.
func Ingest(path string) (*Extract, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer file.Close()

	return IngestReader(file, format, path)
}

// IngestSample reads the embedded sample dataset.
func IngestSample() (*Extract, error) {
	return IngestReader(bytes.NewReader(sampleCSV), FormatCSV, SampleName)
}

// IngestReader reads a person dataset in the given format from r.
func IngestReader(r io.Reader, format, name string) (*Extract, error) {
	var (
		headers []string
		rows    [][]string
		err     error
	)
	switch format {
	case FormatCSV:
		headers, rows, err = readCSV(r)
	case FormatXLSX:
		headers, rows, err = readXLSX(r)
	case FormatJSON:
		headers, rows, err = readJSON(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	ext, err := fromTable(headers, rows)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	ext.Source = name
	ext.Format = format
	return ext, nil
}

func readCSV(r io.Reader) ([]string, [][]string, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, nil, ErrNoData
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read CSV header: %w", err)
	}
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("CSV read error: %w", err)
		}
		rows = append(rows, record)
	}
	return headers, rows, nil
}

func readXLSX(r io.Reader) ([]string, [][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, ErrNoData
	}
	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(all) == 0 {
		return nil, nil, ErrNoData
	}
	return all[0], all[1:], nil
}

// readJSON accepts an array of objects, an object with a "data" array,
// or a single object.
func readJSON(r io.Reader) ([]string, [][]string, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, nil, ErrNoData
		}
		return nil, nil, fmt.Errorf("decode JSON: %w", err)
	}

	var items []interface{}
	switch data := raw.(type) {
	case []interface{}:
		items = data
	case map[string]interface{}:
		if inner, ok := data["data"].([]interface{}); ok {
			items = inner
		} else {
			items = []interface{}{data}
		}
	default:
		return nil, nil, fmt.Errorf("unexpected JSON structure")
	}

	var headers []string
	seen := map[string]bool{}
	objects := make([]map[string]interface{}, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, nil, fmt.Errorf("element %d is not an object", i)
		}
		objects = append(objects, m)
		for k := range m {
			if !seen[k] {
				seen[k] = true
				headers = append(headers, k)
			}
		}
	}
	// object keys have no order once decoded; sort so that keys normalizing
	// to the same column always resolve the same way
	sort.Strings(headers)

	rows := make([][]string, len(objects))
	for i, m := range objects {
		row := make([]string, len(headers))
		for j, h := range headers {
			row[j] = utils.FormatValue(m[h])
		}
		rows[i] = row
	}
	return headers, rows, nil
}

// NormalizeHeader lower-cases a header and turns spaces and dashes into underscores.
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, `"`, "")
	return strings.NewReplacer(" ", "_", "-", "_").Replace(h)
}

// ResolveColumns maps each canonical field to a header index.
func ResolveColumns(headers []string) (map[string]int, error) {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		n := NormalizeHeader(h)
		if _, dup := index[n]; !dup {
			index[n] = i
		}
	}

	resolved := make(map[string]int, len(ColumnAliases))
	var missing []string
	for _, fa := range ColumnAliases {
		found := false
		for _, alias := range fa.Aliases {
			if i, ok := index[alias]; ok {
				resolved[fa.Field] = i
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, fa.Field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return resolved, nil
}

func fromTable(headers []string, rows [][]string) (*Extract, error) {
	if len(headers) == 0 {
		return nil, ErrNoData
	}
	cols, err := ResolveColumns(headers)
	if err != nil {
		return nil, err
	}

	ext := &Extract{Columns: make(map[string]string, len(cols))}
	for field, i := range cols {
		ext.Columns[field] = headers[i]
	}

	cell := func(row []string, field string) string {
		i := cols[field]
		if i >= len(row) {
			return ""
		}
		v := strings.TrimSpace(row[i])
		if nullTokens[strings.ToLower(v)] {
			return ""
		}
		return v
	}

	var chk extractChecks
	for n, row := range rows {
		rec := model.RawRecord{
			Name:    cell(row, FieldName),
			Age:     cell(row, FieldAge),
			Gender:  cell(row, FieldGender),
			Income:  cell(row, FieldIncome),
			Illness: cell(row, FieldIllness),
			Row:     n + 1,
		}
		if rec == (model.RawRecord{Row: rec.Row}) {
			chk.emptyRows++
			continue
		}
		chk.observe(rec)
		ext.Records = append(ext.Records, rec)
	}

	if len(ext.Records) == 0 {
		return nil, ErrNoData
	}
	ext.Warnings = chk.warnings()
	return ext, nil
}

// extractChecks counts advisory anomalies; none of them rejects a row.
type extractChecks struct {
	emptyRows      int
	ageOutOfRange  int
	incomeOutRange int
	unknownGender  int
	unknownIllness int
}

func (c *extractChecks) observe(rec model.RawRecord) {
	if age, ok := utils.ParseNumber(rec.Age); ok && (age < 0 || age > 120) {
		c.ageOutOfRange++
	}
	if inc, ok := utils.ParseNumber(rec.Income); ok && (inc < 0 || inc > 1_000_000) {
		c.incomeOutRange++
	}
	if rec.Gender != "" && !vocab.KnownGender(rec.Gender) {
		c.unknownGender++
	}
	if rec.Illness != "" && !vocab.KnownIllness(rec.Illness) {
		c.unknownIllness++
	}
}

func (c *extractChecks) warnings() []string {
	var out []string
	if c.emptyRows > 0 {
		out = append(out, fmt.Sprintf("%d empty rows skipped", c.emptyRows))
	}
	if c.ageOutOfRange > 0 {
		out = append(out, fmt.Sprintf("%d rows with age outside [0, 120]", c.ageOutOfRange))
	}
	if c.incomeOutRange > 0 {
		out = append(out, fmt.Sprintf("%d rows with income outside [0, 1000000]", c.incomeOutRange))
	}
	if c.unknownGender > 0 {
		out = append(out, fmt.Sprintf("%d rows with unrecognized gender", c.unknownGender))
	}
	if c.unknownIllness > 0 {
		out = append(out, fmt.Sprintf("%d rows with unrecognized illness flag", c.unknownIllness))
	}
	return out
}
