package extractors

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jslozanod/etl-workshop-1/ETL/models"
	"github.com/jslozanod/etl-workshop-1/ETL/utils"
)

// Source column names. Matching is exact.
const (
	ColumnFirstName               = "First Name"
	ColumnLastName                = "Last Name"
	ColumnEmail                   = "Email"
	ColumnCountry                 = "Country"
	ColumnApplicationDate         = "Application Date"
	ColumnYOE                     = "YOE"
	ColumnSeniority               = "Seniority"
	ColumnTechnology              = "Technology"
	ColumnCodeChallengeScore      = "Code Challenge Score"
	ColumnTechnicalInterviewScore = "Technical Interview Score"
)

// Delimiter separates fields in the applications file.
const Delimiter = ';'

// RequiredColumns must all be present in the header row.
var RequiredColumns = []string{
	ColumnFirstName, ColumnLastName, ColumnEmail, ColumnCountry, ColumnApplicationDate,
	ColumnYOE, ColumnSeniority, ColumnTechnology, ColumnCodeChallengeScore, ColumnTechnicalInterviewScore,
}

// MissingColumnsError is returned when the header lacks required columns.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ErrEmptyInput is returned for a file with no header row.
var ErrEmptyInput = errors.New("input has no header row")

const utf8BOM = "\ufeff"

// Extractor reads the applications CSV into memory.
type Extractor struct {
	logger *utils.ETLLogger
}

// NewExtractor creates an Extractor
func NewExtractor(logger *utils.ETLLogger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract opens path and reads it with ExtractFrom.
func (e *Extractor) Extract(ctx context.Context, path string) (*models.ExtractedData, error) {
	startTime := time.Now()
	e.logger.LogExtractStart(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	data, err := e.ExtractFrom(ctx, f)
	if err != nil {
		return nil, err
	}
	data.SourcePath = path

	e.logger.LogExtractComplete(len(data.Records), time.Since(startTime))
	return data, nil
}

// ExtractFrom reads semicolon-delimited records from r. The header is
// validated before any record is read; column values are not type-checked.
func (e *Extractor) ExtractFrom(ctx context.Context, r io.Reader) (*models.ExtractedData, error) {
	reader := csv.NewReader(r)
	reader.Comma = Delimiter
	reader.TrimLeadingSpace = true
	// Short and long rows are kept; missing fields read as empty and the
	// transformer drops the row.
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyInput
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}

	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	data := &models.ExtractedData{
		Columns:     header,
		ExtractedAt: time.Now(),
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}

		line, _ := reader.FieldPos(0)
		data.Records = append(data.Records, index.record(line, fields))
	}

	e.logger.Debug("records extracted", "count", len(data.Records), "columns", len(header))
	return data, nil
}

type columns map[string]int

func columnIndex(header []string) (columns, error) {
	index := make(columns, len(header))
	for i, name := range header {
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}

	var missing []string
	for _, name := range RequiredColumns {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Missing: missing}
	}
	return index, nil
}

func (c columns) record(line int, fields []string) models.RawRecord {
	get := func(name string) string {
		i := c[name]
		if i >= len(fields) {
			return ""
		}
		return fields[i]
	}
	return models.RawRecord{
		Line:                    line,
		FirstName:               get(ColumnFirstName),
		LastName:                get(ColumnLastName),
		Email:                   get(ColumnEmail),
		Country:                 get(ColumnCountry),
		ApplicationDate:         get(ColumnApplicationDate),
		YOE:                     get(ColumnYOE),
		Seniority:               get(ColumnSeniority),
		Technology:              get(ColumnTechnology),
		CodeChallengeScore:      get(ColumnCodeChallengeScore),
		TechnicalInterviewScore: get(ColumnTechnicalInterviewScore),
	}
}
