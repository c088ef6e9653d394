package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jslozanod/etl-workshop-1/ETL/models"
	"github.com/jslozanod/etl-workshop-1/ETL/utils"
)

func raw(line int, first, last, email, country, date, yoe, seniority, tech, code, interview string) models.RawRecord {
	return models.RawRecord{
		Line:                    line,
		FirstName:               first,
		LastName:                last,
		Email:                   email,
		Country:                 country,
		ApplicationDate:         date,
		YOE:                     yoe,
		Seniority:               seniority,
		Technology:              tech,
		CodeChallengeScore:      code,
		TechnicalInterviewScore: interview,
	}
}

func transform(t *testing.T, records ...models.RawRecord) *models.TransformedData {
	t.Helper()
	tr := NewTransformer(utils.NewDiscardLogger(), Options{})
	data, err := tr.Transform(&models.ExtractedData{Records: records})
	require.NoError(t, err)
	return data
}

func TestIsHired(t *testing.T) {
	tests := []struct {
		name      string
		code      float64
		interview float64
		want      bool
	}{
		{name: "both at threshold", code: 7, interview: 7, want: true},
		{name: "code below", code: 6.99, interview: 10, want: false},
		{name: "interview below", code: 10, interview: 6, want: false},
		{name: "both high", code: 10, interview: 9.5, want: true},
		{name: "both low", code: 0, interview: 0, want: false},
		{name: "fractional above", code: 7.5, interview: 7.01, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHired(tt.code, tt.interview))
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "2023-05-01", want: "2023-05-01", ok: true},
		{in: " 2021-02-26 ", want: "2021-02-26", ok: true},
		{in: "2021-02-26 13:45:00", want: "2021-02-26", ok: true},
		{in: "2021-02-26T23:59:59Z", want: "2021-02-26", ok: true},
		{in: "2020/12/31", want: "2020-12-31", ok: true},
		{in: "2023-02-30", ok: false},
		{in: "not a date", ok: false},
		{in: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseDate(tt.in, DefaultDateLayouts)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got.Format(models.DateLayout))
				assert.Zero(t, got.Hour())
			}
		})
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{in: "7", want: 7, ok: true},
		{in: " 3.5 ", want: 3.5, ok: true},
		{in: "-1", want: -1, ok: true},
		{in: "", ok: false},
		{in: "seven", ok: false},
		{in: "NaN", ok: false},
		{in: "Inf", ok: false},
		{in: "-Infinity", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseNumber(tt.in)
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransform_DropReasons(t *testing.T) {
	tests := []struct {
		name   string
		record models.RawRecord
		reason models.DropReason
	}{
		{
			name:   "missing email",
			record: raw(2, "John", "Doe", "", "Colombia", "2023-05-01", "3", "Mid-Level", "Go", "8", "9"),
			reason: models.DropMissingEmail,
		},
		{
			name:   "blank first name",
			record: raw(2, "   ", "Doe", "j@x.com", "Colombia", "2023-05-01", "3", "Mid-Level", "Go", "8", "9"),
			reason: models.DropMissingFirstName,
		},
		{
			name:   "bad date wins over missing name",
			record: raw(2, "", "Doe", "j@x.com", "Colombia", "yesterday", "3", "Mid-Level", "Go", "8", "9"),
			reason: models.DropInvalidApplicationDate,
		},
		{
			name:   "bad yoe",
			record: raw(2, "John", "Doe", "j@x.com", "Colombia", "2023-05-01", "three", "Mid-Level", "Go", "8", "9"),
			reason: models.DropInvalidYearsOfExperience,
		},
		{
			name:   "missing code score",
			record: raw(2, "John", "Doe", "j@x.com", "Colombia", "2023-05-01", "3", "Mid-Level", "Go", "", "9"),
			reason: models.DropInvalidCodeScore,
		},
		{
			name:   "nan interview score",
			record: raw(2, "John", "Doe", "j@x.com", "Colombia", "2023-05-01", "3", "Mid-Level", "Go", "8", "NaN"),
			reason: models.DropInvalidInterviewScore,
		},
		{
			name:   "missing technology",
			record: raw(2, "John", "Doe", "j@x.com", "Colombia", "2023-05-01", "3", "Mid-Level", "", "8", "9"),
			reason: models.DropMissingTechnology,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := transform(t, tt.record)

			require.Len(t, data.Outcomes, 1)
			assert.False(t, data.Outcomes[0].Kept)
			assert.Equal(t, tt.reason, data.Outcomes[0].Reason)
			assert.Equal(t, 2, data.Outcomes[0].Line)

			assert.Empty(t, data.Facts)
			assert.Empty(t, data.Candidates)
			assert.Empty(t, data.Countries)
			assert.Empty(t, data.Dates)
			assert.Equal(t, 1, data.Summary.RowsRead)
			assert.Equal(t, 0, data.Summary.RowsKept)
			assert.Equal(t, 1, data.Summary.Dropped[tt.reason])
		})
	}
}

func TestTransform_JohnDoe(t *testing.T) {
	data := transform(t,
		raw(2, "John", "Doe", "john@x.com", "Colombia", "2023-05-01", "3", "Mid-Level", "Game Development", "8", "9"),
	)

	require.Len(t, data.Facts, 1)
	fact := data.Facts[0]
	assert.True(t, fact.IsHired)
	assert.Equal(t, models.CandidateKey{FirstName: "John", LastName: "Doe", Email: "john@x.com"}, fact.Candidate)
	assert.Equal(t, "Colombia", fact.Country)
	assert.Equal(t, 3.0, fact.YearsOfExperience)

	require.Len(t, data.Dates, 1)
	assert.Equal(t, models.DateDimension{
		Date:  time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
		Year:  2023,
		Month: 5,
		Day:   1,
	}, data.Dates[0])

	assert.Len(t, data.Candidates, 1)
	assert.Len(t, data.Countries, 1)
	assert.Len(t, data.Seniorities, 1)
	assert.Len(t, data.Technologies, 1)
}

func TestTransform_DimensionsAreDistinct(t *testing.T) {
	data := transform(t,
		raw(2, "John", "Doe", "john@x.com", "Colombia", "2023-05-01", "3", "Mid-Level", "Go", "8", "9"),
		raw(3, "John", "Doe", "john@x.com", "Colombia", "2023-05-01 10:00:00", "3", "Mid-Level", "Go", "2", "9"),
		raw(4, "Ana", "Ruiz", "ana@x.com", "Brazil", "2022-01-15", "10", "Lead", "Go", "7", "7"),
		raw(5, "Ana", "Ruiz", "ana@y.com", "Colombia", "2023-05-01", "1", "Intern", "Java", "1", "1"),
		raw(6, "", "Nobody", "n@x.com", "Peru", "2023-05-01", "1", "Intern", "Rust", "1", "1"),
	)

	assert.Equal(t, 5, data.Summary.RowsRead)
	assert.Equal(t, 4, data.Summary.RowsKept)
	assert.Len(t, data.Facts, 4)

	// First-seen order.
	require.Len(t, data.Candidates, 3)
	assert.Equal(t, "john@x.com", data.Candidates[0].Email)
	assert.Equal(t, "ana@x.com", data.Candidates[1].Email)
	assert.Equal(t, "ana@y.com", data.Candidates[2].Email)

	assert.Equal(t, []models.CountryDimension{{Country: "Colombia"}, {Country: "Brazil"}}, data.Countries)
	assert.Equal(t, []models.TechnologyDimension{{Technology: "Go"}, {Technology: "Java"}}, data.Technologies)
	assert.Len(t, data.Seniorities, 3)
	// Time of day is discarded before dedupe, so Peru's row never contributes.
	assert.Len(t, data.Dates, 2)

	assert.True(t, data.Facts[0].IsHired)
	assert.False(t, data.Facts[1].IsHired)
	assert.True(t, data.Facts[2].IsHired)
}

func TestTransform_TrimsValues(t *testing.T) {
	data := transform(t,
		raw(2, " John ", "Doe", "john@x.com", " Colombia", "2023-05-01", "3", "Mid-Level ", "Go", "8", "9"),
		raw(3, "John", "Doe", "john@x.com", "Colombia", "2023-05-01", "3", "Mid-Level", "Go", "8", "9"),
	)

	assert.Len(t, data.Candidates, 1)
	assert.Len(t, data.Countries, 1)
	assert.Len(t, data.Seniorities, 1)
	assert.Equal(t, "John", data.Facts[0].Candidate.FirstName)
}

func TestTransform_CustomLayouts(t *testing.T) {
	tr := NewTransformer(utils.NewDiscardLogger(), Options{DateLayouts: []string{"02.01.2006"}})
	data, err := tr.Transform(&models.ExtractedData{Records: []models.RawRecord{
		raw(2, "John", "Doe", "john@x.com", "Colombia", "01.05.2023", "3", "Mid-Level", "Go", "8", "9"),
		raw(3, "Jane", "Doe", "jane@x.com", "Colombia", "2023-05-01", "3", "Mid-Level", "Go", "8", "9"),
	}})
	require.NoError(t, err)

	require.Len(t, data.Facts, 1)
	assert.Equal(t, "2023-05-01", data.Facts[0].ApplicationDate.Format(models.DateLayout))
	assert.Equal(t, models.DropInvalidApplicationDate, data.Outcomes[1].Reason)
}

func TestTransform_Empty(t *testing.T) {
	data := transform(t)
	assert.Empty(t, data.Facts)
	assert.Zero(t, data.Summary.RowsRead)
	assert.Zero(t, data.Summary.Dropped.Total())
}
