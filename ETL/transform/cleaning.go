package transform

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jslozanod/etl-workshop-1/ETL/models"
)

// HireThreshold is the minimum score, inclusive, on both the code challenge
// and the technical interview for a candidate to count as hired.
const HireThreshold = 7.0

// DefaultDateLayouts are tried in order when parsing the application date.
var DefaultDateLayouts = []string{
	models.DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006/01/02",
	"01/02/2006",
}

// IsHired applies the hire rule to untruncated scores.
func IsHired(codeChallengeScore, technicalInterviewScore float64) bool {
	return codeChallengeScore >= HireThreshold && technicalInterviewScore >= HireThreshold
}

func parseDate(value string, layouts []string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return models.DateOnly(t), true
		}
	}
	return time.Time{}, false
}

func parseNumber(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// cleanRecord parses and validates one raw record. The checks run in a fixed
// order and the first failure decides the drop reason.
func cleanRecord(raw models.RawRecord, layouts []string) (models.CleanedRecord, models.DropReason) {
	rec := models.CleanedRecord{
		Line:       raw.Line,
		FirstName:  strings.TrimSpace(raw.FirstName),
		LastName:   strings.TrimSpace(raw.LastName),
		Email:      strings.TrimSpace(raw.Email),
		Country:    strings.TrimSpace(raw.Country),
		Seniority:  strings.TrimSpace(raw.Seniority),
		Technology: strings.TrimSpace(raw.Technology),
	}

	var ok bool
	if rec.ApplicationDate, ok = parseDate(raw.ApplicationDate, layouts); !ok {
		return rec, models.DropInvalidApplicationDate
	}
	if rec.YearsOfExperience, ok = parseNumber(raw.YOE); !ok {
		return rec, models.DropInvalidYearsOfExperience
	}
	if rec.CodeChallengeScore, ok = parseNumber(raw.CodeChallengeScore); !ok {
		return rec, models.DropInvalidCodeScore
	}
	if rec.TechnicalInterviewScore, ok = parseNumber(raw.TechnicalInterviewScore); !ok {
		return rec, models.DropInvalidInterviewScore
	}

	required := []struct {
		value  string
		reason models.DropReason
	}{
		{rec.FirstName, models.DropMissingFirstName},
		{rec.LastName, models.DropMissingLastName},
		{rec.Email, models.DropMissingEmail},
		{rec.Country, models.DropMissingCountry},
		{rec.Seniority, models.DropMissingSeniority},
		{rec.Technology, models.DropMissingTechnology},
	}
	for _, field := range required {
		if field.value == "" {
			return rec, field.reason
		}
	}

	rec.IsHired = IsHired(rec.CodeChallengeScore, rec.TechnicalInterviewScore)
	return rec, ""
}
