package models

import (
	"time"
)

// DateLayout is the calendar-date format used for the date dimension natural key.
const DateLayout = "2006-01-02"

// Dimension names, used as labels in load results and metrics.
const (
	DimensionCandidate  = "candidate"
	DimensionCountry    = "country"
	DimensionDate       = "date"
	DimensionSeniority  = "seniority"
	DimensionTechnology = "technology"
)

// CleanedRecord is a raw record that passed every parse and presence check.
type CleanedRecord struct {
	Line                    int
	FirstName               string
	LastName                string
	Email                   string
	Country                 string
	ApplicationDate         time.Time
	YearsOfExperience       float64
	Seniority               string
	Technology              string
	CodeChallengeScore      float64
	TechnicalInterviewScore float64
	IsHired                 bool
}

// CandidateKey is the natural key of the candidate dimension.
type CandidateKey struct {
	FirstName string
	LastName  string
	Email     string
}

// CandidateDimension is a row of dim_candidate.
type CandidateDimension struct {
	Key       int64
	FirstName string
	LastName  string
	Email     string
}

// NaturalKey returns the (first name, last name, email) tuple.
func (c CandidateDimension) NaturalKey() CandidateKey {
	return CandidateKey{FirstName: c.FirstName, LastName: c.LastName, Email: c.Email}
}

// CountryDimension is a row of dim_country.
type CountryDimension struct {
	Key     int64
	Country string
}

// SeniorityDimension is a row of dim_seniority.
type SeniorityDimension struct {
	Key       int64
	Seniority string
}

// TechnologyDimension is a row of dim_technology.
type TechnologyDimension struct {
	Key        int64
	Technology string
}

// DateDimension is a row of dim_date
type DateDimension struct {
	Key   int64
	Date  time.Time
	Year  int
	Month int
	Day   int
}

// NaturalKey returns the date formatted with DateLayout.
func (d DateDimension) NaturalKey() string {
	return d.Date.Format(DateLayout)
}

// FactCandidate is a cleaned record reduced to natural keys and measures,
// before surrogate keys are known.
type FactCandidate struct {
	Line                    int
	Candidate               CandidateKey
	Country                 string
	ApplicationDate         time.Time
	Seniority               string
	Technology              string
	YearsOfExperience       float64
	CodeChallengeScore      float64
	TechnicalInterviewScore float64
	IsHired                 bool
}

// ApplicationFact is a row of fact_application.
type ApplicationFact struct {
	CandidateKey            int64
	CountryKey              int64
	DateKey                 int64
	SeniorityKey            int64
	TechnologyKey           int64
	YearsOfExperience       int
	CodeChallengeScore      int
	TechnicalInterviewScore int
	IsHired                 bool
}

// TransformedData is the output of the transform phase: five dimensions and
// the unkeyed fact candidates.
type TransformedData struct {
	Candidates   []CandidateDimension
	Countries    []CountryDimension
	Dates        []DateDimension
	Seniorities  []SeniorityDimension
	Technologies []TechnologyDimension
	Facts        []FactCandidate

	Outcomes []RowOutcome
	Summary  TransformSummary
}

// DateOnly truncates t to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
