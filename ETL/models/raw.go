package models

import (
	"time"
)

// RawRecord is one row of the applications file. Every field is kept as text.
type RawRecord struct {
	Line                    int
	FirstName               string
	LastName                string
	Email                   string
	Country                 string
	ApplicationDate         string
	YOE                     string
	Seniority               string
	Technology              string
	CodeChallengeScore      string
	TechnicalInterviewScore string
}

// ExtractedData holds the validated extract of a source file
type ExtractedData struct {
	SourcePath  string
	Columns     []string
	Records     []RawRecord
	ExtractedAt time.Time
}
