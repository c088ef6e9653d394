package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// DropReason says why a row did not make it into the warehouse.
type DropReason string

// Transform-stage reasons.
const (
	DropMissingFirstName         DropReason = "missing_first_name"
	DropMissingLastName          DropReason = "missing_last_name"
	DropMissingEmail             DropReason = "missing_email"
	DropMissingCountry           DropReason = "missing_country"
	DropMissingSeniority         DropReason = "missing_seniority"
	DropMissingTechnology        DropReason = "missing_technology"
	DropInvalidApplicationDate   DropReason = "invalid_application_date"
	DropInvalidYearsOfExperience DropReason = "invalid_years_of_experience"
	DropInvalidCodeScore         DropReason = "invalid_code_challenge_score"
	DropInvalidInterviewScore    DropReason = "invalid_technical_interview_score"
)

// Load-stage reasons.
const (
	DropUnresolvedCandidate  DropReason = "unresolved_candidate"
	DropUnresolvedCountry    DropReason = "unresolved_country"
	DropUnresolvedDate       DropReason = "unresolved_date"
	DropUnresolvedSeniority  DropReason = "unresolved_seniority"
	DropUnresolvedTechnology DropReason = "unresolved_technology"
)

// RowOutcome records what happened to a single source row.
type RowOutcome struct {
	Line   int
	Kept   bool
	Reason DropReason
}

// DropCounts counts dropped rows per reason.
type DropCounts map[DropReason]int

// Total returns the number of dropped rows.
func (c DropCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Reasons returns the reasons with a non-zero count, sorted.
func (c DropCounts) Reasons() []DropReason {
	reasons := make([]DropReason, 0, len(c))
	for r, n := range c {
		if n > 0 {
			reasons = append(reasons, r)
		}
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	return reasons
}

// TransformSummary aggregates row outcomes of the transform phase.
type TransformSummary struct {
	RowsRead int
	RowsKept int
	Dropped  DropCounts
}

// Record adds one outcome to the summary.
func (s *TransformSummary) Record(o RowOutcome) {
	s.RowsRead++
	if o.Kept {
		s.RowsKept++
		return
	}
	if s.Dropped == nil {
		s.Dropped = DropCounts{}
	}
	s.Dropped[o.Reason]++
}

// LoadResult aggregates what the load phase wrote and dropped.
type LoadResult struct {
	// DimensionRowsInserted counts rows actually created per dimension;
	// values already present are not counted.
	DimensionRowsInserted map[string]int64
	FactsResolved         int
	FactsInserted         int64
	FactsDropped          DropCounts
}

// NewLoadResult returns an empty LoadResult with its maps allocated.
func NewLoadResult() *LoadResult {
	return &LoadResult{
		DimensionRowsInserted: make(map[string]int64),
		FactsDropped:          DropCounts{},
	}
}

// RunSummary is returned to the caller of a pipeline run.
type RunSummary struct {
	RunID      uuid.UUID
	SourcePath string
	StartedAt  time.Time
	FinishedAt time.Time
	Transform  TransformSummary
	Load       LoadResult
}

// Duration returns the wall time of the run.
func (s RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
