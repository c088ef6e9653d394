package transform

import (
	"time"

	"github.com/jslozanod/etl-workshop-1/ETL/models"
	"github.com/jslozanod/etl-workshop-1/ETL/utils"
)

// Options tune the transform phase.
type Options struct {
	// DateLayouts replaces DefaultDateLayouts when non-empty.
	DateLayouts []string
}

// Transformer turns extracted raw records into star-schema dimensions and
// fact candidates. It has no side effects besides logging.
type Transformer struct {
	logger  *utils.ETLLogger
	layouts []string
}

// NewTransformer creates a new Transformer
func NewTransformer(logger *utils.ETLLogger, opts Options) *Transformer {
	layouts := DefaultDateLayouts
	if len(opts.DateLayouts) > 0 {
		layouts = opts.DateLayouts
	}
	return &Transformer{logger: logger, layouts: layouts}
}

// Transform cleans every raw record, drops the ones that fail a check and
// builds deduplicated dimensions and one fact candidate per kept record.
// Malformed rows never make it fail; each row gets an outcome instead.
func (t *Transformer) Transform(extracted *models.ExtractedData) (*models.TransformedData, error) {
	startTime := time.Now()

	data := &models.TransformedData{
		Outcomes: make([]models.RowOutcome, 0, len(extracted.Records)),
		Summary:  models.TransformSummary{Dropped: models.DropCounts{}},
	}
	dims := newDimensionBuilder()

	for _, raw := range extracted.Records {
		rec, reason := cleanRecord(raw, t.layouts)

		outcome := models.RowOutcome{Line: raw.Line, Kept: reason == "", Reason: reason}
		data.Outcomes = append(data.Outcomes, outcome)
		data.Summary.Record(outcome)

		if !outcome.Kept {
			t.logger.Debug("row dropped", "line", raw.Line, "reason", string(reason))
			continue
		}

		dims.add(rec)
		data.Facts = append(data.Facts, newFactCandidate(rec))
	}

	dims.fill(data)

	t.logger.Debug("dimensions built",
		"candidates", len(data.Candidates),
		"countries", len(data.Countries),
		"dates", len(data.Dates),
		"seniorities", len(data.Seniorities),
		"technologies", len(data.Technologies),
	)
	t.logger.LogTransformComplete(data.Summary.RowsRead, data.Summary.RowsKept, data.Summary.Dropped.Total(), time.Since(startTime))

	return data, nil
}

func newFactCandidate(rec models.CleanedRecord) models.FactCandidate {
	return models.FactCandidate{
		Line:                    rec.Line,
		Candidate:               models.CandidateKey{FirstName: rec.FirstName, LastName: rec.LastName, Email: rec.Email},
		Country:                 rec.Country,
		ApplicationDate:         rec.ApplicationDate,
		Seniority:               rec.Seniority,
		Technology:              rec.Technology,
		YearsOfExperience:       rec.YearsOfExperience,
		CodeChallengeScore:      rec.CodeChallengeScore,
		TechnicalInterviewScore: rec.TechnicalInterviewScore,
		IsHired:                 rec.IsHired,
	}
}
