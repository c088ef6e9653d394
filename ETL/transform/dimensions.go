package transform

import (
	"time"

	"github.com/jslozanod/etl-workshop-1/ETL/models"
)

// distinct collects values keyed by K, keeping the first occurrence of each key.
type distinct[K comparable, V any] struct {
	seen  map[K]struct{}
	items []V
}

func newDistinct[K comparable, V any]() *distinct[K, V] {
	return &distinct[K, V]{seen: make(map[K]struct{})}
}

func (d *distinct[K, V]) add(key K, value func() V) {
	if _, ok := d.seen[key]; ok {
		return
	}
	d.seen[key] = struct{}{}
	d.items = append(d.items, value())
}

// dimensionBuilder accumulates the five dimensions from cleaned records.
type dimensionBuilder struct {
	candidates   *distinct[models.CandidateKey, models.CandidateDimension]
	countries    *distinct[string, models.CountryDimension]
	seniorities  *distinct[string, models.SeniorityDimension]
	technologies *distinct[string, models.TechnologyDimension]
	dates        *distinct[string, models.DateDimension]
}

func newDimensionBuilder() *dimensionBuilder {
	return &dimensionBuilder{
		candidates:   newDistinct[models.CandidateKey, models.CandidateDimension](),
		countries:    newDistinct[string, models.CountryDimension](),
		seniorities:  newDistinct[string, models.SeniorityDimension](),
		technologies: newDistinct[string, models.TechnologyDimension](),
		dates:        newDistinct[string, models.DateDimension](),
	}
}

func (b *dimensionBuilder) add(rec models.CleanedRecord) {
	candidate := models.CandidateKey{FirstName: rec.FirstName, LastName: rec.LastName, Email: rec.Email}
	b.candidates.add(candidate, func() models.CandidateDimension {
		return models.CandidateDimension{FirstName: rec.FirstName, LastName: rec.LastName, Email: rec.Email}
	})
	b.countries.add(rec.Country, func() models.CountryDimension {
		return models.CountryDimension{Country: rec.Country}
	})
	b.seniorities.add(rec.Seniority, func() models.SeniorityDimension {
		return models.SeniorityDimension{Seniority: rec.Seniority}
	})
	b.technologies.add(rec.Technology, func() models.TechnologyDimension {
		return models.TechnologyDimension{Technology: rec.Technology}
	})
	b.dates.add(rec.ApplicationDate.Format(models.DateLayout), func() models.DateDimension {
		return NewDateDimension(rec.ApplicationDate)
	})
}

func (b *dimensionBuilder) fill(data *models.TransformedData) {
	data.Candidates = b.candidates.items
	data.Countries = b.countries.items
	data.Seniorities = b.seniorities.items
	data.Technologies = b.technologies.items
	data.Dates = b.dates.items
}

// NewDateDimension decomposes a date into its dim_date row.
func NewDateDimension(t time.Time) models.DateDimension {
	d := models.DateOnly(t)
	return models.DateDimension{
		Date:  d,
		Year:  d.Year(),
		Month: int(d.Month()),
		Day:   d.Day(),
	}
}
