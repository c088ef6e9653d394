package load

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/jslozanod/etl-workshop-1/ETL/models"
	"github.com/jslozanod/etl-workshop-1/ETL/utils"
	"github.com/jslozanod/etl-workshop-1/ETL/warehouse"
)

// DimensionKeys maps natural keys to surrogate keys for every dimension.
type DimensionKeys struct {
	Candidates   map[models.CandidateKey]int64
	Countries    map[string]int64
	Dates        map[string]int64
	Seniorities  map[string]int64
	Technologies map[string]int64
}

// KeyResolver reads the dimension tables back after the upserts.
type KeyResolver struct {
	logger *utils.ETLLogger
}

// NewKeyResolver creates a new KeyResolver
func NewKeyResolver(logger *utils.ETLLogger) *KeyResolver {
	return &KeyResolver{logger: logger}
}

// Resolve reads every dimension in full. When a natural key appears more than
// once, which happens for candidates loaded by several runs, the smallest
// surrogate key wins.
func (r *KeyResolver) Resolve(ctx context.Context, q warehouse.Queryer) (*DimensionKeys, error) {
	var (
		keys DimensionKeys
		err  error
	)

	keys.Candidates, err = readKeyMap(ctx, q,
		"SELECT candidate_key, first_name, last_name, email FROM "+warehouse.TableCandidate,
		func(rows *sql.Rows) (models.CandidateKey, int64, error) {
			var (
				id int64
				k  models.CandidateKey
			)
			err := rows.Scan(&id, &k.FirstName, &k.LastName, &k.Email)
			return k, id, err
		})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", warehouse.TableCandidate, err)
	}

	if keys.Countries, err = readValueKeys(ctx, q, warehouse.TableCountry, "country_key", "country"); err != nil {
		return nil, err
	}

	keys.Dates, err = readKeyMap(ctx, q,
		"SELECT date_key, application_date FROM "+warehouse.TableDate,
		func(rows *sql.Rows) (string, int64, error) {
			var (
				id   int64
				date any
			)
			if err := rows.Scan(&id, &date); err != nil {
				return "", 0, err
			}
			day, err := warehouse.NormalizeDate(date)
			return day, id, err
		})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", warehouse.TableDate, err)
	}

	if keys.Seniorities, err = readValueKeys(ctx, q, warehouse.TableSeniority, "seniority_key", "seniority"); err != nil {
		return nil, err
	}
	if keys.Technologies, err = readValueKeys(ctx, q, warehouse.TableTechnology, "technology_key", "technology"); err != nil {
		return nil, err
	}

	r.logger.Debug("dimension keys read",
		"candidates", len(keys.Candidates),
		"countries", len(keys.Countries),
		"dates", len(keys.Dates),
		"seniorities", len(keys.Seniorities),
		"technologies", len(keys.Technologies),
	)
	return &keys, nil
}

func readValueKeys(ctx context.Context, q warehouse.Queryer, table, keyColumn, valueColumn string) (map[string]int64, error) {
	m, err := readKeyMap(ctx, q,
		"SELECT "+keyColumn+", "+valueColumn+" FROM "+table,
		func(rows *sql.Rows) (string, int64, error) {
			var (
				id    int64
				value string
			)
			err := rows.Scan(&id, &value)
			return value, id, err
		})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", table, err)
	}
	return m, nil
}

// readKeyMap runs query and keeps the smallest surrogate key per natural key.
func readKeyMap[K comparable](ctx context.Context, q warehouse.Queryer, query string, scan func(*sql.Rows) (K, int64, error)) (map[K]int64, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[K]int64)
	for rows.Next() {
		k, id, err := scan(rows)
		if err != nil {
			return nil, err
		}
		if existing, ok := keys[k]; !ok || id < existing {
			keys[k] = id
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// Fact resolves the natural keys of one fact candidate. The returned reason
// names the first dimension without a match, checked in the order candidate,
// country, date, seniority, technology.
func (k *DimensionKeys) Fact(fc models.FactCandidate) (models.ApplicationFact, models.DropReason) {
	candidateKey, ok := k.Candidates[fc.Candidate]
	if !ok {
		return models.ApplicationFact{}, models.DropUnresolvedCandidate
	}
	countryKey, ok := k.Countries[fc.Country]
	if !ok {
		return models.ApplicationFact{}, models.DropUnresolvedCountry
	}
	dateKey, ok := k.Dates[fc.ApplicationDate.Format(models.DateLayout)]
	if !ok {
		return models.ApplicationFact{}, models.DropUnresolvedDate
	}
	seniorityKey, ok := k.Seniorities[fc.Seniority]
	if !ok {
		return models.ApplicationFact{}, models.DropUnresolvedSeniority
	}
	technologyKey, ok := k.Technologies[fc.Technology]
	if !ok {
		return models.ApplicationFact{}, models.DropUnresolvedTechnology
	}

	return models.ApplicationFact{
		CandidateKey:            candidateKey,
		CountryKey:              countryKey,
		DateKey:                 dateKey,
		SeniorityKey:            seniorityKey,
		TechnologyKey:           technologyKey,
		YearsOfExperience:       truncate(fc.YearsOfExperience),
		CodeChallengeScore:      truncate(fc.CodeChallengeScore),
		TechnicalInterviewScore: truncate(fc.TechnicalInterviewScore),
		IsHired:                 fc.IsHired,
	}, ""
}

// ResolveFacts resolves every fact candidate and counts the dropped ones in
// result.
func (k *DimensionKeys) ResolveFacts(candidates []models.FactCandidate, result *models.LoadResult) []models.ApplicationFact {
	facts := make([]models.ApplicationFact, 0, len(candidates))
	for _, fc := range candidates {
		fact, reason := k.Fact(fc)
		if reason != "" {
			result.FactsDropped[reason]++
			continue
		}
		facts = append(facts, fact)
	}
	result.FactsResolved = len(facts)
	return facts
}

// truncate drops the fractional part toward zero.
func truncate(v float64) int {
	return int(math.Trunc(v))
}
