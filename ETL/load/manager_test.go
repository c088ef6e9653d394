package load

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/jslozanod/etl-workshop-1/ETL/models"
	"github.com/jslozanod/etl-workshop-1/ETL/transform"
	"github.com/jslozanod/etl-workshop-1/ETL/utils"
	"github.com/jslozanod/etl-workshop-1/ETL/warehouse"
)

func openWarehouse(t *testing.T, opts warehouse.SchemaOptions) (*sql.DB, warehouse.Dialect) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "dw.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	d, err := warehouse.ForDriver(warehouse.DriverSQLite)
	require.NoError(t, err)
	require.NoError(t, warehouse.EnsureSchema(context.Background(), db, d, opts))
	return db, d
}

func record(line int, first, last, email, country, date, seniority, tech, code, interview string) models.RawRecord {
	return models.RawRecord{
		Line:                    line,
		FirstName:               first,
		LastName:                last,
		Email:                   email,
		Country:                 country,
		ApplicationDate:         date,
		YOE:                     "3",
		Seniority:               seniority,
		Technology:              tech,
		CodeChallengeScore:      code,
		TechnicalInterviewScore: interview,
	}
}

func transformed(t *testing.T, records ...models.RawRecord) *models.TransformedData {
	t.Helper()
	data, err := transform.NewTransformer(utils.NewDiscardLogger(), transform.Options{}).
		Transform(&models.ExtractedData{Records: records})
	require.NoError(t, err)
	return data
}

func count(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func sampleRecords() []models.RawRecord {
	return []models.RawRecord{
		record(2, "John", "Doe", "john@x.com", "Colombia", "2023-05-01", "Mid-Level", "Game Development", "8", "9"),
		record(3, "Ana", "Ruiz", "ana@x.com", "Brazil", "2022-01-15", "Lead", "DevOps", "3", "10"),
		record(4, "Li", "Wei", "li@x.com", "Colombia", "2023-05-01", "Junior", "DevOps", "7", "7"),
	}
}

func TestLoadManager_JohnDoe(t *testing.T) {
	ctx := context.Background()
	db, d := openWarehouse(t, warehouse.SchemaOptions{})
	m := NewLoadManager(db, d, utils.NewDiscardLogger(), Options{})

	data := transformed(t, record(2, "John", "Doe", "john@x.com", "Colombia", "2023-05-01", "Mid-Level", "Game Development", "8", "9"))
	result, err := m.Load(ctx, data)
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.FactsInserted)
	assert.Zero(t, result.FactsDropped.Total())

	var (
		year, month, day     int
		yoe, code, interview int
		hired                bool
		country, technology  string
		firstName, seniority string
	)
	err = db.QueryRow(`
		SELECT c.first_name, co.country, d.year, d.month, d.day, s.seniority, te.technology,
		       f.years_of_experience, f.code_challenge_score, f.technical_interview_score, f.is_hired
		FROM fact_application f
		JOIN dim_candidate c ON c.candidate_key = f.candidate_key
		JOIN dim_country co ON co.country_key = f.country_key
		JOIN dim_date d ON d.date_key = f.date_key
		JOIN dim_seniority s ON s.seniority_key = f.seniority_key
		JOIN dim_technology te ON te.technology_key = f.technology_key`).
		Scan(&firstName, &country, &year, &month, &day, &seniority, &technology, &yoe, &code, &interview, &hired)
	require.NoError(t, err)

	assert.Equal(t, "John", firstName)
	assert.Equal(t, "Colombia", country)
	assert.Equal(t, []int{2023, 5, 1}, []int{year, month, day})
	assert.Equal(t, "Mid-Level", seniority)
	assert.Equal(t, "Game Development", technology)
	assert.Equal(t, []int{3, 8, 9}, []int{yoe, code, interview})
	assert.True(t, hired)
}

func TestLoadManager_CaseVariantsStayDistinct(t *testing.T) {
	ctx := context.Background()
	db, d := openWarehouse(t, warehouse.SchemaOptions{})
	m := NewLoadManager(db, d, utils.NewDiscardLogger(), Options{})

	data := transformed(t,
		record(2, "John", "Doe", "john@x.com", "Colombia", "2023-05-01", "Mid-Level", "Go", "8", "9"),
		record(3, "Ana", "Ruiz", "ana@x.com", "colombia", "2023-05-01", "Mid-Level", "go", "8", "9"),
		record(4, "Li", "Wei", "li@x.com", "Perú", "2023-05-01", "Mid-Level", "Go", "8", "9"),
		record(5, "Mia", "Lee", "mia@x.com", "Peru", "2023-05-01", "Mid-Level", "Go", "8", "9"),
	)
	result, err := m.Load(ctx, data)
	require.NoError(t, err)

	assert.EqualValues(t, 4, result.FactsInserted)
	assert.Zero(t, result.FactsDropped.Total())
	assert.Equal(t, 4, count(t, db, warehouse.TableCountry))
	assert.Equal(t, 2, count(t, db, warehouse.TableTechnology))
}

func TestLoadManager_MissingEmail(t *testing.T) {
	ctx := context.Background()
	db, d := openWarehouse(t, warehouse.SchemaOptions{})
	m := NewLoadManager(db, d, utils.NewDiscardLogger(), Options{})

	data := transformed(t, record(2, "John", "Doe", "", "Colombia", "2023-05-01", "Mid-Level", "Game Development", "8", "9"))
	assert.Equal(t, 1, data.Summary.Dropped[models.DropMissingEmail])

	result, err := m.Load(ctx, data)
	require.NoError(t, err)
	assert.Zero(t, result.FactsInserted)

	for _, table := range warehouse.Tables() {
		assert.Zero(t, count(t, db, table), table)
	}
}

func TestLoadManager_Rerun(t *testing.T) {
	ctx := context.Background()
	db, d := openWarehouse(t, warehouse.SchemaOptions{})
	m := NewLoadManager(db, d, utils.NewDiscardLogger(), Options{})

	first, err := m.Load(ctx, transformed(t, sampleRecords()...))
	require.NoError(t, err)
	assert.EqualValues(t, 3, first.FactsInserted)
	assert.EqualValues(t, 2, first.DimensionRowsInserted[models.DimensionCountry])
	assert.EqualValues(t, 2, first.DimensionRowsInserted[models.DimensionDate])

	second, err := m.Load(ctx, transformed(t, sampleRecords()...))
	require.NoError(t, err)
	assert.EqualValues(t, 3, second.FactsInserted)
	assert.Zero(t, second.DimensionRowsInserted[models.DimensionCountry])
	assert.Zero(t, second.DimensionRowsInserted[models.DimensionTechnology])
	assert.EqualValues(t, 3, second.DimensionRowsInserted[models.DimensionCandidate])

	assert.Equal(t, 6, count(t, db, warehouse.TableCandidate))
	assert.Equal(t, 6, count(t, db, warehouse.TableApplication))
	assert.Equal(t, 2, count(t, db, warehouse.TableCountry))
	assert.Equal(t, 2, count(t, db, warehouse.TableDate))
	assert.Equal(t, 3, count(t, db, warehouse.TableSeniority))
	assert.Equal(t, 2, count(t, db, warehouse.TableTechnology))

	// Both runs resolve duplicate candidates to the first-loaded key.
	var distinctKeys int
	require.NoError(t, db.QueryRow("SELECT COUNT(DISTINCT candidate_key) FROM fact_application").Scan(&distinctKeys))
	assert.Equal(t, 3, distinctKeys)
}

func TestLoadManager_UniqueCandidates(t *testing.T) {
	ctx := context.Background()
	db, d := openWarehouse(t, warehouse.SchemaOptions{UniqueCandidates: true})
	m := NewLoadManager(db, d, utils.NewDiscardLogger(), Options{UniqueCandidates: true, BatchSize: 2})

	for range 2 {
		_, err := m.Load(ctx, transformed(t, sampleRecords()...))
		require.NoError(t, err)
	}

	assert.Equal(t, 3, count(t, db, warehouse.TableCandidate))
	assert.Equal(t, 6, count(t, db, warehouse.TableApplication))
}

func TestLoadManager_SingleTransaction(t *testing.T) {
	ctx := context.Background()
	db, d := openWarehouse(t, warehouse.SchemaOptions{})
	m := NewLoadManager(db, d, utils.NewDiscardLogger(), Options{SingleTransaction: true, BatchSize: 1})

	result, err := m.Load(ctx, transformed(t, sampleRecords()...))
	require.NoError(t, err)
	assert.EqualValues(t, 3, result.FactsInserted)
	assert.Equal(t, 3, count(t, db, warehouse.TableApplication))
}

func TestDimensionKeys_ResolveFacts(t *testing.T) {
	date := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	john := models.CandidateKey{FirstName: "John", LastName: "Doe", Email: "john@x.com"}

	keys := &DimensionKeys{
		Candidates:   map[models.CandidateKey]int64{john: 1},
		Countries:    map[string]int64{"Colombia": 10},
		Dates:        map[string]int64{"2023-05-01": 20},
		Seniorities:  map[string]int64{"Mid-Level": 30},
		Technologies: map[string]int64{"Go": 40},
	}

	base := models.FactCandidate{
		Candidate:               john,
		Country:                 "Colombia",
		ApplicationDate:         date,
		Seniority:               "Mid-Level",
		Technology:              "Go",
		YearsOfExperience:       3.9,
		CodeChallengeScore:      7.5,
		TechnicalInterviewScore: 9.99,
		IsHired:                 true,
	}

	noCountry := base
	noCountry.Country = "Ecuador"
	noCountryNoTech := noCountry
	noCountryNoTech.Technology = "Rust"
	noDate := base
	noDate.ApplicationDate = date.AddDate(0, 0, 1)
	noCandidate := base
	noCandidate.Candidate.Email = "other@x.com"

	result := models.NewLoadResult()
	facts := keys.ResolveFacts([]models.FactCandidate{base, noCountry, noCountryNoTech, noDate, noCandidate}, result)

	require.Len(t, facts, 1)
	assert.Equal(t, models.ApplicationFact{
		CandidateKey:            1,
		CountryKey:              10,
		DateKey:                 20,
		SeniorityKey:            30,
		TechnologyKey:           40,
		YearsOfExperience:       3,
		CodeChallengeScore:      7,
		TechnicalInterviewScore: 9,
		IsHired:                 true,
	}, facts[0])

	assert.Equal(t, 1, result.FactsResolved)
	assert.Equal(t, models.DropCounts{
		models.DropUnresolvedCountry:   2,
		models.DropUnresolvedDate:      1,
		models.DropUnresolvedCandidate: 1,
	}, result.FactsDropped)
}

func TestKeyResolver_SmallestKeyWins(t *testing.T) {
	ctx := context.Background()
	db, _ := openWarehouse(t, warehouse.SchemaOptions{})

	_, err := db.Exec(`INSERT INTO dim_candidate (candidate_key, first_name, last_name, email) VALUES
		(7, 'John', 'Doe', 'john@x.com'), (3, 'John', 'Doe', 'john@x.com'), (5, 'John', 'Doe', 'john@x.com')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO dim_date (application_date, year, month, day) VALUES ('2023-05-01', 2023, 5, 1)`)
	require.NoError(t, err)

	keys, err := NewKeyResolver(utils.NewDiscardLogger()).Resolve(ctx, db)
	require.NoError(t, err)

	assert.EqualValues(t, 3, keys.Candidates[models.CandidateKey{FirstName: "John", LastName: "Doe", Email: "john@x.com"}])
	assert.Contains(t, keys.Dates, "2023-05-01")
}
