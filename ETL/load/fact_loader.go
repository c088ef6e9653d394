package load

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/jslozanod/etl-workshop-1/ETL/models"
	"github.com/jslozanod/etl-workshop-1/ETL/utils"
	"github.com/jslozanod/etl-workshop-1/ETL/warehouse"
)

// FactLoader bulk-inserts resolved fact rows.
type FactLoader struct {
	dialect   warehouse.Dialect
	logger    *utils.ETLLogger
	batchSize int
}

// NewFactLoader creates a new FactLoader
func NewFactLoader(dialect warehouse.Dialect, logger *utils.ETLLogger, batchSize int) *FactLoader {
	return &FactLoader{dialect: dialect, logger: logger, batchSize: batchSize}
}

// Load inserts facts inside tx. The lib/pq driver streams them with COPY;
// every other driver gets chunked multi-row INSERTs.
func (l *FactLoader) Load(ctx context.Context, tx *sql.Tx, facts []models.ApplicationFact, result *models.LoadResult) error {
	if len(facts) == 0 {
		l.logger.Debug("no facts to load")
		return nil
	}

	var (
		inserted int64
		err      error
	)
	if l.dialect.SupportsCopyIn() {
		inserted, err = l.copyIn(ctx, tx, facts)
	} else {
		inserted, err = l.insert(ctx, tx, facts)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", warehouse.TableApplication, err)
	}

	result.FactsInserted = inserted
	l.logger.Debug("facts loaded", "rows", inserted)
	return nil
}

func (l *FactLoader) insert(ctx context.Context, tx *sql.Tx, facts []models.ApplicationFact) (int64, error) {
	rows := make([][]any, 0, len(facts))
	for _, f := range facts {
		rows = append(rows, factArgs(f))
	}

	var inserted int64
	err := chunk(rows, l.dialect.BatchRows(l.batchSize, len(warehouse.FactColumns)), func(batch [][]any) error {
		query := l.dialect.InsertSQL(warehouse.TableApplication, warehouse.FactColumns, len(batch))
		res, err := tx.ExecContext(ctx, query, flatten(batch)...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			n = int64(len(batch))
		}
		inserted += n
		return nil
	})
	return inserted, err
}

func (l *FactLoader) copyIn(ctx context.Context, tx *sql.Tx, facts []models.ApplicationFact) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(warehouse.TableApplication, warehouse.FactColumns...))
	if err != nil {
		return 0, fmt.Errorf("prepare copy: %w", err)
	}
	defer stmt.Close()

	for _, f := range facts {
		if _, err := stmt.ExecContext(ctx, factArgs(f)...); err != nil {
			return 0, fmt.Errorf("copy row: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return 0, fmt.Errorf("flush copy: %w", err)
	}
	return int64(len(facts)), nil
}

func factArgs(f models.ApplicationFact) []any {
	return []any{
		f.CandidateKey, f.CountryKey, f.DateKey, f.SeniorityKey, f.TechnologyKey,
		f.YearsOfExperience, f.CodeChallengeScore, f.TechnicalInterviewScore, f.IsHired,
	}
}
