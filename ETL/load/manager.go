package load

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jslozanod/etl-workshop-1/ETL/models"
	"github.com/jslozanod/etl-workshop-1/ETL/utils"
	"github.com/jslozanod/etl-workshop-1/ETL/warehouse"
)

// Options tune the load phase.
type Options struct {
	// UniqueCandidates turns the candidate insert into an insert-or-ignore.
	// The schema must carry the matching unique constraint.
	UniqueCandidates bool
	// SingleTransaction runs every phase in one transaction so that a fact
	// failure also rolls back the dimension upserts.
	SingleTransaction bool
	// BatchSize caps rows per multi-row INSERT. Zero means as many as the
	// dialect's parameter limit allows.
	BatchSize int
}

// LoadManager writes transformed data into the star schema.
type LoadManager struct {
	db      *sql.DB
	dialect warehouse.Dialect
	logger  *utils.ETLLogger
	opts    Options

	dimensions *DimensionLoader
	resolver   *KeyResolver
	facts      *FactLoader
}

// NewLoadManager creates a new LoadManager
func NewLoadManager(db *sql.DB, dialect warehouse.Dialect, logger *utils.ETLLogger, opts Options) *LoadManager {
	logger = logger.Named("load")
	return &LoadManager{
		db:         db,
		dialect:    dialect,
		logger:     logger,
		opts:       opts,
		dimensions: NewDimensionLoader(dialect, logger, opts),
		resolver:   NewKeyResolver(logger),
		facts:      NewFactLoader(dialect, logger, opts.BatchSize),
	}
}

// Load runs the four load phases: dimension upserts, key read-back, fact key
// resolution and the fact insert. By default the dimension upserts and the
// fact insert commit in separate transactions.
func (m *LoadManager) Load(ctx context.Context, data *models.TransformedData) (*models.LoadResult, error) {
	startTime := time.Now()
	result := models.NewLoadResult()

	var err error
	if m.opts.SingleTransaction {
		err = m.inTx(ctx, func(tx *sql.Tx) error {
			return m.load(ctx, tx, data, result)
		})
	} else {
		err = m.loadTwoPhase(ctx, data, result)
	}
	if err != nil {
		m.logger.Error("load failed", "error", err)
		return nil, err
	}

	m.logger.LogLoadComplete(result.FactsInserted, result.FactsDropped.Total(), time.Since(startTime))
	return result, nil
}

func (m *LoadManager) loadTwoPhase(ctx context.Context, data *models.TransformedData, result *models.LoadResult) error {
	err := m.inTx(ctx, func(tx *sql.Tx) error {
		return m.dimensions.Load(ctx, tx, data, result)
	})
	if err != nil {
		return fmt.Errorf("load dimensions: %w", err)
	}

	if len(data.Facts) == 0 {
		return nil
	}

	keys, err := m.resolver.Resolve(ctx, m.db)
	if err != nil {
		return fmt.Errorf("read dimension keys: %w", err)
	}
	facts := keys.ResolveFacts(data.Facts, result)
	m.logDropped(result)

	err = m.inTx(ctx, func(tx *sql.Tx) error {
		return m.facts.Load(ctx, tx, facts, result)
	})
	if err != nil {
		return fmt.Errorf("load facts: %w", err)
	}
	return nil
}

func (m *LoadManager) load(ctx context.Context, tx *sql.Tx, data *models.TransformedData, result *models.LoadResult) error {
	if err := m.dimensions.Load(ctx, tx, data, result); err != nil {
		return fmt.Errorf("load dimensions: %w", err)
	}

	if len(data.Facts) == 0 {
		return nil
	}

	keys, err := m.resolver.Resolve(ctx, tx)
	if err != nil {
		return fmt.Errorf("read dimension keys: %w", err)
	}
	facts := keys.ResolveFacts(data.Facts, result)
	m.logDropped(result)

	if err := m.facts.Load(ctx, tx, facts, result); err != nil {
		return fmt.Errorf("load facts: %w", err)
	}
	return nil
}

func (m *LoadManager) logDropped(result *models.LoadResult) {
	for _, reason := range result.FactsDropped.Reasons() {
		m.logger.Warn("fact rows dropped", "reason", string(reason), "count", result.FactsDropped[reason])
	}
}

// inTx runs fn in a transaction, committing on success and rolling back on
// any error.
func (m *LoadManager) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			m.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
