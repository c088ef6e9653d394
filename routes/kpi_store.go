package routes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jslozanod/etl-workshop-1/ETL/metrics"
	"github.com/jslozanod/etl-workshop-1/ETL/models"
	"github.com/jslozanod/etl-workshop-1/ETL/reporting"
	"github.com/jslozanod/etl-workshop-1/ETL/utils"
)

// KPIQuerier computes every KPI. *reporting.Reporter satisfies it.
type KPIQuerier interface {
	QueryAll(ctx context.Context) ([]*reporting.Result, error)
}

// Publisher pushes a snapshot to live clients. *websocket.Manager satisfies it.
type Publisher interface {
	Publish(ctx context.Context, v any) error
}

// Snapshot is what the dashboard shows: every KPI plus the run log state.
type Snapshot struct {
	GeneratedAt time.Time               `json:"generated_at"`
	KPIs        []*reporting.Result     `json:"kpis"`
	Runs        *models.ETLStateMonitor `json:"runs"`
}

// KPI returns the result of a KPI by name.
func (s *Snapshot) KPI(name string) (*reporting.Result, bool) {
	for _, r := range s.KPIs {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// KPIStore caches the latest snapshot and publishes each refresh.
type KPIStore struct {
	kpis      KPIQuerier
	runs      models.ETLLogRepository
	publisher Publisher
	metrics   *metrics.Manager
	logger    *utils.ETLLogger

	mu       sync.RWMutex
	snapshot *Snapshot
}

// NewKPIStore creates a store. publisher may be nil.
func NewKPIStore(kpis KPIQuerier, runs models.ETLLogRepository, publisher Publisher, m *metrics.Manager, logger *utils.ETLLogger) *KPIStore {
	return &KPIStore{
		kpis:      kpis,
		runs:      runs,
		publisher: publisher,
		metrics:   m,
		logger:    logger.Named("dashboard"),
	}
}

// Refresh recomputes the snapshot. A failed refresh keeps the previous one.
func (s *KPIStore) Refresh(ctx context.Context) (*Snapshot, error) {
	snap, err := s.build(ctx)
	s.metrics.RecordKPIRefresh(err)
	if err != nil {
		s.logger.Error("kpi refresh failed", "error", err)
		return nil, err
	}

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, snap); err != nil {
			s.logger.Warn("snapshot not published", "error", err)
		}
	}
	s.logger.Debug("kpi snapshot refreshed", "kpis", len(snap.KPIs))
	return snap, nil
}

func (s *KPIStore) build(ctx context.Context) (*Snapshot, error) {
	results, err := s.kpis.QueryAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("query kpis: %w", err)
	}
	state, err := s.runs.GetETLStateMonitor(ctx)
	if err != nil {
		return nil, fmt.Errorf("read run log: %w", err)
	}
	return &Snapshot{GeneratedAt: time.Now().UTC(), KPIs: results, Runs: state}, nil
}

// Snapshot returns the cached snapshot, refreshing when there is none yet.
func (s *KPIStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}
	return s.Refresh(ctx)
}
