package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/jslozanod/etl-workshop-1/ETL/models"
	"github.com/jslozanod/etl-workshop-1/ETL/reporting"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
	healthTimeout    = 2 * time.Second
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RunsResponse is the body of GET /api/runs.
type RunsResponse struct {
	Runs  []models.ETLRunLog      `json:"runs"`
	State *models.ETLStateMonitor `json:"state"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// GetKPIsHandler serves the latest snapshot.
func GetKPIsHandler(store *KPIStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := store.Snapshot(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "kpis unavailable")
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// GetKPIHandler serves one KPI of the latest snapshot.
func GetKPIHandler(store *KPIStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]
		if _, err := reporting.Lookup(name); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}

		snap, err := store.Snapshot(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "kpis unavailable")
			return
		}
		result, ok := snap.KPI(name)
		if !ok {
			writeError(w, http.StatusNotFound, "kpi not computed: "+name)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// GetRunsHandler serves recent runs and the aggregated run log state.
// ?limit= caps the number of runs.
func GetRunsHandler(runs models.ETLLogRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultRunsLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxRunsLimit)
		}

		recent, err := runs.GetRecentRuns(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "run log unavailable")
			return
		}
		state, err := runs.GetETLStateMonitor(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "run log unavailable")
			return
		}
		if recent == nil {
			recent = []models.ETLRunLog{}
		}
		writeJSON(w, http.StatusOK, RunsResponse{Runs: recent, State: state})
	}
}

// HealthHandler reports whether the warehouse answers.
func HealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			status := "unavailable"
			if errors.Is(err, context.DeadlineExceeded) {
				status = "timeout"
			}
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": status})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
