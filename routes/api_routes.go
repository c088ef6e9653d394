// Package routes wires the dashboard HTTP API.
package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jslozanod/etl-workshop-1/ETL/metrics"
	"github.com/jslozanod/etl-workshop-1/ETL/models"
	"github.com/jslozanod/etl-workshop-1/middleware"
	"github.com/jslozanod/etl-workshop-1/websocket"
)

// Dependencies are the services the routes read from.
type Dependencies struct {
	DB      Pinger
	Store   *KPIStore
	Runs    models.ETLLogRepository
	Hub     *websocket.Manager
	Metrics *metrics.Manager
}

// SetupRoutes configures the API, metrics and websocket routes.
func SetupRoutes(router *mux.Router, deps Dependencies) {
	router.Use(middleware.CORSMiddleware, middleware.Metrics(deps.Metrics))

	// KPI snapshots
	router.HandleFunc("/api/kpis", GetKPIsHandler(deps.Store)).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/kpis/{name}", GetKPIHandler(deps.Store)).Methods(http.MethodGet, http.MethodOptions)

	// Run log
	router.HandleFunc("/api/runs", GetRunsHandler(deps.Runs)).Methods(http.MethodGet, http.MethodOptions)

	router.HandleFunc("/healthz", HealthHandler(deps.DB)).Methods(http.MethodGet)
	router.Handle("/metrics", deps.Metrics.Handler()).Methods(http.MethodGet)

	// Live KPI feed
	router.HandleFunc("/ws", deps.Hub.HandleConnections)
}
