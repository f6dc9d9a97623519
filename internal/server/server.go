// Package server exposes the planning pipeline over HTTP. Optimization
// runs execute asynchronously against stored datasets; clients follow
// progress through a server-sent-events stream per run.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foodshed/siteplan/internal/config"
	"github.com/foodshed/siteplan/internal/model"
	"github.com/foodshed/siteplan/internal/optimizer"
	"github.com/foodshed/siteplan/internal/store"
)

// Server serves optimization runs over HTTP.
type Server struct {
	cfg     config.ServerConfig
	optCfg  config.OptimizerConfig
	store   store.Store
	broker  *broker
	baseCtx context.Context
}

// New creates a Server backed by the given store.
func New(cfg config.ServerConfig, optCfg config.OptimizerConfig, st store.Store) *Server {
	return &Server{
		cfg:     cfg,
		optCfg:  optCfg,
		store:   st,
		broker:  newBroker(),
		baseCtx: context.Background(),
	}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/optimize", s.handleOptimize)
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{id}", s.handleGetRun)
	r.Get("/runs/{id}/events", s.handleEvents)
	r.Get("/datasets", s.handleListDatasets)

	return r
}

// Start runs the server until ctx is cancelled, then shuts down
// gracefully. In-flight optimization runs are cancelled with the context.
func (s *Server) Start(ctx context.Context) error {
	s.baseCtx = ctx

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.Routes(),
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		srv.Shutdown(context.Background())
	}()

	zap.L().Info("starting server", zap.Int("port", s.cfg.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type optimizeRequest struct {
	Dataset string `json:"dataset"`
	model.Request
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Dataset == "" {
		writeError(w, http.StatusBadRequest, "dataset is required")
		return
	}

	cells, err := s.store.GetDataset(r.Context(), req.Dataset)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("dataset %q not found", req.Dataset))
			return
		}
		zap.L().Error("load dataset failed", zap.String("dataset", req.Dataset), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load dataset")
		return
	}

	run, err := s.store.CreateRun(r.Context(), req.Dataset, req.Request)
	if err != nil {
		zap.L().Error("create run failed", zap.String("dataset", req.Dataset), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create run")
		return
	}

	go s.execute(s.baseCtx, run.ID, cells, req.Request)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": run.ID,
		"status": string(model.RunStatusQueued),
	})
}

// execute drives one optimization run to completion, streaming events to
// the broker and persisting the outcome.
func (s *Server) execute(ctx context.Context, runID string, cells []model.Cell, req model.Request) {
	defer s.broker.finish(runID)

	if err := s.store.UpdateRunStatus(ctx, runID, model.RunStatusRunning); err != nil {
		zap.L().Error("mark run running failed", zap.String("run", runID), zap.Error(err))
	}

	opt := optimizer.New(s.optCfg, optimizer.WithEvents(func(ev optimizer.Event) {
		s.broker.publish(runID, ev)
	}))

	result, err := opt.Run(ctx, cells, req)
	if err != nil {
		zap.L().Error("optimization run failed",
			zap.String("run", runID),
			zap.Error(err),
		)
	} else {
		zap.L().Info("optimization run complete",
			zap.String("run", runID),
			zap.Int("facilities", len(result.Facilities)),
			zap.Float64("budget_used", result.BudgetUsed),
		)
	}

	if err := s.store.UpdateRunResult(ctx, runID, &result); err != nil {
		zap.L().Error("persist run result failed", zap.String("run", runID), zap.Error(err))
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{
		Status:  model.RunStatus(r.URL.Query().Get("status")),
		Dataset: r.URL.Query().Get("dataset"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("run %q not found", runID))
			return
		}
		zap.L().Error("get run failed", zap.String("run", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := s.store.ListDatasets(r.Context())
	if err != nil {
		zap.L().Error("list datasets failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list datasets")
		return
	}
	if datasets == nil {
		datasets = []store.DatasetInfo{}
	}
	writeJSON(w, http.StatusOK, datasets)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
