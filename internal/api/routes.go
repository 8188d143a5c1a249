package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hashreel/hashreel-agent/internal/history"
)

// maxRunCount caps how many videos a single queued run may request.
const maxRunCount = 100

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))
	r.Get("/status", statusHandler(cfg))
	r.Get("/runs", listRunsHandler(cfg))
	r.Post("/runs", createRunHandler(cfg))
	r.Get("/runs/{id}", getRunHandler(cfg))
	r.Get("/runs/{id}/items", getRunItemsHandler(cfg))
	r.Post("/runner/pause", pauseRunnerHandler(cfg))
	r.Post("/runner/resume", resumeRunnerHandler(cfg))

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		runs, _ := cfg.Repository.ListRuns(ctx, 10)

		state := "idle"
		var activeRun *RunResponse
		runsRunning := 0
		lastError := ""

		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			state = "paused"
		}

		for _, run := range runs {
			if run.Status == history.RunStatusRunning {
				state = "processing"
				resp := RunToResponse(run)
				activeRun = &resp
				runsRunning++
			}
			if run.Status == history.RunStatusFailed && lastError == "" {
				lastError = run.Error
			}
		}

		if lastError != "" && state == "idle" {
			state = "error"
		}

		resp := StatusResponse{
			State:       state,
			LastError:   lastError,
			RunsRunning: runsRunning,
			ActiveRun:   activeRun,
		}

		if cfg.Ledger != nil {
			resp.ProcessedTotal = cfg.Ledger.Count()
		}

		if cfg.Doctor != nil {
			caps := cfg.Doctor.Get()
			resp.Tools = &ToolStatusResponse{
				HasFetcher:  caps.HasFetcher,
				HasEncoder:  caps.HasEncoder,
				HasProber:   caps.HasProber,
				LastProbeAt: caps.ProbedAt.Format(time.RFC3339),
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func listRunsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := cfg.Repository.ListRuns(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list runs", "INTERNAL_ERROR")
			return
		}

		resp := RunsResponse{Runs: make([]RunResponse, len(runs))}
		for i, run := range runs {
			resp.Runs[i] = RunToResponse(run)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func createRunHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		req.Hashtag = strings.TrimSpace(strings.TrimPrefix(req.Hashtag, "#"))
		if req.Hashtag == "" {
			WriteError(w, http.StatusBadRequest, "hashtag is required", "BAD_REQUEST")
			return
		}
		if req.Count <= 0 || req.Count > maxRunCount {
			WriteError(w, http.StatusBadRequest, "count must be between 1 and 100", "BAD_REQUEST")
			return
		}

		now := time.Now().UTC()
		run := &history.Run{
			ID:        history.NewRunID(),
			Hashtag:   req.Hashtag,
			Requested: req.Count,
			Status:    history.RunStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := cfg.Repository.CreateRun(r.Context(), run); err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to queue run", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusAccepted, CreateRunResponse{RunID: run.ID})
	}
}

func getRunHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "run id required", "BAD_REQUEST")
			return
		}

		run, err := cfg.Repository.GetRun(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if run == nil {
			WriteError(w, http.StatusNotFound, "run not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, RunToResponse(run))
	}
}

func getRunItemsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "run id required", "BAD_REQUEST")
			return
		}

		run, err := cfg.Repository.GetRun(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if run == nil {
			WriteError(w, http.StatusNotFound, "run not found", "NOT_FOUND")
			return
		}

		items, err := cfg.Repository.GetRunItems(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list run items", "INTERNAL_ERROR")
			return
		}

		resp := RunItemsResponse{Items: make([]RunItemResponse, len(items))}
		for i, item := range items {
			resp.Items[i] = RunItemToResponse(item)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func pauseRunnerHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Runner == nil {
			WriteError(w, http.StatusConflict, "runner not configured", "CONFLICT")
			return
		}
		cfg.Runner.Pause()
		w.WriteHeader(http.StatusNoContent)
	}
}

func resumeRunnerHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Runner == nil {
			WriteError(w, http.StatusConflict, "runner not configured", "CONFLICT")
			return
		}
		cfg.Runner.Resume()
		w.WriteHeader(http.StatusNoContent)
	}
}
