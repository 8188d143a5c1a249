package api

import (
	"time"

	"github.com/hashreel/hashreel-agent/internal/history"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State          string              `json:"state"`
	LastError      string              `json:"last_error,omitempty"`
	RunsRunning    int                 `json:"runs_running"`
	ProcessedTotal int                 `json:"processed_total"`
	ActiveRun      *RunResponse        `json:"active_run,omitempty"`
	Tools          *ToolStatusResponse `json:"tools,omitempty"`
}

type ToolStatusResponse struct {
	HasFetcher  bool   `json:"has_fetcher"`
	HasEncoder  bool   `json:"has_encoder"`
	HasProber   bool   `json:"has_prober"`
	LastProbeAt string `json:"last_probe_at,omitempty"`
}

type CreateRunRequest struct {
	Hashtag string `json:"hashtag"`
	Count   int    `json:"count"`
}

type CreateRunResponse struct {
	RunID string `json:"run_id"`
}

type RunResponse struct {
	ID        string `json:"id"`
	Hashtag   string `json:"hashtag"`
	Requested int    `json:"requested"`
	Status    string `json:"status"`
	Attempted int    `json:"attempted"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Progress  int    `json:"progress"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type RunsResponse struct {
	Runs []RunResponse `json:"runs"`
}

type RunItemResponse struct {
	VideoID    string `json:"video_id"`
	SourceURL  string `json:"source_url"`
	Status     string `json:"status"`
	OutputPath string `json:"output_path,omitempty"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
}

type RunItemsResponse struct {
	Items []RunItemResponse `json:"items"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func RunToResponse(run *history.Run) RunResponse {
	return RunResponse{
		ID:        run.ID,
		Hashtag:   run.Hashtag,
		Requested: run.Requested,
		Status:    run.Status,
		Attempted: run.Attempted,
		Succeeded: run.Succeeded,
		Failed:    run.Failed,
		Progress:  run.Progress,
		Error:     run.Error,
		CreatedAt: run.CreatedAt.Format(time.RFC3339),
		UpdatedAt: run.UpdatedAt.Format(time.RFC3339),
	}
}

func RunItemToResponse(item *history.RunItem) RunItemResponse {
	return RunItemResponse{
		VideoID:    item.VideoID,
		SourceURL:  item.SourceURL,
		Status:     item.Status,
		OutputPath: item.OutputPath,
		Error:      item.Error,
		CreatedAt:  item.CreatedAt.Format(time.RFC3339),
	}
}
