package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"native-exporter/internal/exporter"
	"native-exporter/internal/reactor/wire"
	"native-exporter/internal/security"
	"native-exporter/internal/worker"
)

const (
	maxRequestBody = 1 << 20
	historyLimit   = 100
)

type ExportRequest struct {
	Source worker.Source `json:"source"`
	Email  string        `json:"email,omitempty"`
	Format string        `json:"format,omitempty"`
}

type ExportResponse struct {
	JobID   string           `json:"job_id"`
	Status  worker.JobStatus `json:"status"`
	AgentID string           `json:"agent_id,omitempty"`
}

func validateExport(req ExportRequest, remoteDriver string) (exporter.Format, error) {
	if err := req.Source.Validate(); err != nil {
		return "", err
	}
	switch req.Source.Kind {
	case worker.SourceFile, worker.SourceFolder:
		if err := security.ValidateSourceKey(req.Source.Key); err != nil {
			return "", err
		}
	case worker.SourceRemote, worker.SourceAgent:
		if err := security.ValidateRemoteQuery(remoteDriver, req.Source.Query); err != nil {
			return "", err
		}
	}
	if req.Email != "" {
		if err := security.ValidateEmail(req.Email); err != nil {
			return "", err
		}
	}
	return exporter.ParseFormat(req.Format)
}

// HandleExport accepts a signed export request and queues it. Agent
// sources are dispatched to a connected agent instead of the queue.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	err = security.VerifyHMAC(h.Settings.APISecret, r.Method, r.URL.Path, string(body),
		r.Header.Get("X-Timestamp"), r.Header.Get("X-Signature"))
	if err != nil {
		slog.Warn("Rejected export request", "error", err, "remote", r.RemoteAddr)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req ExportRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	format, err := validateExport(req, h.Settings.RemoteDriver)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := worker.NewExportJob(req.Source, req.Email, format, h.Settings.JobTimeout)
	resp := ExportResponse{JobID: job.ID, Status: worker.StatusPending}

	if req.Source.Kind == worker.SourceAgent {
		agentID, err := h.dispatch(job)
		if err != nil {
			http.Error(w, "No agent available", http.StatusServiceUnavailable)
			return
		}
		resp.AgentID = agentID
		writeJSON(w, http.StatusAccepted, resp)
		return
	}

	if err := h.Pool.Submit(job); err != nil {
		job.Cancel()
		if errors.Is(err, worker.ErrQueueFull) {
			http.Error(w, "Server busy, try again later", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	slog.Info("Job queued", "job_id", job.ID, "source", req.Source.Kind, "format", format)
	writeJSON(w, http.StatusAccepted, resp)
}

// dispatch tracks an agent job and hands its query to an agent. The job
// fails if no data stream claims it before its timeout.
func (h *Handler) dispatch(job *worker.ExportJob) (string, error) {
	h.Pool.Track(job)

	agentID, err := h.Hub.Dispatch(wire.JobCommand{ID: job.ID, Query: job.Source.Query})
	if err != nil {
		job.Cancel()
		h.Pool.Fail(job, fmt.Errorf("dispatch failed: %w", err))
		return "", err
	}

	go func() {
		<-job.Ctx.Done()
		if job.Status() == worker.StatusPending {
			h.Pool.Fail(job, fmt.Errorf("agent %s never streamed data: %w", agentID, job.Ctx.Err()))
		}
	}()
	return agentID, nil
}

func (h *Handler) HandleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, err := h.authenticate(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	jobs := []worker.JobInfo{}
	seen := make(map[string]bool)
	for _, info := range h.Pool.Jobs() {
		if claims.Email == "" || info.Email == claims.Email {
			jobs = append(jobs, info)
			seen[info.ID] = true
		}
	}

	if h.Store != nil {
		history, err := h.Store.ListJobs(claims.Email, historyLimit)
		if err != nil {
			slog.Warn("Job history unavailable", "error", err)
		}
		for _, info := range history {
			if !seen[info.ID] {
				jobs = append(jobs, info)
			}
		}
	}

	writeJSON(w, http.StatusOK, jobs)
}

func (h *Handler) HandleJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, err := h.authenticate(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	job, ok := h.Pool.Lookup(r.PathValue("id"))
	if !ok || (claims.Email != "" && job.Email != claims.Email) {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Info())
}
