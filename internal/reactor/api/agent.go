package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"native-exporter/internal/reactor/wire"
	"native-exporter/internal/worker"
)

// --- Dashboard Handler ---

func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authenticate(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Dashboard upgrade failed", "error", err)
		return
	}

	h.Hub.Register(conn)

	// Keep connection open
	for {
		if _, _, err := conn.NextReader(); err != nil {
			h.Hub.Unregister(conn)
			break
		}
	}
}

// --- Agent Handlers ---

func (h *Handler) verifyAgent(w http.ResponseWriter, r *http.Request) (string, bool) {
	agentKeyRaw := r.Header.Get("X-Agent-Key")
	if agentKeyRaw == "" {
		http.Error(w, "Missing Agent Key", http.StatusUnauthorized)
		return "", false
	}

	apiKey, err := h.Store.VerifyAPIKey(agentKeyRaw)
	if err != nil {
		slog.Warn("Invalid Agent Key", "prefix", safePrefix(agentKeyRaw), "error", err)
		http.Error(w, "Invalid Agent Key", http.StatusUnauthorized)
		return "", false
	}
	return apiKey.Type, true
}

func safePrefix(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}

// HandleControl keeps an agent's control socket registered with the hub,
// which writes job commands to it.
func (h *Handler) HandleControl(w http.ResponseWriter, r *http.Request) {
	keyType, ok := h.verifyAgent(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	id := h.Hub.AddAgent(conn, keyType)
	defer h.Hub.RemoveAgent(id)

	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}
}

// HandleData receives the batches of a dispatched job and exports them
// through the pool.
func (h *Handler) HandleData(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.verifyAgent(w, r); !ok {
		return
	}

	jobID := r.URL.Query().Get("job_id")
	job, ok := h.Pool.Lookup(jobID)
	if !ok || job.Source.Kind != worker.SourceAgent {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if job.Status() != worker.StatusPending {
		http.Error(w, "Job already streaming or finished", http.StatusConflict)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	defer job.Cancel()

	slog.Info("Agent Connected (Data Stream)", "job_id", jobID)

	src, err := wire.NewReader(&wire.WSReader{Conn: conn})
	if err != nil {
		h.Pool.Fail(job, err)
		return
	}
	if src.Header().JobID != job.ID {
		h.Pool.Fail(job, fmt.Errorf("stream header names job %q", src.Header().JobID))
		return
	}

	if err := h.Pool.Export(job, src); err != nil {
		h.Pool.Fail(job, err)
		return
	}

	slog.Info("Data Stream Complete", "job_id", jobID, "total_rows", job.Info().Rows)
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
}
