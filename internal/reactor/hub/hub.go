package hub

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"native-exporter/internal/reactor/wire"
	"native-exporter/internal/worker"
)

var ErrNoAgents = errors.New("no agent connected")

// Conn is the part of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type DashboardUpdate struct {
	Type       string `json:"type"` // "job_queued", "job_start", "progress", "job_complete", "job_failed", "agent_update"
	JobID      string `json:"job_id,omitempty"`
	Rows       int64  `json:"rows,omitempty"`
	Status     string `json:"status,omitempty"`
	Error      string `json:"error,omitempty"`
	AgentCount int    `json:"agent_count,omitempty"`
}

type agent struct {
	id      string
	keyType string
	conn    Conn
	// mu serializes writes; websocket connections allow one writer.
	mu sync.Mutex
}

// Hub fans job and agent updates out to dashboards and dispatches agent
// jobs to connected agents in turn.
type Hub struct {
	dashboards map[Conn]bool
	agents     []*agent
	next       int
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		dashboards: make(map[Conn]bool),
	}
}

func (h *Hub) Register(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dashboards[conn] = true
	slog.Info("Dashboard Connected", "total_connections", len(h.dashboards))
}

func (h *Hub) Unregister(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.dashboards[conn]; ok {
		delete(h.dashboards, conn)
		conn.Close()
		slog.Info("Dashboard Disconnected", "total_connections", len(h.dashboards))
	}
}

func (h *Hub) DashboardCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.dashboards)
}

func (h *Hub) Broadcast(update DashboardUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(update)
}

func (h *Hub) broadcastLocked(update DashboardUpdate) {
	payload, _ := json.Marshal(update)
	for conn := range h.dashboards {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			slog.Error("Dashboard broadcast failed", "error", err)
			conn.Close()
			delete(h.dashboards, conn)
		}
	}
}

// JobUpdate broadcasts a job state change.
func (h *Hub) JobUpdate(info worker.JobInfo) {
	update := DashboardUpdate{
		JobID:  info.ID,
		Rows:   info.Rows,
		Status: string(info.Status),
		Error:  info.Error,
	}
	switch info.Status {
	case worker.StatusPending:
		update.Type = "job_queued"
	case worker.StatusProcessing:
		update.Type = "job_start"
		if info.Rows > 0 {
			update.Type = "progress"
		}
	case worker.StatusCompleted:
		update.Type = "job_complete"
	case worker.StatusFailed:
		update.Type = "job_failed"
	}
	h.Broadcast(update)
}

// AddAgent registers an agent control connection and returns its id.
func (h *Hub) AddAgent(conn Conn, keyType string) string {
	a := &agent{id: uuid.NewString(), keyType: keyType, conn: conn}

	h.mu.Lock()
	h.agents = append(h.agents, a)
	count := len(h.agents)
	h.broadcastLocked(DashboardUpdate{Type: "agent_update", AgentCount: count})
	h.mu.Unlock()

	slog.Info("Agent Connected (Control)", "agent_id", a.id, "type", keyType, "agents", count)
	return a.id
}

func (h *Hub) RemoveAgent(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, a := range h.agents {
		if a.id == id {
			h.agents = append(h.agents[:i], h.agents[i+1:]...)
			slog.Info("Agent Disconnected (Control)", "agent_id", id, "agents", len(h.agents))
			h.broadcastLocked(DashboardUpdate{Type: "agent_update", AgentCount: len(h.agents)})
			return
		}
	}
}

func (h *Hub) AgentCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.agents)
}

// Dispatch sends cmd to the next agent, trying the others in turn if a
// write fails. It returns the id of the agent that accepted the command.
func (h *Hub) Dispatch(cmd wire.JobCommand) (string, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return "", err
	}

	h.mu.Lock()
	candidates := make([]*agent, 0, len(h.agents))
	for i := range h.agents {
		candidates = append(candidates, h.agents[(h.next+i)%len(h.agents)])
	}
	h.next++
	h.mu.Unlock()

	if len(candidates) == 0 {
		return "", ErrNoAgents
	}

	var lastErr error
	for _, a := range candidates {
		a.mu.Lock()
		err := a.conn.WriteMessage(websocket.TextMessage, payload)
		a.mu.Unlock()
		if err == nil {
			slog.Info("Dispatched Job", "job_id", cmd.ID, "agent_id", a.id, "sandbox", a.keyType == "test")
			return a.id, nil
		}
		slog.Warn("Dispatch to agent failed", "agent_id", a.id, "error", err)
		lastErr = err
	}
	return "", errors.Join(ErrNoAgents, lastErr)
}
