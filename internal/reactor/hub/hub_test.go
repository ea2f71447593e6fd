package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"native-exporter/internal/reactor/wire"
	"native-exporter/internal/worker"
)

type fakeConn struct {
	mu     sync.Mutex
	msgs   [][]byte
	fail   bool
	closed bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.msgs = append(c.msgs, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) updates(t *testing.T) []DashboardUpdate {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []DashboardUpdate
	for _, m := range c.msgs {
		var u DashboardUpdate
		require.NoError(t, json.Unmarshal(m, &u))
		out = append(out, u)
	}
	return out
}

func TestBroadcastDropsBrokenDashboards(t *testing.T) {
	h := NewHub()
	good := &fakeConn{}
	bad := &fakeConn{fail: true}
	h.Register(good)
	h.Register(bad)

	h.Broadcast(DashboardUpdate{Type: "agent_update", AgentCount: 1})
	h.Broadcast(DashboardUpdate{Type: "agent_update", AgentCount: 2})

	require.Len(t, good.updates(t), 2)
	require.True(t, bad.closed)

	h.Unregister(good)
	require.True(t, good.closed)
}

func TestJobUpdateTypes(t *testing.T) {
	h := NewHub()
	dash := &fakeConn{}
	h.Register(dash)

	h.JobUpdate(worker.JobInfo{ID: "j", Status: worker.StatusPending})
	h.JobUpdate(worker.JobInfo{ID: "j", Status: worker.StatusProcessing})
	h.JobUpdate(worker.JobInfo{ID: "j", Status: worker.StatusProcessing, Rows: 1024})
	h.JobUpdate(worker.JobInfo{ID: "j", Status: worker.StatusCompleted, Rows: 2000})
	h.JobUpdate(worker.JobInfo{ID: "k", Status: worker.StatusFailed, Error: "boom"})

	var types []string
	for _, u := range dash.updates(t) {
		types = append(types, u.Type)
	}
	require.Equal(t, []string{"job_queued", "job_start", "progress", "job_complete", "job_failed"}, types)

	last := dash.updates(t)[4]
	require.Equal(t, "boom", last.Error)
	require.Equal(t, "FAILED", last.Status)
}

func TestDispatchRoundRobin(t *testing.T) {
	h := NewHub()
	_, err := h.Dispatch(wire.JobCommand{ID: "1", Query: "SELECT 1"})
	require.ErrorIs(t, err, ErrNoAgents)

	a, b := &fakeConn{}, &fakeConn{}
	idA := h.AddAgent(a, "live")
	idB := h.AddAgent(b, "test")
	require.Equal(t, 2, h.AgentCount())

	got1, err := h.Dispatch(wire.JobCommand{ID: "1", Query: "SELECT 1"})
	require.NoError(t, err)
	got2, err := h.Dispatch(wire.JobCommand{ID: "2", Query: "SELECT 2"})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{idA, idB}, []string{got1, got2})

	var cmd wire.JobCommand
	require.Len(t, a.msgs, 1)
	require.NoError(t, json.Unmarshal(a.msgs[0], &cmd))
	require.Equal(t, "1", cmd.ID)

	// A failing agent is skipped.
	a.fail = true
	for i := 0; i < 3; i++ {
		got, err := h.Dispatch(wire.JobCommand{ID: "x"})
		require.NoError(t, err)
		require.Equal(t, idB, got)
	}

	h.RemoveAgent(idB)
	_, err = h.Dispatch(wire.JobCommand{ID: "y"})
	require.ErrorIs(t, err, ErrNoAgents)

	h.RemoveAgent(idA)
	require.Zero(t, h.AgentCount())
}

func TestAgentCountBroadcast(t *testing.T) {
	h := NewHub()
	dash := &fakeConn{}
	h.Register(dash)

	id := h.AddAgent(&fakeConn{}, "live")
	h.RemoveAgent(id)

	updates := dash.updates(t)
	require.Len(t, updates, 2)
	require.Equal(t, 1, updates[0].AgentCount)
	require.Equal(t, 0, updates[1].AgentCount)
}
