package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"genctl/pkg/types"
)

// StatusResponse builds the wire form of Status for GET /models/status.
func (m *Manager) StatusResponse() types.StatusResponse {
	snap := m.Status()
	resp := types.StatusResponse{Success: true, Data: make(map[string]types.ModelRecord, len(snap))}
	for id, rec := range snap {
		resp.Data[id] = rec.API()
	}
	return resp
}

// Refresh asks the remote service which models are resident and reconciles
// records that have no operation in flight: a model reported loaded becomes
// loaded, a loaded model reported absent becomes unloaded. Failed records keep
// their error unless the model is reported loaded. A record that changed
// while the request was out is left alone, since the answer predates it.
// Identities the manager does not track are ignored.
func (m *Manager) Refresh(ctx context.Context) (map[string]Record, error) {
	m.mu.Lock()
	seen := make(map[string]uint64, len(m.records))
	for id, rec := range m.records {
		seen[id] = rec.version
	}
	m.mu.Unlock()

	body, err := m.transport.Request(ctx, http.MethodGet, "/models/status", nil)
	if err != nil {
		return nil, classify("status", "*", err)
	}
	if msg, failed := failureMessage(body, false); failed {
		return nil, remoteError{op: "status", modelID: "*", msg: msg}
	}
	var resp types.RemoteStatusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode remote status: %w", err)
	}

	m.mu.Lock()
	var changed, stale []string
	for id, st := range resp.Data {
		rec, ok := m.records[id]
		if !ok || rec.inFlight != nil {
			continue
		}
		if rec.version != seen[id] {
			stale = append(stale, id)
			continue
		}
		switch {
		case st.Loaded && rec.status != StatusLoaded:
			rec.status = StatusLoaded
			rec.lastErr = ""
		case !st.Loaded && rec.status == StatusLoaded:
			rec.status = StatusUnloaded
			rec.loadingTime = 0
			rec.memoryUsageMB = 0
		default:
			continue
		}
		rec.touch()
		changed = append(changed, id)
	}
	pub := m.publisher
	m.mu.Unlock()

	if len(stale) > 0 {
		m.log.Debug().Strs("models", stale).Msg("remote status predates local transition, skipped")
	}
	for _, id := range changed {
		st, _ := m.StatusOf(id)
		m.log.Info().Str("model", id).Str("status", string(st)).Msg("status reconciled from remote")
		pub.Publish(Event{Name: "status_reconciled", ModelID: id, Fields: map[string]any{"status": string(st)}})
	}
	return m.Status(), nil
}
