package manager

import (
	"context"
	"encoding/json"
	"net/http"

	"genctl/pkg/types"
)

// Load makes modelID resident on the remote service.
//
//   - fails with a conflict while an unload of modelID is in flight;
//   - returns the current record when already loaded and forceReload is false;
//   - attaches to a load already in flight instead of issuing another call;
//   - otherwise moves to loading and calls POST /models/load, ending in
//     loaded or failed.
//
// ctx only bounds the caller's wait; the transport call runs under the
// manager's operation timeout.
func (m *Manager) Load(ctx context.Context, modelID string, forceReload bool) (Record, error) {
	m.mu.Lock()
	rec, ok := m.records[modelID]
	if !ok {
		m.mu.Unlock()
		return Record{}, ErrModelNotFound(modelID)
	}
	if op := rec.inFlight; op != nil {
		if op.kind == opUnload {
			m.mu.Unlock()
			lifecycleOpsTotal.WithLabelValues("load", KindConflict).Inc()
			return Record{}, conflictError{modelID: modelID, op: "load", inFlight: "unload"}
		}
		op.waiters++
		m.mu.Unlock()
		lifecycleCoalescedTotal.WithLabelValues("load").Inc()
		m.log.Debug().Str("model", modelID).Msg("load coalesced onto in-flight operation")
		return m.await(ctx, op, modelID)
	}
	if !forceReload && rec.status == StatusLoaded {
		snap := rec.snapshot()
		m.mu.Unlock()
		return snap, nil
	}
	if m.closed {
		m.mu.Unlock()
		return Record{}, cancelledError{op: "load", modelID: modelID}
	}
	op := m.begin(rec, opLoad)
	pub := m.publisher
	m.mu.Unlock()

	m.log.Info().Str("model", modelID).Bool("force_reload", forceReload).Msg("loading model")
	pub.Publish(Event{Name: "load_start", ModelID: modelID, Fields: map[string]any{"force_reload": forceReload}})
	m.spawn(func(ctx context.Context) { m.runLoad(ctx, op, modelID, forceReload) })
	return m.await(ctx, op, modelID)
}

func (m *Manager) runLoad(ctx context.Context, op *operation, modelID string, forceReload bool) {
	body, err := m.transport.Request(ctx, http.MethodPost, "/models/load", types.LoadModelRequest{
		ModelType:   modelID,
		ForceReload: forceReload,
	})
	if err != nil {
		m.settle(op, modelID, classify("load", modelID, err), nil)
		return
	}
	if msg, failed := failureMessage(body, true); failed {
		m.settle(op, modelID, remoteError{op: "load", modelID: modelID, msg: msg}, nil)
		return
	}
	var resp types.LoadModelResponse
	if len(body) > 0 {
		// Metadata is best effort; the envelope already said the load succeeded.
		_ = json.Unmarshal(body, &resp)
	}
	m.settle(op, modelID, nil, func(rec *record) {
		rec.status = StatusLoaded
		rec.loadingTime = resp.LoadingTime
		rec.memoryUsageMB = resp.MemoryUsageMB
	})
}
