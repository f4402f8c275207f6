package manager

import (
	"context"
	"net/http"

	"genctl/pkg/types"
)

// Unload releases modelID on the remote service. It mirrors Load: a conflict
// while a load is in flight, coalescing onto an unload in flight, and a no-op
// when the model is already unloaded.
func (m *Manager) Unload(ctx context.Context, modelID string) (Record, error) {
	m.mu.Lock()
	rec, ok := m.records[modelID]
	if !ok {
		m.mu.Unlock()
		return Record{}, ErrModelNotFound(modelID)
	}
	if op := rec.inFlight; op != nil {
		if op.kind == opLoad {
			m.mu.Unlock()
			lifecycleOpsTotal.WithLabelValues("unload", KindConflict).Inc()
			return Record{}, conflictError{modelID: modelID, op: "unload", inFlight: "load"}
		}
		op.waiters++
		m.mu.Unlock()
		lifecycleCoalescedTotal.WithLabelValues("unload").Inc()
		m.log.Debug().Str("model", modelID).Msg("unload coalesced onto in-flight operation")
		return m.await(ctx, op, modelID)
	}
	if rec.status == StatusUnloaded {
		snap := rec.snapshot()
		m.mu.Unlock()
		return snap, nil
	}
	if m.closed {
		m.mu.Unlock()
		return Record{}, cancelledError{op: "unload", modelID: modelID}
	}
	op := m.begin(rec, opUnload)
	pub := m.publisher
	m.mu.Unlock()

	m.log.Info().Str("model", modelID).Msg("unloading model")
	pub.Publish(Event{Name: "unload_start", ModelID: modelID, Fields: map[string]any{}})
	m.spawn(func(ctx context.Context) { m.runUnload(ctx, op, modelID) })
	return m.await(ctx, op, modelID)
}

func (m *Manager) runUnload(ctx context.Context, op *operation, modelID string) {
	body, err := m.transport.Request(ctx, http.MethodPost, "/models/unload", types.UnloadModelRequest{ModelType: modelID})
	if err != nil {
		m.settle(op, modelID, classify("unload", modelID, err), nil)
		return
	}
	if msg, failed := failureMessage(body, false); failed {
		m.settle(op, modelID, remoteError{op: "unload", modelID: modelID, msg: msg}, nil)
		return
	}
	m.settle(op, modelID, nil, func(rec *record) {
		rec.status = StatusUnloaded
		rec.loadingTime = 0
		rec.memoryUsageMB = 0
	})
}

// waitIdle blocks until modelID has no in-flight operation or ctx ends.
func (m *Manager) waitIdle(ctx context.Context, modelID string) error {
	m.mu.Lock()
	rec, ok := m.records[modelID]
	if !ok {
		m.mu.Unlock()
		return ErrModelNotFound(modelID)
	}
	op := rec.inFlight
	m.mu.Unlock()
	if op == nil {
		return nil
	}
	select {
	case <-op.done:
		return nil
	case <-ctx.Done():
		return classify("wait", modelID, ctx.Err())
	}
}
