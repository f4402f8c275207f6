package manager

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"genctl/internal/transport"
)

// Manager owns the authoritative view of remote model residency and
// serializes load/unload per model identity.
type Manager struct {
	mu        sync.Mutex
	transport transport.Transport
	records   map[string]*record
	order     []string

	opTimeout  time.Duration
	clearSweep bool

	publisher EventPublisher
	log       zerolog.Logger

	// baseCtx parents every lifecycle transport call; Close cancels it.
	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
	closed  bool
}

// New constructs a Manager tracking the default model identities.
func New(t transport.Transport) *Manager {
	return NewWithConfig(ManagerConfig{Transport: t})
}

// SetEventPublisher replaces the lifecycle event sink. Nil restores the no-op sink.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == nil {
		p = noopPublisher{}
	}
	m.publisher = p
}

// Models returns the tracked identities in configuration order.
func (m *Manager) Models() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Status returns a copy of every record. It never touches the network.
func (m *Manager) Status() map[string]Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Record, len(m.records))
	for id, rec := range m.records {
		out[id] = rec.snapshot()
	}
	return out
}

// Record returns the current record of one identity.
func (m *Manager) Record(modelID string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[modelID]
	if !ok {
		return Record{}, ErrModelNotFound(modelID)
	}
	return rec.snapshot(), nil
}

// StatusOf reports the status of one identity; ok is false for unknown identities.
func (m *Manager) StatusOf(modelID string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[modelID]
	if !ok {
		return "", false
	}
	return rec.status, true
}

// Ready reports whether at least one model is loaded.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.status == StatusLoaded {
			return true
		}
	}
	return false
}

// Close cancels in-flight lifecycle calls and waits for them to settle.
// Records of cancelled operations end up failed.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.stop()
	m.wg.Wait()
}

// begin marks rec as entering kind and attaches a fresh in-flight handle. It
// registers the operation with m.wg, so Close waits for it. Caller must hold
// m.mu and have checked m.closed.
func (m *Manager) begin(rec *record, kind opKind) *operation {
	op := newOperation(kind)
	m.wg.Add(1)
	rec.inFlight = op
	if kind == opLoad {
		rec.status = StatusLoading
	} else {
		rec.status = StatusUnloading
	}
	rec.touch()
	lifecycleInflight.WithLabelValues(kind.String()).Inc()
	return op
}

// settle completes op: the record moves to its terminal status and every
// attached caller is released. apply runs on success, under m.mu.
// op.rec and op.err are written before done closes.
func (m *Manager) settle(op *operation, modelID string, err error, apply func(*record)) {
	m.mu.Lock()
	rec := m.records[modelID]
	if err != nil {
		rec.status = StatusFailed
		rec.lastErr = err.Error()
	} else {
		apply(rec)
		rec.lastErr = ""
	}
	rec.inFlight = nil
	rec.touch()
	op.rec = rec.snapshot()
	op.err = err
	waiters := op.waiters
	pub := m.publisher
	m.mu.Unlock()
	// Waiters are released after the outcome is published so events keep their order.
	defer close(op.done)

	kind := op.kind.String()
	lifecycleInflight.WithLabelValues(kind).Dec()
	if err != nil {
		lifecycleOpsTotal.WithLabelValues(kind, Kind(err)).Inc()
		m.log.Warn().Str("model", modelID).Str("op", kind).Int("waiters", waiters).Err(err).Msg("lifecycle operation failed")
		pub.Publish(Event{Name: kind + "_failed", ModelID: modelID, Fields: map[string]any{"error": err.Error(), "kind": Kind(err)}})
		return
	}
	lifecycleOpsTotal.WithLabelValues(kind, "ok").Inc()
	m.log.Info().Str("model", modelID).Str("op", kind).Int("waiters", waiters).Str("status", string(op.rec.Status)).Msg("lifecycle operation done")
	pub.Publish(Event{Name: kind + "_done", ModelID: modelID, Fields: map[string]any{"status": string(op.rec.Status)}})
}

// await blocks until op settles or ctx ends. A caller leaving early does not
// affect the operation; it still settles the record under its own timeout.
func (m *Manager) await(ctx context.Context, op *operation, modelID string) (Record, error) {
	select {
	case <-op.done:
		return op.rec, op.err
	case <-ctx.Done():
		return Record{}, classify(op.kind.String(), modelID, ctx.Err())
	}
}

// spawn runs fn on its own goroutine with a context bounded by the op timeout.
// The operation was already counted in m.wg by begin.
func (m *Manager) spawn(fn func(ctx context.Context)) {
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(m.baseCtx, m.opTimeout)
		defer cancel()
		fn(ctx)
	}()
}
