package manager

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"genctl/pkg/types"
)

type handlerFunc func(ctx context.Context, payload any) (json.RawMessage, error)

// fakeTransport answers requests per path. Unhandled paths succeed with
// {"success": true}.
type fakeTransport struct {
	mu       sync.Mutex
	handlers map[string]handlerFunc
	calls    map[string]int
	payloads map[string][]any
	order    []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		handlers: make(map[string]handlerFunc),
		calls:    make(map[string]int),
		payloads: make(map[string][]any),
	}
}

func (f *fakeTransport) handle(path string, h handlerFunc) {
	f.mu.Lock()
	f.handlers[path] = h
	f.mu.Unlock()
}

func (f *fakeTransport) Request(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls[path]++
	f.payloads[path] = append(f.payloads[path], payload)
	f.order = append(f.order, path)
	h := f.handlers[path]
	f.mu.Unlock()
	if h == nil {
		return json.RawMessage(`{"success":true}`), nil
	}
	return h(ctx, payload)
}

func (f *fakeTransport) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeTransport) sent(path string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]any, len(f.payloads[path]))
	copy(out, f.payloads[path])
	return out
}

// respond returns a handler answering body.
func respond(body string) handlerFunc {
	return func(context.Context, any) (json.RawMessage, error) {
		return json.RawMessage(body), nil
	}
}

// failWith returns a handler failing with err.
func failWith(err error) handlerFunc {
	return func(context.Context, any) (json.RawMessage, error) {
		return nil, err
	}
}

// gate blocks handlers until released. Each entering call is reported on entered.
type gate struct {
	entered chan any
	release chan struct{}
	once    sync.Once
}

func newGate() *gate {
	return &gate{entered: make(chan any, 16), release: make(chan struct{})}
}

func (g *gate) open() { g.once.Do(func() { close(g.release) }) }

// handler blocks until the gate opens or ctx ends, then answers body.
func (g *gate) handler(body string) handlerFunc {
	return func(ctx context.Context, payload any) (json.RawMessage, error) {
		g.entered <- payload
		select {
		case <-g.release:
			return json.RawMessage(body), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// waitEntered waits for the next call to enter the gate.
func (g *gate) waitEntered(t *testing.T) any {
	t.Helper()
	select {
	case p := <-g.entered:
		return p
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for transport call")
		return nil
	}
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

// newTestManager builds a Manager over ft with the sweep disabled.
func newTestManager(t *testing.T, ft *fakeTransport) *Manager {
	t.Helper()
	m := NewWithConfig(ManagerConfig{Transport: ft, SkipClearSweep: true, OpTimeout: time.Second})
	t.Cleanup(m.Close)
	return m
}

// mustLoad loads ids through the manager and fails the test on error.
func mustLoad(t *testing.T, m *Manager, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if _, err := m.Load(testCtx(t), id, false); err != nil {
			t.Fatalf("load %s: %v", id, err)
		}
	}
}

// waitStatus polls until modelID reaches want.
func waitStatus(t *testing.T, m *Manager, modelID string, want Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, _ := m.StatusOf(modelID); st == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	st, _ := m.StatusOf(modelID)
	t.Fatalf("status of %s: want %s got %s", modelID, want, st)
}

// waitDone waits for j to resolve.
func waitDone(t *testing.T, j *Job) {
	t.Helper()
	select {
	case <-j.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("job %s did not resolve (state %s)", j.ID, j.State())
	}
}

var allModels = []string{types.ModelGenerativeArt, types.ModelGenerativeVideo, types.ModelStreamingGenerative}
