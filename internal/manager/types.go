package manager

import (
	"time"

	"genctl/pkg/types"
)

// Status is the lifecycle state of one model identity.
type Status string

const (
	StatusUnloaded  Status = "unloaded"
	StatusLoading   Status = "loading"
	StatusLoaded    Status = "loaded"
	StatusUnloading Status = "unloading"
	StatusFailed    Status = "failed"
)

// Record is a read-only copy of a model's lifecycle state.
type Record struct {
	ModelID   string
	Status    Status
	LastError string
	UpdatedAt time.Time
	// Reported by the remote service on the last successful load.
	LoadingTime   float64
	MemoryUsageMB float64
}

// API converts the record into its wire form.
func (r Record) API() types.ModelRecord {
	out := types.ModelRecord{
		ModelType:     r.ModelID,
		Status:        string(r.Status),
		LastError:     r.LastError,
		LoadingTime:   r.LoadingTime,
		MemoryUsageMB: r.MemoryUsageMB,
	}
	if !r.UpdatedAt.IsZero() {
		out.UpdatedAt = r.UpdatedAt.Unix()
	}
	return out
}

type opKind int

const (
	opLoad opKind = iota + 1
	opUnload
)

func (k opKind) String() string {
	switch k {
	case opLoad:
		return "load"
	case opUnload:
		return "unload"
	default:
		return "unknown"
	}
}

// operation is the in-flight handle of a load or unload. Callers arriving while
// it runs wait on done instead of issuing another transport call.
type operation struct {
	kind    opKind
	done    chan struct{}
	waiters int
	// Set before done is closed.
	rec Record
	err error
}

func newOperation(kind opKind) *operation {
	return &operation{kind: kind, done: make(chan struct{}), waiters: 1}
}

// record is the mutable per-identity state, guarded by Manager.mu.
type record struct {
	id            string
	status        Status
	lastErr       string
	inFlight      *operation
	updatedAt     time.Time
	// version increments on every transition. Refresh compares it to
	// discard remote answers that predate a local change.
	version       uint64
	loadingTime   float64
	memoryUsageMB float64
}

// touch stamps a transition.
func (r *record) touch() {
	r.updatedAt = time.Now()
	r.version++
}

func (r *record) snapshot() Record {
	return Record{
		ModelID:       r.id,
		Status:        r.status,
		LastError:     r.lastErr,
		UpdatedAt:     r.updatedAt,
		LoadingTime:   r.loadingTime,
		MemoryUsageMB: r.memoryUsageMB,
	}
}
