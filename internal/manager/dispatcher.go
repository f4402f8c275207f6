package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"genctl/internal/transport"
	"genctl/pkg/types"
)

// Scheduling selects how jobs share the remote compute resource.
type Scheduling string

const (
	// ScheduleGlobal runs one job at a time across all modes, FIFO.
	ScheduleGlobal Scheduling = "global"
	// SchedulePerModel runs one job at a time per backing model; different
	// models proceed concurrently.
	SchedulePerModel Scheduling = "per-model"
)

const globalLane = "global"

// ModelStatusReader reports lifecycle status. *Manager implements it.
type ModelStatusReader interface {
	StatusOf(modelID string) (Status, bool)
}

// Dispatcher turns generation intents into preset requests and runs them
// through bounded FIFO lanes, one in-flight job per lane.
type Dispatcher struct {
	mu         sync.Mutex
	models     ModelStatusReader
	transport  transport.Transport
	capacity   int
	timeout    time.Duration
	retention  time.Duration
	scheduling Scheduling
	lanes      map[string]*lane
	jobs       map[string]*Job
	closed     bool

	publisher EventPublisher
	log       zerolog.Logger

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// Capacity returns the per-lane queue capacity.
func (d *Dispatcher) Capacity() int { return d.capacity }

// Scheduling returns the active scheduling policy.
func (d *Dispatcher) Scheduling() Scheduling { return d.scheduling }

// Submit validates prompt, checks that the mode's model is loaded and queues
// the job. It never blocks on the remote service and never triggers a load.
func (d *Dispatcher) Submit(mode Mode, prompt string) (*Job, error) {
	preset, ok := PresetFor(mode)
	if !ok {
		return nil, ErrInvalidInput(fmt.Sprintf("unknown mode %q", mode))
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrInvalidInput("prompt is required")
	}
	if st := d.statusOf(preset.ModelID); st != StatusLoaded {
		jobsTotal.WithLabelValues(string(mode), KindNotReady).Inc()
		return nil, notReadyError{modelID: preset.ModelID, status: st}
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, cancelledError{op: "submit", modelID: preset.ModelID}
	}
	l := d.laneFor(preset.ModelID)
	if !l.admit(d.capacity) {
		d.mu.Unlock()
		backpressureTotal.WithLabelValues(string(mode)).Inc()
		jobsTotal.WithLabelValues(string(mode), KindBackpressure).Inc()
		d.log.Warn().Str("mode", string(mode)).Str("lane", l.key).Int("capacity", d.capacity).Msg("queue full, rejecting job")
		return nil, backpressureError{lane: l.key, capacity: d.capacity}
	}
	j := newJob(preset, prompt, l.key)
	l.push(j)
	d.jobs[j.ID.String()] = j
	depth := len(l.queue)
	pub := d.publisher
	d.mu.Unlock()

	l.signal()
	d.log.Debug().Str("job", j.ID.String()).Str("mode", string(mode)).Int("queue", depth).Msg("job queued")
	pub.Publish(Event{Name: "job_queued", ModelID: j.ModelID, Fields: map[string]any{"job": j.ID.String(), "mode": string(mode)}})
	return j, nil
}

// Cancel resolves j as cancelled. A queued job is removed from its lane and
// never reaches the remote service. A running job has its transport call
// abandoned locally; the remote side may still finish the work. Cancel
// reports false when j was already resolved.
func (d *Dispatcher) Cancel(j *Job) bool {
	d.mu.Lock()
	if l := d.lanes[j.lane]; l != nil {
		l.remove(j)
	}
	d.mu.Unlock()
	return d.finish(j, nil, cancelledError{op: "generate", modelID: j.ModelID})
}

// Lookup returns a tracked job by id.
func (d *Dispatcher) Lookup(id string) (*Job, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	j, ok := d.jobs[id]
	return j, ok
}

// Forget drops a job from the lookup table once its caller consumed the result.
// Resolved jobs are also forgotten automatically after the retention window.
func (d *Dispatcher) Forget(id string) {
	d.mu.Lock()
	delete(d.jobs, id)
	d.mu.Unlock()
}

// QueueLen returns the number of jobs waiting in every lane.
func (d *Dispatcher) QueueLen() map[string]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]int, len(d.lanes))
	for k, l := range d.lanes {
		out[k] = len(l.queue)
	}
	return out
}

// Close cancels queued and running jobs and stops the lane workers.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	var pending []*Job
	for _, l := range d.lanes {
		pending = append(pending, l.queue...)
		l.queue = nil
		queueDepth.WithLabelValues(l.key).Set(0)
	}
	d.mu.Unlock()

	for _, j := range pending {
		d.finish(j, nil, cancelledError{op: "generate", modelID: j.ModelID})
	}
	d.stop()
	d.wg.Wait()
}

// statusOf reports an untracked model as unloaded.
func (d *Dispatcher) statusOf(modelID string) Status {
	if st, ok := d.models.StatusOf(modelID); ok {
		return st
	}
	return StatusUnloaded
}

// laneFor returns the lane serving modelID, starting its worker on first use.
// Caller must hold d.mu.
func (d *Dispatcher) laneFor(modelID string) *lane {
	key := globalLane
	if d.scheduling == SchedulePerModel {
		key = modelID
	}
	l, ok := d.lanes[key]
	if !ok {
		l = newLane(key)
		d.lanes[key] = l
		d.wg.Add(1)
		go d.runLane(l)
	}
	return l
}

// execute performs the transport call of a running job.
func (d *Dispatcher) execute(ctx context.Context, j *Job) {
	// The model may have been unloaded while the job waited.
	if st := d.statusOf(j.ModelID); st != StatusLoaded {
		d.finish(j, nil, notReadyError{modelID: j.ModelID, status: st})
		return
	}
	d.log.Info().Str("job", j.ID.String()).Str("mode", string(j.Mode)).Msg("job started")
	d.publisher.Publish(Event{Name: "job_started", ModelID: j.ModelID, Fields: map[string]any{"job": j.ID.String()}})

	start := time.Now()
	body, err := d.transport.Request(ctx, http.MethodPost, j.preset.Path, j.preset.Request(j.Prompt))
	jobDuration.WithLabelValues(string(j.Mode)).Observe(time.Since(start).Seconds())
	if err != nil {
		d.finish(j, nil, classify("generate", j.ModelID, err))
		return
	}
	if msg, failed := failureMessage(body, false); failed {
		d.finish(j, nil, remoteError{op: "generate", modelID: j.ModelID, msg: msg})
		return
	}
	var resp types.GenerationResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil {
			d.finish(j, nil, fmt.Errorf("decode %s response: %w", j.Mode, err))
			return
		}
	}
	d.finish(j, &resp, nil)
}

// finish resolves j and records its outcome. Only the first resolution counts.
func (d *Dispatcher) finish(j *Job, res *types.GenerationResponse, err error) bool {
	state := JobSucceeded
	switch {
	case IsCancelled(err):
		state = JobCancelled
	case err != nil:
		state = JobFailed
	}
	if !j.resolve(state, res, err) {
		return false
	}
	result := "ok"
	if err != nil {
		result = Kind(err)
	}
	jobsTotal.WithLabelValues(string(j.Mode), result).Inc()
	ev := d.log.Info()
	if err != nil {
		ev = d.log.Warn().Err(err)
	}
	ev.Str("job", j.ID.String()).Str("mode", string(j.Mode)).Str("state", string(state)).Msg("job resolved")
	d.publisher.Publish(Event{Name: "job_" + string(state), ModelID: j.ModelID, Fields: map[string]any{"job": j.ID.String(), "result": result}})
	j.release()
	// Jobs nobody polls are dropped once the retention window passes.
	id := j.ID.String()
	time.AfterFunc(d.retention, func() { d.Forget(id) })
	return true
}
