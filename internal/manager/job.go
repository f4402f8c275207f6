package manager

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"genctl/pkg/types"
)

// JobState is the resolution state of a generation job.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	return s == JobSucceeded || s == JobFailed || s == JobCancelled
}

// Job is the handle of a submitted generation request. Its resolution is
// observed through Done, Wait or Result; none of them start work.
type Job struct {
	ID          uuid.UUID
	Mode        Mode
	ModelID     string
	Prompt      string
	SubmittedAt time.Time

	preset Preset
	lane   string

	mu     sync.Mutex
	state  JobState
	result *types.GenerationResponse
	err    error
	cancel context.CancelFunc
	done   chan struct{}
}

func newJob(p Preset, prompt, lane string) *Job {
	return &Job{
		ID:          uuid.New(),
		Mode:        p.Mode,
		ModelID:     p.ModelID,
		Prompt:      prompt,
		SubmittedAt: time.Now(),
		preset:      p,
		lane:        lane,
		state:       JobQueued,
		done:        make(chan struct{}),
	}
}

// Done is closed once the job is resolved.
func (j *Job) Done() <-chan struct{} { return j.done }

// State returns the current state.
func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Result returns the outcome. Before resolution it returns nil, nil.
func (j *Job) Result() (*types.GenerationResponse, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result, j.err
}

// Wait blocks until the job resolves or ctx ends. Leaving early does not cancel the job.
func (j *Job) Wait(ctx context.Context) (*types.GenerationResponse, error) {
	select {
	case <-j.done:
		return j.Result()
	case <-ctx.Done():
		return nil, classify("wait", j.ModelID, ctx.Err())
	}
}

// API converts the job into its wire form.
func (j *Job) API() types.JobResponse {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := types.JobResponse{
		ID:          j.ID.String(),
		Mode:        string(j.Mode),
		State:       string(j.state),
		SubmittedAt: j.SubmittedAt.Unix(),
		Result:      j.result,
	}
	if j.err != nil {
		out.Error = j.err.Error()
		out.ErrorKind = Kind(j.err)
	}
	return out
}

// resolve records the outcome unless the job is already resolved. It reports
// whether this call resolved the job; only that caller may release it.
func (j *Job) resolve(state JobState, res *types.GenerationResponse, err error) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return false
	}
	j.state = state
	j.result = res
	j.err = err
	if j.cancel != nil {
		j.cancel()
	}
	return true
}

// release wakes everyone waiting on the job.
func (j *Job) release() { close(j.done) }

// start moves a queued job to running and binds its cancel func. It fails if
// the job was resolved in the meantime.
func (j *Job) start(cancel context.CancelFunc) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != JobQueued {
		return false
	}
	j.state = JobRunning
	j.cancel = cancel
	return true
}
