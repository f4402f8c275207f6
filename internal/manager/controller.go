package manager

import (
	"context"

	"genctl/pkg/types"
)

// Controller pairs a Manager with a Dispatcher and speaks wire types. It is
// what the HTTP facade and the CLI drive.
type Controller struct {
	Lifecycle *Manager
	Jobs      *Dispatcher
}

// NewController builds a Manager and a Dispatcher sharing one transport.
func NewController(mc ManagerConfig, dc DispatcherConfig) *Controller {
	m := NewWithConfig(mc)
	if dc.Transport == nil {
		dc.Transport = mc.Transport
	}
	if dc.Logger == nil {
		dc.Logger = mc.Logger
	}
	if dc.Publisher == nil {
		dc.Publisher = mc.Publisher
	}
	return &Controller{Lifecycle: m, Jobs: NewDispatcher(m, dc)}
}

// Close stops the dispatcher first so no job starts against a closing manager.
func (c *Controller) Close() {
	c.Jobs.Close()
	c.Lifecycle.Close()
}

func (c *Controller) Status() types.StatusResponse { return c.Lifecycle.StatusResponse() }

func (c *Controller) Refresh(ctx context.Context) error {
	_, err := c.Lifecycle.Refresh(ctx)
	return err
}

func (c *Controller) Ready() bool { return c.Lifecycle.Ready() }

func (c *Controller) Load(ctx context.Context, modelID string, force bool) (types.ModelRecord, error) {
	rec, err := c.Lifecycle.Load(ctx, modelID, force)
	return rec.API(), err
}

func (c *Controller) Unload(ctx context.Context, modelID string) (types.ModelRecord, error) {
	rec, err := c.Lifecycle.Unload(ctx, modelID)
	return rec.API(), err
}

func (c *Controller) ClearAll(ctx context.Context) types.ClearAllResult {
	return c.Lifecycle.ClearAll(ctx).API()
}

// Generate submits a job and waits for it. When ctx ends first the job is
// cancelled so it does not hold its lane for a caller that is gone.
func (c *Controller) Generate(ctx context.Context, mode, prompt string) (*types.GenerationResponse, error) {
	m, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}
	j, err := c.Jobs.Submit(m, prompt)
	if err != nil {
		return nil, err
	}
	res, err := j.Wait(ctx)
	if ctx.Err() != nil {
		c.Jobs.Cancel(j)
	}
	c.Jobs.Forget(j.ID.String())
	return res, err
}

// SubmitJob queues a job and returns immediately.
func (c *Controller) SubmitJob(mode, prompt string) (types.JobResponse, error) {
	m, err := ParseMode(mode)
	if err != nil {
		return types.JobResponse{}, err
	}
	j, err := c.Jobs.Submit(m, prompt)
	if err != nil {
		return types.JobResponse{}, err
	}
	return j.API(), nil
}

// Job reports a job. A resolved job is forgotten once reported.
func (c *Controller) Job(id string) (types.JobResponse, bool) {
	j, ok := c.Jobs.Lookup(id)
	if !ok {
		return types.JobResponse{}, false
	}
	out := j.API()
	if JobState(out.State).Terminal() {
		c.Jobs.Forget(id)
	}
	return out, true
}

// CancelJob cancels a job and reports its final state.
func (c *Controller) CancelJob(id string) (types.JobResponse, bool) {
	j, ok := c.Jobs.Lookup(id)
	if !ok {
		return types.JobResponse{}, false
	}
	c.Jobs.Cancel(j)
	c.Jobs.Forget(id)
	return j.API(), true
}
