package manager

import (
	"context"
)

// lane is a FIFO of waiting jobs plus at most one running job. All fields are
// guarded by Dispatcher.mu except wake.
type lane struct {
	key     string
	queue   []*Job
	running *Job
	wake    chan struct{}
}

func newLane(key string) *lane {
	return &lane{key: key, wake: make(chan struct{}, 1)}
}

// admit reports whether one more job fits. Capacity counts waiting jobs only,
// so an idle lane accepts one extra job that its worker is about to pick up.
func (l *lane) admit(capacity int) bool {
	limit := capacity
	if l.running == nil {
		limit++
	}
	return len(l.queue) < limit
}

func (l *lane) push(j *Job) {
	l.queue = append(l.queue, j)
	queueDepth.WithLabelValues(l.key).Set(float64(len(l.queue)))
}

// remove drops j from the waiting queue. It reports false if j is not waiting.
func (l *lane) remove(j *Job) bool {
	for i, q := range l.queue {
		if q == j {
			copy(l.queue[i:], l.queue[i+1:])
			l.queue[len(l.queue)-1] = nil
			l.queue = l.queue[:len(l.queue)-1]
			queueDepth.WithLabelValues(l.key).Set(float64(len(l.queue)))
			return true
		}
	}
	return false
}

// signal wakes the lane worker without blocking.
func (l *lane) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// runLane executes jobs of l one at a time until the dispatcher closes.
func (d *Dispatcher) runLane(l *lane) {
	defer d.wg.Done()
	for {
		j, ctx := d.next(l)
		if j == nil {
			return
		}
		d.execute(ctx, j)
		d.mu.Lock()
		l.running = nil
		d.mu.Unlock()
	}
}

// next admits the head of the queue into the running slot, waiting for work
// when the lane is empty. Jobs resolved while queued are skipped.
func (d *Dispatcher) next(l *lane) (*Job, context.Context) {
	for {
		d.mu.Lock()
		for len(l.queue) > 0 {
			j := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			queueDepth.WithLabelValues(l.key).Set(float64(len(l.queue)))
			ctx, cancel := context.WithTimeout(d.baseCtx, d.timeout)
			if !j.start(cancel) {
				cancel()
				continue
			}
			l.running = j
			d.mu.Unlock()
			return j, ctx
		}
		d.mu.Unlock()

		select {
		case <-l.wake:
		case <-d.baseCtx.Done():
			return nil, nil
		}
	}
}
