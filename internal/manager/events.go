package manager

// Event is a lifecycle or job event: a name, the model it concerns (empty for
// events spanning several models) and optional fields.
//
// Names: load_start, load_done, load_failed, unload_start, unload_done,
// unload_failed, clear_start, clear_done, status_reconciled, job_queued,
// job_started, job_succeeded, job_failed, job_cancelled.
type Event struct {
	Name    string
	ModelID string
	Fields  map[string]any
}

// EventPublisher receives events. Implementations should be lightweight and
// non-blocking; Publish must not panic. Publish is never called with a lock held.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// MultiPublisher fans an event out to several publishers in order.
type MultiPublisher []EventPublisher

func (mp MultiPublisher) Publish(e Event) {
	for _, p := range mp {
		if p != nil {
			p.Publish(e)
		}
	}
}
