package manager

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"genctl/pkg/types"
)

// maxClearAttempts bounds how often ClearAll retries an unload that lost a
// race against a load started after ClearAll looked at the record.
const maxClearAttempts = 3

// ClearOutcome is the result of clearing one model.
type ClearOutcome struct {
	Record Record
	Err    error
}

// ClearResult aggregates per-model outcomes of ClearAll.
type ClearResult struct {
	Models map[string]ClearOutcome
	// SweepErr is the failure of the remote clear-all call, if it ran.
	SweepErr error
	// Swept reports whether the remote clear-all call was issued.
	Swept bool
	// SweepSkipped names why an enabled sweep was not issued. A skipped sweep
	// is not a failure.
	SweepSkipped string
}

// Failed returns the identities that did not unload, sorted.
func (r ClearResult) Failed() []string {
	var out []string
	for id, o := range r.Models {
		if o.Err != nil {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Err combines every per-model failure and the sweep failure. Nil when clean.
func (r ClearResult) Err() error {
	var err error
	for _, id := range r.Failed() {
		err = multierr.Append(err, r.Models[id].Err)
	}
	return multierr.Append(err, r.SweepErr)
}

// API converts the result into its wire form.
func (r ClearResult) API() types.ClearAllResult {
	out := types.ClearAllResult{Success: r.Err() == nil, Models: make(map[string]types.ClearOutcome, len(r.Models))}
	for id, o := range r.Models {
		co := types.ClearOutcome{Status: string(o.Record.Status)}
		if o.Err != nil {
			co.Error = o.Err.Error()
			if co.Status == "" {
				co.Status = string(StatusFailed)
			}
		}
		out.Models[id] = co
	}
	if r.SweepErr != nil {
		out.SweepError = r.SweepErr.Error()
	}
	out.SweepSkipped = r.SweepSkipped
	return out
}

// ClearAll unloads every model that is loaded or loading and waits for all of
// them to settle. Loads in flight are awaited first, then unloaded. Failures
// are collected per model; one failing model never stops the others. When
// enabled, a remote POST /models/clear-all follows as a final sweep; it does
// not change any record.
func (m *Manager) ClearAll(ctx context.Context) ClearResult {
	m.mu.Lock()
	var targets []string
	for _, id := range m.order {
		rec := m.records[id]
		if rec.status == StatusLoaded || rec.status == StatusLoading || rec.status == StatusUnloading {
			targets = append(targets, id)
		}
	}
	pub := m.publisher
	m.mu.Unlock()

	m.log.Info().Strs("models", targets).Msg("clearing models")
	pub.Publish(Event{Name: "clear_start", Fields: map[string]any{"models": targets}})

	res := ClearResult{Models: make(map[string]ClearOutcome, len(targets))}
	var mu sync.Mutex
	// Every goroutine returns nil: failures are data here, not a reason to stop siblings.
	var g errgroup.Group
	for _, id := range targets {
		g.Go(func() error {
			rec, err := m.clearOne(ctx, id)
			mu.Lock()
			res.Models[id] = ClearOutcome{Record: rec, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if m.clearSweep {
		res.Swept, res.SweepSkipped, res.SweepErr = m.sweep(ctx)
		if res.SweepSkipped != "" {
			m.log.Info().Str("reason", res.SweepSkipped).Msg("remote clear-all sweep skipped")
		}
	}

	failed := res.Failed()
	lifecycleOpsTotal.WithLabelValues("clear_all", clearLabel(failed, res.SweepErr)).Inc()
	if err := res.Err(); err != nil {
		m.log.Warn().Strs("failed", failed).Err(err).Msg("clear-all finished with failures")
	} else {
		m.log.Info().Int("cleared", len(targets)).Msg("clear-all finished")
	}
	pub.Publish(Event{Name: "clear_done", Fields: map[string]any{"failed": failed}})
	return res
}

func (m *Manager) clearOne(ctx context.Context, modelID string) (Record, error) {
	var (
		rec Record
		err error
	)
	for attempt := 0; attempt < maxClearAttempts; attempt++ {
		rec, err = m.Unload(ctx, modelID)
		if !IsConflict(err) {
			break
		}
		if werr := m.waitIdle(ctx, modelID); werr != nil {
			err = werr
			break
		}
	}
	if err != nil {
		// Report the record as it stands; a failed wait leaves it untouched.
		if cur, rerr := m.Record(modelID); rerr == nil {
			rec = cur
		}
	}
	return rec, err
}

// sweep issues the remote clear-all. It is skipped while any lifecycle
// operation is in flight, since the remote side would unload under it; the
// skip reason is returned instead of an error.
func (m *Manager) sweep(ctx context.Context) (swept bool, skipped string, err error) {
	m.mu.Lock()
	for _, id := range m.order {
		if op := m.records[id].inFlight; op != nil {
			m.mu.Unlock()
			return false, op.kind.String() + " of " + id + " in flight", nil
		}
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()
	body, err := m.transport.Request(ctx, http.MethodPost, "/models/clear-all", nil)
	if err != nil {
		return true, "", classify("clear-all", "*", err)
	}
	if msg, failed := failureMessage(body, false); failed {
		return true, "", remoteError{op: "clear-all", modelID: "*", msg: msg}
	}
	return true, "", nil
}

func clearLabel(failed []string, sweepErr error) string {
	switch {
	case len(failed) > 0:
		return "partial"
	case sweepErr != nil:
		return "sweep_failed"
	default:
		return "ok"
	}
}
