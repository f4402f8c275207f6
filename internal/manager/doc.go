// Package manager coordinates remote model residency and generation jobs for
// a remote generation service. It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, status getters, Close.
//   - config.go: ManagerConfig, DispatcherConfig and package defaults.
//   - types.go: Status, Record and the in-flight operation handle.
//   - errors.go: error types, Is* helpers and Kind.
//   - load.go, unload.go: per-model lifecycle state machine with coalescing.
//   - clear.go: ClearAll and its aggregated ClearResult.
//   - status_report.go: wire-form status and Refresh from the remote service.
//   - reply.go: detection of failures reported inside 2xx bodies.
//   - modes.go: generation modes and their fixed request presets.
//   - dispatcher.go: Dispatcher, Submit/Cancel and job bookkeeping.
//   - admission.go: bounded FIFO lanes and their workers.
//   - job.go: the Job handle.
//   - controller.go: Controller, the wire-typed pairing used by the facade and CLI.
//   - events.go, eventpub_*.go: event publishers.
//   - metrics.go: Prometheus collectors.
//
// Lifecycle transport calls run on goroutines owned by the Manager and are
// bounded by its operation timeout, so a caller that stops waiting never
// leaves a record stuck in loading or unloading. No lock is held across a
// transport call.
//
// The Dispatcher never loads models. Submitting against a model that is not
// loaded fails fast; readiness is checked again when a queued job starts.
package manager
