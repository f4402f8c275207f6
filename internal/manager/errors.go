package manager

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"genctl/internal/transport"
)

// Error kinds, as reported by Kind and used for metrics labels and API bodies.
const (
	KindTransport    = "transport_error"
	KindConflict     = "conflicting_operation"
	KindNotReady     = "model_not_ready"
	KindInvalidInput = "invalid_input"
	KindBackpressure = "backpressure"
	KindTimeout      = "timeout"
	KindCancelled    = "cancelled"
	KindNotFound     = "model_not_found"
	KindRemote       = "remote_failure"
	KindUnknown      = "unknown"
)

// conflictError signals a lifecycle op requested while the opposite op is in flight.
type conflictError struct {
	modelID  string
	op       string
	inFlight string
}

func (e conflictError) Error() string {
	return fmt.Sprintf("conflicting operation: cannot %s %s while %s is in flight", e.op, e.modelID, e.inFlight)
}

func (e conflictError) StatusCode() int { return http.StatusConflict }

// IsConflict reports whether err is a ConflictingOperation failure.
func IsConflict(err error) bool {
	var e conflictError
	return errors.As(err, &e)
}

// notReadyError signals a generation request against a model that is not loaded.
type notReadyError struct {
	modelID string
	status  Status
}

func (e notReadyError) Error() string {
	return fmt.Sprintf("model not ready: %s is %s", e.modelID, e.status)
}

func (e notReadyError) StatusCode() int { return http.StatusConflict }

// IsModelNotReady reports whether err is a ModelNotReady failure.
func IsModelNotReady(err error) bool {
	var e notReadyError
	return errors.As(err, &e)
}

type invalidInputError struct{ msg string }

func (e invalidInputError) Error() string { return "invalid input: " + e.msg }

func (e invalidInputError) StatusCode() int { return http.StatusBadRequest }

// ErrInvalidInput constructs an InvalidInput failure.
func ErrInvalidInput(msg string) error { return invalidInputError{msg: msg} }

// IsInvalidInput reports whether err is an InvalidInput failure.
func IsInvalidInput(err error) bool {
	var e invalidInputError
	return errors.As(err, &e)
}

// backpressureError signals a full admission queue (return 429).
type backpressureError struct {
	lane     string
	capacity int
}

func (e backpressureError) Error() string {
	return fmt.Sprintf("backpressure: queue %s is full (capacity %d)", e.lane, e.capacity)
}

func (e backpressureError) StatusCode() int { return http.StatusTooManyRequests }

// IsBackpressure reports whether err indicates a full queue.
func IsBackpressure(err error) bool {
	var e backpressureError
	return errors.As(err, &e)
}

type timeoutError struct {
	op      string
	modelID string
}

func (e timeoutError) Error() string { return fmt.Sprintf("timeout: %s %s", e.op, e.modelID) }

func (e timeoutError) StatusCode() int { return http.StatusGatewayTimeout }

func (e timeoutError) Unwrap() error { return context.DeadlineExceeded }

// IsTimeout reports whether err is a Timeout failure.
func IsTimeout(err error) bool {
	var e timeoutError
	return errors.As(err, &e)
}

type cancelledError struct {
	op      string
	modelID string
}

func (e cancelledError) Error() string { return fmt.Sprintf("cancelled: %s %s", e.op, e.modelID) }

// StatusCode uses the de facto "client closed request" code.
func (e cancelledError) StatusCode() int { return 499 }

func (e cancelledError) Unwrap() error { return context.Canceled }

// IsCancelled reports whether err is a Cancelled failure.
func IsCancelled(err error) bool {
	var e cancelledError
	return errors.As(err, &e)
}

// modelNotFoundError is returned for identities the manager does not track.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

func (e modelNotFoundError) StatusCode() int { return http.StatusNotFound }

// ErrModelNotFound returns an error when a requested model id is not known.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates an unknown model id.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// remoteError is a 2xx answer whose body reports failure (success=false).
type remoteError struct {
	op      string
	modelID string
	msg     string
}

func (e remoteError) Error() string {
	return fmt.Sprintf("remote failure: %s %s: %s", e.op, e.modelID, e.msg)
}

func (e remoteError) StatusCode() int { return http.StatusBadGateway }

// IsRemoteFailure reports whether the remote service rejected the operation in its response body.
func IsRemoteFailure(err error) bool {
	var e remoteError
	return errors.As(err, &e)
}

// IsTransport reports whether err is a network or non-2xx failure.
func IsTransport(err error) bool {
	var e *transport.Error
	return errors.As(err, &e)
}

// Kind names the category of err. Wrapped errors are unwrapped.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsConflict(err):
		return KindConflict
	case IsModelNotReady(err):
		return KindNotReady
	case IsInvalidInput(err):
		return KindInvalidInput
	case IsBackpressure(err):
		return KindBackpressure
	case IsTimeout(err):
		return KindTimeout
	case IsCancelled(err):
		return KindCancelled
	case IsModelNotFound(err):
		return KindNotFound
	case IsRemoteFailure(err):
		return KindRemote
	case IsTransport(err):
		return KindTransport
	default:
		return KindUnknown
	}
}

// classify turns a raw transport or context error into the taxonomy.
func classify(op, modelID string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return timeoutError{op: op, modelID: modelID}
	case errors.Is(err, context.Canceled):
		return cancelledError{op: op, modelID: modelID}
	case IsTransport(err):
		return fmt.Errorf("%s %s: %w", op, modelID, err)
	default:
		return err
	}
}
