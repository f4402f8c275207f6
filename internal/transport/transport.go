// Package transport performs request/response exchanges with the remote
// generation service. It knows nothing about model lifecycle; it moves JSON
// and reports failures as *Error.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
)

// Transport performs one exchange with the remote service. payload may be nil.
// A nil error means the service answered with a 2xx status; the returned body
// may be empty.
type Transport interface {
	Request(ctx context.Context, method, path string, payload any) (json.RawMessage, error)
}

// Error is a transport level failure: either no response was received
// (Status == 0) or the response status was not 2xx.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return "transport: " + e.Message
	}
	return fmt.Sprintf("transport: remote returned %d: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }
