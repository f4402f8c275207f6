package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

const (
	defaultConnectTimeout  = 10 * time.Second
	defaultBreakerFailures = 5
	defaultBreakerOpen     = 30 * time.Second
	// maxResponseBytes bounds a response body; base64 images fit comfortably.
	maxResponseBytes = 64 << 20
	// maxErrorBody bounds how much of a non-2xx body ends up in an error message.
	maxErrorBody = 4096
)

// Options configures an HTTP Client. Zero values select defaults.
type Options struct {
	BaseURL string
	// Timeout applies to requests whose context carries no deadline. Zero disables it.
	Timeout        time.Duration
	ConnectTimeout time.Duration
	// BreakerFailures is the number of consecutive failures that opens the breaker.
	BreakerFailures uint32
	// BreakerOpen is how long the breaker stays open before probing again.
	BreakerOpen time.Duration
	Logger      *zerolog.Logger
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// Client implements Transport over HTTP with JSON bodies.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[json.RawMessage]
	log        zerolog.Logger
}

// New constructs an HTTP transport client.
func New(opts Options) *Client {
	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	cli := opts.HTTPClient
	if cli == nil {
		tr := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   connectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
		// Timeout stays 0: every request carries a context deadline instead.
		cli = &http.Client{Transport: tr, Timeout: 0}
	}
	failures := opts.BreakerFailures
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	openFor := opts.BreakerOpen
	if openFor <= 0 {
		openFor = defaultBreakerOpen
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = opts.Logger.With().Str("component", "transport").Logger()
	}
	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		timeout:    opts.Timeout,
		httpClient: cli,
		log:        log,
	}
	c.breaker = gobreaker.NewCircuitBreaker[json.RawMessage](gobreaker.Settings{
		Name:        "remote",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: countsAsHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				breakerOpen.Set(1)
			} else {
				breakerOpen.Set(0)
			}
			c.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return c
}

// BaseURL returns the remote service base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// BreakerState reports the circuit breaker state (closed, half-open, open).
func (c *Client) BreakerState() string { return c.breaker.State().String() }

// Request sends payload as JSON and returns the raw response body.
func (c *Client) Request(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	body, err := c.breaker.Execute(func() (json.RawMessage, error) {
		return c.do(ctx, method, path, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &Error{Message: "circuit open: remote service marked unavailable", Err: err}
	}
	return body, err
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	var rd io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, &Error{Message: "encode payload: " + err.Error(), Err: err}
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, &Error{Message: "build request: " + err.Error(), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Context expiry and cancellation are reported as-is so callers can tell them apart.
		observe(path, 0, time.Since(start).Seconds())
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.Debug().Str("method", method).Str("path", path).Err(err).Msg("request failed")
		return nil, &Error{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()
	observe(path, resp.StatusCode, time.Since(start).Seconds())
	c.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Dur("dur", time.Since(start)).Msg("request done")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &Error{Status: resp.StatusCode, Message: errorDetail(resp.Status, b)}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Status: resp.StatusCode, Message: "read body: " + err.Error(), Err: err}
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}
	return json.RawMessage(b), nil
}

// errorDetail prefers the FastAPI style {"detail": "..."} message when present.
func errorDetail(status string, body []byte) string {
	var fa struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &fa); err == nil {
		if s, ok := fa.Detail.(string); ok && s != "" {
			return s
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return status
	}
	return msg
}

// countsAsHealthy keeps caller cancellations and 4xx answers from tripping the breaker.
func countsAsHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var te *Error
	if errors.As(err, &te) && te.Status >= 400 && te.Status < 500 {
		return true
	}
	return false
}
