package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestSendsJSONAndReturnsBody(t *testing.T) {
	var gotMethod, gotPath, gotCT string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotCT = r.Method, r.URL.Path, r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"loaded":true}`)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL + "/"})
	body, err := c.Request(context.Background(), http.MethodPost, "/models/load", map[string]any{"model_type": "generative_art", "force_reload": false})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"loaded":true}`, string(body))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/models/load", gotPath)
	assert.Equal(t, "application/json", gotCT)
	assert.Equal(t, "generative_art", gotBody["model_type"])
	assert.Equal(t, false, gotBody["force_reload"])
}

func TestRequestWithoutPayloadSendsNoBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		assert.Empty(t, b)
		assert.Empty(t, r.Header.Get("Content-Type"))
	}))
	defer srv.Close()

	body, err := New(Options{BaseURL: srv.URL}).Request(context.Background(), http.MethodPost, "/models/clear-all", nil)
	require.NoError(t, err)
	assert.Nil(t, body)
}

func TestRequestNon2xxIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"detail":"Model loading failed: CUDA out of memory"}`)
	}))
	defer srv.Close()

	_, err := New(Options{BaseURL: srv.URL}).Request(context.Background(), http.MethodPost, "/models/load", nil)
	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusInternalServerError, te.Status)
	assert.Equal(t, "Model loading failed: CUDA out of memory", te.Message)
}

func TestRequestNetworkFailureHasNoStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(Options{BaseURL: url}).Request(context.Background(), http.MethodGet, "/models/status", nil)
	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.Status)
}

func TestRequestDeadlineReturnsContextError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(Options{BaseURL: srv.URL, Timeout: 30 * time.Millisecond})
	_, err := c.Request(context.Background(), http.MethodPost, "/generate-art", map[string]string{"prompt": "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestBreakerOpensAfterConsecutiveServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, BreakerFailures: 2, BreakerOpen: time.Minute})
	for i := 0; i < 2; i++ {
		_, err := c.Request(context.Background(), http.MethodGet, "/models/status", nil)
		require.Error(t, err)
	}
	assert.Equal(t, "open", c.BreakerState())

	_, err := c.Request(context.Background(), http.MethodGet, "/models/status", nil)
	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Message, "circuit open")
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not reach the server")
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, BreakerFailures: 1})
	for i := 0; i < 3; i++ {
		_, err := c.Request(context.Background(), http.MethodPost, "/models/load", nil)
		var te *Error
		require.ErrorAs(t, err, &te)
		assert.Equal(t, http.StatusUnprocessableEntity, te.Status)
	}
	assert.Equal(t, "closed", c.BreakerState())
}
