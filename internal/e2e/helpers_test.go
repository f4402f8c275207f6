package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"genctl/pkg/types"
)

// remoteService mimics the generation service closely enough for the
// controller: residency is tracked and generation echoes a fixed result.
type remoteService struct {
	mu       sync.Mutex
	loaded   map[string]bool
	requests map[string]int
	srv      *httptest.Server
}

func newRemoteService(t *testing.T, loaded ...string) *remoteService {
	t.Helper()
	rs := &remoteService{loaded: map[string]bool{}, requests: map[string]int{}}
	for _, id := range loaded {
		rs.loaded[id] = true
	}
	rs.srv = httptest.NewServer(http.HandlerFunc(rs.serve))
	t.Cleanup(rs.srv.Close)
	return rs
}

func (rs *remoteService) serve(w http.ResponseWriter, r *http.Request) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.requests[r.URL.Path]++
	w.Header().Set("Content-Type", "application/json")
	var req types.LoadModelRequest
	switch r.URL.Path {
	case "/models/status":
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": rs.loaded})
	case "/models/load":
		_ = json.NewDecoder(r.Body).Decode(&req)
		rs.loaded[req.ModelType] = true
		_, _ = io.WriteString(w, `{"success":true,"loading_time":1.5,"memory_usage_mb":2048}`)
	case "/models/unload":
		_ = json.NewDecoder(r.Body).Decode(&req)
		delete(rs.loaded, req.ModelType)
		_, _ = io.WriteString(w, `{"success":true}`)
	case "/models/clear-all":
		rs.loaded = map[string]bool{}
		_, _ = io.WriteString(w, `{"success":true}`)
	case "/generate-art", "/generate-streaming":
		_, _ = io.WriteString(w, `{"success":true,"image_base64":"aW1n"}`)
	case "/generate-video":
		_, _ = io.WriteString(w, `{"success":true,"video_url":"/videos/v.mp4","num_frames":32,"fps":8}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"not found"}`)
	}
}

func (rs *remoteService) count(path string) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.requests[path]
}

// freeAddr picks an available TCP address on localhost.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func waitHTTP(t *testing.T, url string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("%s not ready after %v", url, timeout)
}

func httpDo(t *testing.T, method, url string, payload any) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, body)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	out, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, out
}

func decode(t *testing.T, b []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("decode %s: %v", string(b), err)
	}
}
