package e2e

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"genctl/internal/cli"
	"genctl/pkg/types"
)

// startServe runs `genctl serve` in-process against rs and returns its base URL.
func startServe(t *testing.T, rs *remoteService, extra ...string) string {
	t.Helper()
	addr := freeAddr(t)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	args := append([]string{"--base-url", rs.srv.URL, "--log-level", "error", "serve", "--addr", addr}, extra...)
	go func() { errc <- cli.ExecuteContext(ctx, args, io.Discard, io.Discard) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errc:
			if err != nil {
				t.Errorf("serve returned %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Errorf("serve did not stop")
		}
	})
	base := "http://" + addr
	waitHTTP(t, base+"/healthz", 5*time.Second)
	return base
}

func TestServe_ReconcilesOnStartup(t *testing.T) {
	rs := newRemoteService(t, "generative_art")
	base := startServe(t, rs)

	resp, body := httpDo(t, http.MethodGet, base+"/models/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code %d", resp.StatusCode)
	}
	var st types.StatusResponse
	decode(t, body, &st)
	if st.Data["generative_art"].Status != "loaded" {
		t.Fatalf("generative_art = %+v", st.Data["generative_art"])
	}
	if resp, _ := httpDo(t, http.MethodGet, base+"/readyz", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz = %d", resp.StatusCode)
	}
}

func TestServe_LifecycleAndGeneration(t *testing.T) {
	rs := newRemoteService(t)
	base := startServe(t, rs)

	resp, body := httpDo(t, http.MethodPost, base+"/generate-video", types.PromptRequest{Prompt: "waves"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("generate before load = %d %s", resp.StatusCode, body)
	}
	if rs.count("/models/load") != 0 {
		t.Fatalf("generation must not trigger a load")
	}

	resp, body = httpDo(t, http.MethodPost, base+"/models/load", types.LoadModelRequest{ModelType: "generative_video"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("load = %d %s", resp.StatusCode, body)
	}
	var rec types.ModelRecord
	decode(t, body, &rec)
	if rec.Status != "loaded" || rec.MemoryUsageMB != 2048 {
		t.Fatalf("record = %+v", rec)
	}

	resp, body = httpDo(t, http.MethodPost, base+"/generate-video", types.PromptRequest{Prompt: "waves"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate = %d %s", resp.StatusCode, body)
	}
	var gen types.GenerationResponse
	decode(t, body, &gen)
	if gen.VideoURL != "/videos/v.mp4" {
		t.Fatalf("generation = %+v", gen)
	}

	resp, body = httpDo(t, http.MethodPost, base+"/jobs", types.JobRequest{Mode: "video", Prompt: "rain"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit = %d %s", resp.StatusCode, body)
	}
	var job types.JobResponse
	decode(t, body, &job)
	deadline := time.Now().Add(3 * time.Second)
	for job.State != "succeeded" {
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in %s", job.State)
		}
		time.Sleep(10 * time.Millisecond)
		resp, body = httpDo(t, http.MethodGet, base+"/jobs/"+job.ID, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("job lookup = %d %s", resp.StatusCode, body)
		}
		decode(t, body, &job)
	}

	resp, body = httpDo(t, http.MethodPost, base+"/models/clear-all", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clear-all = %d %s", resp.StatusCode, body)
	}
	if rs.count("/models/clear-all") != 1 {
		t.Fatalf("remote sweep not issued")
	}
	if resp, _ := httpDo(t, http.MethodGet, base+"/readyz", nil); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz after clear-all = %d", resp.StatusCode)
	}
}

func TestServe_CORSFromFlag(t *testing.T) {
	rs := newRemoteService(t)
	base := startServe(t, rs, "--cors-origins", "http://localhost:5173")

	req, _ := http.NewRequest(http.MethodOptions, base+"/jobs", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	_ = resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("allow origin = %q", got)
	}
}
