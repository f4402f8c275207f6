package manager

import (
	"encoding/json"
	"testing"
	"time"

	"genctl/pkg/types"
)

func newTestDispatcher(t *testing.T, ft *fakeTransport, m *Manager, cfg DispatcherConfig) *Dispatcher {
	t.Helper()
	cfg.Transport = ft
	d := NewDispatcher(m, cfg)
	t.Cleanup(d.Close)
	return d
}

func promptOf(t *testing.T, payload any) string {
	t.Helper()
	req, ok := payload.(types.GenerationRequest)
	if !ok {
		t.Fatalf("unexpected payload %#v", payload)
	}
	return req.Prompt
}

func TestNewDispatcherDefaults(t *testing.T) {
	d := NewDispatcher(nil, DispatcherConfig{})
	defer d.Close()
	if d.Capacity() != defaultQueueCapacity {
		t.Fatalf("expected capacity %d, got %d", defaultQueueCapacity, d.Capacity())
	}
	if d.timeout != defaultRequestTimeout {
		t.Fatalf("expected timeout %v, got %v", defaultRequestTimeout, d.timeout)
	}
	if d.Scheduling() != ScheduleGlobal {
		t.Fatalf("expected global scheduling, got %s", d.Scheduling())
	}
	if d.retention != defaultJobRetention {
		t.Fatalf("expected retention %v, got %v", defaultJobRetention, d.retention)
	}
	d2 := NewDispatcher(nil, DispatcherConfig{Scheduling: "bogus"})
	defer d2.Close()
	if d2.Scheduling() != ScheduleGlobal {
		t.Fatalf("unknown scheduling should fall back to global")
	}
}

func TestSubmit_InvalidInput(t *testing.T) {
	ft := newFakeTransport()
	m := newTestManager(t, ft)
	mustLoad(t, m, allModels...)
	d := newTestDispatcher(t, ft, m, DispatcherConfig{})

	if _, err := d.Submit("sculpture", "a cat"); !IsInvalidInput(err) {
		t.Fatalf("expected invalid input for unknown mode, got %v", err)
	}
	for _, p := range []string{"", "   \n\t"} {
		if _, err := d.Submit(ModeArt, p); !IsInvalidInput(err) {
			t.Fatalf("expected invalid input for prompt %q, got %v", p, err)
		}
	}
	if ft.count("/generate-art") != 0 {
		t.Fatalf("invalid submissions reached the transport")
	}
}

func TestSubmit_NotReadyNeverLoads(t *testing.T) {
	ft := newFakeTransport()
	m := newTestManager(t, ft)
	d := newTestDispatcher(t, ft, m, DispatcherConfig{})

	_, err := d.Submit(ModeVideo, "waves")
	if !IsModelNotReady(err) {
		t.Fatalf("expected model not ready, got %v", err)
	}
	if ft.count("/generate-video") != 0 || ft.count("/models/load") != 0 {
		t.Fatalf("not-ready submission must not touch the transport")
	}
}

func TestSubmit_SendsPresetRequest(t *testing.T) {
	cases := []struct {
		mode Mode
		path string
		want types.GenerationParams
		wire string
	}{
		{ModeArt, "/generate-art", types.GenerationParams{NumInferenceSteps: 70, GuidanceScale: 5.0, Width: 512, Height: 512},
			`{"prompt":"a lighthouse","num_inference_steps":70,"guidance_scale":5,"width":512,"height":512}`},
		{ModeVideo, "/generate-video", types.GenerationParams{NumFrames: 32, NumInferenceSteps: 4, GuidanceScale: 1.0, Width: 512, Height: 512},
			`{"prompt":"a lighthouse","num_frames":32,"num_inference_steps":4,"guidance_scale":1,"width":512,"height":512}`},
		{ModeStreaming, "/generate-streaming", types.GenerationParams{NumInferenceSteps: 2, GuidanceScale: 0.0, Width: 512, Height: 512},
			`{"prompt":"a lighthouse","num_inference_steps":2,"guidance_scale":0,"width":512,"height":512}`},
	}
	ft := newFakeTransport()
	m := newTestManager(t, ft)
	mustLoad(t, m, allModels...)
	d := newTestDispatcher(t, ft, m, DispatcherConfig{})

	for _, tc := range cases {
		t.Run(string(tc.mode), func(t *testing.T) {
			j, err := d.Submit(tc.mode, "a lighthouse")
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if _, err := j.Wait(testCtx(t)); err != nil {
				t.Fatalf("Wait: %v", err)
			}
			sent := ft.sent(tc.path)
			if len(sent) != 1 {
				t.Fatalf("expected 1 call to %s, got %d", tc.path, len(sent))
			}
			want := types.GenerationRequest{Prompt: "a lighthouse", GenerationParams: tc.want}
			got := sent[0].(types.GenerationRequest)
			if got != want {
				t.Fatalf("payload mismatch:\n got %+v\nwant %+v", got, want)
			}
			b, err := json.Marshal(got)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(b) != tc.wire {
				t.Fatalf("wire form mismatch:\n got %s\nwant %s", b, tc.wire)
			}
		})
	}
}

func TestJob_SucceedsWithResult(t *testing.T) {
	ft := newFakeTransport()
	ft.handle("/generate-art", respond(`{"success":true,"image_base64":"aGVsbG8=","prompt_used":"a cat","model_used":"prompthero/openjourney","processing_time":1.5}`))
	m := newTestManager(t, ft)
	mustLoad(t, m, types.ModelGenerativeArt)
	pub := NewMemoryPublisher()
	d := newTestDispatcher(t, ft, m, DispatcherConfig{Publisher: pub})

	j, err := d.Submit(ModeArt, "a cat")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	res, err := j.Wait(testCtx(t))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res.ImageBase64 != "aGVsbG8=" || res.ModelUsed != "prompthero/openjourney" || res.ProcessingTime != 1.5 {
		t.Fatalf("unexpected result %+v", res)
	}
	if j.State() != JobSucceeded {
		t.Fatalf("expected succeeded, got %s", j.State())
	}
	api := j.API()
	if api.State != "succeeded" || api.Result == nil || api.Error != "" {
		t.Fatalf("unexpected wire form %+v", api)
	}
	names := pub.Names()
	if len(names) != 3 || names[2] != "job_succeeded" {
		t.Fatalf("unexpected events %v", names)
	}
	seen := map[string]bool{}
	for _, n := range names {
		seen[n] = true
	}
	if !seen["job_queued"] || !seen["job_started"] {
		t.Fatalf("expected job_queued and job_started, got %v", names)
	}
}

func TestJob_RemoteFailure(t *testing.T) {
	ft := newFakeTransport()
	ft.handle("/generate-streaming", respond(`{"success":false,"message":"nsfw content detected"}`))
	m := newTestManager(t, ft)
	mustLoad(t, m, types.ModelStreamingGenerative)
	d := newTestDispatcher(t, ft, m, DispatcherConfig{})

	j, err := d.Submit(ModeStreaming, "x")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := j.Wait(testCtx(t)); !IsRemoteFailure(err) {
		t.Fatalf("expected remote failure, got %v", err)
	}
	if j.State() != JobFailed || j.API().ErrorKind != KindRemote {
		t.Fatalf("unexpected job %+v", j.API())
	}
}

func TestJob_Timeout(t *testing.T) {
	ft := newFakeTransport()
	g := newGate()
	ft.handle("/generate-video", g.handler(`{"success":true}`))
	m := newTestManager(t, ft)
	mustLoad(t, m, types.ModelGenerativeVideo)
	d := newTestDispatcher(t, ft, m, DispatcherConfig{RequestTimeout: 30 * time.Millisecond})

	j, err := d.Submit(ModeVideo, "slow")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := j.Wait(testCtx(t)); !IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if j.State() != JobFailed {
		t.Fatalf("expected failed, got %s", j.State())
	}
}

func TestSubmit_BackpressureAndFIFO(t *testing.T) {
	ft := newFakeTransport()
	g := newGate()
	ft.handle("/generate-art", g.handler(`{"success":true}`))
	m := newTestManager(t, ft)
	mustLoad(t, m, types.ModelGenerativeArt)
	d := newTestDispatcher(t, ft, m, DispatcherConfig{QueueCapacity: 2})

	j1, err := d.Submit(ModeArt, "p1")
	if err != nil {
		t.Fatalf("Submit p1: %v", err)
	}
	g.waitEntered(t)
	j2, err := d.Submit(ModeArt, "p2")
	if err != nil {
		t.Fatalf("Submit p2: %v", err)
	}
	j3, err := d.Submit(ModeArt, "p3")
	if err != nil {
		t.Fatalf("Submit p3: %v", err)
	}
	if _, err := d.Submit(ModeArt, "p4"); !IsBackpressure(err) {
		t.Fatalf("expected backpressure, got %v", err)
	}
	if j2.State() != JobQueued || j3.State() != JobQueued {
		t.Fatalf("expected p2 and p3 queued")
	}
	if q := d.QueueLen()[globalLane]; q != 2 {
		t.Fatalf("expected 2 waiting, got %d", q)
	}

	g.open()
	for _, j := range []*Job{j1, j2, j3} {
		if _, err := j.Wait(testCtx(t)); err != nil {
			t.Fatalf("job %s: %v", j.Prompt, err)
		}
	}
	sent := ft.sent("/generate-art")
	if len(sent) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(sent))
	}
	for i, want := range []string{"p1", "p2", "p3"} {
		if got := promptOf(t, sent[i]); got != want {
			t.Fatalf("call %d: expected %s, got %s", i, want, got)
		}
	}
}

func TestCancel_QueuedJobNeverSent(t *testing.T) {
	ft := newFakeTransport()
	g := newGate()
	ft.handle("/generate-art", g.handler(`{"success":true}`))
	m := newTestManager(t, ft)
	mustLoad(t, m, types.ModelGenerativeArt)
	d := newTestDispatcher(t, ft, m, DispatcherConfig{})

	j1, _ := d.Submit(ModeArt, "first")
	g.waitEntered(t)
	j2, _ := d.Submit(ModeArt, "dropped")
	j3, _ := d.Submit(ModeArt, "third")

	if !d.Cancel(j2) {
		t.Fatalf("expected cancel of queued job to succeed")
	}
	if d.Cancel(j2) {
		t.Fatalf("second cancel should report already resolved")
	}
	if _, err := j2.Wait(testCtx(t)); !IsCancelled(err) {
		t.Fatalf("expected cancelled, got %v", err)
	}

	g.open()
	waitDone(t, j1)
	waitDone(t, j3)
	for _, p := range ft.sent("/generate-art") {
		if promptOf(t, p) == "dropped" {
			t.Fatalf("cancelled job reached the transport")
		}
	}
	if n := ft.count("/generate-art"); n != 2 {
		t.Fatalf("expected 2 calls, got %d", n)
	}
}

func TestCancel_RunningJobFreesLane(t *testing.T) {
	ft := newFakeTransport()
	g := newGate()
	ft.handle("/generate-art", g.handler(`{"success":true}`))
	m := newTestManager(t, ft)
	mustLoad(t, m, types.ModelGenerativeArt)
	d := newTestDispatcher(t, ft, m, DispatcherConfig{})

	j1, _ := d.Submit(ModeArt, "long")
	g.waitEntered(t)
	if !d.Cancel(j1) {
		t.Fatalf("expected cancel of running job to succeed")
	}
	if j1.State() != JobCancelled {
		t.Fatalf("expected cancelled, got %s", j1.State())
	}
	// the aborted call unblocks the lane for the next job
	j2, err := d.Submit(ModeArt, "next")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	g.waitEntered(t)
	g.open()
	if _, err := j2.Wait(testCtx(t)); err != nil {
		t.Fatalf("next job: %v", err)
	}
	if j1.State() != JobCancelled {
		t.Fatalf("late transport result must not overwrite cancellation")
	}
}

func TestJob_ModelUnloadedWhileQueued(t *testing.T) {
	ft := newFakeTransport()
	g := newGate()
	ft.handle("/generate-art", g.handler(`{"success":true}`))
	m := newTestManager(t, ft)
	mustLoad(t, m, types.ModelGenerativeArt)
	d := newTestDispatcher(t, ft, m, DispatcherConfig{})

	j1, _ := d.Submit(ModeArt, "running")
	g.waitEntered(t)
	j2, _ := d.Submit(ModeArt, "waiting")
	if _, err := m.Unload(testCtx(t), types.ModelGenerativeArt); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	g.open()
	waitDone(t, j1)
	if _, err := j2.Wait(testCtx(t)); !IsModelNotReady(err) {
		t.Fatalf("expected model not ready at dequeue, got %v", err)
	}
	if n := ft.count("/generate-art"); n != 1 {
		t.Fatalf("expected only the running job to reach the transport, got %d", n)
	}
}

func TestScheduling_GlobalSerializesAcrossModes(t *testing.T) {
	ft := newFakeTransport()
	g := newGate()
	ft.handle("/generate-art", g.handler(`{"success":true}`))
	m := newTestManager(t, ft)
	mustLoad(t, m, types.ModelGenerativeArt, types.ModelGenerativeVideo)
	d := newTestDispatcher(t, ft, m, DispatcherConfig{})

	j1, _ := d.Submit(ModeArt, "art")
	g.waitEntered(t)
	j2, _ := d.Submit(ModeVideo, "video")
	time.Sleep(20 * time.Millisecond)
	if j2.State() != JobQueued || ft.count("/generate-video") != 0 {
		t.Fatalf("video job must wait behind the running art job")
	}
	g.open()
	waitDone(t, j1)
	waitDone(t, j2)
	if j2.State() != JobSucceeded {
		t.Fatalf("expected video job to succeed, got %s", j2.State())
	}
}

func TestScheduling_PerModelRunsModelsConcurrently(t *testing.T) {
	ft := newFakeTransport()
	g := newGate()
	ft.handle("/generate-art", g.handler(`{"success":true}`))
	m := newTestManager(t, ft)
	mustLoad(t, m, types.ModelGenerativeArt, types.ModelGenerativeVideo)
	d := newTestDispatcher(t, ft, m, DispatcherConfig{Scheduling: SchedulePerModel})

	j1, _ := d.Submit(ModeArt, "art")
	g.waitEntered(t)
	j2, err := d.Submit(ModeVideo, "video")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := j2.Wait(testCtx(t)); err != nil {
		t.Fatalf("video job should not wait for art: %v", err)
	}
	if j1.State() != JobRunning {
		t.Fatalf("art job should still be running, got %s", j1.State())
	}
	g.open()
	waitDone(t, j1)
}

func TestDispatcherClose_CancelsJobs(t *testing.T) {
	ft := newFakeTransport()
	g := newGate()
	ft.handle("/generate-art", g.handler(`{"success":true}`))
	m := newTestManager(t, ft)
	mustLoad(t, m, types.ModelGenerativeArt)
	d := NewDispatcher(m, DispatcherConfig{Transport: ft})

	j1, _ := d.Submit(ModeArt, "running")
	g.waitEntered(t)
	j2, _ := d.Submit(ModeArt, "queued")
	d.Close()

	for _, j := range []*Job{j1, j2} {
		if j.State() != JobCancelled {
			t.Fatalf("%s: expected cancelled, got %s", j.Prompt, j.State())
		}
	}
	if _, err := d.Submit(ModeArt, "late"); !IsCancelled(err) {
		t.Fatalf("expected cancelled after close, got %v", err)
	}
}

func TestLookupAndForget(t *testing.T) {
	ft := newFakeTransport()
	m := newTestManager(t, ft)
	mustLoad(t, m, types.ModelGenerativeArt)
	d := newTestDispatcher(t, ft, m, DispatcherConfig{})

	j, err := d.Submit(ModeArt, "a cat")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	got, ok := d.Lookup(j.ID.String())
	if !ok || got != j {
		t.Fatalf("expected lookup to find the job")
	}
	waitDone(t, j)
	d.Forget(j.ID.String())
	if _, ok := d.Lookup(j.ID.String()); ok {
		t.Fatalf("expected job forgotten")
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(" Video "); err != nil || m != ModeVideo {
		t.Fatalf("got %q %v", m, err)
	}
	if _, err := ParseMode("audio"); !IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestResolvedJobsExpireFromLookup(t *testing.T) {
	ft := newFakeTransport()
	m := newTestManager(t, ft)
	mustLoad(t, m, types.ModelGenerativeArt)
	d := newTestDispatcher(t, ft, m, DispatcherConfig{JobRetention: 20 * time.Millisecond})

	j, err := d.Submit(ModeArt, "a cat")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitDone(t, j)
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := d.Lookup(j.ID.String()); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("resolved job still tracked after its retention window")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if res, err := j.Result(); err != nil || res == nil {
		t.Fatalf("handle must keep its result: %v %v", res, err)
	}
}
