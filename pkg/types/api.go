package types

import (
	"bytes"
	"encoding/json"
)

// LoadModelRequest is the payload of POST /models/load.
type LoadModelRequest struct {
	// Model identity to load.
	// example: generative_art
	ModelType string `json:"model_type" example:"generative_art"`
	// Reload even when the model is already resident.
	// example: false
	ForceReload bool `json:"force_reload" example:"false"`
}

// UnloadModelRequest is the payload of POST /models/unload.
type UnloadModelRequest struct {
	// Model identity to unload.
	// example: generative_art
	ModelType string `json:"model_type" example:"generative_art"`
}

// GenerationParams is the fixed parameter preset of a generation mode.
// Zero values are meaningful (guidance_scale 0.0 for streaming) and always serialized,
// except num_frames which only the video endpoint accepts.
type GenerationParams struct {
	NumFrames         int     `json:"num_frames,omitempty" example:"32"`
	NumInferenceSteps int     `json:"num_inference_steps" example:"70"`
	GuidanceScale     float64 `json:"guidance_scale" example:"5"`
	Width             int     `json:"width" example:"512"`
	Height            int     `json:"height" example:"512"`
}

// GenerationRequest is the payload of POST /generate-art, /generate-video and /generate-streaming.
type GenerationRequest struct {
	// Prompt text. Required.
	// example: a lighthouse at dusk, oil painting
	Prompt string `json:"prompt" example:"a lighthouse at dusk, oil painting"`
	GenerationParams
}

// BaseResponse carries the envelope fields every remote response shares.
type BaseResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// LoadModelResponse is returned by POST /models/load.
type LoadModelResponse struct {
	BaseResponse
	ModelType     string  `json:"model_type"`
	Loaded        bool    `json:"loaded"`
	LoadingTime   float64 `json:"loading_time"`
	MemoryUsageMB float64 `json:"memory_usage_mb"`
	Error         *string `json:"error,omitempty"`
}

// UnloadModelResponse is returned by POST /models/unload.
type UnloadModelResponse struct {
	BaseResponse
}

// ClearAllResponse is returned by POST /models/clear-all.
type ClearAllResponse struct {
	BaseResponse
	ProcessingTime float64 `json:"processing_time"`
}

// RemoteModelStatus is one entry of the remote GET /models/status data map.
// The service reports either a bare boolean or an object with a loaded flag.
type RemoteModelStatus struct {
	Loaded bool   `json:"loaded"`
	Status string `json:"status,omitempty"`
}

// UnmarshalJSON accepts `true`, `false`, `{"loaded":...}` and `{"status":"loaded"}`.
func (s *RemoteModelStatus) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] != '{' {
		var loaded bool
		if err := json.Unmarshal(b, &loaded); err != nil {
			return err
		}
		*s = RemoteModelStatus{Loaded: loaded}
		return nil
	}
	type plain RemoteModelStatus
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	if p.Status == "loaded" {
		p.Loaded = true
	}
	*s = RemoteModelStatus(p)
	return nil
}

// RemoteStatusResponse is returned by the remote GET /models/status.
type RemoteStatusResponse struct {
	Success bool                         `json:"success"`
	Data    map[string]RemoteModelStatus `json:"data"`
}

// GenerationResponse is returned by the generation endpoints. Fields not produced
// by a mode are left empty.
type GenerationResponse struct {
	BaseResponse
	// Base64 encoded image (art and streaming modes).
	ImageBase64 string `json:"image_base64,omitempty"`
	// Generated video file name (video mode).
	// example: video_1700000000.mp4
	VideoFilename string `json:"video_filename,omitempty" example:"video_1700000000.mp4"`
	// URL path the video can be streamed from (video mode).
	// example: /videos/video_1700000000.mp4
	VideoURL string `json:"video_url,omitempty" example:"/videos/video_1700000000.mp4"`
	// Prompt the remote service actually used.
	PromptUsed string `json:"prompt_used,omitempty"`
	// Remote processing time in seconds.
	// example: 3.2
	ProcessingTime float64 `json:"processing_time,omitempty" example:"3.2"`
	NumFrames      int     `json:"num_frames,omitempty"`
	FPS            int     `json:"fps,omitempty"`
	// Checkpoint the remote service used.
	// example: prompthero/openjourney
	ModelUsed string `json:"model_used,omitempty" example:"prompthero/openjourney"`
}

// StatusResponse is returned by the local GET /models/status.
type StatusResponse struct {
	Success bool                   `json:"success"`
	Data    map[string]ModelRecord `json:"data"`
}

// ClearOutcome reports what happened to one model during clear-all.
type ClearOutcome struct {
	// example: unloaded
	Status string `json:"status" example:"unloaded"`
	Error  string `json:"error,omitempty"`
}

// ClearAllResult is returned by the local POST /models/clear-all.
type ClearAllResult struct {
	// True when every model unloaded and the remote sweep succeeded.
	Success bool                    `json:"success"`
	Models  map[string]ClearOutcome `json:"models"`
	// Error from the remote clear-all sweep, if it ran and failed.
	SweepError string `json:"sweep_error,omitempty"`
	// Why the remote sweep was not issued, if it was skipped.
	SweepSkipped string `json:"sweep_skipped,omitempty"`
}

// PromptRequest is the payload of the local POST /generate-art, /generate-video
// and /generate-streaming. Generation parameters are fixed per mode.
type PromptRequest struct {
	// example: a lighthouse at dusk, oil painting
	Prompt string `json:"prompt" example:"a lighthouse at dusk, oil painting"`
}

// JobRequest is the payload of the local POST /jobs.
type JobRequest struct {
	// Generation mode: art, video or streaming.
	// example: art
	Mode string `json:"mode" example:"art"`
	// example: a lighthouse at dusk, oil painting
	Prompt string `json:"prompt" example:"a lighthouse at dusk, oil painting"`
}

// JobResponse describes a generation job.
type JobResponse struct {
	// example: 3f1c1f0e-6c55-4a57-9a57-5f0c5a1f2b10
	ID   string `json:"id" example:"3f1c1f0e-6c55-4a57-9a57-5f0c5a1f2b10"`
	Mode string `json:"mode" example:"art"`
	// queued, running, succeeded, failed or cancelled.
	// example: queued
	State       string              `json:"state" example:"queued"`
	SubmittedAt int64               `json:"submitted_at_unix"`
	Error       string              `json:"error,omitempty"`
	ErrorKind   string              `json:"error_kind,omitempty"`
	Result      *GenerationResponse `json:"result,omitempty"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
	// Error kind (invalid_input, conflicting_operation, model_not_ready, ...).
	// example: invalid_input
	Kind string `json:"kind,omitempty" example:"invalid_input"`
}
