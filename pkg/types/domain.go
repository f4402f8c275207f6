package types

// Model identities understood by the remote generation service.
const (
	ModelGenerativeArt       = "generative_art"
	ModelGenerativeVideo     = "generative_video"
	ModelStreamingGenerative = "streaming_generative"
)

// KnownModels lists the identities the remote service accepts in load/unload payloads.
func KnownModels() []string {
	return []string{ModelGenerativeArt, ModelGenerativeVideo, ModelStreamingGenerative}
}

// ModelRecord is the externally visible state of one model identity.
type ModelRecord struct {
	// Model identity.
	// example: generative_art
	ModelType string `json:"model_type" example:"generative_art"`
	// Lifecycle status: unloaded, loading, loaded, unloading or failed.
	// example: loaded
	Status string `json:"status" example:"loaded"`
	// Error from the last failed lifecycle operation. Only set when status is failed.
	LastError string `json:"last_error,omitempty"`
	// Time of the last status transition (unix seconds).
	// example: 1700000000
	UpdatedAt int64 `json:"updated_at_unix" example:"1700000000"`
	// Load duration reported by the remote service, in seconds.
	// example: 12.5
	LoadingTime float64 `json:"loading_time,omitempty" example:"12.5"`
	// Memory usage reported by the remote service after load.
	// example: 4096
	MemoryUsageMB float64 `json:"memory_usage_mb,omitempty" example:"4096"`
}
