package manager

import (
	"fmt"
	"strings"

	"genctl/pkg/types"
)

// Mode is a generation mode. Each mode is backed by exactly one model identity.
type Mode string

const (
	ModeArt       Mode = "art"
	ModeVideo     Mode = "video"
	ModeStreaming Mode = "streaming"
)

// Preset is the fixed request shape of a mode. Only the prompt varies per job.
type Preset struct {
	Mode    Mode
	ModelID string
	Path    string
	Params  types.GenerationParams
}

// Request builds the transport payload for prompt.
func (p Preset) Request(prompt string) types.GenerationRequest {
	return types.GenerationRequest{Prompt: prompt, GenerationParams: p.Params}
}

// The remote service validates these ranges; the values are part of the wire contract.
var presets = map[Mode]Preset{
	ModeArt: {
		Mode:    ModeArt,
		ModelID: types.ModelGenerativeArt,
		Path:    "/generate-art",
		Params:  types.GenerationParams{NumInferenceSteps: 70, GuidanceScale: 5.0, Width: 512, Height: 512},
	},
	ModeVideo: {
		Mode:    ModeVideo,
		ModelID: types.ModelGenerativeVideo,
		Path:    "/generate-video",
		Params:  types.GenerationParams{NumFrames: 32, GuidanceScale: 1.0, NumInferenceSteps: 4, Width: 512, Height: 512},
	},
	ModeStreaming: {
		Mode:    ModeStreaming,
		ModelID: types.ModelStreamingGenerative,
		Path:    "/generate-streaming",
		Params:  types.GenerationParams{NumInferenceSteps: 2, GuidanceScale: 0.0, Width: 512, Height: 512},
	},
}

// PresetFor returns the preset of mode.
func PresetFor(mode Mode) (Preset, bool) {
	p, ok := presets[mode]
	return p, ok
}

// Modes lists the supported modes.
func Modes() []Mode { return []Mode{ModeArt, ModeVideo, ModeStreaming} }

// ParseMode accepts a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := presets[m]; !ok {
		return "", ErrInvalidInput(fmt.Sprintf("unknown mode %q (want art, video or streaming)", s))
	}
	return m, nil
}
