package services

import (
	"context"

	"github.com/agarciaarin-ops/SCUMM-AI/pkg/state"
)

// TurnRequest carries everything the gameplay endpoint needs for one turn.
type TurnRequest struct {
	// Prompt is the assembled turn prompt, including action, inventory
	// digest, recent history and location.
	Prompt string

	// ReferenceImage optionally grounds the reply in the current rendered
	// scene. PNG bytes; nil when no image exists yet.
	ReferenceImage []byte

	// Model selects the text model tier for this call.
	Model string
}

// ImageRequest describes a single image generation or edit.
type ImageRequest struct {
	// Prompt is the sanitized visual description of the scene.
	Prompt string

	// StyleHints carries the session's art style.
	StyleHints string

	// KeyElements anchor composition on visually salient nouns.
	KeyElements []string

	// ReferenceImage, when set, turns the request into an edit of the
	// current scene instead of a fresh generation.
	ReferenceImage []byte
}

// GenerativeService is the boundary to the external generative content
// service. All creative responsibility lives behind it; the engine only
// consumes raw structured text and raster bytes.
type GenerativeService interface {
	// GenerateWorld requests a structured world-initialization reply.
	// The return value is raw text expected to contain one JSON document.
	GenerateWorld(ctx context.Context, settings state.Settings, model string) (string, error)

	// GenerateTurn requests a structured gameplay reply, optionally
	// grounded in a reference image.
	GenerateTurn(ctx context.Context, req TurnRequest) (string, error)

	// GenerateImage renders the scene and returns raster image bytes.
	GenerateImage(ctx context.Context, req ImageRequest) ([]byte, error)
}
