// Package engine implements the game session state machine: the single
// mutator of a session's gamestate. It turns a player action into an updated
// state, decides when visual regeneration is warranted, consults the
// location cache to avoid redundant regeneration, and degrades gracefully
// when the generative service fails or returns malformed data.
package engine

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/agarciaarin-ops/SCUMM-AI/internal/services"
	"github.com/agarciaarin-ops/SCUMM-AI/pkg/chat"
	"github.com/agarciaarin-ops/SCUMM-AI/pkg/prompts"
	"github.com/agarciaarin-ops/SCUMM-AI/pkg/repair"
	"github.com/agarciaarin-ops/SCUMM-AI/pkg/sanitize"
	"github.com/agarciaarin-ops/SCUMM-AI/pkg/scene"
	"github.com/agarciaarin-ops/SCUMM-AI/pkg/state"
	"github.com/agarciaarin-ops/SCUMM-AI/pkg/textfilter"
)

const (
	statusThinking = "The narrator considers your move..."
	statusWorld    = "Conjuring the world..."
	statusPainting = "Painting the scene..."

	// softFailureNarrative is shown when a turn cannot be resolved. The
	// turn is recoverable; no other state changes.
	softFailureNarrative = "Reality flickers for a moment, and your action is lost in the static. Try again."

	// historyWindow is how many recent entries accompany a turn prompt.
	historyWindow = 2

	// shortPromptLength bounds the simplified prompt used as the image
	// cascade's last generation attempt.
	shortPromptLength = 180
)

// Options configures the engine's model tiers and retry budget.
type Options struct {
	TextModel         string
	FallbackTextModel string
	MaxRetries        int
	InitialRetryDelay time.Duration
}

// Engine drives session transitions. It owns no session state itself; the
// gamestate passed in is mutated in place and returned.
type Engine struct {
	gen    services.GenerativeService
	filter *textfilter.PromptFilter
	opts   Options
	logger *slog.Logger
}

// NewEngine creates a session engine.
func NewEngine(gen services.GenerativeService, opts Options, logger *slog.Logger) *Engine {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = services.DefaultMaxRetries
	}
	if opts.InitialRetryDelay == 0 {
		opts.InitialRetryDelay = services.DefaultInitialDelay
	}
	return &Engine{
		gen:    gen,
		filter: textfilter.NewPromptFilter(),
		opts:   opts,
		logger: logger,
	}
}

// StartSession creates a new session from settings. It never fails: the
// primary text model is tried first, then the fallback tier, and if both
// fail a minimal valid state is synthesized from the settings alone.
func (e *Engine) StartSession(ctx context.Context, settings state.Settings) *state.GameState {
	gs := state.NewGameState(settings)
	gs.LoadingStatus = statusWorld

	upd, err := e.generateWorld(ctx, settings, e.opts.TextModel)
	if err != nil {
		e.logger.Warn("Primary model failed to initialize world, trying fallback",
			"model", e.opts.TextModel, "error", err)
		upd, err = e.generateWorld(ctx, settings, e.opts.FallbackTextModel)
	}
	if err != nil {
		e.logger.Error("All model tiers failed to initialize world, synthesizing state", "error", err)
		upd = synthesizedWorld(settings)
	}

	gs.Location = upd.Location
	if gs.Location == "" {
		gs.Location = settings.StartLocation
	}
	gs.Narrative = upd.Narrative
	gs.Inventory = sanitize.Inventory(upd.Inventory)
	gs.AvailableExits = upd.AvailableExits
	gs.AppendHistory(chat.RoleNarrator, upd.Narrative)

	// Initial image is best-effort: a session without a first render is
	// still playable.
	if upd.VisualPrompt != "" {
		gs.LoadingStatus = statusPainting
		if imageURL, ok := e.renderScene(ctx, gs, upd, nil); ok {
			gs.ImageURL = imageURL
			gs.VisualDescription = upd.VisualPrompt
		}
	}

	gs.RememberLocation(gs.Location, state.LocationVisual{
		ImageURL:     gs.ImageURL,
		VisualPrompt: gs.VisualDescription,
	})
	gs.LoadingStatus = ""
	return gs
}

// generateWorld runs one tier of world initialization through the retry
// policy and the repair decoder. A reply that decodes but is semantically
// unusable counts as a tier failure.
func (e *Engine) generateWorld(ctx context.Context, settings state.Settings, model string) (*scene.Update, error) {
	raw, err := services.WithRetry(ctx, func(ctx context.Context) (string, error) {
		return e.gen.GenerateWorld(ctx, settings, model)
	}, e.opts.MaxRetries, e.opts.InitialRetryDelay)
	if err != nil {
		return nil, err
	}

	var upd scene.Update
	if err := repair.Decode(raw, &upd); err != nil {
		return nil, fmt.Errorf("world reply undecodable: %w", err)
	}
	if err := upd.Validate(); err != nil {
		return nil, fmt.Errorf("world reply invalid: %w", err)
	}
	return &upd, nil
}

// synthesizedWorld is the dependency-free last resort: a fixed-template
// opening built from nothing but the session settings.
func synthesizedWorld(settings state.Settings) *scene.Update {
	return &scene.Update{
		Narrative: fmt.Sprintf(
			"You find yourself in %s. The world of %s stretches out before you. Your goal: %s. Look around to get your bearings.",
			settings.StartLocation, settings.World, settings.Objective),
		Location:       settings.StartLocation,
		Inventory:      []state.InventoryItem{},
		AvailableExits: []string{},
	}
}

// ApplyAction advances the session by one turn. The gamestate is mutated in
// place and always returned in a valid, renderable condition; every internal
// failure mode degrades to a soft-failure turn. LoadingStatus acts as the
// busy gate: while non-empty, further calls are no-ops.
func (e *Engine) ApplyAction(ctx context.Context, gs *state.GameState, action string) *state.GameState {
	if gs.IsBusy() {
		e.logger.Debug("Action rejected, operation in flight", "session_id", gs.ID)
		return gs
	}
	if strings.TrimSpace(action) == "" {
		return gs
	}

	// Optimistic append: the player's input is never erased, even when
	// the turn fails.
	gs.AppendHistory(chat.RoleUser, action)
	gs.LoadingStatus = statusThinking
	defer func() { gs.LoadingStatus = "" }()

	prompt, err := prompts.New().
		WithGameState(gs).
		WithAction(action).
		WithHistoryWindow(historyWindow).
		Build()
	if err != nil {
		e.logger.Error("Failed to build turn prompt", "session_id", gs.ID, "error", err)
		gs.Narrative = softFailureNarrative
		return gs
	}

	raw, err := services.WithRetry(ctx, func(ctx context.Context) (string, error) {
		return e.gen.GenerateTurn(ctx, services.TurnRequest{
			Prompt:         prompt,
			ReferenceImage: imageBytes(gs.ImageURL),
			Model:          e.opts.TextModel,
		})
	}, e.opts.MaxRetries, e.opts.InitialRetryDelay)
	if err != nil {
		e.logger.Error("Turn generation failed", "session_id", gs.ID, "error", err)
		gs.Narrative = softFailureNarrative
		return gs
	}

	var upd scene.Update
	if err := repair.Decode(raw, &upd); err != nil {
		e.logger.Warn("Turn reply undecodable after repair", "session_id", gs.ID, "error", err)
		gs.Narrative = softFailureNarrative
		return gs
	}
	if err := upd.Validate(); err != nil {
		e.logger.Warn("Turn reply semantically invalid", "session_id", gs.ID, "error", err)
		gs.Narrative = softFailureNarrative
		return gs
	}

	visualCurrent := e.applyVisual(ctx, gs, &upd)
	e.commit(gs, &upd, visualCurrent)
	return gs
}

// applyVisual decides the visual-update branch for a decoded turn reply and
// updates ImageURL/VisualDescription accordingly. It never fails the turn:
// at worst the image simply does not update. The return value reports
// whether the displayed visual depicts the turn's resulting location; it is
// false only when a move to a new location could not be rendered, in which
// case the previous scene stays on screen for continuity but must not be
// cached under the new location.
func (e *Engine) applyVisual(ctx context.Context, gs *state.GameState, upd *scene.Update) bool {
	locationChanged := upd.Location != "" &&
		state.NormalizeLocationKey(upd.Location) != state.NormalizeLocationKey(gs.Location)

	switch {
	case locationChanged:
		// An entry without an image records a location whose render
		// failed; treat it as a miss so the revisit can repaint it.
		if vis, ok := gs.LookupLocation(upd.Location); ok && vis.ImageURL != "" {
			// Revisit: reuse the cached render, skip regeneration.
			e.logger.Debug("Location cache hit", "session_id", gs.ID, "location", upd.Location)
			gs.ImageURL = vis.ImageURL
			gs.VisualDescription = vis.VisualPrompt
			return true
		}
		gs.LoadingStatus = statusPainting
		if imageURL, ok := e.renderScene(ctx, gs, upd, nil); ok {
			gs.ImageURL = imageURL
			gs.VisualDescription = upd.VisualPrompt
			return true
		}
		return false

	case upd.VisualChanged:
		// Same location, new look: edit the current render so the scene
		// stays visually continuous.
		gs.LoadingStatus = statusPainting
		if imageURL, ok := e.renderScene(ctx, gs, upd, imageBytes(gs.ImageURL)); ok {
			gs.ImageURL = imageURL
			gs.VisualDescription = upd.VisualPrompt
		}
		return true

	default:
		// Pure dialogue/observation turn: the dominant case. Keep the
		// current image untouched.
		return true
	}
}

// renderScene runs the image cascade: reference-based edit (when a
// reference is given), then fresh generation, then a simplified prompt.
// Returns the rendered image as a data URL, or ok=false when every attempt
// failed and the previous image should be kept.
func (e *Engine) renderScene(ctx context.Context, gs *state.GameState, upd *scene.Update, reference []byte) (string, bool) {
	prompt := e.filter.Filter(upd.VisualPrompt)
	req := services.ImageRequest{
		Prompt:      prompt,
		StyleHints:  gs.Settings.ArtStyle,
		KeyElements: upd.KeyElements,
	}

	if len(reference) > 0 {
		editReq := req
		editReq.ReferenceImage = reference
		if data, err := e.gen.GenerateImage(ctx, editReq); err == nil {
			return dataURL(data), true
		} else {
			e.logger.Warn("Image edit failed, falling back to fresh generation", "session_id", gs.ID, "error", err)
		}
	}

	if data, err := e.gen.GenerateImage(ctx, req); err == nil {
		return dataURL(data), true
	} else {
		e.logger.Warn("Image generation failed, retrying with simplified prompt", "session_id", gs.ID, "error", err)
	}

	req.Prompt = shortenPrompt(prompt)
	req.KeyElements = nil
	if data, err := e.gen.GenerateImage(ctx, req); err == nil {
		return dataURL(data), true
	} else {
		e.logger.Warn("Simplified image generation failed, keeping previous image", "session_id", gs.ID, "error", err)
	}

	return "", false
}

// commit applies the authoritative reply to the gamestate and maintains the
// location cache invariant: the current location always has an entry after a
// successful transition.
func (e *Engine) commit(gs *state.GameState, upd *scene.Update, visualCurrent bool) {
	if upd.Location != "" {
		gs.Location = upd.Location
	}
	gs.Narrative = upd.Narrative
	gs.Inventory = sanitize.Inventory(upd.Inventory)
	gs.AvailableExits = upd.AvailableExits
	gs.AppendHistory(chat.RoleNarrator, upd.Narrative)

	if visualCurrent {
		gs.RememberLocation(gs.Location, state.LocationVisual{
			ImageURL:     gs.ImageURL,
			VisualPrompt: gs.VisualDescription,
		})
	} else if _, ok := gs.LookupLocation(gs.Location); !ok {
		// The move succeeded but its render did not. Reserve an empty
		// entry so the revisit path repaints it, without adopting the
		// previous scene's image.
		gs.RememberLocation(gs.Location, state.LocationVisual{})
	}
}

// shortenPrompt trims a visual prompt to its leading clause for the image
// cascade's final attempt.
func shortenPrompt(prompt string) string {
	if idx := strings.IndexAny(prompt, ".;\n"); idx > 0 && idx < shortPromptLength {
		return prompt[:idx+1]
	}
	runes := []rune(prompt)
	if len(runes) <= shortPromptLength {
		return prompt
	}
	return string(runes[:shortPromptLength])
}

const dataURLPrefix = "data:image/png;base64,"

// dataURL encodes raster bytes as a self-contained data URL so the state
// remains store- and transport-safe.
func dataURL(data []byte) string {
	return dataURLPrefix + base64.StdEncoding.EncodeToString(data)
}

// imageBytes recovers raster bytes from a stored data URL. Returns nil for
// absent or foreign URLs.
func imageBytes(url string) []byte {
	if !strings.HasPrefix(url, dataURLPrefix) {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(url[len(dataURLPrefix):])
	if err != nil {
		return nil
	}
	return data
}
