package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/agarciaarin-ops/SCUMM-AI/internal/services"
	"github.com/agarciaarin-ops/SCUMM-AI/pkg/chat"
	"github.com/agarciaarin-ops/SCUMM-AI/pkg/scene"
	"github.com/agarciaarin-ops/SCUMM-AI/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func newTestEngine(t *testing.T, mock *services.MockGenerativeService) *Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(mock, Options{
		TextModel:         "quality-tier",
		FallbackTextModel: "fast-tier",
		MaxRetries:        1,
		InitialRetryDelay: time.Millisecond,
	}, logger)
}

func testSettings() state.Settings {
	return state.Settings{
		World:         "rain-soaked noir city",
		StartLocation: "Bilbao, Casco Viejo",
		ArtStyle:      "ink wash",
		Objective:     "find the missing archivist",
		Tone:          "melancholy",
	}
}

func reply(t *testing.T, upd scene.Update) string {
	t.Helper()
	data, err := json.Marshal(upd)
	require.NoError(t, err)
	return string(data)
}

// startedState builds a session state without going through StartSession so
// individual transition tests stay independent.
func startedState() *state.GameState {
	gs := state.NewGameState(testSettings())
	gs.Location = "Bilbao, Casco Viejo"
	gs.Narrative = "Rain taps the cobblestones."
	gs.VisualDescription = "a rainy old-town street at dusk"
	gs.ImageURL = dataURL([]byte("initial-image"))
	gs.AppendHistory(chat.RoleNarrator, gs.Narrative)
	gs.RememberLocation(gs.Location, state.LocationVisual{
		ImageURL:     gs.ImageURL,
		VisualPrompt: gs.VisualDescription,
	})
	return gs
}

func TestStartSession_Success(t *testing.T) {
	mock := services.NewMockGenerativeService()
	mock.GenerateWorldFunc = func(ctx context.Context, settings state.Settings, model string) (string, error) {
		return reply(t, scene.Update{
			Narrative:      "The old town greets you with rain.",
			Location:       "Bilbao, Casco Viejo",
			VisualPrompt:   "a rainy old-town street at dusk",
			Inventory:      []state.InventoryItem{{Name: "notebook_v2", Description: "Your case notes."}},
			AvailableExits: []string{"north", "plaza"},
			VisualChanged:  true,
		}), nil
	}

	e := newTestEngine(t, mock)
	gs := e.StartSession(context.Background(), testSettings())

	require.NotNil(t, gs)
	assert.Equal(t, "Bilbao, Casco Viejo", gs.Location)
	assert.Equal(t, "The old town greets you with rain.", gs.Narrative)
	assert.Empty(t, gs.LoadingStatus)

	// Inventory is sanitized on the initialization path too.
	require.Len(t, gs.Inventory, 1)
	assert.Equal(t, "Notebook", gs.Inventory[0].Name)

	// The initial render seeds the location cache.
	assert.NotEmpty(t, gs.ImageURL)
	vis, ok := gs.LookupLocation("bilbao, casco viejo")
	require.True(t, ok)
	assert.Equal(t, gs.ImageURL, vis.ImageURL)

	require.Len(t, mock.GenerateWorldCalls, 1)
	assert.Equal(t, "quality-tier", mock.GenerateWorldCalls[0].Model)
}

func TestStartSession_FallbackTier(t *testing.T) {
	mock := services.NewMockGenerativeService()
	mock.GenerateWorldFunc = func(ctx context.Context, settings state.Settings, model string) (string, error) {
		if model == "quality-tier" {
			// Decodes fine but is semantically unusable.
			return `{"location":"somewhere"}`, nil
		}
		return reply(t, scene.Update{
			Narrative:    "A quick sketch of the world.",
			Location:     settings.StartLocation,
			VisualPrompt: "a street",
		}), nil
	}

	e := newTestEngine(t, mock)
	gs := e.StartSession(context.Background(), testSettings())

	assert.Equal(t, "A quick sketch of the world.", gs.Narrative)
	require.Len(t, mock.GenerateWorldCalls, 2)
	assert.Equal(t, "fast-tier", mock.GenerateWorldCalls[1].Model)
}

func TestStartSession_SynthesizedFallback(t *testing.T) {
	mock := services.NewMockGenerativeService()
	mock.GenerateWorldFunc = func(ctx context.Context, settings state.Settings, model string) (string, error) {
		return "", errors.New("model offline")
	}
	mock.GenerateImageFunc = func(ctx context.Context, req services.ImageRequest) ([]byte, error) {
		return nil, errors.New("no image either")
	}

	e := newTestEngine(t, mock)
	gs := e.StartSession(context.Background(), testSettings())

	// The session always starts.
	require.NotNil(t, gs)
	assert.Equal(t, "Bilbao, Casco Viejo", gs.Location)
	assert.Contains(t, gs.Narrative, "Bilbao, Casco Viejo")
	assert.Contains(t, gs.Narrative, "find the missing archivist")
	assert.Empty(t, gs.Inventory)
	assert.Empty(t, gs.ImageURL)
	assert.Empty(t, gs.LoadingStatus)

	// Cache invariant holds even for the synthesized state.
	_, ok := gs.LookupLocation("Bilbao, Casco Viejo")
	assert.True(t, ok)
}

func TestApplyAction_DialogueTurnKeepsImage(t *testing.T) {
	mock := services.NewMockGenerativeService()
	mock.GenerateTurnFunc = func(ctx context.Context, req services.TurnRequest) (string, error) {
		return reply(t, scene.Update{
			Narrative:     "You look around. Nothing has moved.",
			Location:      "Bilbao, Casco Viejo",
			VisualPrompt:  "a rainy old-town street at dusk",
			VisualChanged: false,
		}), nil
	}

	e := newTestEngine(t, mock)
	gs := startedState()
	before := gs.ImageURL

	got := e.ApplyAction(context.Background(), gs, "Look")

	assert.Equal(t, before, got.ImageURL, "image must be untouched on a pure observation turn")
	assert.Zero(t, mock.ImageCallCount(), "no image generation may occur")
	assert.Equal(t, "You look around. Nothing has moved.", got.Narrative)
	assert.Empty(t, got.LoadingStatus)
}

func TestApplyAction_NewLocationGeneratesFreshImage(t *testing.T) {
	mock := services.NewMockGenerativeService()
	mock.GenerateTurnFunc = func(ctx context.Context, req services.TurnRequest) (string, error) {
		return reply(t, scene.Update{
			Narrative:     "You head north into the covered market.",
			Location:      "Mercado de la Ribera",
			VisualPrompt:  "a vaulted market hall with iron ribs",
			KeyElements:   []string{"iron ribs", "fish stalls"},
			VisualChanged: true,
		}), nil
	}

	e := newTestEngine(t, mock)
	gs := startedState()

	got := e.ApplyAction(context.Background(), gs, "Go north")

	assert.Equal(t, "Mercado de la Ribera", got.Location)
	require.Equal(t, 1, mock.ImageCallCount())
	call := mock.GenerateImageCalls[0]
	assert.Nil(t, call.ReferenceImage, "cache miss must be a fresh generation, no reference image")
	assert.Equal(t, "ink wash", call.StyleHints)

	// The cache gains an entry for the new location.
	vis, ok := got.LookupLocation(" mercado de la ribera ")
	require.True(t, ok)
	assert.Equal(t, got.ImageURL, vis.ImageURL)
	assert.Equal(t, "a vaulted market hall with iron ribs", got.VisualDescription)
}

func TestApplyAction_RevisitUsesCache(t *testing.T) {
	mock := services.NewMockGenerativeService()
	mock.GenerateTurnFunc = func(ctx context.Context, req services.TurnRequest) (string, error) {
		return reply(t, scene.Update{
			Narrative:     "You walk back to the plaza you remember.",
			Location:      "  PLAZA NUEVA ",
			VisualPrompt:  "the plaza, but described differently this time",
			VisualChanged: true,
		}), nil
	}

	e := newTestEngine(t, mock)
	gs := startedState()
	cached := state.LocationVisual{
		ImageURL:     dataURL([]byte("plaza-image")),
		VisualPrompt: "arcaded plaza with cafe tables",
	}
	gs.RememberLocation("Plaza Nueva", cached)

	got := e.ApplyAction(context.Background(), gs, "Return to the plaza")

	assert.Zero(t, mock.ImageCallCount(), "revisiting a location must never re-render it")
	assert.Equal(t, cached.ImageURL, got.ImageURL)
	assert.Equal(t, cached.VisualPrompt, got.VisualDescription)
	assert.Equal(t, "  PLAZA NUEVA ", got.Location)
}

func TestApplyAction_EmptyCacheEntryRepaintsOnRevisit(t *testing.T) {
	mock := services.NewMockGenerativeService()
	mock.GenerateTurnFunc = func(ctx context.Context, req services.TurnRequest) (string, error) {
		return reply(t, scene.Update{
			Narrative:     "The plaza opens up before you.",
			Location:      "Plaza Nueva",
			VisualPrompt:  "an arcaded plaza in the rain",
			VisualChanged: true,
		}), nil
	}

	e := newTestEngine(t, mock)
	gs := startedState()
	// A location whose render failed earlier: cached, but with no image.
	gs.RememberLocation("Plaza Nueva", state.LocationVisual{})

	got := e.ApplyAction(context.Background(), gs, "Walk to the plaza")

	require.Equal(t, 1, mock.ImageCallCount(), "an imageless cache entry must repaint, not hit")
	assert.Nil(t, mock.GenerateImageCalls[0].ReferenceImage)
	assert.NotEmpty(t, got.ImageURL, "revisit must not erase the current image")
	assert.Equal(t, "an arcaded plaza in the rain", got.VisualDescription)

	vis, ok := got.LookupLocation("plaza nueva")
	require.True(t, ok)
	assert.Equal(t, got.ImageURL, vis.ImageURL, "the repaint must backfill the cache entry")
}

func TestApplyAction_MoveRenderFailureDoesNotPoisonCache(t *testing.T) {
	mock := services.NewMockGenerativeService()
	mock.GenerateTurnFunc = func(ctx context.Context, req services.TurnRequest) (string, error) {
		return reply(t, scene.Update{
			Narrative:     "You step into the market hall.",
			Location:      "Mercado de la Ribera",
			VisualPrompt:  "a vaulted market hall",
			VisualChanged: true,
		}), nil
	}
	mock.GenerateImageFunc = func(ctx context.Context, req services.ImageRequest) ([]byte, error) {
		return nil, errors.New("render farm down")
	}

	e := newTestEngine(t, mock)
	gs := startedState()
	before := gs.ImageURL

	got := e.ApplyAction(context.Background(), gs, "Enter the market")

	// The move itself succeeds and the old scene stays on screen.
	assert.Equal(t, "Mercado de la Ribera", got.Location)
	assert.Equal(t, before, got.ImageURL)

	// But the new location must not inherit the old scene's image: its
	// entry stays imageless so a later visit repaints it.
	vis, ok := got.LookupLocation("Mercado de la Ribera")
	require.True(t, ok)
	assert.Empty(t, vis.ImageURL)

	// The old location's entry is untouched.
	oldVis, ok := got.LookupLocation("Bilbao, Casco Viejo")
	require.True(t, ok)
	assert.Equal(t, before, oldVis.ImageURL)
}

func TestApplyAction_VisualChangedEditsWithReference(t *testing.T) {
	mock := services.NewMockGenerativeService()
	mock.GenerateTurnFunc = func(ctx context.Context, req services.TurnRequest) (string, error) {
		return reply(t, scene.Update{
			Narrative:     "You light the lantern. Shadows scatter.",
			Location:      "Bilbao, Casco Viejo",
			VisualPrompt:  "the same street, now lit by a warm lantern",
			VisualChanged: true,
		}), nil
	}

	e := newTestEngine(t, mock)
	gs := startedState()

	got := e.ApplyAction(context.Background(), gs, "Light the lantern")

	require.Equal(t, 1, mock.ImageCallCount())
	call := mock.GenerateImageCalls[0]
	assert.NotNil(t, call.ReferenceImage, "same-location visual change must be an edit")
	assert.Equal(t, "the same street, now lit by a warm lantern", got.VisualDescription)
}

func TestApplyAction_EditFailureFallsBackToFresh(t *testing.T) {
	mock := services.NewMockGenerativeService()
	mock.GenerateTurnFunc = func(ctx context.Context, req services.TurnRequest) (string, error) {
		return reply(t, scene.Update{
			Narrative:     "The fog rolls in thick.",
			Location:      "Bilbao, Casco Viejo",
			VisualPrompt:  "the street swallowed by fog",
			VisualChanged: true,
		}), nil
	}
	mock.GenerateImageFunc = func(ctx context.Context, req services.ImageRequest) ([]byte, error) {
		if len(req.ReferenceImage) > 0 {
			return nil, errors.New("edit rejected")
		}
		return []byte("fresh-image"), nil
	}

	e := newTestEngine(t, mock)
	gs := startedState()

	got := e.ApplyAction(context.Background(), gs, "Wait for the fog")

	require.Equal(t, 2, mock.ImageCallCount())
	assert.NotNil(t, mock.GenerateImageCalls[0].ReferenceImage)
	assert.Nil(t, mock.GenerateImageCalls[1].ReferenceImage)
	assert.Equal(t, dataURL([]byte("fresh-image")), got.ImageURL)
}

func TestApplyAction_AllImageAttemptsFailKeepsPrevious(t *testing.T) {
	mock := services.NewMockGenerativeService()
	mock.GenerateTurnFunc = func(ctx context.Context, req services.TurnRequest) (string, error) {
		return reply(t, scene.Update{
			Narrative:     "Something shifts in the dark.",
			Location:      "Bilbao, Casco Viejo",
			VisualPrompt:  "the street, darker now",
			VisualChanged: true,
		}), nil
	}
	mock.GenerateImageFunc = func(ctx context.Context, req services.ImageRequest) ([]byte, error) {
		return nil, errors.New("render farm down")
	}

	e := newTestEngine(t, mock)
	gs := startedState()
	before := gs.ImageURL
	beforeDesc := gs.VisualDescription

	got := e.ApplyAction(context.Background(), gs, "Peer into the dark")

	// Edit, fresh and simplified-prompt attempts, then give up.
	assert.Equal(t, 3, mock.ImageCallCount())
	assert.Equal(t, before, got.ImageURL)
	assert.Equal(t, beforeDesc, got.VisualDescription)
	assert.Equal(t, "Something shifts in the dark.", got.Narrative, "the turn itself must still succeed")
}

func TestApplyAction_BusyGate(t *testing.T) {
	mock := services.NewMockGenerativeService()
	e := newTestEngine(t, mock)

	gs := startedState()
	gs.LoadingStatus = "The narrator considers your move..."
	historyLen := len(gs.History)

	got := e.ApplyAction(context.Background(), gs, "Go north")

	assert.Len(t, got.History, historyLen, "busy session must reject the action, not queue it")
	assert.Empty(t, mock.GenerateTurnCalls)
	assert.Equal(t, "The narrator considers your move...", got.LoadingStatus)
}

func TestApplyAction_EmptyActionRejected(t *testing.T) {
	mock := services.NewMockGenerativeService()
	e := newTestEngine(t, mock)

	gs := startedState()
	historyLen := len(gs.History)

	for _, action := range []string{"", "   ", "\n\t"} {
		got := e.ApplyAction(context.Background(), gs, action)
		assert.Len(t, got.History, historyLen)
		assert.Empty(t, mock.GenerateTurnCalls)
	}
}

func TestApplyAction_UndecodableReplyIsSoftFailure(t *testing.T) {
	mock := services.NewMockGenerativeService()
	mock.GenerateTurnFunc = func(ctx context.Context, req services.TurnRequest) (string, error) {
		return "I am sorry, I cannot continue this story.", nil
	}

	e := newTestEngine(t, mock)
	gs := startedState()
	before, err := gs.DeepCopy()
	require.NoError(t, err)

	got := e.ApplyAction(context.Background(), gs, "Open the door")

	assert.Equal(t, softFailureNarrative, got.Narrative)
	assert.Empty(t, got.LoadingStatus, "session must never be left with a permanent in-flight marker")

	// Everything except narrative and the optimistic history entry is
	// unchanged.
	assert.Equal(t, before.Location, got.Location)
	assert.Equal(t, before.Inventory, got.Inventory)
	assert.Equal(t, before.AvailableExits, got.AvailableExits)
	assert.Equal(t, before.ImageURL, got.ImageURL)
	assert.Equal(t, before.VisualDescription, got.VisualDescription)

	// The player's input is kept; no narrator text is fabricated.
	require.Len(t, got.History, len(before.History)+1)
	last := got.History[len(got.History)-1]
	assert.Equal(t, chat.RoleUser, last.Role)
	assert.Equal(t, "Open the door", last.Content)
}

func TestApplyAction_ServiceFailureIsSoftFailure(t *testing.T) {
	mock := services.NewMockGenerativeService()
	mock.GenerateTurnFunc = func(ctx context.Context, req services.TurnRequest) (string, error) {
		return "", &googleapi.Error{Code: http.StatusServiceUnavailable}
	}

	e := newTestEngine(t, mock)
	gs := startedState()

	got := e.ApplyAction(context.Background(), gs, "Shout for help")

	assert.Equal(t, softFailureNarrative, got.Narrative)
	assert.Empty(t, got.LoadingStatus)
	// MaxRetries=1 means the transient failure was attempted twice before
	// being promoted to a turn failure.
	assert.Len(t, mock.GenerateTurnCalls, 2)
}

func TestApplyAction_InventorySanitized(t *testing.T) {
	mock := services.NewMockGenerativeService()
	mock.GenerateTurnFunc = func(ctx context.Context, req services.TurnRequest) (string, error) {
		return reply(t, scene.Update{
			Narrative: "You pocket the key.",
			Location:  "Bilbao, Casco Viejo",
			Inventory: []state.InventoryItem{
				{Name: "Key_v2_a1b2c3d4", Description: "Opens something."},
				{Name: "old_map", Description: ""},
			},
		}), nil
	}

	e := newTestEngine(t, mock)
	gs := startedState()

	got := e.ApplyAction(context.Background(), gs, "Take the key")

	require.Len(t, got.Inventory, 2)
	assert.Equal(t, "Key", got.Inventory[0].Name)
	assert.Equal(t, "Old map", got.Inventory[1].Name)
	for _, item := range got.Inventory {
		assert.NotEmpty(t, item.Name)
		assert.NotContains(t, item.Name, "_")
		assert.NotEmpty(t, item.Description)
	}
}

func TestApplyAction_TurnPromptCarriesContext(t *testing.T) {
	mock := services.NewMockGenerativeService()
	e := newTestEngine(t, mock)
	gs := startedState()
	gs.Inventory = []state.InventoryItem{{Name: "Brass key", Description: "Opens something."}}

	e.ApplyAction(context.Background(), gs, "Go north")

	require.Len(t, mock.GenerateTurnCalls, 1)
	call := mock.GenerateTurnCalls[0]
	assert.Contains(t, call.Prompt, "Bilbao, Casco Viejo")
	assert.Contains(t, call.Prompt, "Brass key")
	assert.Contains(t, call.Prompt, `"Go north"`)
	assert.NotNil(t, call.ReferenceImage, "current image grounds the turn when available")
	assert.Equal(t, "quality-tier", call.Model)
}

func TestShortenPrompt(t *testing.T) {
	assert.Equal(t, "A short prompt.", shortenPrompt("A short prompt. With a second sentence that gets dropped."))

	long := strings.Repeat("misty harbor lights ", 20)
	short := shortenPrompt(long)
	assert.LessOrEqual(t, len([]rune(short)), shortPromptLength)

	assert.Equal(t, "tiny", shortenPrompt("tiny"))
}

func TestDataURLRoundTrip(t *testing.T) {
	data := []byte{0x89, 0x50, 0x4e, 0x47}
	url := dataURL(data)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
	assert.Equal(t, data, imageBytes(url))

	assert.Nil(t, imageBytes(""))
	assert.Nil(t, imageBytes("https://example.com/image.png"))
	assert.Nil(t, imageBytes("data:image/png;base64,!!!not-base64!!!"))
}
