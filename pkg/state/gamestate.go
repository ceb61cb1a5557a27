package state

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/agarciaarin-ops/SCUMM-AI/pkg/chat"
	"github.com/google/uuid"
)

// Settings holds the immutable parameters of a play session. They are set
// once at session creation and never mutated during play.
type Settings struct {
	World         string `json:"world"`
	StartLocation string `json:"start_location"`
	ArtStyle      string `json:"art_style"`
	Objective     string `json:"objective"`
	Tone          string `json:"tone"`
}

// InventoryItem is a single carried object. Names are display-safe after
// sanitization; the inventory list is always replaced wholesale by the
// latest generative-service reply, never diffed locally.
type InventoryItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LocationVisual is the cached visual identity of a location: the last
// rendered image and the prompt that produced it.
type LocationVisual struct {
	ImageURL     string `json:"image_url"`
	VisualPrompt string `json:"visual_prompt"`
}

const (
	// HistoryLimit is the maximum number of retained history entries.
	HistoryLimit = 40
	// HistoryPruneBlock is how many of the oldest entries are dropped
	// together once the limit is exceeded.
	HistoryPruneBlock = 10
)

// GameState is the mutable root of a play session. It is exclusively owned
// by the session engine; handlers only load, pass and save it.
type GameState struct {
	ID       uuid.UUID `json:"id"`
	Settings Settings  `json:"settings"`

	Location          string          `json:"location,omitempty"`
	Narrative         string          `json:"narrative,omitempty"`
	Inventory         []InventoryItem `json:"inventory,omitempty"`
	AvailableExits    []string        `json:"available_exits,omitempty"`
	VisualDescription string          `json:"visual_description,omitempty"`
	ImageURL          string          `json:"image_url,omitempty"`

	// LoadingStatus is the sole concurrency gate: non-empty means an
	// operation is in flight and new actions are rejected, not queued.
	LoadingStatus string `json:"loading_status,omitempty"`

	History []chat.Message `json:"history,omitempty"`

	// KnownLocations caches visuals by normalized location key so that
	// revisiting a location never re-renders it. Entries are never
	// evicted within a session.
	KnownLocations map[string]LocationVisual `json:"known_locations,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewGameState(settings Settings) *GameState {
	return &GameState{
		ID:             uuid.New(),
		Settings:       settings,
		History:        make([]chat.Message, 0),
		KnownLocations: make(map[string]LocationVisual),
		CreatedAt:      time.Now(),
	}
}

// NormalizeLocationKey collapses casing and surrounding whitespace so that
// "Bilbao, Casco Viejo" and " bilbao, casco viejo " share a cache entry.
func NormalizeLocationKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsBusy reports whether an operation is in flight for this session.
func (gs *GameState) IsBusy() bool {
	return gs.LoadingStatus != ""
}

// LookupLocation returns the cached visual for a location name, if any.
func (gs *GameState) LookupLocation(name string) (LocationVisual, bool) {
	vis, ok := gs.KnownLocations[NormalizeLocationKey(name)]
	return vis, ok
}

// RememberLocation upserts the cache entry for a location name.
func (gs *GameState) RememberLocation(name string, vis LocationVisual) {
	if gs.KnownLocations == nil {
		gs.KnownLocations = make(map[string]LocationVisual)
	}
	gs.KnownLocations[NormalizeLocationKey(name)] = vis
}

// AppendHistory records an entry and enforces the retention bound. Pruning
// removes a block from the front so that surviving entries keep their order
// and the oldest survivor is always newer than anything pruned.
func (gs *GameState) AppendHistory(role, content string) {
	gs.History = append(gs.History, chat.Message{Role: role, Content: content})
	if len(gs.History) > HistoryLimit {
		gs.History = gs.History[HistoryPruneBlock:]
	}
}

// RecentHistory returns up to n of the most recent history entries.
func (gs *GameState) RecentHistory(n int) []chat.Message {
	if n <= 0 || len(gs.History) == 0 {
		return nil
	}
	if len(gs.History) < n {
		n = len(gs.History)
	}
	return gs.History[len(gs.History)-n:]
}

// InventoryDigest returns a compact comma-joined list of item names for
// prompt context.
func (gs *GameState) InventoryDigest() string {
	if len(gs.Inventory) == 0 {
		return "nothing"
	}
	names := make([]string, 0, len(gs.Inventory))
	for _, item := range gs.Inventory {
		names = append(names, item.Name)
	}
	return strings.Join(names, ", ")
}

// DeepCopy returns an independent copy of the gamestate via a JSON
// round-trip.
func (gs *GameState) DeepCopy() (*GameState, error) {
	data, err := json.Marshal(gs)
	if err != nil {
		return nil, err
	}
	var cp GameState
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}
