package prompts

import (
	"fmt"
	"strings"

	"github.com/agarciaarin-ops/SCUMM-AI/pkg/state"
)

const defaultHistoryWindow = 2

// Builder constructs the gameplay-turn prompt using a fluent interface. It
// separates prompt assembly from game state management.
type Builder struct {
	gs            *state.GameState
	action        string
	historyWindow int
}

// New creates a new prompt builder with default settings.
func New() *Builder {
	return &Builder{
		historyWindow: defaultHistoryWindow,
	}
}

// WithGameState sets the session state the turn is played against.
func (b *Builder) WithGameState(gs *state.GameState) *Builder {
	b.gs = gs
	return b
}

// WithAction sets the player's action text.
func (b *Builder) WithAction(action string) *Builder {
	b.action = action
	return b
}

// WithHistoryWindow sets how many recent history entries are included.
func (b *Builder) WithHistoryWindow(n int) *Builder {
	b.historyWindow = n
	return b
}

// Build constructs the final prompt text for the gameplay endpoint.
func (b *Builder) Build() (string, error) {
	if b.gs == nil {
		return "", fmt.Errorf("gamestate is required")
	}
	if strings.TrimSpace(b.action) == "" {
		return "", fmt.Errorf("action is required")
	}

	var sb strings.Builder
	sb.WriteString("You are the narrator of a point-and-click adventure game.\n")
	fmt.Fprintf(&sb, "World theme: %s\n", b.gs.Settings.World)
	fmt.Fprintf(&sb, "Narrative tone: %s\n", b.gs.Settings.Tone)
	fmt.Fprintf(&sb, "Player objective: %s\n\n", b.gs.Settings.Objective)

	fmt.Fprintf(&sb, "Current location: %s\n", b.gs.Location)
	fmt.Fprintf(&sb, "Player inventory: %s\n", b.gs.InventoryDigest())

	if recent := b.gs.RecentHistory(b.historyWindow); len(recent) > 0 {
		sb.WriteString("Recent events:\n")
		for _, msg := range recent {
			fmt.Fprintf(&sb, "- %s: %s\n", msg.Role, msg.Content)
		}
	}

	if b.gs.ImageURL != "" {
		sb.WriteString("\nThe attached image shows the scene as the player currently sees it. Stay visually consistent with it.\n")
	}

	fmt.Fprintf(&sb, "\nThe player says: %q\n", b.action)
	sb.WriteString("Narrate what happens next. If the player moved, report the new location. Set visual_changed to true only when the physical scene now looks different.\n\n")
	sb.WriteString(SchemaInstructions)

	return sb.String(), nil
}
