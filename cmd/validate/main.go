// Command validate checks an exported session file (the JSON body returned
// by GET /v1/session/{id}) against the gamestate invariants. Useful when
// debugging sessions pulled out of Redis.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/agarciaarin-ops/SCUMM-AI/pkg/chat"
	"github.com/agarciaarin-ops/SCUMM-AI/pkg/state"
	"github.com/google/uuid"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <session.json>\n", os.Args[0])
		os.Exit(1)
	}

	filename := os.Args[1]
	validator := &SessionValidator{}

	if err := validator.validateFile(filename); err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Session file is valid!")
}

type SessionValidator struct {
	errors []string
}

func (v *SessionValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	v.errors = nil

	if !json.Valid(data) {
		return fmt.Errorf("file %s contains invalid JSON", filename)
	}

	var gs state.GameState
	decoder := json.NewDecoder(strings.NewReader(string(data)))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&gs); err != nil {
		return fmt.Errorf("file %s failed strict JSON unmarshaling: %w", filename, err)
	}

	v.validateGameState(&gs)

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}

	return nil
}

func (v *SessionValidator) validateGameState(gs *state.GameState) {
	if gs.ID == uuid.Nil {
		v.addError("session ID is missing")
	}
	if gs.Settings.World == "" {
		v.addError("settings.world is empty")
	}
	if gs.Settings.StartLocation == "" {
		v.addError("settings.start_location is empty")
	}

	if len(gs.History) > state.HistoryLimit {
		v.addError(fmt.Sprintf("history has %d entries, exceeds limit of %d", len(gs.History), state.HistoryLimit))
	}
	for i, msg := range gs.History {
		if msg.Role != chat.RoleUser && msg.Role != chat.RoleNarrator {
			v.addError(fmt.Sprintf("history[%d] has unknown role %q", i, msg.Role))
		}
		if msg.Content == "" {
			v.addError(fmt.Sprintf("history[%d] has empty content", i))
		}
	}

	for key := range gs.KnownLocations {
		if key != state.NormalizeLocationKey(key) {
			v.addError(fmt.Sprintf("location cache key %q is not normalized", key))
		}
	}

	if gs.Location != "" {
		if _, ok := gs.LookupLocation(gs.Location); !ok {
			v.addError(fmt.Sprintf("current location %q has no cache entry", gs.Location))
		}
	}

	if gs.ImageURL != "" && !strings.HasPrefix(gs.ImageURL, "data:image/") {
		v.addError(fmt.Sprintf("image_url is not a data URL: %.40s...", gs.ImageURL))
	}
	for key, vis := range gs.KnownLocations {
		if vis.ImageURL != "" && !strings.HasPrefix(vis.ImageURL, "data:image/") {
			v.addError(fmt.Sprintf("cached image for %q is not a data URL", key))
		}
	}

	if gs.LoadingStatus != "" {
		v.addError(fmt.Sprintf("loading_status %q was persisted; exported sessions should be at rest", gs.LoadingStatus))
	}
}

func (v *SessionValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}
