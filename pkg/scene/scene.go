// Package scene defines the structured reply schema the generative service
// is asked to produce for world initialization and gameplay turns.
package scene

import (
	"fmt"

	"github.com/agarciaarin-ops/SCUMM-AI/pkg/state"
)

// Update is one structured reply from the generative service. A single
// schema serves both world initialization and gameplay turns.
type Update struct {
	Narrative      string                `json:"narrative"`
	Location       string                `json:"location"`
	VisualPrompt   string                `json:"visual_prompt"`
	Inventory      []state.InventoryItem `json:"inventory"`
	KeyElements    []string              `json:"key_elements"`
	AvailableExits []string              `json:"available_exits"`

	// VisualChanged is the service's explicit signal that the physical
	// scene differs from what the current image depicts.
	VisualChanged bool `json:"visual_changed"`
}

// Validate checks the semantic minimum for an update to be usable. A reply
// that decodes but lacks a narrative is treated the same as an undecodable
// one.
func (u *Update) Validate() error {
	if u == nil {
		return fmt.Errorf("update is nil")
	}
	if u.Narrative == "" {
		return fmt.Errorf("update has no narrative")
	}
	return nil
}
