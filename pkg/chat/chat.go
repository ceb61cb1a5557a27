package chat

import (
	"fmt"
	"strings"
)

// ActionRequest is the body of a player action submitted to the session api.
type ActionRequest struct {
	Action string `json:"action"`
}

const (
	RoleUser     = "user"     // player input
	RoleNarrator = "narrator" // generative service output
)

// Message is a single entry in the session's turn history. The same shape
// doubles as the conversational context sent to the generative service.
type Message struct {
	Role    string `json:"role"` // "user" or "narrator"
	Content string `json:"content"`
}

func (ar *ActionRequest) Validate() error {
	if strings.TrimSpace(ar.Action) == "" {
		return fmt.Errorf("action cannot be empty")
	}
	return nil
}
