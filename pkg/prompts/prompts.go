package prompts

import (
	"fmt"
	"strings"

	"github.com/agarciaarin-ops/SCUMM-AI/pkg/state"
)

// SchemaInstructions tells the generative service the exact reply shape.
// Every structured call ends with this block so replies stay decodable by
// the same schema regardless of endpoint.
const SchemaInstructions = `Respond with a single JSON object and nothing else. Use exactly these fields:
{
  "narrative": "2-4 sentences of story text for the player",
  "location": "display name of the player's current location",
  "visual_prompt": "one paragraph describing the physical scene, present tense, purely visual",
  "inventory": [{"name": "item name", "description": "one sentence"}],
  "key_elements": ["up to 5 visually salient nouns in the scene"],
  "available_exits": ["directions or places the player can go"],
  "visual_changed": true or false, whether the physical scene now differs from the last image
}
Keep the narrative under 120 words. The inventory list is the player's complete inventory after this turn.`

// WorldPrompt builds the world-initialization request from session settings.
func WorldPrompt(settings state.Settings) string {
	var sb strings.Builder
	sb.WriteString("You are the narrator of a point-and-click adventure game.\n")
	fmt.Fprintf(&sb, "World theme: %s\n", settings.World)
	fmt.Fprintf(&sb, "Starting location: %s\n", settings.StartLocation)
	fmt.Fprintf(&sb, "Player objective: %s\n", settings.Objective)
	fmt.Fprintf(&sb, "Narrative tone: %s\n", settings.Tone)
	sb.WriteString("\nOpen the game: introduce the starting location, set the scene, and give the player their bearings. Set visual_changed to true.\n\n")
	sb.WriteString(SchemaInstructions)
	return sb.String()
}
