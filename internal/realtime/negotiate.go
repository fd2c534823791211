package realtime

import (
	"fmt"
	"strings"

	"github.com/voxline/voxline/internal/scenario"
)

const systemRules = "Stay in character at all times. Keep responses brief and conversational, suited to a phone call. Never reveal that you are an AI."

const (
	incomingInstruction = "This is an incoming call. Greet the caller warmly and ask for their name."
	outgoingInstruction = "This is an outgoing call you placed. Begin directly according to your persona; do not ask how you can help."
)

// BuildInstructions concatenates the fixed behavior rules with the scenario
// persona/prompt and the direction-specific opening instruction.
func BuildInstructions(sc scenario.Scenario, incoming bool) string {
	direction := outgoingInstruction
	if incoming {
		direction = incomingInstruction
	}
	parts := []string{systemRules, sc.Persona, sc.Prompt, direction}
	return strings.Join(parts, "\n\n")
}

// BuildSessionUpdate assembles the single configuration event negotiating a
// session for the given scenario. Audio is 8kHz mu-law on both legs, so no
// transcoding happens anywhere in the bridge.
func BuildSessionUpdate(sc scenario.Scenario, incoming bool) SessionUpdate {
	temp := sc.Temperature
	return SessionUpdate{
		Type: TypeSessionUpdate,
		Session: SessionConfig{
			TurnDetection:     DefaultTurnDetection(),
			InputAudioFormat:  "g711_ulaw",
			OutputAudioFormat: "g711_ulaw",
			Voice:             sc.Voice,
			Instructions:      BuildInstructions(sc, incoming),
			Modalities:        []string{"text", "audio"},
			Temperature:       &temp,
		},
	}
}

// Negotiate sends the session configuration. A send failure is fatal for this
// call attempt; the supervisor decides whether a fresh attempt follows.
func Negotiate(conn Conn, sc scenario.Scenario, incoming bool) error {
	if err := conn.WriteJSON(BuildSessionUpdate(sc, incoming)); err != nil {
		return fmt.Errorf("negotiate session: %w", err)
	}
	return nil
}
