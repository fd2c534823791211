package realtime

import (
	"log"
	"time"
)

const greetingText = "The call has just connected. Greet the person on the line in a way that fits your persona."

// greetingSettle gives the endpoint a moment to accept the synthetic item
// before the response is requested.
var greetingSettle = 100 * time.Millisecond

// SendGreeting injects a synthetic user turn and requests a response so the
// assistant speaks first. It reports success rather than failing the call:
// a silent start is preferable to a dropped one.
func SendGreeting(conn Conn) bool {
	item := ItemCreate{
		Type: TypeItemCreate,
		Item: Item{
			Type:    "message",
			Role:    "user",
			Content: []ItemContent{{Type: "input_text", Text: greetingText}},
		},
	}
	if err := conn.WriteJSON(item); err != nil {
		log.Printf("greeting item send failed: %v", err)
		return false
	}

	time.Sleep(greetingSettle)

	if err := conn.WriteJSON(ResponseCreate{Type: TypeResponseCreate}); err != nil {
		log.Printf("greeting response request failed: %v", err)
		return false
	}
	return true
}
