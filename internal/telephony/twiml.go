package telephony

import (
	"fmt"

	"github.com/twilio/twilio-go/twiml"
)

// StreamTwiML renders the voice response that connects an answered call to
// the media-stream websocket at wsURL.
func StreamTwiML(wsURL string) (string, error) {
	stream := twiml.VoiceStream{
		Name: "voxline-bridge",
		Url:  wsURL,
	}
	connect := twiml.VoiceConnect{
		InnerElements: []twiml.Element{stream},
	}
	out, err := twiml.Voice([]twiml.Element{connect})
	if err != nil {
		return "", fmt.Errorf("render twiml: %w", err)
	}
	return out, nil
}

// RejectTwiML renders the voice response that declines a call before any
// media flows, used when the account is over its usage cap.
func RejectTwiML() (string, error) {
	reject := twiml.VoiceReject{Reason: "busy"}
	out, err := twiml.Voice([]twiml.Element{reject})
	if err != nil {
		return "", fmt.Errorf("render twiml: %w", err)
	}
	return out, nil
}
