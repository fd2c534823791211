package telephony

import (
	"encoding/json"
	"fmt"
)

// Media-stream event names consumed from the provider websocket.
const (
	EventStart         = "start"
	EventMedia         = "media"
	EventStop          = "stop"
	EventSpeechStarted = "speech_started"
	EventTranscription = "transcription"
	EventMark          = "mark"
	EventClear         = "clear"
)

type Envelope struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`
}

type StartEvent struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`
	Start     struct {
		StreamSid string `json:"streamSid"`
		CallSid   string `json:"callSid"`
	} `json:"start"`
}

// SID returns the stream identifier, wherever the provider put it.
func (e StartEvent) SID() string {
	if e.Start.StreamSid != "" {
		return e.Start.StreamSid
	}
	return e.StreamSid
}

type MediaEvent struct {
	Event string `json:"event"`
	Media struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

type StopEvent struct {
	Event string `json:"event"`
}

type SpeechStartedEvent struct {
	Event string `json:"event"`
}

type TranscriptionEvent struct {
	Event      string `json:"event"`
	Transcript string `json:"transcript"`
}

// UnknownEvent carries an event name this version does not handle. The relays
// skip these so newer provider events never break an in-flight call.
type UnknownEvent struct {
	Event string
}

// ParseEvent decodes one provider message into its typed event.
func ParseEvent(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed media-stream event: %w", err)
	}
	switch env.Event {
	case EventStart:
		var evt StartEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, err
		}
		return evt, nil
	case EventMedia:
		var evt MediaEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, err
		}
		return evt, nil
	case EventStop:
		return StopEvent{Event: EventStop}, nil
	case EventSpeechStarted:
		return SpeechStartedEvent{Event: EventSpeechStarted}, nil
	case EventTranscription:
		var evt TranscriptionEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, err
		}
		return evt, nil
	default:
		return UnknownEvent{Event: env.Event}, nil
	}
}

// Outbound events written back to the provider websocket.

type MediaPayload struct {
	Payload string `json:"payload"`
}

type MediaOut struct {
	Event     string       `json:"event"`
	StreamSid string       `json:"streamSid"`
	Media     MediaPayload `json:"media"`
}

type MarkPayload struct {
	Name string `json:"name"`
}

type MarkOut struct {
	Event     string      `json:"event"`
	StreamSid string      `json:"streamSid"`
	Mark      MarkPayload `json:"mark"`
}

type ClearOut struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`
}

func NewMediaOut(streamSid, payload string) MediaOut {
	return MediaOut{Event: EventMedia, StreamSid: streamSid, Media: MediaPayload{Payload: payload}}
}

func NewMarkOut(streamSid, name string) MarkOut {
	return MarkOut{Event: EventMark, StreamSid: streamSid, Mark: MarkPayload{Name: name}}
}

func NewClearOut(streamSid string) ClearOut {
	return ClearOut{Event: EventClear, StreamSid: streamSid}
}
