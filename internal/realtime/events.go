package realtime

import (
	"encoding/json"
	"fmt"
)

// Client events sent to the realtime endpoint.
const (
	TypeSessionUpdate    = "session.update"
	TypeInputAudioAppend = "input_audio_buffer.append"
	TypeItemCreate       = "conversation.item.create"
	TypeResponseCreate   = "response.create"
	TypeItemTruncate     = "conversation.item.truncate"
)

// Server events consumed from the realtime endpoint.
const (
	TypeResponseAudioDelta  = "response.audio.delta"
	TypeResponseContentDone = "response.content.done"
	TypeSpeechStarted       = "input_audio_buffer.speech_started"
	TypeError               = "error"
)

// TurnDetection carries server-side VAD tuning.
type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms"`
	SilenceDurationMS int     `json:"silence_duration_ms"`
}

// SessionConfig is the body of a session.update event.
type SessionConfig struct {
	TurnDetection     *TurnDetection `json:"turn_detection,omitempty"`
	InputAudioFormat  string         `json:"input_audio_format,omitempty"`
	OutputAudioFormat string         `json:"output_audio_format,omitempty"`
	Voice             string         `json:"voice,omitempty"`
	Instructions      string         `json:"instructions,omitempty"`
	Modalities        []string       `json:"modalities,omitempty"`
	Temperature       *float64       `json:"temperature,omitempty"`
}

type SessionUpdate struct {
	Type    string        `json:"type"`
	Session SessionConfig `json:"session"`
}

type InputAudioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type ItemContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type Item struct {
	Type    string        `json:"type"`
	Role    string        `json:"role,omitempty"`
	Content []ItemContent `json:"content,omitempty"`
}

type ItemCreate struct {
	Type string `json:"type"`
	Item Item   `json:"item"`
}

type ResponseCreate struct {
	Type string `json:"type"`
}

type ItemTruncate struct {
	Type         string `json:"type"`
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	AudioEndMS   int64  `json:"audio_end_ms"`
	Reason       string `json:"reason,omitempty"`
}

// ServerEvent is the decoded envelope of one message from the endpoint.
// Err is non-nil for any event carrying an error key, whatever its type.
type ServerEvent struct {
	Type   string          `json:"type"`
	Delta  string          `json:"delta"`
	ItemID string          `json:"item_id"`
	Err    json.RawMessage `json:"error"`
}

// ParseServerEvent decodes one endpoint message. Malformed payloads are a
// ProtocolError for the caller to log and skip.
func ParseServerEvent(raw []byte) (ServerEvent, error) {
	var evt ServerEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return ServerEvent{}, fmt.Errorf("malformed realtime event: %w", err)
	}
	return evt, nil
}

// DefaultTurnDetection returns the fixed VAD tuning used for phone audio.
func DefaultTurnDetection() *TurnDetection {
	return &TurnDetection{
		Type:              "server_vad",
		Threshold:         0.2,
		PrefixPaddingMS:   200,
		SilenceDurationMS: 500,
	}
}

// TurnDetectionUpdate builds the idempotent VAD reassertion sent when a
// telephony stream starts.
func TurnDetectionUpdate() SessionUpdate {
	return SessionUpdate{
		Type:    TypeSessionUpdate,
		Session: SessionConfig{TurnDetection: DefaultTurnDetection()},
	}
}
