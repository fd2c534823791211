package bridge

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/voxline/voxline/internal/realtime"
	"github.com/voxline/voxline/internal/store"
	"github.com/voxline/voxline/internal/telephony"
)

// Cause classifies why a relay loop ended. The supervisor alone decides what
// to do with it; relays never propagate errors past this boundary.
type Cause int

const (
	CauseStop Cause = iota
	CauseTelephonyClosed
	CauseAIClosed
)

func (c Cause) String() string {
	switch c {
	case CauseStop:
		return "stop"
	case CauseTelephonyClosed:
		return "telephony_closed"
	case CauseAIClosed:
		return "ai_closed"
	default:
		return "unknown"
	}
}

// greetingKeywords trigger the best-effort fallback that marks the greeting
// as delivered when the caller speaks first.
var greetingKeywords = []string{"hello", "hi", "hey"}

// InboundRelay forwards telephony media-stream events to the AI connection.
// It reads only from the telephony side and writes only to the AI side.
type InboundRelay struct {
	Telephony telephony.Conn
	AI        realtime.Conn
	State     *CallState
	CallID    string

	// Transcripts is optional; fragments are saved best-effort.
	Transcripts store.TranscriptSink
}

// Run processes events strictly in receipt order until the stop flag is set
// or either connection fails.
func (r *InboundRelay) Run() Cause {
	for {
		if r.State.Stopped() {
			return CauseStop
		}
		raw, err := r.Telephony.ReadMessage()
		if err != nil {
			if r.State.Stopped() {
				return CauseStop
			}
			r.State.SignalStop()
			return CauseTelephonyClosed
		}

		evt, err := telephony.ParseEvent(raw)
		if err != nil {
			log.Printf("call %s: skipping malformed telephony event: %v", r.CallID, err)
			continue
		}

		switch e := evt.(type) {
		case telephony.StartEvent:
			// A duplicate start simply overwrites the stream id with the
			// same value.
			r.State.SetStreamID(e.SID())
			if err := r.AI.WriteJSON(realtime.TurnDetectionUpdate()); err != nil {
				r.State.SignalStop()
				return CauseAIClosed
			}
		case telephony.MediaEvent:
			frame := realtime.InputAudioAppend{
				Type:  realtime.TypeInputAudioAppend,
				Audio: e.Media.Payload,
			}
			if err := r.AI.WriteJSON(frame); err != nil {
				r.State.SignalStop()
				return CauseAIClosed
			}
		case telephony.StopEvent:
			r.State.SignalStop()
			return CauseStop
		case telephony.SpeechStartedEvent:
			// Informational only; interruption is driven by the AI side's
			// own speech-start signal.
			log.Printf("call %s: caller speech started", r.CallID)
		case telephony.TranscriptionEvent:
			r.handleTranscription(e)
		case telephony.UnknownEvent:
			// Forward-compatible: newer provider events are skipped.
		}
	}
}

func (r *InboundRelay) handleTranscription(e telephony.TranscriptionEvent) {
	if r.Transcripts != nil && strings.TrimSpace(e.Transcript) != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.Transcripts.Save(ctx, store.TranscriptFragment{
			CallID:    r.CallID,
			Text:      e.Transcript,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			log.Printf("call %s: transcript save failed: %v", r.CallID, err)
		}
	}

	// Secondary greeting trigger: if the caller opens with a greeting before
	// the primary handshake finished, count the greeting as delivered.
	if r.State.GreetingSent() {
		return
	}
	lower := strings.ToLower(e.Transcript)
	for _, kw := range greetingKeywords {
		if strings.Contains(lower, kw) {
			if r.State.MarkGreetingSent() {
				log.Printf("call %s: greeting satisfied by caller transcript", r.CallID)
			}
			return
		}
	}
}
