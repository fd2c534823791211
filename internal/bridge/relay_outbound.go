package bridge

import (
	"log"
	"time"

	"github.com/voxline/voxline/internal/observability"
	"github.com/voxline/voxline/internal/realtime"
	"github.com/voxline/voxline/internal/reliability"
	"github.com/voxline/voxline/internal/telephony"
)

// responsePartMark names the synchronization mark emitted after each finished
// speech part so the provider can report playback completion.
const responsePartMark = "responsePart"

// OutboundRelay forwards AI audio to the telephony connection. It reads only
// from the AI side and writes only to the telephony side, except that a
// caller barge-in makes it send one truncate back on the AI connection.
type OutboundRelay struct {
	Telephony telephony.Conn
	AI        realtime.Conn
	State     *CallState
	CallID    string
	Metrics   *observability.Metrics
}

// Run processes events strictly in receipt order until the stop flag is set
// or either connection fails.
func (r *OutboundRelay) Run() Cause {
	for {
		if r.State.Stopped() {
			return CauseStop
		}
		raw, err := r.AI.ReadMessage()
		if err != nil {
			if r.State.Stopped() {
				return CauseStop
			}
			if reliability.IsTransientConnError(err) {
				log.Printf("call %s: realtime connection lost: %v", r.CallID, err)
			} else {
				log.Printf("call %s: realtime connection closed: %v", r.CallID, err)
			}
			r.State.SignalStop()
			return CauseAIClosed
		}

		evt, err := realtime.ParseServerEvent(raw)
		if err != nil {
			log.Printf("call %s: skipping malformed realtime event: %v", r.CallID, err)
			continue
		}

		if evt.Err != nil {
			// The connection itself is assumed live until it closes.
			log.Printf("call %s: realtime endpoint reported error on %q: %s", r.CallID, evt.Type, evt.Err)
			if r.Metrics != nil {
				r.Metrics.ProviderErrors.WithLabelValues("realtime", evt.Type).Inc()
			}
			continue
		}

		switch evt.Type {
		case realtime.TypeResponseAudioDelta:
			if evt.ItemID != "" {
				r.State.SetAssistantItem(evt.ItemID, time.Now())
			}
			media := telephony.NewMediaOut(r.State.StreamID(), evt.Delta)
			if err := r.Telephony.WriteJSON(media); err != nil {
				r.State.SignalStop()
				return CauseTelephonyClosed
			}
			if r.Metrics != nil {
				r.Metrics.RelayFrames.WithLabelValues("outbound", "media").Inc()
			}
		case realtime.TypeResponseContentDone:
			r.State.ClearAssistantItem()
			streamID := r.State.StreamID()
			if streamID == "" {
				continue
			}
			if err := r.Telephony.WriteJSON(telephony.NewMarkOut(streamID, responsePartMark)); err != nil {
				r.State.SignalStop()
				return CauseTelephonyClosed
			}
		case realtime.TypeSpeechStarted:
			itemID, startedAt := r.State.AssistantItem()
			if itemID == "" {
				continue
			}
			if r.Metrics != nil {
				r.Metrics.Interruptions.Inc()
			}
			HandleInterrupt(r.Telephony, r.AI, r.State.StreamID(), itemID, startedAt)
			r.State.ClearAssistantItem()
		default:
			// Other endpoint events carry no audio and need no forwarding.
		}
	}
}
