package bridge

import (
	"log"
	"time"

	"github.com/voxline/voxline/internal/realtime"
	"github.com/voxline/voxline/internal/telephony"
)

const interruptMark = "user_interrupt_pause"

// interruptPause is the short settle before normal forwarding resumes, to
// avoid audio-splice artifacts at the cut point.
var interruptPause = 100 * time.Millisecond

// HandleInterrupt reacts to the caller speaking over in-flight assistant
// audio. Each step is independently best-effort: a failed truncate must not
// prevent the buffer clear, and neither failure ends the call.
func HandleInterrupt(tconn telephony.Conn, aiConn realtime.Conn, streamID, itemID string, itemStartedAt time.Time) {
	if itemID != "" {
		audioEndMS := int64(0)
		if !itemStartedAt.IsZero() {
			audioEndMS = time.Since(itemStartedAt).Milliseconds()
		}
		truncate := realtime.ItemTruncate{
			Type:         realtime.TypeItemTruncate,
			ItemID:       itemID,
			ContentIndex: 0,
			AudioEndMS:   audioEndMS,
			Reason:       "user_interrupt",
		}
		if err := aiConn.WriteJSON(truncate); err != nil {
			log.Printf("interrupt: truncate send failed: %v", err)
		}
	}

	if streamID != "" {
		if err := tconn.WriteJSON(telephony.NewClearOut(streamID)); err != nil {
			log.Printf("interrupt: clear send failed: %v", err)
		}
	}

	if err := tconn.WriteJSON(telephony.NewMarkOut(streamID, interruptMark)); err != nil {
		log.Printf("interrupt: mark send failed: %v", err)
	}

	time.Sleep(interruptPause)
}
