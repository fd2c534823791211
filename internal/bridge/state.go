package bridge

import (
	"sync"
	"time"
)

// CallState is the only record shared by the two relays of one bridge. Every
// field is read and written under the mutex; no invariant spans fields, so
// single-field accessors are enough.
type CallState struct {
	mu                  sync.Mutex
	streamID            string
	shouldStop          bool
	greetingSent        bool
	lastAssistantItemID string
	lastItemStartedAt   time.Time
	reconnectAttempts   int
}

func NewCallState() *CallState {
	return &CallState{}
}

func (s *CallState) SetStreamID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamID = id
}

func (s *CallState) StreamID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamID
}

func (s *CallState) SignalStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shouldStop = true
}

func (s *CallState) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shouldStop
}

// ResetStop rearms the state for a fresh bridging attempt after reconnect.
// Stream identity and greeting progress survive; only the stop flag clears.
func (s *CallState) ResetStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shouldStop = false
}

// MarkGreetingSent records that a greeting fired. First writer wins; the
// return value reports whether this call was the first.
func (s *CallState) MarkGreetingSent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.greetingSent {
		return false
	}
	s.greetingSent = true
	return true
}

func (s *CallState) GreetingSent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.greetingSent
}

// SetAssistantItem tracks the in-flight assistant response item. The start
// time is kept from the first delta of the same item so the truncate offset
// reflects how long the item has been playing.
func (s *CallState) SetAssistantItem(itemID string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if itemID == s.lastAssistantItemID {
		return
	}
	s.lastAssistantItemID = itemID
	s.lastItemStartedAt = now
}

// AssistantItem returns the in-flight item id and its first-delta time.
func (s *CallState) AssistantItem() (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAssistantItemID, s.lastItemStartedAt
}

// ClearAssistantItem forgets the in-flight item after it finished or was
// truncated.
func (s *CallState) ClearAssistantItem() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAssistantItemID = ""
	s.lastItemStartedAt = time.Time{}
}

// IncReconnect bumps and returns the per-call reconnect counter. It is never
// reset: the retry budget is per call, not per outage.
func (s *CallState) IncReconnect() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnectAttempts++
	return s.reconnectAttempts
}

func (s *CallState) ReconnectAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnectAttempts
}
