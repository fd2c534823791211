package bridge

import (
	"testing"
	"time"
)

func TestCallStateGreetingFirstWriterWins(t *testing.T) {
	state := NewCallState()
	if state.GreetingSent() {
		t.Fatal("greeting reported sent before anyone marked it")
	}
	if !state.MarkGreetingSent() {
		t.Fatal("first MarkGreetingSent returned false")
	}
	if state.MarkGreetingSent() {
		t.Fatal("second MarkGreetingSent returned true")
	}
	if !state.GreetingSent() {
		t.Fatal("greeting not reported sent after marking")
	}
}

func TestCallStateAssistantItemKeepsStartTime(t *testing.T) {
	state := NewCallState()
	start := time.Now()
	state.SetAssistantItem("item_1", start)
	state.SetAssistantItem("item_1", start.Add(time.Second))

	id, at := state.AssistantItem()
	if id != "item_1" {
		t.Fatalf("item id = %q, want item_1", id)
	}
	if !at.Equal(start) {
		t.Fatalf("start time advanced on repeat delta: got %v, want %v", at, start)
	}

	state.SetAssistantItem("item_2", start.Add(2*time.Second))
	id, at = state.AssistantItem()
	if id != "item_2" || !at.Equal(start.Add(2*time.Second)) {
		t.Fatalf("new item not tracked: id=%q at=%v", id, at)
	}

	state.ClearAssistantItem()
	if id, _ := state.AssistantItem(); id != "" {
		t.Fatalf("item id = %q after clear, want empty", id)
	}
}

func TestCallStateStopFlagAndRearm(t *testing.T) {
	state := NewCallState()
	state.SignalStop()
	if !state.Stopped() {
		t.Fatal("stop flag not set")
	}
	state.ResetStop()
	if state.Stopped() {
		t.Fatal("stop flag survived rearm")
	}
}

func TestCallStateReconnectCounterNeverResets(t *testing.T) {
	state := NewCallState()
	if got := state.IncReconnect(); got != 1 {
		t.Fatalf("first increment = %d, want 1", got)
	}
	state.ResetStop()
	if got := state.IncReconnect(); got != 2 {
		t.Fatalf("second increment = %d, want 2", got)
	}
	if got := state.ReconnectAttempts(); got != 2 {
		t.Fatalf("ReconnectAttempts = %d, want 2", got)
	}
}
