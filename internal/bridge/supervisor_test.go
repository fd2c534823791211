package bridge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voxline/voxline/internal/realtime"
	"github.com/voxline/voxline/internal/scenario"
	"github.com/voxline/voxline/internal/store"
)

type dialerFunc func(ctx context.Context) (realtime.Conn, error)

func (f dialerFunc) Dial(ctx context.Context) (realtime.Conn, error) { return f(ctx) }

type countingDialer struct {
	mu    sync.Mutex
	calls int
	next  func(attempt int) (realtime.Conn, error)
}

func (d *countingDialer) Dial(_ context.Context) (realtime.Conn, error) {
	d.mu.Lock()
	d.calls++
	attempt := d.calls
	d.mu.Unlock()
	return d.next(attempt)
}

func (d *countingDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type recordingLedger struct {
	mu       sync.Mutex
	started  []store.CallRecord
	outcomes []string
}

func (l *recordingLedger) RecordCallStarted(_ context.Context, rec store.CallRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, rec)
	return nil
}

func (l *recordingLedger) RecordCallEnded(_ context.Context, _ string, outcome string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outcomes = append(l.outcomes, outcome)
	return nil
}

func (l *recordingLedger) snapshot() ([]store.CallRecord, []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]store.CallRecord(nil), l.started...), append([]string(nil), l.outcomes...)
}

func testScenario() scenario.Scenario {
	return scenario.Scenario{
		Key:         "assistant",
		Persona:     "X",
		Prompt:      "Y",
		Voice:       "alloy",
		Temperature: 0.5,
	}
}

func fastConfig() Config {
	return Config{
		CallID:           "call-1",
		AccountID:        "acct-1",
		Scenario:         testScenario(),
		Incoming:         true,
		GreetingWait:     50 * time.Millisecond,
		ReconnectBackoff: time.Millisecond,
		MaxReconnects:    3,
	}
}

func runSupervisor(t *testing.T, ctx context.Context, s *Supervisor, tel *scriptConn) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, tel) }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not finish in time")
		return nil
	}
}

func TestSupervisorFailsAfterRetryBudget(t *testing.T) {
	dialer := &countingDialer{next: func(int) (realtime.Conn, error) {
		return nil, errors.New("dial refused")
	}}
	tel := newScriptConn("tel", nil)
	s := NewSupervisor(dialer, fastConfig(), nil, nil, nil)

	err := runSupervisor(t, context.Background(), s, tel)
	if err == nil {
		t.Fatal("expected an error after exhausting the retry budget")
	}
	if got := s.Phase(); got != PhaseFailed {
		t.Fatalf("phase = %v, want %v", got, PhaseFailed)
	}
	// Initial attempt plus three retries.
	if got := dialer.count(); got != 4 {
		t.Fatalf("dial attempts = %d, want 4", got)
	}
	if got := tel.closes(); got != 1 {
		t.Fatalf("telephony closed %d times, want exactly 1", got)
	}
}

func TestSupervisorCleanStopForwardsMediaAndRecordsCall(t *testing.T) {
	ai := newScriptConn("ai", nil)
	dialer := &countingDialer{next: func(int) (realtime.Conn, error) { return ai, nil }}
	tel := newScriptConn("tel", nil)
	ledger := &recordingLedger{}
	s := NewSupervisor(dialer, fastConfig(), nil, ledger, nil)

	tel.push(startJSON)
	tel.push(mediaJSON("AAAA"))
	tel.push(stopJSON)

	if err := runSupervisor(t, context.Background(), s, tel); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if got := s.Phase(); got != PhaseClosed {
		t.Fatalf("phase = %v, want %v", got, PhaseClosed)
	}
	if got := tel.closes(); got != 1 {
		t.Fatalf("telephony closed %d times, want exactly 1", got)
	}

	var sessionUpdates []realtime.SessionUpdate
	var appends []realtime.InputAudioAppend
	for _, w := range ai.writes() {
		switch msg := w.(type) {
		case realtime.SessionUpdate:
			if msg.Session.Voice != "" {
				sessionUpdates = append(sessionUpdates, msg)
			}
		case realtime.InputAudioAppend:
			appends = append(appends, msg)
		}
	}
	if len(sessionUpdates) != 1 {
		t.Fatalf("got %d negotiation updates, want 1", len(sessionUpdates))
	}
	sess := sessionUpdates[0].Session
	if sess.Voice != "alloy" || sess.Temperature == nil || *sess.Temperature != 0.5 {
		t.Fatalf("negotiated session = %+v", sess)
	}
	if sess.InputAudioFormat != "g711_ulaw" || sess.OutputAudioFormat != "g711_ulaw" {
		t.Fatalf("audio formats = %q/%q, want g711_ulaw both ways", sess.InputAudioFormat, sess.OutputAudioFormat)
	}
	if !strings.Contains(sess.Instructions, "X") || !strings.Contains(sess.Instructions, "Y") {
		t.Fatalf("instructions missing persona or prompt: %q", sess.Instructions)
	}
	if len(appends) != 1 || appends[0].Audio != "AAAA" {
		t.Fatalf("appends = %+v, want exactly one with audio AAAA", appends)
	}

	started, outcomes := ledger.snapshot()
	if len(started) != 1 || started[0].CallID != "call-1" || started[0].Direction != "inbound" {
		t.Fatalf("started records = %+v", started)
	}
	if len(outcomes) != 1 || outcomes[0] != "completed" {
		t.Fatalf("outcomes = %v, want [completed]", outcomes)
	}
}

func TestSupervisorReconnectsAfterAIDrop(t *testing.T) {
	ai2 := newScriptConn("ai2", nil)
	dialer := &countingDialer{next: func(attempt int) (realtime.Conn, error) {
		if attempt == 1 {
			ai1 := newScriptConn("ai1", nil)
			ai1.finishReads()
			return ai1, nil
		}
		return ai2, nil
	}}
	tel := newScriptConn("tel", nil)
	s := NewSupervisor(dialer, fastConfig(), nil, nil, nil)

	// Keep telephony frames flowing so the inbound relay keeps observing the
	// stop flag, the way a live call keeps delivering audio.
	feederDone := make(chan struct{})
	defer close(feederDone)
	go func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-feederDone:
				return
			case <-ticker.C:
				select {
				case tel.reads <- []byte(mediaJSON("AAAA")):
				default:
				}
			}
		}
	}()

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), tel) }()

	deadline := time.After(5 * time.Second)
	for dialer.count() < 2 {
		select {
		case <-deadline:
			t.Fatal("second dial never happened")
		case <-time.After(time.Millisecond):
		}
	}
	tel.push(stopJSON)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not finish after stop")
	}
	if got := s.Phase(); got != PhaseClosed {
		t.Fatalf("phase = %v, want %v", got, PhaseClosed)
	}
	if got := dialer.count(); got != 2 {
		t.Fatalf("dial attempts = %d, want 2", got)
	}
	if got := tel.closes(); got != 1 {
		t.Fatalf("telephony closed %d times, want exactly 1", got)
	}
}

func TestSupervisorContextCancelClosesCall(t *testing.T) {
	ai := newScriptConn("ai", nil)
	dialer := dialerFunc(func(context.Context) (realtime.Conn, error) { return ai, nil })
	tel := newScriptConn("tel", nil)
	ledger := &recordingLedger{}
	s := NewSupervisor(dialer, fastConfig(), nil, ledger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if err := runSupervisor(t, ctx, s, tel); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if got := s.Phase(); got != PhaseClosed {
		t.Fatalf("phase = %v, want %v", got, PhaseClosed)
	}
	if got := tel.closes(); got != 1 {
		t.Fatalf("telephony closed %d times, want exactly 1", got)
	}
	_, outcomes := ledger.snapshot()
	if len(outcomes) != 1 || outcomes[0] != "canceled" {
		t.Fatalf("outcomes = %v, want [canceled]", outcomes)
	}
}

// stallGreetingConn blocks the greeting conversation item until released,
// leaving every other write untouched.
type stallGreetingConn struct {
	*scriptConn
	release chan struct{}
}

func (c *stallGreetingConn) WriteJSON(v any) error {
	if _, ok := v.(realtime.ItemCreate); ok {
		<-c.release
	}
	return c.scriptConn.WriteJSON(v)
}

func TestSupervisorGreetingTimeoutDoesNotBlockBridging(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	ai := &stallGreetingConn{scriptConn: newScriptConn("ai", nil), release: release}
	dialer := dialerFunc(func(context.Context) (realtime.Conn, error) { return ai, nil })
	tel := newScriptConn("tel", nil)

	cfg := fastConfig()
	cfg.GreetingWait = 5 * time.Millisecond
	s := NewSupervisor(dialer, cfg, nil, nil, nil)

	tel.push(startJSON)
	tel.push(mediaJSON("AAAA"))
	tel.push(stopJSON)

	start := time.Now()
	if err := runSupervisor(t, context.Background(), s, tel); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("bridging blocked on greeting for %s", elapsed)
	}
	if got := s.Phase(); got != PhaseClosed {
		t.Fatalf("phase = %v, want %v", got, PhaseClosed)
	}
	for _, w := range ai.writes() {
		if _, ok := w.(realtime.ResponseCreate); ok {
			t.Fatal("response.create sent even though the greeting item never went out")
		}
	}
}
