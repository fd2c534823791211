package bridge

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/voxline/voxline/internal/observability"
	"github.com/voxline/voxline/internal/realtime"
	"github.com/voxline/voxline/internal/scenario"
	"github.com/voxline/voxline/internal/store"
	"github.com/voxline/voxline/internal/telephony"
)

// Phase names the supervisor's position in the call lifecycle. Retry
// exhaustion and give-up are distinct, observable states rather than loop
// exit conditions.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseConnecting       Phase = "connecting"
	PhaseNegotiating      Phase = "negotiating"
	PhaseAwaitingGreeting Phase = "awaiting_greeting"
	PhaseBridging         Phase = "bridging"
	PhaseReconnecting     Phase = "reconnecting"
	PhaseClosed           Phase = "closed"
	PhaseFailed           Phase = "failed"
)

// AIDialer produces fresh realtime connections. A connection is never reused
// across attempts.
type AIDialer interface {
	Dial(ctx context.Context) (realtime.Conn, error)
}

// Config carries per-call supervisor settings.
type Config struct {
	CallID    string
	AccountID string
	Scenario  scenario.Scenario
	Incoming  bool

	GreetingWait     time.Duration
	ReconnectBackoff time.Duration
	MaxReconnects    int
}

// Supervisor owns the lifecycle of one call's bridge: both connections, both
// relay tasks, the greeting handshake, and the AI-side retry budget.
type Supervisor struct {
	dialer      AIDialer
	cfg         Config
	metrics     *observability.Metrics
	ledger      store.CallLedger
	transcripts store.TranscriptSink

	mu    sync.Mutex
	phase Phase

	closeTelephonyOnce sync.Once
}

func NewSupervisor(dialer AIDialer, cfg Config, metrics *observability.Metrics, ledger store.CallLedger, transcripts store.TranscriptSink) *Supervisor {
	if cfg.GreetingWait <= 0 {
		cfg.GreetingWait = 10 * time.Second
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = 2 * time.Second
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = 3
	}
	return &Supervisor{
		dialer:      dialer,
		cfg:         cfg,
		metrics:     metrics,
		ledger:      ledger,
		transcripts: transcripts,
		phase:       PhaseIdle,
	}
}

func (s *Supervisor) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.BridgeEvents.WithLabelValues(string(p)).Inc()
	}
}

// Phase reports the supervisor's current lifecycle state.
func (s *Supervisor) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Supervisor) closeTelephony(tconn telephony.Conn) {
	s.closeTelephonyOnce.Do(func() {
		_ = tconn.Close()
	})
}

// Run bridges one accepted telephony connection until the call ends, the
// context is cancelled, or the AI retry budget is exhausted.
func (s *Supervisor) Run(ctx context.Context, tconn telephony.Conn) error {
	state := NewCallState()

	s.recordStarted(ctx)
	if s.metrics != nil {
		s.metrics.ActiveBridges.Inc()
		defer s.metrics.ActiveBridges.Dec()
	}

	for {
		s.setPhase(PhaseConnecting)
		aiConn, err := s.dialer.Dial(ctx)
		if err != nil {
			log.Printf("call %s: ai dial failed: %v", s.cfg.CallID, err)
			if !s.scheduleReconnect(ctx, state) {
				return s.fail(ctx, tconn, state)
			}
			continue
		}

		s.setPhase(PhaseNegotiating)
		if err := realtime.Negotiate(aiConn, s.cfg.Scenario, s.cfg.Incoming); err != nil {
			log.Printf("call %s: negotiation failed: %v", s.cfg.CallID, err)
			_ = aiConn.Close()
			if !s.scheduleReconnect(ctx, state) {
				return s.fail(ctx, tconn, state)
			}
			continue
		}

		s.setPhase(PhaseAwaitingGreeting)
		if !state.GreetingSent() {
			s.startGreeting(aiConn, state)
		}

		s.setPhase(PhaseBridging)
		state.ResetStop()
		first := s.bridge(ctx, tconn, aiConn, state)

		if ctx.Err() != nil {
			s.closeTelephony(tconn)
			s.setPhase(PhaseClosed)
			s.recordEnded(context.Background(), "canceled")
			return nil
		}

		switch first {
		case CauseStop, CauseTelephonyClosed:
			s.setPhase(PhaseClosed)
			s.recordEnded(ctx, "completed")
			s.closeTelephony(tconn)
			return nil
		case CauseAIClosed:
			if !s.scheduleReconnect(ctx, state) {
				return s.fail(ctx, tconn, state)
			}
		}
	}
}

// bridge launches the two relays and returns the cause of the first exit.
// Both relays are always awaited before it returns; no relay task outlives
// the supervisor's control of the call.
func (s *Supervisor) bridge(ctx context.Context, tconn telephony.Conn, aiConn realtime.Conn, state *CallState) Cause {
	inbound := &InboundRelay{
		Telephony:   tconn,
		AI:          aiConn,
		State:       state,
		CallID:      s.cfg.CallID,
		Transcripts: s.transcripts,
	}
	outbound := &OutboundRelay{
		Telephony: tconn,
		AI:        aiConn,
		State:     state,
		CallID:    s.cfg.CallID,
		Metrics:   s.metrics,
	}

	inCh := make(chan Cause, 1)
	outCh := make(chan Cause, 1)
	go func() { inCh <- inbound.Run() }()
	go func() { outCh <- outbound.Run() }()

	var first Cause
	var inDone, outDone bool
	select {
	case first = <-inCh:
		inDone = true
	case first = <-outCh:
		outDone = true
	case <-ctx.Done():
		first = CauseStop
	}

	// Cooperative cancellation: relays observe the flag at their next loop
	// iteration; closing the AI connection unblocks its reader immediately.
	state.SignalStop()
	_ = aiConn.Close()
	if ctx.Err() != nil {
		s.closeTelephony(tconn)
	}
	if !inDone {
		<-inCh
	}
	if !outDone {
		<-outCh
	}
	return first
}

// startGreeting drives the initial-greeting handshake without blocking the
// transition to Bridging. A timeout only means the call starts silently.
func (s *Supervisor) startGreeting(aiConn realtime.Conn, state *CallState) {
	result := make(chan bool, 1)
	go func() { result <- realtime.SendGreeting(aiConn) }()
	go func() {
		timer := time.NewTimer(s.cfg.GreetingWait)
		defer timer.Stop()
		select {
		case sent := <-result:
			if sent {
				state.MarkGreetingSent()
			} else {
				log.Printf("call %s: greeting not sent, proceeding without one", s.cfg.CallID)
			}
		case <-timer.C:
			log.Printf("call %s: greeting timed out after %s", s.cfg.CallID, s.cfg.GreetingWait)
		}
	}()
}

// scheduleReconnect consumes one retry from the budget and waits out the
// backoff. It reports false when the budget is exhausted.
func (s *Supervisor) scheduleReconnect(ctx context.Context, state *CallState) bool {
	if ctx.Err() != nil {
		return false
	}
	if state.ReconnectAttempts() >= s.cfg.MaxReconnects {
		return false
	}
	attempt := state.IncReconnect()
	s.setPhase(PhaseReconnecting)
	if s.metrics != nil {
		s.metrics.Reconnects.Inc()
	}
	log.Printf("call %s: reconnecting ai leg, attempt %d/%d", s.cfg.CallID, attempt, s.cfg.MaxReconnects)

	timer := time.NewTimer(s.cfg.ReconnectBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// fail gives up on the call: the telephony leg is closed exactly once and no
// further audio is promised to the caller.
func (s *Supervisor) fail(ctx context.Context, tconn telephony.Conn, state *CallState) error {
	s.setPhase(PhaseFailed)
	s.recordEnded(ctx, "failed")
	s.closeTelephony(tconn)
	return fmt.Errorf("ai connection lost after %d reconnect attempts", state.ReconnectAttempts())
}

func (s *Supervisor) recordStarted(ctx context.Context) {
	if s.ledger == nil {
		return
	}
	direction := "outbound"
	if s.cfg.Incoming {
		direction = "inbound"
	}
	err := s.ledger.RecordCallStarted(ctx, store.CallRecord{
		CallID:    s.cfg.CallID,
		AccountID: s.cfg.AccountID,
		Scenario:  s.cfg.Scenario.Key,
		Direction: direction,
		StartedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("call %s: ledger start failed: %v", s.cfg.CallID, err)
	}
}

func (s *Supervisor) recordEnded(ctx context.Context, outcome string) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.RecordCallEnded(ctx, s.cfg.CallID, outcome); err != nil {
		log.Printf("call %s: ledger end failed: %v", s.cfg.CallID, err)
	}
}
