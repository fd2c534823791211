// Package registry tracks app-initiated realtime sessions that ride on WebRTC
// instead of a telephony media stream. The registry owns each session's AI
// connection and relays the client's SDP offer to the realtime endpoint, which
// answers in a single round trip.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxline/voxline/internal/observability"
	"github.com/voxline/voxline/internal/realtime"
	"github.com/voxline/voxline/internal/scenario"
)

var (
	ErrNotFound  = errors.New("session not found")
	ErrForbidden = errors.New("session owned by another user")
)

// AIDialer produces fresh realtime connections for registered sessions.
type AIDialer interface {
	Dial(ctx context.Context) (realtime.Conn, error)
}

// Session is one live registered session.
type Session struct {
	SessionID   string
	OwnerUserID string
	Scenario    scenario.Scenario
	Conn        realtime.Conn
	CreatedAt   time.Time
}

// CreateResult is returned to the client after session setup.
type CreateResult struct {
	SessionID  string    `json:"session_id"`
	ICEServers []string  `json:"ice_servers"`
	CreatedAt  time.Time `json:"created_at"`
}

// SignalMessage is one client-to-registry signaling payload.
type SignalMessage struct {
	Type      string          `json:"type"`
	SDP       string          `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// SignalResponse answers one signaling payload.
type SignalResponse struct {
	Type string `json:"type"`
	SDP  string `json:"sdp,omitempty"`
}

// Registry maps session ids to their negotiated AI connections.
type Registry struct {
	dialer     AIDialer
	signal     *realtime.SignalClient
	resolver   *scenario.Resolver
	metrics    *observability.Metrics
	iceServers []string

	mu       sync.RWMutex
	sessions map[string]*Session
}

func New(dialer AIDialer, signal *realtime.SignalClient, resolver *scenario.Resolver, metrics *observability.Metrics, iceServers []string) *Registry {
	return &Registry{
		dialer:     dialer,
		signal:     signal,
		resolver:   resolver,
		metrics:    metrics,
		iceServers: iceServers,
		sessions:   make(map[string]*Session),
	}
}

// CreateSession resolves the scenario, dials and negotiates a fresh AI
// connection, and registers the session under a new id.
func (r *Registry) CreateSession(ctx context.Context, ownerUserID, accountID, scenarioKey string) (CreateResult, error) {
	sc, err := r.resolver.Resolve(ctx, accountID, scenarioKey)
	if err != nil {
		return CreateResult{}, fmt.Errorf("resolve scenario %q: %w", scenarioKey, err)
	}

	conn, err := r.dialer.Dial(ctx)
	if err != nil {
		return CreateResult{}, fmt.Errorf("dial realtime: %w", err)
	}
	if err := realtime.Negotiate(conn, sc, true); err != nil {
		_ = conn.Close()
		return CreateResult{}, fmt.Errorf("negotiate session: %w", err)
	}

	sess := &Session{
		SessionID:   uuid.NewString(),
		OwnerUserID: ownerUserID,
		Scenario:    sc,
		Conn:        conn,
		CreatedAt:   time.Now().UTC(),
	}

	r.mu.Lock()
	r.sessions[sess.SessionID] = sess
	n := len(r.sessions)
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.RegistrySessions.Set(float64(n))
	}

	log.Printf("session %s: registered for user %s with scenario %s", sess.SessionID, ownerUserID, sc.Key)
	return CreateResult{
		SessionID:  sess.SessionID,
		ICEServers: r.iceServers,
		CreatedAt:  sess.CreatedAt,
	}, nil
}

// lookup returns the session after checking ownership.
func (r *Registry) lookup(sessionID, userID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if sess.OwnerUserID != userID {
		return nil, ErrForbidden
	}
	return sess, nil
}

// HandleSignal processes one signaling message for an owned session. Offers
// are exchanged with the endpoint for an answer; ICE candidates are only
// acknowledged because the endpoint does not trickle.
func (r *Registry) HandleSignal(ctx context.Context, sessionID, userID string, msg SignalMessage) (SignalResponse, error) {
	sess, err := r.lookup(sessionID, userID)
	if err != nil {
		return SignalResponse{}, err
	}

	switch msg.Type {
	case "offer":
		if msg.SDP == "" {
			return SignalResponse{}, errors.New("offer without sdp")
		}
		answer, err := r.signal.ExchangeSDP(ctx, msg.SDP)
		if err != nil {
			return SignalResponse{}, fmt.Errorf("session %s: %w", sess.SessionID, err)
		}
		return SignalResponse{Type: "answer", SDP: answer}, nil
	case "ice_candidate":
		return SignalResponse{Type: "ack"}, nil
	default:
		return SignalResponse{}, fmt.Errorf("unsupported signal type %q", msg.Type)
	}
}

// CloseSession tears down an owned session. Closing an already-removed
// session is not an error.
func (r *Registry) CloseSession(sessionID, userID string) error {
	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	if ok && sess.OwnerUserID != userID {
		r.mu.Unlock()
		return ErrForbidden
	}
	if ok {
		delete(r.sessions, sessionID)
	}
	n := len(r.sessions)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RegistrySessions.Set(float64(n))
	}
	if ok {
		_ = sess.Conn.Close()
		log.Printf("session %s: closed", sessionID)
	}
	return nil
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll tears down every session. Used during shutdown so no AI connection
// outlives the process's drain window.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for id, sess := range sessions {
		_ = sess.Conn.Close()
		log.Printf("session %s: closed during shutdown", id)
	}
	if r.metrics != nil {
		r.metrics.RegistrySessions.Set(0)
	}
}
