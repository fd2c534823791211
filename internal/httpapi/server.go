package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voxline/voxline/internal/bridge"
	"github.com/voxline/voxline/internal/config"
	"github.com/voxline/voxline/internal/observability"
	"github.com/voxline/voxline/internal/registry"
	"github.com/voxline/voxline/internal/scenario"
	"github.com/voxline/voxline/internal/store"
	"github.com/voxline/voxline/internal/telephony"
)

type Server struct {
	cfg      config.Config
	resolver *scenario.Resolver
	registry *registry.Registry
	aiDialer bridge.AIDialer
	placer   telephony.CallPlacer
	store    store.Store
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, resolver *scenario.Resolver, reg *registry.Registry, aiDialer bridge.AIDialer, placer telephony.CallPlacer, st store.Store, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		resolver: resolver,
		registry: reg,
		aiDialer: aiDialer,
		placer:   placer,
		store:    st,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Telephony providers connect without an Origin header; browsers
				// must match the serving host unless explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/calls/incoming", s.handleIncomingCall)
	r.Post("/v1/calls/outbound", s.handleOutboundCall)
	r.Get("/v1/calls/media", s.handleMediaStream)

	r.Post("/v1/scenarios", s.handleCreateScenario)

	r.Post("/v1/sessions", s.handleCreateSession)
	r.Post("/v1/sessions/{id}/signal", s.handleSessionSignal)
	r.Delete("/v1/sessions/{id}", s.handleCloseSession)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"outbound_enabled": s.placer != nil,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ready",
		"sessions": s.registry.Len(),
	})
}

// handleIncomingCall answers the provider's call webhook with TwiML that
// connects the answered call to the media-stream websocket.
func (s *Server) handleIncomingCall(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	accountID := strings.TrimSpace(r.FormValue("AccountSid"))
	scenarioKey := strings.TrimSpace(r.URL.Query().Get("scenario"))
	if scenarioKey == "" {
		scenarioKey = s.cfg.DefaultScenario
	}

	if ok := s.canStartCall(r, accountID); !ok {
		body, err := telephony.RejectTwiML()
		if err != nil {
			respondError(w, http.StatusInternalServerError, "twiml_error", err.Error())
			return
		}
		respondTwiML(w, body)
		return
	}

	if _, err := s.resolver.Resolve(r.Context(), accountID, scenarioKey); err != nil {
		respondError(w, http.StatusNotFound, "scenario_not_found", err.Error())
		return
	}

	body, err := telephony.StreamTwiML(s.mediaStreamURL(r, scenarioKey, accountID, "inbound"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "twiml_error", err.Error())
		return
	}
	respondTwiML(w, body)
}

type outboundCallRequest struct {
	To        string `json:"to"`
	AccountID string `json:"account_id"`
	Scenario  string `json:"scenario"`
}

func (s *Server) handleOutboundCall(w http.ResponseWriter, r *http.Request) {
	if s.placer == nil {
		respondError(w, http.StatusNotImplemented, "outbound_disabled", "outbound calling is not configured")
		return
	}
	var req outboundCallRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.To) == "" {
		respondError(w, http.StatusBadRequest, "missing_to", "destination number is required")
		return
	}
	if strings.TrimSpace(req.Scenario) == "" {
		req.Scenario = s.cfg.DefaultScenario
	}
	if ok := s.canStartCall(r, req.AccountID); !ok {
		respondError(w, http.StatusTooManyRequests, "usage_cap", "account is over its monthly call cap")
		return
	}
	if _, err := s.resolver.Resolve(r.Context(), req.AccountID, req.Scenario); err != nil {
		respondError(w, http.StatusNotFound, "scenario_not_found", err.Error())
		return
	}

	body, err := telephony.StreamTwiML(s.mediaStreamURL(r, req.Scenario, req.AccountID, "outbound"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "twiml_error", err.Error())
		return
	}
	callSID, err := s.placer.PlaceCall(req.To, body)
	if err != nil {
		respondError(w, http.StatusBadGateway, "provider_error", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"call_sid": callSID})
}

// handleMediaStream upgrades the provider's media-stream connection and runs
// the bridge until the call ends.
func (s *Server) handleMediaStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scenarioKey := strings.TrimSpace(q.Get("scenario"))
	if scenarioKey == "" {
		scenarioKey = s.cfg.DefaultScenario
	}
	accountID := strings.TrimSpace(q.Get("account"))
	incoming := q.Get("direction") != "outbound"

	sc, err := s.resolver.Resolve(r.Context(), accountID, scenarioKey)
	if err != nil {
		respondError(w, http.StatusNotFound, "scenario_not_found", err.Error())
		return
	}
	if ok := s.canStartCall(r, accountID); !ok {
		respondError(w, http.StatusTooManyRequests, "usage_cap", "account is over its monthly call cap")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	sup := bridge.NewSupervisor(s.aiDialer, bridge.Config{
		CallID:           uuid.NewString(),
		AccountID:        accountID,
		Scenario:         sc,
		Incoming:         incoming,
		GreetingWait:     s.cfg.GreetingWait,
		ReconnectBackoff: s.cfg.ReconnectBackoff,
		MaxReconnects:    s.cfg.MaxReconnects,
	}, s.metrics, s.ledger(), s.transcripts())

	if err := sup.Run(r.Context(), telephony.WrapConn(conn)); err != nil {
		log.Printf("media stream ended with error: %v", err)
	}
}

type createScenarioRequest struct {
	AccountID   string  `json:"account_id"`
	Key         string  `json:"key"`
	Persona     string  `json:"persona"`
	Prompt      string  `json:"prompt"`
	Voice       string  `json:"voice"`
	Temperature float64 `json:"temperature"`
}

func (s *Server) handleCreateScenario(w http.ResponseWriter, r *http.Request) {
	var req createScenarioRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		respondError(w, http.StatusBadRequest, "missing_key", "scenario key is required")
		return
	}
	sc := scenario.Scenario{
		Key:         strings.TrimSpace(req.Key),
		Persona:     req.Persona,
		Prompt:      req.Prompt,
		Voice:       req.Voice,
		Temperature: req.Temperature,
	}
	if err := s.resolver.CreateCustom(r.Context(), req.AccountID, sc); err != nil {
		switch {
		case errors.Is(err, scenario.ErrCapacityExceeded):
			respondError(w, http.StatusConflict, "capacity_exceeded", err.Error())
		default:
			respondError(w, http.StatusBadRequest, "invalid_scenario", err.Error())
		}
		return
	}
	respondJSON(w, http.StatusCreated, sc)
}

type createSessionRequest struct {
	UserID    string `json:"user_id"`
	AccountID string `json:"account_id"`
	Scenario  string `json:"scenario"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = "anonymous"
	}
	if strings.TrimSpace(req.Scenario) == "" {
		req.Scenario = s.cfg.DefaultScenario
	}

	res, err := s.registry.CreateSession(r.Context(), req.UserID, req.AccountID, req.Scenario)
	if err != nil {
		if errors.Is(err, scenario.ErrNotFound) {
			respondError(w, http.StatusNotFound, "scenario_not_found", err.Error())
			return
		}
		respondError(w, http.StatusBadGateway, "session_setup_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

func (s *Server) handleSessionSignal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var msg registry.SignalMessage
	if err := decodeJSON(r, &msg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	resp, err := s.registry.HandleSignal(r.Context(), id, requestUserID(r), msg)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrNotFound):
			respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		case errors.Is(err, registry.ErrForbidden):
			respondError(w, http.StatusForbidden, "forbidden", err.Error())
		default:
			respondError(w, http.StatusBadGateway, "signal_failed", err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.registry.CloseSession(id, requestUserID(r)); err != nil {
		if errors.Is(err, registry.ErrForbidden) {
			respondError(w, http.StatusForbidden, "forbidden", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "close_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// requestUserID identifies the caller of session endpoints. Anonymous users
// share one identity, matching session creation's default.
func requestUserID(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("X-User-ID")); v != "" {
		return v
	}
	return "anonymous"
}

// canStartCall consults the usage gate; a gate error fails open so billing
// hiccups never drop calls.
func (s *Server) canStartCall(r *http.Request, accountID string) bool {
	if s.store == nil {
		return true
	}
	ok, err := s.store.CanStartCall(r.Context(), accountID)
	if err != nil {
		log.Printf("usage gate check failed for account %s: %v", accountID, err)
		return true
	}
	return ok
}

func (s *Server) ledger() store.CallLedger {
	if s.store == nil {
		return nil
	}
	return s.store
}

func (s *Server) transcripts() store.TranscriptSink {
	if s.store == nil {
		return nil
	}
	return s.store
}

// mediaStreamURL builds the websocket URL a provider stream should connect
// back to.
func (s *Server) mediaStreamURL(r *http.Request, scenarioKey, accountID, direction string) string {
	host := s.cfg.PublicHost
	if host == "" {
		host = r.Host
	}
	q := url.Values{}
	q.Set("scenario", scenarioKey)
	if accountID != "" {
		q.Set("account", accountID)
	}
	q.Set("direction", direction)
	return (&url.URL{Scheme: "wss", Host: host, Path: "/v1/calls/media", RawQuery: q.Encode()}).String()
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondTwiML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
