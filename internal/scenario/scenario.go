package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	ErrNotFound         = errors.New("scenario not found")
	ErrCapacityExceeded = errors.New("custom scenario capacity exceeded")
)

// Scenario is an immutable persona definition steering one conversation.
// It is resolved once at call setup and never mutated mid-call.
type Scenario struct {
	Key         string  `json:"key"`
	Persona     string  `json:"persona"`
	Prompt      string  `json:"prompt"`
	Voice       string  `json:"voice"`
	Temperature float64 `json:"temperature"`
}

const (
	minTextLen = 10
	maxTextLen = 5000

	// MaxCustomPerAccount caps custom scenarios created by one account.
	MaxCustomPerAccount = 20
)

// recognizedVoices lists the realtime endpoint's voice identifiers.
var recognizedVoices = map[string]bool{
	"alloy":   true,
	"ash":     true,
	"ballad":  true,
	"coral":   true,
	"echo":    true,
	"sage":    true,
	"shimmer": true,
	"verse":   true,
}

// KnownVoice reports whether the voice identifier is accepted by the endpoint.
func KnownVoice(voice string) bool {
	return recognizedVoices[strings.ToLower(strings.TrimSpace(voice))]
}

// Validate checks a custom scenario against creation-time constraints.
func Validate(s Scenario) error {
	if n := utf8.RuneCountInString(s.Persona); n < minTextLen || n > maxTextLen {
		return fmt.Errorf("persona length %d outside [%d, %d]", n, minTextLen, maxTextLen)
	}
	if n := utf8.RuneCountInString(s.Prompt); n < minTextLen || n > maxTextLen {
		return fmt.Errorf("prompt length %d outside [%d, %d]", n, minTextLen, maxTextLen)
	}
	if !KnownVoice(s.Voice) {
		return fmt.Errorf("unrecognized voice %q", s.Voice)
	}
	if s.Temperature < 0.0 || s.Temperature > 1.0 {
		return fmt.Errorf("temperature %.2f outside [0.0, 1.0]", s.Temperature)
	}
	return nil
}

// Store persists account-scoped custom scenarios.
type Store interface {
	Get(ctx context.Context, accountID, key string) (Scenario, error)
	Create(ctx context.Context, accountID string, s Scenario) error
	CountForAccount(ctx context.Context, accountID string) (int, error)
	Close() error
}

// catalog holds the built-in scenarios available to every account.
var catalog = map[string]Scenario{
	"assistant": {
		Key:         "assistant",
		Persona:     "You are a friendly, capable phone assistant named Riley.",
		Prompt:      "Help the caller with whatever they need, in plain language.",
		Voice:       "alloy",
		Temperature: 0.7,
	},
	"receptionist": {
		Key:         "receptionist",
		Persona:     "You are the front-desk receptionist for a small dental office.",
		Prompt:      "Book, move, or cancel appointments. Collect name and callback number before anything else.",
		Voice:       "coral",
		Temperature: 0.6,
	},
	"survey": {
		Key:         "survey",
		Persona:     "You are a polite survey caller for a local utility company.",
		Prompt:      "Ask the three satisfaction questions in order, thank the respondent, and end the call.",
		Voice:       "echo",
		Temperature: 0.4,
	},
}

// Resolver resolves scenario keys against the static catalog first and the
// account's custom store second.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the scenario for key, or ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, accountID, key string) (Scenario, error) {
	key = strings.TrimSpace(key)
	if s, ok := catalog[key]; ok {
		return s, nil
	}
	if r.store == nil {
		return Scenario{}, ErrNotFound
	}
	return r.store.Get(ctx, accountID, key)
}

// CreateCustom validates and stores an account-scoped scenario, enforcing the
// per-account cap.
func (r *Resolver) CreateCustom(ctx context.Context, accountID string, s Scenario) error {
	if r.store == nil {
		return errors.New("custom scenarios are not configured")
	}
	if err := Validate(s); err != nil {
		return err
	}
	n, err := r.store.CountForAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("count custom scenarios: %w", err)
	}
	if n >= MaxCustomPerAccount {
		return ErrCapacityExceeded
	}
	return r.store.Create(ctx, accountID, s)
}
