package store

import (
	"context"
	"time"
)

// CallRecord tracks one telephone call for accounting.
type CallRecord struct {
	CallID    string    `json:"call_id"`
	AccountID string    `json:"account_id"`
	Scenario  string    `json:"scenario"`
	Direction string    `json:"direction"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Outcome   string    `json:"outcome"`
}

// TranscriptFragment is one piece of recognized caller speech.
type TranscriptFragment struct {
	CallID    string    `json:"call_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// UsageGate answers whether an account may start another call right now.
type UsageGate interface {
	CanStartCall(ctx context.Context, accountID string) (bool, error)
}

// CallLedger records call lifecycle for billing and reporting.
type CallLedger interface {
	RecordCallStarted(ctx context.Context, rec CallRecord) error
	RecordCallEnded(ctx context.Context, callID, outcome string) error
}

// TranscriptSink persists transcription fragments observed during a call.
type TranscriptSink interface {
	Save(ctx context.Context, frag TranscriptFragment) error
}

// Store bundles the collaborator interfaces behind one backing implementation.
type Store interface {
	UsageGate
	CallLedger
	TranscriptSink
	Close() error
}
