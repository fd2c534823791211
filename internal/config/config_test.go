package config

import (
	"testing"
	"time"
)

func TestLoadAppliesBridgeDefaults(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.GreetingWait != 10*time.Second {
		t.Fatalf("GreetingWait = %v, want 10s", cfg.GreetingWait)
	}
	if cfg.ReconnectBackoff != 2*time.Second {
		t.Fatalf("ReconnectBackoff = %v, want 2s", cfg.ReconnectBackoff)
	}
	if cfg.MaxReconnects != 3 {
		t.Fatalf("MaxReconnects = %d, want 3", cfg.MaxReconnects)
	}
	if len(cfg.ICEServers) != 1 || cfg.ICEServers[0] != "stun:stun.l.google.com:19302" {
		t.Fatalf("ICEServers = %v, want default stun server", cfg.ICEServers)
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	setCoreEnvEmpty(t)

	if _, err := Load(); err == nil {
		t.Fatalf("Load() should fail without OPENAI_API_KEY")
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("BRIDGE_GREETING_WAIT", "4s")
	t.Setenv("BRIDGE_MAX_RECONNECTS", "5")
	t.Setenv("APP_ICE_SERVERS", "stun:a.example.com:3478, turn:b.example.com:3478")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GreetingWait != 4*time.Second {
		t.Fatalf("GreetingWait = %v, want 4s", cfg.GreetingWait)
	}
	if cfg.MaxReconnects != 5 {
		t.Fatalf("MaxReconnects = %d, want 5", cfg.MaxReconnects)
	}
	if len(cfg.ICEServers) != 2 || cfg.ICEServers[1] != "turn:b.example.com:3478" {
		t.Fatalf("ICEServers = %v", cfg.ICEServers)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("BRIDGE_RECONNECT_BACKOFF", "soon")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() should reject unparsable duration")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_PUBLIC_HOST",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"APP_DEFAULT_SCENARIO",
		"APP_ICE_SERVERS",
		"OPENAI_API_KEY",
		"REALTIME_WS_URL",
		"REALTIME_MODEL",
		"REALTIME_CALLS_URL",
		"BRIDGE_GREETING_WAIT",
		"BRIDGE_RECONNECT_BACKOFF",
		"BRIDGE_MAX_RECONNECTS",
		"APP_MONTHLY_CALL_CAP",
		"TWILIO_ACCOUNT_SID",
		"TWILIO_AUTH_TOKEN",
		"TWILIO_FROM_NUMBER",
		"DATABASE_URL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
