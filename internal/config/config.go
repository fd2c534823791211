package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice bridge service.
type Config struct {
	BindAddr         string
	PublicHost       string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	OpenAIAPIKey     string
	RealtimeURL      string
	RealtimeModel    string
	RealtimeCallsURL string
	DefaultScenario  string

	GreetingWait     time.Duration
	ReconnectBackoff time.Duration
	MaxReconnects    int

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	ICEServers []string

	DatabaseURL    string
	MonthlyCallCap int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		PublicHost:       envTrimmed("APP_PUBLIC_HOST"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "voxline"),
		AllowAnyOrigin:   false,
		OpenAIAPIKey:     envTrimmed("OPENAI_API_KEY"),
		RealtimeURL:      envOrDefault("REALTIME_WS_URL", "wss://api.openai.com/v1/realtime"),
		RealtimeModel:    envOrDefault("REALTIME_MODEL", "gpt-4o-realtime-preview"),
		RealtimeCallsURL: envOrDefault("REALTIME_CALLS_URL", "https://api.openai.com/v1/realtime/calls"),
		DefaultScenario:  envOrDefault("APP_DEFAULT_SCENARIO", "assistant"),
		TwilioAccountSID: envTrimmed("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  envTrimmed("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: envTrimmed("TWILIO_FROM_NUMBER"),
		DatabaseURL:      envTrimmed("DATABASE_URL"),
		ICEServers:       []string{"stun:stun.l.google.com:19302"},

		ShutdownTimeout:  15 * time.Second,
		GreetingWait:     10 * time.Second,
		ReconnectBackoff: 2 * time.Second,
		MaxReconnects:    3,
	}

	if v := envTrimmed("APP_ICE_SERVERS"); v != "" {
		servers := make([]string, 0, 2)
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				servers = append(servers, s)
			}
		}
		cfg.ICEServers = servers
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.GreetingWait, err = durationFromEnv("BRIDGE_GREETING_WAIT", cfg.GreetingWait)
	if err != nil {
		return Config{}, err
	}
	cfg.ReconnectBackoff, err = durationFromEnv("BRIDGE_RECONNECT_BACKOFF", cfg.ReconnectBackoff)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxReconnects, err = intFromEnv("BRIDGE_MAX_RECONNECTS", cfg.MaxReconnects)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.MonthlyCallCap, err = intFromEnv("APP_MONTHLY_CALL_CAP", 0)
	if err != nil {
		return Config{}, err
	}

	if cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if cfg.GreetingWait <= 0 {
		return Config{}, fmt.Errorf("BRIDGE_GREETING_WAIT must be positive")
	}
	if cfg.ReconnectBackoff <= 0 {
		return Config{}, fmt.Errorf("BRIDGE_RECONNECT_BACKOFF must be positive")
	}
	if cfg.MaxReconnects < 0 {
		return Config{}, fmt.Errorf("BRIDGE_MAX_RECONNECTS must be >= 0")
	}
	if cfg.MonthlyCallCap < 0 {
		return Config{}, fmt.Errorf("APP_MONTHLY_CALL_CAP must be >= 0")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
