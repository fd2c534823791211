package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/voxline/voxline/internal/config"
	"github.com/voxline/voxline/internal/httpapi"
	"github.com/voxline/voxline/internal/observability"
	"github.com/voxline/voxline/internal/realtime"
	"github.com/voxline/voxline/internal/registry"
	"github.com/voxline/voxline/internal/scenario"
	"github.com/voxline/voxline/internal/store"
	"github.com/voxline/voxline/internal/telephony"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	scenarioStore, err := scenario.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("scenario store init failed: %v", err)
	}
	defer scenarioStore.Close()
	resolver := scenario.NewResolver(scenarioStore)

	callStore, err := store.NewStore(ctx, cfg.DatabaseURL, cfg.MonthlyCallCap)
	if err != nil {
		log.Fatalf("call store init failed: %v", err)
	}
	defer callStore.Close()

	aiDialer := &realtime.Dialer{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.RealtimeURL,
		Model:   cfg.RealtimeModel,
	}
	signalClient := &realtime.SignalClient{
		APIKey:   cfg.OpenAIAPIKey,
		CallsURL: cfg.RealtimeCallsURL,
		Model:    cfg.RealtimeModel,
	}

	var placer telephony.CallPlacer
	if dialer, err := telephony.NewTwilioDialer(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber); err != nil {
		log.Printf("outbound calling disabled: %v", err)
	} else {
		placer = dialer
		log.Printf("outbound calling enabled from %s", cfg.TwilioFromNumber)
	}

	sessions := registry.New(aiDialer, signalClient, resolver, metrics, cfg.ICEServers)

	api := httpapi.New(cfg, resolver, sessions, aiDialer, placer, callStore, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}
	sessions.CloseAll()

	log.Printf("shutdown complete")
}
