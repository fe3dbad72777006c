package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/frontdesk-labs/voice-concierge/internal/config"
	"github.com/frontdesk-labs/voice-concierge/internal/llm"
	"github.com/frontdesk-labs/voice-concierge/internal/observability"
	"github.com/frontdesk-labs/voice-concierge/internal/telephony"
	"github.com/frontdesk-labs/voice-concierge/internal/tts"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("hotel_name", cfg.HotelName).
		Str("llm_model", cfg.LLMModel).
		Bool("tts_configured", cfg.HasTTSCredentials()).
		Bool("llm_configured", cfg.HasLLMCredentials()).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Voice Concierge Service starting")

	if !cfg.HasTTSCredentials() {
		logger.Warn().Msg("ELEVENLABS_API_KEY not set, /speak will return errors")
	}
	if !cfg.HasLLMCredentials() {
		logger.Warn().Msg("OPENAI_API_KEY not set, replies degrade to a fixed apology")
	}

	// Gateways and call flow
	synthesizer := tts.NewElevenLabsClient(cfg)
	responder := llm.NewResponder(cfg)
	flow := telephony.NewCallFlow(cfg, responder, synthesizer)

	// Readiness checks validate configuration only; no provider calls are
	// made to avoid API costs.
	checks := map[string]observability.HealthCheckFunc{
		"elevenlabs": func(ctx context.Context) (bool, error) {
			if !cfg.HasTTSCredentials() {
				return false, fmt.Errorf("ELEVENLABS_API_KEY not configured")
			}
			return true, nil
		},
		"openai": func(ctx context.Context) (bool, error) {
			if !cfg.HasLLMCredentials() {
				return false, fmt.Errorf("OPENAI_API_KEY not configured")
			}
			return true, nil
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger())

	r.Get("/", observability.HealthCheckHandler())
	r.Get("/health", observability.HealthCheckHandler())
	r.Get("/ready", observability.ReadinessHandler(checks))

	r.Post(telephony.PathIncomingCall, flow.HandleIncomingCall)
	r.Post(telephony.PathHandleSpeech, flow.HandleSpeech)
	r.Get(telephony.PathSpeak, flow.HandleSpeak)

	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Create HTTP server with timeouts. The write timeout leaves room for
	// /speak to stream a full synthesis response.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("webhook", telephony.PathIncomingCall).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
