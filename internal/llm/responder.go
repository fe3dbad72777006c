// Package llm wraps the completion provider behind a degrade-gracefully
// contract: Respond always returns speakable text, never an error. The
// caller is a live phone conversation with no channel for structured error
// reporting, so every failure collapses to a fixed apology.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/frontdesk-labs/voice-concierge/internal/config"
	"github.com/frontdesk-labs/voice-concierge/internal/observability"
	"github.com/frontdesk-labs/voice-concierge/internal/resilience"
)

const (
	// ApologyNotConfigured is spoken when no API key is present.
	ApologyNotConfigured = "I am sorry, but I am not configured correctly."

	// ApologyUnavailable is spoken on any provider failure. Single attempt,
	// no retries: a hung retry loop degrades a live call worse than a quick
	// apology.
	ApologyUnavailable = "I apologize, but I'm having trouble connecting to my brain right now. Please try again later."
)

const personaTemplate = `You are a helpful and polite concierge at %s.
Keep your responses concise (1-2 sentences) because you are speaking over the phone.
Do not use markdown or special characters.
If asked about room availability, say you can check that.`

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Responder produces concierge replies using OpenAI chat completions.
// Each call is independent; no conversation history is kept.
type Responder struct {
	client      chatClient
	model       string
	persona     string
	maxTokens   int
	temperature float32
	breaker     *resilience.CircuitBreaker
	logger      zerolog.Logger
}

// NewResponder returns an OpenAI-backed Responder. When no API key is
// configured the client stays nil and Respond degrades synchronously.
func NewResponder(cfg *config.Config) *Responder {
	var client chatClient
	if cfg.HasLLMCredentials() {
		client = openai.NewClient(cfg.OpenAIAPIKey)
	}

	return &Responder{
		client:      client,
		model:       cfg.LLMModel,
		persona:     fmt.Sprintf(personaTemplate, cfg.HotelName),
		maxTokens:   cfg.LLMMaxTokens,
		temperature: float32(cfg.LLMTemperature),
		breaker: resilience.NewCircuitBreaker("openai",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second),
		logger: observability.GetLogger().With().Str("component", "llm").Logger(),
	}
}

// Respond generates a reply to the transcript using the default concierge
// persona. The returned string is always non-empty and speakable.
func (r *Responder) Respond(ctx context.Context, transcript string) string {
	return r.RespondWithPersona(ctx, transcript, r.persona)
}

// RespondWithPersona generates a reply framed by the given system persona.
func (r *Responder) RespondWithPersona(ctx context.Context, transcript, persona string) string {
	if r.client == nil {
		r.logger.Warn().Msg("OPENAI_API_KEY not set, returning fallback response")
		return ApologyNotConfigured
	}
	if persona == "" {
		persona = r.persona
	}

	req := openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: persona},
			{Role: openai.ChatMessageRoleUser, Content: transcript},
		},
		MaxTokens:   r.maxTokens,
		Temperature: r.temperature,
	}

	start := time.Now()
	var resp openai.ChatCompletionResponse
	err := r.breaker.Call(func() error {
		var apiErr error
		resp, apiErr = r.client.CreateChatCompletion(ctx, req)
		return apiErr
	})
	observability.RecordLLMRequest(err == nil, time.Since(start))

	if err != nil {
		observability.RecordError("provider", "llm")
		r.logger.Error().Err(err).Msg("completion request failed")
		return ApologyUnavailable
	}

	if len(resp.Choices) == 0 {
		observability.RecordError("provider", "llm")
		r.logger.Error().Msg("completion response contained no choices")
		return ApologyUnavailable
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return ApologyUnavailable
	}
	return reply
}
