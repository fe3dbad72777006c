package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/frontdesk-labs/voice-concierge/internal/config"
	"github.com/frontdesk-labs/voice-concierge/internal/observability"
	"github.com/frontdesk-labs/voice-concierge/internal/resilience"
)

type fakeChatClient struct {
	calls   int
	lastReq openai.ChatCompletionRequest
	reply   string
	err     error
}

func (f *fakeChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.reply}},
		},
	}, nil
}

func newTestResponder(client chatClient) *Responder {
	return &Responder{
		client:      client,
		model:       "gpt-4o-mini",
		persona:     "You are a helpful and polite concierge at Grand Hotel.",
		maxTokens:   150,
		temperature: 0.7,
		breaker:     resilience.NewCircuitBreaker("openai-test", 5, 30*time.Second),
		logger:      observability.GetLogger(),
	}
}

func TestRespond_NotConfigured(t *testing.T) {
	r := NewResponder(&config.Config{
		LLMModel:                   "gpt-4o-mini",
		HotelName:                  "Grand Hotel",
		LLMMaxTokens:               150,
		LLMTemperature:             0.7,
		CircuitBreakerMaxFailures:  5,
		CircuitBreakerResetTimeout: 30,
	})

	got := r.Respond(context.Background(), "Do you have a room available?")
	if got != ApologyNotConfigured {
		t.Errorf("Expected %q, got %q", ApologyNotConfigured, got)
	}

	// Deterministic: same input, same literal
	if again := r.Respond(context.Background(), "Anything else?"); again != got {
		t.Errorf("Expected deterministic fallback, got %q then %q", got, again)
	}
}

func TestRespond_Success(t *testing.T) {
	fake := &fakeChatClient{reply: "Yes, we have rooms available tonight."}
	r := newTestResponder(fake)

	got := r.Respond(context.Background(), "Do you have a room available?")
	if got != "Yes, we have rooms available tonight." {
		t.Errorf("Unexpected reply: %q", got)
	}
	if fake.calls != 1 {
		t.Errorf("Expected 1 completion call, got %d", fake.calls)
	}

	// Request carries persona, transcript, and bounded generation settings
	if len(fake.lastReq.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(fake.lastReq.Messages))
	}
	if fake.lastReq.Messages[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("Expected first message to be the system persona")
	}
	if !strings.Contains(fake.lastReq.Messages[0].Content, "Grand Hotel") {
		t.Errorf("Expected persona to reference the venue, got %q", fake.lastReq.Messages[0].Content)
	}
	if fake.lastReq.Messages[1].Content != "Do you have a room available?" {
		t.Errorf("Expected transcript as user message, got %q", fake.lastReq.Messages[1].Content)
	}
	if fake.lastReq.MaxTokens != 150 {
		t.Errorf("Expected MaxTokens 150, got %d", fake.lastReq.MaxTokens)
	}
	if fake.lastReq.Temperature != 0.7 {
		t.Errorf("Expected Temperature 0.7, got %f", fake.lastReq.Temperature)
	}
}

func TestRespond_ProviderErrorReturnsApology(t *testing.T) {
	fake := &fakeChatClient{err: errors.New("rate limited")}
	r := newTestResponder(fake)

	got := r.Respond(context.Background(), "Hello?")
	if got != ApologyUnavailable {
		t.Errorf("Expected %q, got %q", ApologyUnavailable, got)
	}
	if fake.calls != 1 {
		t.Errorf("Expected single attempt with no retries, got %d calls", fake.calls)
	}
}

func TestRespond_EmptyChoicesReturnsApology(t *testing.T) {
	empty := &fakeChatClient{reply: ""}
	r := newTestResponder(empty)

	got := r.Respond(context.Background(), "Hello?")
	if got != ApologyUnavailable {
		t.Errorf("Expected %q, got %q", ApologyUnavailable, got)
	}
}

func TestRespond_OpenCircuitSkipsProvider(t *testing.T) {
	fake := &fakeChatClient{err: errors.New("connection refused")}
	r := newTestResponder(fake)
	r.breaker = resilience.NewCircuitBreaker("openai-test-open", 2, time.Minute)

	for i := 0; i < 5; i++ {
		if got := r.Respond(context.Background(), "Hello?"); got != ApologyUnavailable {
			t.Fatalf("Expected %q, got %q", ApologyUnavailable, got)
		}
	}

	if fake.calls != 2 {
		t.Errorf("Expected 2 provider calls before circuit opened, got %d", fake.calls)
	}
}

func TestRespondWithPersona_Override(t *testing.T) {
	fake := &fakeChatClient{reply: "Certainly."}
	r := newTestResponder(fake)

	r.RespondWithPersona(context.Background(), "Hi", "You are a pirate concierge.")
	if fake.lastReq.Messages[0].Content != "You are a pirate concierge." {
		t.Errorf("Expected persona override, got %q", fake.lastReq.Messages[0].Content)
	}
}
