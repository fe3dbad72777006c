package tts

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/frontdesk-labs/voice-concierge/internal/config"
)

func testConfig(apiKey string) *config.Config {
	return &config.Config{
		ElevenLabsAPIKey:           apiKey,
		ElevenLabsVoiceID:          "test-voice",
		ElevenLabsModelID:          "eleven_monolingual_v1",
		CircuitBreakerMaxFailures:  5,
		CircuitBreakerResetTimeout: 30,
	}
}

func TestSynthesize_MissingKeyNoNetworkCall(t *testing.T) {
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
	}))
	defer server.Close()

	client := NewElevenLabsClient(testConfig(""))
	client.apiBase = server.URL

	_, err := client.Synthesize(context.Background(), "hello")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Expected ErrNotConfigured, got %v", err)
	}
	if atomic.LoadInt64(&hits) != 0 {
		t.Errorf("Expected no network call without credentials, got %d", hits)
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	client := NewElevenLabsClient(testConfig("test-key"))

	_, err := client.Synthesize(context.Background(), "")
	if err == nil {
		t.Fatal("Expected error for empty text")
	}
}

func TestSynthesize_StreamsBytesVerbatim(t *testing.T) {
	audio := []byte("fake-mpeg-bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "test-key" {
			t.Errorf("Expected xi-api-key header 'test-key', got %q", r.Header.Get("xi-api-key"))
		}
		if r.URL.Path != "/v1/text-to-speech/test-voice/stream" {
			t.Errorf("Unexpected request path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(audio)
	}))
	defer server.Close()

	client := NewElevenLabsClient(testConfig("test-key"))
	client.apiBase = server.URL

	stream, err := client.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize() failed: %v", err)
	}
	defer stream.Close()

	got, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("Reading stream failed: %v", err)
	}
	if string(got) != string(audio) {
		t.Errorf("Expected %q, got %q", audio, got)
	}
}

func TestSynthesize_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewElevenLabsClient(testConfig("test-key"))
	client.apiBase = server.URL

	stream, err := client.Synthesize(context.Background(), "hello")
	if err == nil {
		stream.Close()
		t.Fatal("Expected error for non-200 provider response")
	}
}

func TestSynthesize_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testConfig("test-key")
	cfg.CircuitBreakerMaxFailures = 2
	client := NewElevenLabsClient(cfg)
	client.apiBase = server.URL

	for i := 0; i < 5; i++ {
		if stream, err := client.Synthesize(context.Background(), "hello"); err == nil {
			stream.Close()
			t.Fatal("Expected failure")
		}
	}

	// After the breaker opens only the first two attempts hit the provider.
	if got := atomic.LoadInt64(&hits); got != 2 {
		t.Errorf("Expected 2 provider hits before circuit opened, got %d", got)
	}
}
