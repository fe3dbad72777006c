package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/frontdesk-labs/voice-concierge/internal/config"
	"github.com/frontdesk-labs/voice-concierge/internal/observability"
	"github.com/frontdesk-labs/voice-concierge/internal/resilience"
)

const defaultAPIBase = "https://api.elevenlabs.io"

// ElevenLabsClient implements SpeechClient using ElevenLabs' streaming TTS
// endpoint. It performs no transcoding or buffering; the response body is
// handed back as-is for the HTTP layer to stream to Twilio.
type ElevenLabsClient struct {
	apiKey     string
	apiBase    string
	voiceID    string
	modelID    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
}

// elevenLabsRequest is the request payload for the text-to-speech endpoint.
type elevenLabsRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id,omitempty"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// NewElevenLabsClient creates a new ElevenLabs TTS client.
func NewElevenLabsClient(cfg *config.Config) *ElevenLabsClient {
	return &ElevenLabsClient{
		apiKey:     cfg.ElevenLabsAPIKey,
		apiBase:    defaultAPIBase,
		voiceID:    cfg.ElevenLabsVoiceID,
		modelID:    cfg.ElevenLabsModelID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		breaker: resilience.NewCircuitBreaker("elevenlabs",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second),
	}
}

// Synthesize converts text to an audio/mpeg stream.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if text == "" {
		return nil, fmt.Errorf("tts: text is empty")
	}

	reqBody := elevenLabsRequest{
		Text:    text,
		ModelID: c.modelID,
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("tts: failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s/stream", c.apiBase, c.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("tts: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.apiKey)

	start := time.Now()
	var resp *http.Response
	callErr := c.breaker.Call(func() error {
		var doErr error
		resp, doErr = c.httpClient.Do(req)
		if doErr != nil {
			return doErr
		}
		if resp.StatusCode != http.StatusOK {
			status := resp.StatusCode
			resp.Body.Close()
			resp = nil
			return fmt.Errorf("elevenlabs API returned status %d", status)
		}
		return nil
	})
	observability.RecordTTSRequest(callErr == nil, time.Since(start))

	if callErr != nil {
		observability.RecordError("provider", "tts")
		return nil, fmt.Errorf("tts: %w", callErr)
	}

	// Pass-through: the caller streams and closes the body.
	return resp.Body, nil
}
