package tts

import (
	"context"
	"errors"
	"io"
)

// ErrNotConfigured is returned when no API key is present. It signals a
// configuration failure as opposed to a provider failure; no network call
// has been attempted.
var ErrNotConfigured = errors.New("tts: ELEVENLABS_API_KEY not configured")

// SpeechClient defines the interface for a text-to-speech client.
type SpeechClient interface {
	// Synthesize converts text to an audio stream. The returned stream is
	// the provider's bytes verbatim; the caller must close it.
	Synthesize(ctx context.Context, text string) (io.ReadCloser, error)
}
