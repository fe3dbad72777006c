package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the voice concierge service.
// Loaded once at startup and treated as read-only afterwards.
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Public base URL for this service (e.g. https://xxx.ngrok-free.dev when
	// behind ngrok). Used to build absolute /speak URLs in TwiML. Optional;
	// when empty, relative URLs are emitted and Twilio resolves them against
	// the webhook URL.
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" default:""`

	// ElevenLabs TTS configuration. The API key is optional: when missing,
	// the synthesis gateway degrades (no audio) instead of blocking startup.
	ElevenLabsAPIKey  string `envconfig:"ELEVENLABS_API_KEY" default:""`
	ElevenLabsVoiceID string `envconfig:"ELEVENLABS_VOICE_ID" default:"21m00Tcm4TlvDq8ikWAM"` // "Rachel"
	ElevenLabsModelID string `envconfig:"ELEVENLABS_MODEL_ID" default:"eleven_monolingual_v1"`

	// OpenAI completion configuration. The API key is optional: when missing,
	// the language gateway answers with a fixed apology instead of failing.
	OpenAIAPIKey   string  `envconfig:"OPENAI_API_KEY" default:""`
	LLMModel       string  `envconfig:"LLM_MODEL" default:"gpt-4o-mini"`
	LLMMaxTokens   int     `envconfig:"LLM_MAX_TOKENS" default:"150"`
	LLMTemperature float64 `envconfig:"LLM_TEMPERATURE" default:"0.7"`

	// Venue identity, inserted into the greeting and the concierge persona.
	HotelName string `envconfig:"HOTEL_NAME" default:"Grand Hotel"`

	// SpeechTimeout is passed through to Twilio's <Gather speechTimeout=...>.
	// "auto" lets Twilio detect end of speech on its own.
	SpeechTimeout string `envconfig:"SPEECH_TIMEOUT" default:"auto"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables.
// It first attempts to load from a .env file if one exists, then from the
// environment. Missing provider credentials are not an error: the gateways
// degrade gracefully per call rather than keeping the process from starting.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load a .env file (useful for containerized deployments).
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// HasTTSCredentials reports whether the synthesis provider can be called.
func (c *Config) HasTTSCredentials() bool {
	return c.ElevenLabsAPIKey != ""
}

// HasLLMCredentials reports whether the completion provider can be called.
func (c *Config) HasLLMCredentials() bool {
	return c.OpenAIAPIKey != ""
}

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
