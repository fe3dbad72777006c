// Package telephony implements the Twilio webhook surface: the greeting and
// turn handlers that drive the conversation loop, and the audio endpoint
// Twilio fetches synthesized speech from.
//
// The conversation "state machine" holds no server-side state. Which state a
// call is in is carried entirely by the callback URL the previous TwiML told
// Twilio to invoke next; every handler is one complete request/response
// cycle.
package telephony

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/frontdesk-labs/voice-concierge/internal/config"
	"github.com/frontdesk-labs/voice-concierge/internal/observability"
	"github.com/frontdesk-labs/voice-concierge/internal/tts"
	"github.com/frontdesk-labs/voice-concierge/internal/twiml"
)

// Webhook paths, referenced from TwiML callbacks.
const (
	PathIncomingCall = "/incoming-call"
	PathHandleSpeech = "/handle-speech"
	PathSpeak        = "/speak"
)

const (
	repromptText = "Sorry, I didn't catch that."
	goodbyeText  = "Thank you for calling. Goodbye."
	apologyText  = "We're sorry, something went wrong. Please call again later."
)

// Responder produces a spoken reply for a caller transcript. It must always
// return speakable text; failures are its own concern.
type Responder interface {
	Respond(ctx context.Context, transcript string) string
}

// CallFlow handles the turn-taking webhook endpoints for a call.
type CallFlow struct {
	cfg         *config.Config
	responder   Responder
	synthesizer tts.SpeechClient
	logger      zerolog.Logger
}

// NewCallFlow creates the webhook handler set.
func NewCallFlow(cfg *config.Config, responder Responder, synthesizer tts.SpeechClient) *CallFlow {
	return &CallFlow{
		cfg:         cfg,
		responder:   responder,
		synthesizer: synthesizer,
		logger:      observability.GetLogger().With().Str("component", "telephony").Logger(),
	}
}

// HandleIncomingCall answers a call-start event with the greeting: play the
// synthesized welcome inside a speech Gather pointed at the turn endpoint,
// with a goodbye fallback if the caller never speaks.
func (f *CallFlow) HandleIncomingCall(w http.ResponseWriter, r *http.Request) {
	logger := f.requestLogger(r)
	observability.RecordCallStarted()
	logger.Info().Msg("incoming call")

	f.respondTwiML(w, logger, func() *twiml.Response {
		welcome := fmt.Sprintf("Welcome to %s. How can I help you today?", f.cfg.HotelName)

		resp := twiml.New()
		resp.Gather(f.listenFor(welcome))
		// Gather timed out without speech: say goodbye and end the call.
		resp.Say(goodbyeText)
		resp.Hangup()
		return resp
	})
}

// HandleSpeech processes a speech-result event. A non-empty transcript goes
// through the responder and the reply is played inside a fresh Gather; an
// empty one restarts the loop with a re-prompt. The language gateway is
// never invoked for empty input.
func (f *CallFlow) HandleSpeech(w http.ResponseWriter, r *http.Request) {
	logger := f.requestLogger(r)
	transcript := strings.TrimSpace(r.FormValue("SpeechResult"))

	f.respondTwiML(w, logger, func() *twiml.Response {
		resp := twiml.New()

		if transcript == "" {
			logger.Info().Msg("empty speech result, restarting loop")
			observability.RecordTurn("empty")
			resp.Say(repromptText)
			resp.Redirect(PathIncomingCall)
			return resp
		}

		logger.Info().Str("transcript", transcript).Msg("speech received")
		reply := f.responder.Respond(r.Context(), transcript)
		observability.RecordTurn("answered")
		logger.Info().Str("reply", reply).Msg("reply generated")

		resp.Gather(f.listenFor(reply))
		resp.Say(goodbyeText)
		resp.Hangup()
		return resp
	})
}

// HandleSpeak streams synthesized audio for the given text. Twilio fetches
// this URL to play <Play> verbs; it is the one endpoint that surfaces real
// HTTP errors, because its consumer is Twilio's media fetcher rather than a
// live ear.
func (f *CallFlow) HandleSpeak(w http.ResponseWriter, r *http.Request) {
	logger := f.requestLogger(r)
	text := r.URL.Query().Get("text")
	if text == "" {
		http.Error(w, "missing text parameter", http.StatusBadRequest)
		return
	}

	stream, err := f.synthesizer.Synthesize(r.Context(), text)
	if err != nil {
		logger.Error().Err(err).Msg("speech synthesis failed")
		http.Error(w, "Error generating audio", http.StatusInternalServerError)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	if _, err := io.Copy(w, stream); err != nil {
		// Headers are gone; log and let Twilio handle the truncated fetch.
		logger.Error().Err(err).Msg("audio streaming interrupted")
	}
}

// listenFor builds the speak-and-listen Gather: the prompt plays while
// Twilio listens, and the result posts back to the turn endpoint.
func (f *CallFlow) listenFor(prompt string) twiml.Gather {
	return twiml.Gather{
		Input:         "speech",
		Action:        PathHandleSpeech,
		Method:        "POST",
		SpeechTimeout: f.cfg.SpeechTimeout,
		Verbs:         []interface{}{twiml.Play{URL: f.speakURL(prompt)}},
	}
}

// speakURL builds the audio-retrieval URL for the given text. Relative when
// no public base URL is configured; Twilio resolves it against the webhook
// URL.
func (f *CallFlow) speakURL(text string) string {
	return f.cfg.PublicBaseURL + PathSpeak + "?text=" + url.QueryEscape(text)
}

// respondTwiML renders the directive built by build and writes it with the
// XML content type. Any fault, including panics out of directive
// construction or the gateways, degrades to a minimal spoken apology with
// HTTP 200: Twilio must always receive valid markup or the caller hears
// dead air.
func (f *CallFlow) respondTwiML(w http.ResponseWriter, logger zerolog.Logger, build func() *twiml.Response) {
	resp := func() *twiml.Response {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error().Interface("panic", rec).Msg("directive construction failed")
				observability.RecordError("handler", "telephony")
				observability.RecordTurn("error")
			}
		}()
		return build()
	}()

	if resp == nil {
		resp = twiml.New().Say(apologyText).Hangup()
	}

	body, err := resp.Render()
	if err != nil {
		logger.Error().Err(err).Msg("twiml render failed")
		fallback := twiml.New().Say(apologyText).Hangup()
		body, _ = fallback.Render()
	}

	w.Header().Set("Content-Type", twiml.ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logger.Error().Err(err).Msg("twiml write failed")
	}
}

func (f *CallFlow) requestLogger(r *http.Request) zerolog.Logger {
	callSid := r.FormValue("CallSid")
	if callSid == "" {
		callSid = r.URL.Query().Get("CallSid")
	}
	return observability.WithCallID(callSid)
}
