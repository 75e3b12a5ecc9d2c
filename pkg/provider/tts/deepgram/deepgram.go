// Package deepgram provides a Deepgram-backed TTS provider using the Deepgram
// Speak streaming WebSocket API. It implements the tts.Provider interface.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/coder/websocket"

	"github.com/notulaai/notula/pkg/provider/tts"
)

const (
	speakEndpoint     = "wss://api.deepgram.com/v1/speak"
	defaultModel      = "aura-2-thalia-en"
	defaultSampleRate = 48000
)

// Ensure Provider implements the tts.Provider interface.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram Aura voice model (e.g., "aura-2-thalia-en").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithSampleRate sets the linear16 output sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// WithEndpoint overrides the Speak WebSocket endpoint. Used by tests.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// Provider implements tts.Provider backed by the Deepgram Speak streaming API.
type Provider struct {
	apiKey     string
	model      string
	sampleRate int
	endpoint   string
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram tts: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		sampleRate: defaultSampleRate,
		endpoint:   speakEndpoint,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ---- WebSocket message types ----

// speakMessage is the JSON payload carrying text to synthesize.
type speakMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// controlMessage covers the textual control frames in both directions:
// outgoing "Flush"/"Close" commands and incoming "Flushed"/"Warning"/
// "Metadata" notifications. Audio itself arrives as binary frames.
type controlMessage struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// SynthesizeStream implements tts.Provider. It opens a WebSocket to Deepgram,
// sends the full text followed by a Flush, and pushes every binary PCM frame
// into sink until the server confirms the flush completed.
func (p *Provider) SynthesizeStream(ctx context.Context, text string, sink tts.StreamSink) error {
	if text == "" {
		return errors.New("deepgram tts: text must not be empty")
	}

	wsURL, err := buildSpeakURL(p.endpoint, p.model, p.sampleRate)
	if err != nil {
		return fmt.Errorf("deepgram tts: build URL: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return fmt.Errorf("deepgram tts: dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// PCM frames can outpace playback; allow large reads.
	conn.SetReadLimit(1 << 22)

	speak, _ := json.Marshal(speakMessage{Type: "Speak", Text: text})
	if err := conn.Write(ctx, websocket.MessageText, speak); err != nil {
		return fmt.Errorf("deepgram tts: send text: %w", err)
	}
	flush, _ := json.Marshal(controlMessage{Type: "Flush"})
	if err := conn.Write(ctx, websocket.MessageText, flush); err != nil {
		return fmt.Errorf("deepgram tts: send flush: %w", err)
	}

	// Frames pass through at the provider's rate. Each delivery carries its
	// rate and the page bridge builds its audio buffers at that rate, so no
	// client-side resample is needed.
	sink.StartStream(p.sampleRate)
	defer sink.StopStream()

	for {
		msgType, msg, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Normal closure after Flushed means the server hung up first.
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("deepgram tts: read: %w", err)
		}

		if msgType == websocket.MessageBinary {
			sink.PushStreamChunk(msg)
			continue
		}

		ctrl, err := parseControlMessage(msg)
		if err != nil {
			continue
		}
		switch ctrl.Type {
		case "Flushed":
			// All text synthesized and delivered.
			closeMsg, _ := json.Marshal(controlMessage{Type: "Close"})
			_ = conn.Write(ctx, websocket.MessageText, closeMsg)
			return nil
		case "Error":
			return fmt.Errorf("deepgram tts: server error: %s", ctrl.Description)
		default:
			// Metadata, Warning: informational only.
		}
	}
}

// SampleRate implements tts.Provider.
func (p *Provider) SampleRate() int {
	return p.sampleRate
}

// ---- helpers ----

// buildSpeakURL constructs the Speak WebSocket URL with encoding, sample rate,
// and model query parameters.
func buildSpeakURL(endpoint, model string, sampleRate int) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sampleRate))
	q.Set("model", model)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// parseControlMessage parses a textual WebSocket frame into a controlMessage.
func parseControlMessage(data []byte) (controlMessage, error) {
	var m controlMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return controlMessage{}, err
	}
	return m, nil
}
