// Package deepgram provides a Deepgram-backed ASR provider using the
// prerecorded listen API with diarization enabled. It implements the
// asr.Provider interface.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/notulaai/notula/pkg/provider/asr"
	"github.com/notulaai/notula/pkg/types"
)

const (
	listenEndpoint = "https://api.deepgram.com/v1/listen"
	defaultModel   = "nova-3"
	defaultTimeout = 5 * time.Minute
)

// Ensure Provider implements the asr.Provider interface.
var _ asr.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram transcription model (e.g., "nova-3").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithEndpoint overrides the listen endpoint. Used by tests.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements asr.Provider backed by the Deepgram prerecorded API.
type Provider struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// New creates a new Deepgram ASR Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram asr: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		endpoint:   listenEndpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ---- response types ----

// listenResponse is the subset of the Deepgram prerecorded response we use.
type listenResponse struct {
	Results struct {
		Utterances []listenUtterance `json:"utterances"`
	} `json:"results"`
}

// listenUtterance is a single diarized utterance from the listen API.
// Start and End are seconds from the beginning of the recording.
type listenUtterance struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Transcript string  `json:"transcript"`
	Speaker    int     `json:"speaker"`
}

// TranscribeFile implements asr.Provider.
func (p *Provider) TranscribeFile(ctx context.Context, path string) ([]types.DiarizedUtterance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("deepgram asr: open audio: %w", err)
	}
	defer f.Close()

	reqURL, err := buildListenURL(p.endpoint, p.model)
	if err != nil {
		return nil, fmt.Errorf("deepgram asr: build URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, f)
	if err != nil {
		return nil, fmt.Errorf("deepgram asr: build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", contentTypeForPath(path))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram asr: upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("deepgram asr: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("deepgram asr: read response: %w", err)
	}
	utts, err := parseListenResponse(data)
	if err != nil {
		return nil, fmt.Errorf("deepgram asr: parse response: %w", err)
	}
	return mergeConsecutive(utts), nil
}

// ---- helpers ----

// buildListenURL constructs the listen URL with diarization and utterance
// grouping enabled.
func buildListenURL(endpoint, model string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("model", model)
	q.Set("diarize", "true")
	q.Set("punctuate", "true")
	q.Set("utterances", "true")
	q.Set("smart_format", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// contentTypeForPath maps the audio file extension to a MIME type.
func contentTypeForPath(path string) string {
	switch {
	case strings.HasSuffix(path, ".wav"):
		return "audio/wav"
	case strings.HasSuffix(path, ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(path, ".ogg"):
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}

// parseListenResponse decodes the listen response into diarized utterances
// with millisecond boundaries and "spk_<n>" labels.
func parseListenResponse(data []byte) ([]types.DiarizedUtterance, error) {
	var lr listenResponse
	if err := json.Unmarshal(data, &lr); err != nil {
		return nil, err
	}
	out := make([]types.DiarizedUtterance, 0, len(lr.Results.Utterances))
	for _, u := range lr.Results.Utterances {
		text := strings.TrimSpace(u.Transcript)
		if text == "" {
			continue
		}
		out = append(out, types.DiarizedUtterance{
			SpeakerLabel: fmt.Sprintf("spk_%d", u.Speaker),
			Text:         text,
			StartMs:      int64(u.Start * 1000),
			EndMs:        int64(u.End * 1000),
		})
	}
	return out, nil
}

// mergeConsecutive joins adjacent utterances that share a speaker label into
// one utterance spanning both. The operation is idempotent: applying it to its
// own output changes nothing.
func mergeConsecutive(utts []types.DiarizedUtterance) []types.DiarizedUtterance {
	if len(utts) == 0 {
		return utts
	}
	merged := make([]types.DiarizedUtterance, 0, len(utts))
	cur := utts[0]
	for _, u := range utts[1:] {
		if u.SpeakerLabel == cur.SpeakerLabel {
			cur.Text = cur.Text + " " + u.Text
			cur.EndMs = u.EndMs
			continue
		}
		merged = append(merged, cur)
		cur = u
	}
	return append(merged, cur)
}
