// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to feed pre-canned PCM chunks into a StreamSink without a live
// synthesis backend and to verify the texts submitted for synthesis.
package mock

import (
	"context"
	"sync"

	"github.com/notulaai/notula/pkg/provider/tts"
)

// Ensure Provider implements the tts.Provider interface.
var _ tts.Provider = (*Provider)(nil)

// SynthesizeCall records a single invocation of SynthesizeStream.
type SynthesizeCall struct {
	// Ctx is the context passed to SynthesizeStream.
	Ctx context.Context
	// Text is the text passed to SynthesizeStream.
	Text string
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Chunks are pushed into the sink in order on each SynthesizeStream call.
	Chunks [][]byte

	// SynthesizeErr, if non-nil, is returned from SynthesizeStream after the
	// sink lifecycle completes.
	SynthesizeErr error

	// SampleRateValue is returned by SampleRate and passed to StartStream.
	// Zero defaults to 48000.
	SampleRateValue int

	// BlockUntilCancel makes SynthesizeStream block after pushing Chunks until
	// ctx is cancelled. Useful for barge-in tests.
	BlockUntilCancel bool

	// SynthesizeCalls records every call to SynthesizeStream in order.
	SynthesizeCalls []SynthesizeCall
}

// SynthesizeStream records the call, drives the full sink lifecycle, and
// returns SynthesizeErr.
func (p *Provider) SynthesizeStream(ctx context.Context, text string, sink tts.StreamSink) error {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Text: text})
	chunks := p.Chunks
	block := p.BlockUntilCancel
	p.mu.Unlock()

	sink.StartStream(p.SampleRate())
	defer sink.StopStream()

	for _, c := range chunks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		sink.PushStreamChunk(c)
	}
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return p.SynthesizeErr
}

// SampleRate returns SampleRateValue, defaulting to 48000.
func (p *Provider) SampleRate() int {
	if p.SampleRateValue == 0 {
		return 48000
	}
	return p.SampleRateValue
}

// CallCount returns the number of recorded SynthesizeStream calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.SynthesizeCalls)
}
