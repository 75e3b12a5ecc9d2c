// Package mock provides a test double for the asr.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/notulaai/notula/pkg/provider/asr"
	"github.com/notulaai/notula/pkg/types"
)

// Ensure Provider implements the asr.Provider interface.
var _ asr.Provider = (*Provider)(nil)

// TranscribeCall records a single invocation of TranscribeFile.
type TranscribeCall struct {
	// Ctx is the context passed to TranscribeFile.
	Ctx context.Context
	// Path is the audio file path passed to TranscribeFile.
	Path string
}

// Provider is a mock implementation of asr.Provider.
type Provider struct {
	mu sync.Mutex

	// TranscribeResult is returned by TranscribeFile.
	TranscribeResult []types.DiarizedUtterance

	// TranscribeErr, if non-nil, is returned as the error from TranscribeFile.
	TranscribeErr error

	// TranscribeCalls records every call to TranscribeFile in order.
	TranscribeCalls []TranscribeCall
}

// TranscribeFile records the call and returns the configured result.
func (p *Provider) TranscribeFile(ctx context.Context, path string) ([]types.DiarizedUtterance, error) {
	p.mu.Lock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Path: path})
	p.mu.Unlock()

	if p.TranscribeErr != nil {
		return nil, p.TranscribeErr
	}
	return p.TranscribeResult, nil
}

// CallCount returns the number of recorded TranscribeFile calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}
