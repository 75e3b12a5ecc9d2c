// Package mock provides in-memory test doubles for the store interfaces.
//
// Each mock records every method call for assertion in tests and exposes
// exported fields that control what the mock returns. All mocks are safe for
// concurrent use via an internal [sync.Mutex].
package mock

import (
	"context"
	"sync"

	"github.com/notulaai/notula/pkg/store"
	"github.com/notulaai/notula/pkg/types"
)

// Compile-time interface checks.
var (
	_ store.MeetingStore = (*MeetingStore)(nil)
	_ store.ChunkStore   = (*ChunkStore)(nil)
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// MeetingStore is a configurable test double for [store.MeetingStore].
type MeetingStore struct {
	mu    sync.Mutex
	calls []Call

	// Saved accumulates every record passed to SaveMeeting.
	Saved []*types.MeetingRecord

	// SaveMeetingErr is returned by SaveMeeting when non-nil.
	SaveMeetingErr error

	// GetMeetingResult is returned by GetMeeting.
	GetMeetingResult *types.MeetingRecord

	// GetMeetingErr is returned by GetMeeting when non-nil.
	GetMeetingErr error
}

func (m *MeetingStore) SaveMeeting(_ context.Context, record *types.MeetingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "SaveMeeting", Args: []any{record}})
	if m.SaveMeetingErr != nil {
		return m.SaveMeetingErr
	}
	m.Saved = append(m.Saved, record)
	return nil
}

func (m *MeetingStore) GetMeeting(_ context.Context, meetingID string) (*types.MeetingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "GetMeeting", Args: []any{meetingID}})
	if m.GetMeetingErr != nil {
		return nil, m.GetMeetingErr
	}
	return m.GetMeetingResult, nil
}

// CallCount returns how many times the named method was invoked.
func (m *MeetingStore) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// ChunkStore is a configurable test double for [store.ChunkStore].
type ChunkStore struct {
	mu    sync.Mutex
	calls []Call

	// Upserted accumulates every chunk passed to UpsertChunks.
	Upserted []store.Chunk

	// UpsertChunksErr is returned by UpsertChunks when non-nil.
	UpsertChunksErr error

	// SearchChunksResult is returned by SearchChunks.
	// When nil, SearchChunks returns an empty non-nil slice.
	SearchChunksResult []store.ChunkResult

	// SearchChunksErr is returned by SearchChunks when non-nil.
	SearchChunksErr error
}

func (m *ChunkStore) UpsertChunks(_ context.Context, chunks []store.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "UpsertChunks", Args: []any{chunks}})
	if m.UpsertChunksErr != nil {
		return m.UpsertChunksErr
	}
	m.Upserted = append(m.Upserted, chunks...)
	return nil
}

func (m *ChunkStore) SearchChunks(_ context.Context, meetingID string, embedding []float32, topK int) ([]store.ChunkResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "SearchChunks", Args: []any{meetingID, embedding, topK}})
	if m.SearchChunksErr != nil {
		return nil, m.SearchChunksErr
	}
	if m.SearchChunksResult == nil {
		return []store.ChunkResult{}, nil
	}
	out := make([]store.ChunkResult, len(m.SearchChunksResult))
	copy(out, m.SearchChunksResult)
	return out, nil
}

// CallCount returns how many times the named method was invoked.
func (m *ChunkStore) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}
