// Package store defines the persistence interfaces for completed meetings.
//
// Two concerns are covered:
//
//   - [MeetingStore]: durable storage of the full [types.MeetingRecord]
//     produced when a meeting job finishes.
//   - [ChunkStore]: a vector index over transcript chunks for embedding-based
//     retrieval across past meetings.
//
// The interfaces are public so alternative backends can be supplied without
// depending on internals. Every implementation must be safe for concurrent use.
package store

import (
	"context"

	"github.com/notulaai/notula/pkg/types"
)

// Chunk is a transcript segment prepared for vector indexing. It carries its
// pre-computed embedding so the index does not need to re-embed on insertion.
type Chunk struct {
	// ID is the unique identifier for this chunk, conventionally
	// "<meeting_id>:<ordinal>". Upserts with the same ID replace the row.
	ID string

	// MeetingID is the meeting this chunk belongs to.
	MeetingID string

	// Ordinal is the zero-based position of this chunk within its meeting's
	// transcript.
	Ordinal int

	// Content is the chunk's transcript text.
	Content string

	// Embedding is the vector representation of Content. Dimension must match
	// the index configuration.
	Embedding []float32
}

// ChunkResult pairs a retrieved chunk with its cosine distance from the query
// embedding. Lower Distance means higher similarity.
type ChunkResult struct {
	Chunk    Chunk
	Distance float64
}

// MeetingStore persists completed meeting records.
type MeetingStore interface {
	// SaveMeeting upserts the record keyed by its MeetingID.
	SaveMeeting(ctx context.Context, record *types.MeetingRecord) error

	// GetMeeting retrieves a previously saved record.
	// Returns (nil, nil) when no record exists for meetingID.
	GetMeeting(ctx context.Context, meetingID string) (*types.MeetingRecord, error)
}

// ChunkStore is the vector index over transcript chunks.
//
// Callers produce embeddings before calling UpsertChunks or SearchChunks.
type ChunkStore interface {
	// UpsertChunks stores pre-embedded chunks, replacing any rows with the
	// same IDs.
	UpsertChunks(ctx context.Context, chunks []Chunk) error

	// SearchChunks finds the topK chunks closest to embedding by cosine
	// distance, restricted to meetingID when non-empty.
	// Results are ordered by ascending Distance.
	// Returns an empty (non-nil) slice when nothing matches.
	SearchChunks(ctx context.Context, meetingID string, embedding []float32, topK int) ([]ChunkResult, error)
}
