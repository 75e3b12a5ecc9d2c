// Package index embeds transcript chunks into the vector store and serves
// semantic retrieval over indexed meetings.
package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/notulaai/notula/internal/summarize"
	"github.com/notulaai/notula/pkg/provider/embeddings"
	"github.com/notulaai/notula/pkg/store"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
	defaultTopK         = 3
)

// Option is a functional option for Indexer.
type Option func(*Indexer)

// WithChunking overrides the chunk size and overlap used when splitting
// transcript text for embedding.
func WithChunking(size, overlap int) Option {
	return func(ix *Indexer) {
		ix.chunkSize = size
		ix.overlap = overlap
	}
}

// Indexer splits transcript text, embeds the chunks, and upserts them into a
// [store.ChunkStore] for later retrieval.
type Indexer struct {
	embedder  embeddings.Provider
	chunks    store.ChunkStore
	chunkSize int
	overlap   int
}

// New creates an Indexer backed by embedder and chunks.
func New(embedder embeddings.Provider, chunks store.ChunkStore, opts ...Option) *Indexer {
	ix := &Indexer{
		embedder:  embedder,
		chunks:    chunks,
		chunkSize: defaultChunkSize,
		overlap:   defaultChunkOverlap,
	}
	for _, o := range opts {
		o(ix)
	}
	return ix
}

// IndexMeeting splits transcriptText, embeds every chunk in one batch call,
// and upserts the result under meetingID. Chunk IDs are
// "<meeting_id>:<ordinal>", so re-indexing the same meeting replaces its
// previous chunks rather than duplicating them.
func (ix *Indexer) IndexMeeting(ctx context.Context, meetingID, transcriptText string) (int, error) {
	if meetingID == "" {
		return 0, fmt.Errorf("index: missing meeting id")
	}

	parts := summarize.SplitText(transcriptText, ix.chunkSize, ix.overlap)
	if len(parts) == 0 {
		return 0, fmt.Errorf("index: meeting %s: empty transcript", meetingID)
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, parts)
	if err != nil {
		return 0, fmt.Errorf("index: meeting %s: embed %d chunks: %w", meetingID, len(parts), err)
	}
	if len(vectors) != len(parts) {
		return 0, fmt.Errorf("index: meeting %s: got %d embeddings for %d chunks", meetingID, len(vectors), len(parts))
	}

	chunks := make([]store.Chunk, len(parts))
	for i, text := range parts {
		chunks[i] = store.Chunk{
			ID:        fmt.Sprintf("%s:%d", meetingID, i),
			MeetingID: meetingID,
			Ordinal:   i,
			Content:   text,
			Embedding: vectors[i],
		}
	}

	if err := ix.chunks.UpsertChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("index: meeting %s: %w", meetingID, err)
	}
	slog.Info("meeting indexed", "meeting_id", meetingID, "chunks", len(chunks), "model", ix.embedder.ModelID())
	return len(chunks), nil
}

// Search embeds query and returns the topK closest chunks, restricted to
// meetingID when non-empty. A topK of 0 or less uses the default of 3.
func (ix *Indexer) Search(ctx context.Context, meetingID, query string, topK int) ([]store.ChunkResult, error) {
	if topK <= 0 {
		topK = defaultTopK
	}

	vec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("index: embed query: %w", err)
	}

	results, err := ix.chunks.SearchChunks(ctx, meetingID, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return results, nil
}
