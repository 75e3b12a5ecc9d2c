// Package postgres provides the PostgreSQL-backed implementation of
// [store.MeetingStore] and [store.ChunkStore].
//
// Meeting records are stored as JSONB documents keyed by meeting ID; transcript
// chunks live in a separate table with a pgvector HNSW index for approximate
// nearest-neighbour search. The pgvector extension must be available in the
// target database; [Migrate] installs it via CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	st, err := postgres.NewStore(ctx, dsn, 1536)
//	if err != nil { … }
//	defer st.Close()
//
//	_ = st.SaveMeeting(ctx, record)
//	_ = st.UpsertChunks(ctx, chunks)
//	results, _ := st.SearchChunks(ctx, meetingID, queryVec, 3)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlMeetings = `
CREATE TABLE IF NOT EXISTS meetings (
    meeting_id  TEXT         PRIMARY KEY,
    user_id     TEXT         NOT NULL DEFAULT '',
    meeting_url TEXT         NOT NULL DEFAULT '',
    started_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    record      JSONB        NOT NULL,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_meetings_user_id
    ON meetings (user_id);

CREATE INDEX IF NOT EXISTS idx_meetings_started_at
    ON meetings (started_at);
`

// ddlChunks returns the chunks DDL with the embedding dimension substituted.
// The vector dimension is baked into the column type at schema creation time.
func ddlChunks(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS meeting_chunks (
    id          TEXT         PRIMARY KEY,
    meeting_id  TEXT         NOT NULL,
    ordinal     INTEGER      NOT NULL DEFAULT 0,
    content     TEXT         NOT NULL,
    embedding   vector(%d),
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_meeting_chunks_meeting_id
    ON meeting_chunks (meeting_id);

CREATE INDEX IF NOT EXISTS idx_meeting_chunks_embedding
    ON meeting_chunks USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures all required tables and extensions exist. It is
// idempotent and safe to call on every application start.
//
// embeddingDimensions must match the embedding model configured for the
// deployment (e.g., 1536 for OpenAI text-embedding-3-small). Changing it after
// the first migration requires a manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlMeetings,
		ddlChunks(embeddingDimensions),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
