package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/notulaai/notula/pkg/store"
	"github.com/notulaai/notula/pkg/types"
)

// Compile-time interface checks.
var (
	_ store.MeetingStore = (*Store)(nil)
	_ store.ChunkStore   = (*Store)(nil)
)

// Store is the PostgreSQL-backed persistence layer. It holds a single
// [pgxpool.Pool] and implements both [store.MeetingStore] and
// [store.ChunkStore]. All operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the database at dsn, registers
// pgvector types on every connection, and runs [Migrate] to ensure the schema
// exists.
func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so vector columns can be
	// scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// SaveMeeting implements [store.MeetingStore]. The record is serialized to
// JSONB; saving the same meeting ID again replaces the whole document.
func (s *Store) SaveMeeting(ctx context.Context, record *types.MeetingRecord) error {
	if record == nil || record.MeetingID == "" {
		return fmt.Errorf("postgres store: save meeting: missing meeting id")
	}

	doc, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("postgres store: marshal meeting %s: %w", record.MeetingID, err)
	}

	const q = `
		INSERT INTO meetings (meeting_id, user_id, meeting_url, started_at, record, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (meeting_id) DO UPDATE SET
		    user_id     = EXCLUDED.user_id,
		    meeting_url = EXCLUDED.meeting_url,
		    started_at  = EXCLUDED.started_at,
		    record      = EXCLUDED.record,
		    updated_at  = now()`

	_, err = s.pool.Exec(ctx, q,
		record.MeetingID,
		record.UserID,
		record.MeetingURL,
		record.StartTime,
		doc,
	)
	if err != nil {
		return fmt.Errorf("postgres store: save meeting %s: %w", record.MeetingID, err)
	}
	return nil
}

// GetMeeting implements [store.MeetingStore].
func (s *Store) GetMeeting(ctx context.Context, meetingID string) (*types.MeetingRecord, error) {
	const q = `SELECT record FROM meetings WHERE meeting_id = $1`

	var doc []byte
	err := s.pool.QueryRow(ctx, q, meetingID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get meeting %s: %w", meetingID, err)
	}

	var record types.MeetingRecord
	if err := json.Unmarshal(doc, &record); err != nil {
		return nil, fmt.Errorf("postgres store: decode meeting %s: %w", meetingID, err)
	}
	return &record, nil
}

// UpsertChunks implements [store.ChunkStore]. Chunks are written in a single
// transaction so a partially indexed meeting never becomes visible.
func (s *Store) UpsertChunks(ctx context.Context, chunks []store.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	const q = `
		INSERT INTO meeting_chunks (id, meeting_id, ordinal, content, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
		    meeting_id = EXCLUDED.meeting_id,
		    ordinal    = EXCLUDED.ordinal,
		    content    = EXCLUDED.content,
		    embedding  = EXCLUDED.embedding`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres store: upsert chunks: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range chunks {
		vec := pgvector.NewVector(c.Embedding)
		if _, err := tx.Exec(ctx, q, c.ID, c.MeetingID, c.Ordinal, c.Content, vec); err != nil {
			return fmt.Errorf("postgres store: upsert chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres store: upsert chunks: commit: %w", err)
	}
	return nil
}

// SearchChunks implements [store.ChunkStore]. Results are ordered by ascending
// cosine distance (most similar first).
func (s *Store) SearchChunks(ctx context.Context, meetingID string, embedding []float32, topK int) ([]store.ChunkResult, error) {
	queryVec := pgvector.NewVector(embedding)

	args := []any{queryVec}
	where := ""
	if meetingID != "" {
		args = append(args, meetingID)
		where = fmt.Sprintf("WHERE meeting_id = $%d", len(args))
	}
	args = append(args, topK)

	q := fmt.Sprintf(`
		SELECT id, meeting_id, ordinal, content, embedding,
		       embedding <=> $1 AS distance
		FROM   meeting_chunks
		%s
		ORDER  BY distance
		LIMIT  $%d`, where, len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: search chunks: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.ChunkResult, error) {
		var (
			cr  store.ChunkResult
			vec pgvector.Vector
		)
		if err := row.Scan(
			&cr.Chunk.ID,
			&cr.Chunk.MeetingID,
			&cr.Chunk.Ordinal,
			&cr.Chunk.Content,
			&vec,
			&cr.Distance,
		); err != nil {
			return store.ChunkResult{}, err
		}
		cr.Chunk.Embedding = vec.Slice()
		return cr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan rows: %w", err)
	}
	if results == nil {
		results = []store.ChunkResult{}
	}
	return results, nil
}
