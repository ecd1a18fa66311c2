package postgres

import (
	"context"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/NikhilTirunagiri/petal-v1/store"
)

func (d *DB) CreateMemory(ctx context.Context, create *store.Memory) (*store.Memory, error) {
	stmt := `
		INSERT INTO memory (uid, session_uid, user_id, original_text, processed_text, source, embedding, created_ts)
		VALUES (` + placeholders(8) + `)
		RETURNING id
	`

	// A missing embedding is stored as NULL, not a zero vector.
	var embedding any
	if create.Embedding != nil {
		embedding = pgvector.NewVector(create.Embedding)
	}

	if err := d.db.QueryRowContext(ctx, stmt,
		create.UID,
		create.SessionUID,
		create.UserID,
		create.OriginalText,
		create.ProcessedText,
		create.Source,
		embedding,
		create.CreatedTs,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create memory")
	}
	return create, nil
}

// ListMemories lists memories. Embedding vectors are not read back; results
// carry a nil Embedding regardless of what is stored.
func (d *DB) ListMemories(ctx context.Context, find *store.FindMemory) ([]*store.Memory, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.SessionUID != nil {
		where, args = append(where, "session_uid = "+placeholder(len(args)+1)), append(args, *find.SessionUID)
	}
	if find.UserID != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *find.UserID)
	}

	order := "created_ts ASC, id ASC"
	if find.OrderByCreatedTsDesc {
		order = "created_ts DESC, id DESC"
	}

	query := `
		SELECT id, uid, session_uid, user_id, original_text, processed_text, source, created_ts
		FROM memory
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY ` + order
	if find.Limit != nil {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, *find.Limit)
		if find.Offset != nil {
			query += " OFFSET " + placeholder(len(args)+1)
			args = append(args, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list memories")
	}
	defer rows.Close()

	list := []*store.Memory{}
	for rows.Next() {
		var memory store.Memory
		if err := rows.Scan(
			&memory.ID,
			&memory.UID,
			&memory.SessionUID,
			&memory.UserID,
			&memory.OriginalText,
			&memory.ProcessedText,
			&memory.Source,
			&memory.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan memory")
		}
		list = append(list, &memory)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) CountMemories(ctx context.Context, find *store.FindMemory) (int, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.SessionUID != nil {
		where, args = append(where, "session_uid = "+placeholder(len(args)+1)), append(args, *find.SessionUID)
	}
	if find.UserID != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *find.UserID)
	}

	var count int
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM memory WHERE "+strings.Join(where, " AND "), args...,
	).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count memories")
	}
	return count, nil
}

func (d *DB) DeleteMemory(ctx context.Context, delete *store.DeleteMemory) error {
	result, err := d.db.ExecContext(ctx, "DELETE FROM memory WHERE uid = "+placeholder(1), delete.UID)
	if err != nil {
		return errors.Wrap(err, "failed to delete memory")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.Errorf("memory %s not found", delete.UID)
	}
	return nil
}

// VectorSearchMemories performs cosine similarity search using pgvector.
// The <=> operator computes cosine distance, so score = 1 - distance and
// ordering by distance ASC returns the most similar memories first.
func (d *DB) VectorSearchMemories(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.MemoryWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	vector := pgvector.NewVector(opts.Vector)
	where, args := []string{"embedding IS NOT NULL"}, []any{vector}

	if opts.SessionUID != "" {
		where, args = append(where, "session_uid = "+placeholder(len(args)+1)), append(args, opts.SessionUID)
	} else if opts.UserID != "" {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, opts.UserID)
	} else {
		return nil, errors.New("vector search requires a session or user scope")
	}

	query := `
		SELECT id, uid, session_uid, user_id, original_text, processed_text, source, created_ts,
			1 - (embedding <=> $1) AS score
		FROM memory
		WHERE ` + strings.Join(where, " AND ") + `
			AND 1 - (embedding <=> $1) >= ` + placeholder(len(args)+1) + `
		ORDER BY embedding <=> $1
		LIMIT ` + placeholder(len(args)+2)
	args = append(args, opts.Threshold, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search memories")
	}
	defer rows.Close()

	results := []*store.MemoryWithScore{}
	for rows.Next() {
		var result store.MemoryWithScore
		var memory store.Memory
		if err := rows.Scan(
			&memory.ID,
			&memory.UID,
			&memory.SessionUID,
			&memory.UserID,
			&memory.OriginalText,
			&memory.ProcessedText,
			&memory.Source,
			&memory.CreatedTs,
			&result.Score,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan vector search result")
		}
		result.Memory = &memory
		results = append(results, &result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
