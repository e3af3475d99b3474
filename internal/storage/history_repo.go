package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type HistoryRecord struct {
	EntryID  string `json:"entry_id"`
	Username string `json:"username"`
	Document string `json:"document"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// HistoryRepo is the append-only per-user question/answer log. Reads are
// always scoped to the requesting user; roles play no part here.
type HistoryRepo struct {
	db *DB
}

func NewHistoryRepo(db *DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

func (r *HistoryRepo) Append(ctx context.Context, username, document, question, answer string) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO prompt_history (entry_id, username, document, question, answer)
VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), username, document, question, answer)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// Recent returns the caller's own records, most recent first.
func (r *HistoryRepo) Recent(ctx context.Context, username string, limit int) ([]HistoryRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT entry_id, username, document, question, answer
FROM prompt_history
WHERE username=$1
ORDER BY seq DESC
LIMIT $2`, username, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]HistoryRecord, 0, limit)
	for rows.Next() {
		var rec HistoryRecord
		if err := rows.Scan(&rec.EntryID, &rec.Username, &rec.Document, &rec.Question, &rec.Answer); err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return out, nil
}
