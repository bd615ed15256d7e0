package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/litreview/engine/internal/model"
)

// AppendMessage inserts a new conversation message and returns it with its
// generated id. The log is append-only: no update/delete helpers exist.
func (s *Store) AppendMessage(ctx context.Context, m model.ConversationMessage) (*model.ConversationMessage, error) {
	m.ID = uuid.NewString()
	row := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO conversation_messages (message_id, job_id, role, message_type, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING message_id, job_id, role, message_type, content, created_at
	`, m.ID, m.JobID, m.Role, m.MessageType, m.Content)

	var out model.ConversationMessage
	if err := row.Scan(&out.ID, &out.JobID, &out.Role, &out.MessageType, &out.Content, &out.CreatedAt); err != nil {
		return nil, fmt.Errorf("inserting conversation message: %w", err)
	}
	return &out, nil
}

// ListMessages returns a job's conversation log in chronological order.
func (s *Store) ListMessages(ctx context.Context, jobID int64) ([]*model.ConversationMessage, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT message_id, job_id, role, message_type, content, created_at
		FROM conversation_messages WHERE job_id = $1 ORDER BY created_at ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("listing conversation messages: %w", err)
	}
	defer rows.Close()

	var out []*model.ConversationMessage
	for rows.Next() {
		var m model.ConversationMessage
		if err := rows.Scan(&m.ID, &m.JobID, &m.Role, &m.MessageType, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation message: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
