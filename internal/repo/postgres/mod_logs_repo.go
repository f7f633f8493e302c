package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"chat_warden/internal/domain/enums"
	"chat_warden/internal/domain/model"
)

type ModLogsRepo struct {
	db *sql.DB
}

func NewModLogsRepo(db *sql.DB) *ModLogsRepo {
	return &ModLogsRepo{db: db}
}

// Append inserts one entry; the log is never mutated afterwards.
func (r *ModLogsRepo) Append(ctx context.Context, entry model.ModLog) error {
	if r.db == nil {
		return nil
	}

	meta := entry.Meta
	if len(meta) == 0 {
		meta = json.RawMessage(`{}`)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mod_logs (chat_id, actor_id, target_id, action, reason, meta, created_at)
		VALUES ($1, NULLIF($2, 0), NULLIF($3, 0), $4, $5, $6, $7)
	`,
		entry.ChatID,
		entry.ActorID,
		entry.TargetID,
		string(entry.Action),
		entry.Reason,
		string(meta),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append mod log: %w", err)
	}
	return nil
}

// ListRecent returns the chat's newest entries first.
func (r *ModLogsRepo) ListRecent(ctx context.Context, chatID int64, limit int) ([]model.ModLog, error) {
	if r.db == nil {
		return []model.ModLog{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chat_id, COALESCE(actor_id, 0), COALESCE(target_id, 0),
		       action, reason, meta, created_at
		FROM mod_logs
		WHERE chat_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent mod logs: %w", err)
	}
	defer rows.Close()

	entries := make([]model.ModLog, 0, limit)
	for rows.Next() {
		var entry model.ModLog
		var action string
		var meta []byte
		if err := rows.Scan(&entry.ID, &entry.ChatID, &entry.ActorID, &entry.TargetID, &action, &entry.Reason, &meta, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan mod log row: %w", err)
		}
		entry.Action = enums.ActionKind(action)
		entry.Meta = json.RawMessage(meta)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mod log rows: %w", err)
	}

	return entries, nil
}
