package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, nil
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS chats (
		chat_id BIGINT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		required_channel TEXT,
		log_channel_id BIGINT,
		warns_limit INT NOT NULL DEFAULT 3,
		mute_minutes INT NOT NULL DEFAULT 120,
		slowmode_seconds INT NOT NULL DEFAULT 0,
		allow_links BOOLEAN NOT NULL DEFAULT FALSE,
		allow_usernames BOOLEAN NOT NULL DEFAULT TRUE,
		allow_media BOOLEAN NOT NULL DEFAULT TRUE,
		allow_gif BOOLEAN NOT NULL DEFAULT TRUE,
		allow_stickers BOOLEAN NOT NULL DEFAULT TRUE,
		allow_voice BOOLEAN NOT NULL DEFAULT TRUE,
		rules_text TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS user_state (
		chat_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		username TEXT,
		warns INT NOT NULL DEFAULT 0,
		muted_until TIMESTAMPTZ,
		PRIMARY KEY (chat_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_state_muted
		ON user_state (muted_until) WHERE muted_until IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS subscription_state (
		chat_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		verified_at TIMESTAMPTZ,
		last_checked TIMESTAMPTZ,
		PRIMARY KEY (chat_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS mod_logs (
		id BIGSERIAL PRIMARY KEY,
		chat_id BIGINT NOT NULL,
		actor_id BIGINT,
		target_id BIGINT,
		action TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		meta JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_mod_logs_chat_created
		ON mod_logs (chat_id, created_at DESC)`,
}

// EnsureSchema creates the record collections on startup. Statements are
// idempotent so restarts are safe.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return nil
	}
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
