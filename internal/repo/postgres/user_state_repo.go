package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"chat_warden/internal/domain/model"
)

var ErrUserStateNotFound = errors.New("user state not found")

type UserStateRepo struct {
	db *sql.DB
}

func NewUserStateRepo(db *sql.DB) *UserStateRepo {
	return &UserStateRepo{db: db}
}

// Touch creates the (chat, user) row on first sight and keeps the cached
// username current for handle resolution.
func (r *UserStateRepo) Touch(ctx context.Context, chatID, userID int64, username string) error {
	if r.db == nil {
		return nil
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_state (chat_id, user_id, username)
		VALUES ($1, $2, NULLIF($3, ''))
		ON CONFLICT (chat_id, user_id)
		DO UPDATE SET username = COALESCE(NULLIF(EXCLUDED.username, ''), user_state.username)
	`, chatID, userID, strings.TrimSpace(username))
	if err != nil {
		return fmt.Errorf("touch user state: %w", err)
	}
	return nil
}

func (r *UserStateRepo) Get(ctx context.Context, chatID, userID int64) (model.UserState, error) {
	state := model.UserState{ChatID: chatID, UserID: userID}
	if r.db == nil {
		return state, nil
	}

	var username sql.NullString
	var mutedUntil sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(username, ''), warns, muted_until
		FROM user_state
		WHERE chat_id = $1 AND user_id = $2
	`, chatID, userID).Scan(&username, &state.Warns, &mutedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return state, nil
		}
		return model.UserState{}, fmt.Errorf("get user state: %w", err)
	}

	state.Username = username.String
	if mutedUntil.Valid {
		until := mutedUntil.Time.UTC()
		state.MutedUntil = &until
	}
	return state, nil
}

// IncrementWarns bumps the counter by exactly one in a single atomic
// statement, so concurrent messages from the same user cannot lose an
// increment. Returns the new count.
func (r *UserStateRepo) IncrementWarns(ctx context.Context, chatID, userID int64) (int, error) {
	if r.db == nil {
		return 1, nil
	}

	var warns int
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO user_state (chat_id, user_id, warns)
		VALUES ($1, $2, 1)
		ON CONFLICT (chat_id, user_id)
		DO UPDATE SET warns = user_state.warns + 1
		RETURNING warns
	`, chatID, userID).Scan(&warns)
	if err != nil {
		return 0, fmt.Errorf("increment warns: %w", err)
	}
	return warns, nil
}

// SetMute stores the expiry and resets warns: a warning count and an active
// mute are never in effect together.
func (r *UserStateRepo) SetMute(ctx context.Context, chatID, userID int64, until time.Time) error {
	if r.db == nil {
		return nil
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_state (chat_id, user_id, warns, muted_until)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (chat_id, user_id)
		DO UPDATE SET warns = 0, muted_until = EXCLUDED.muted_until
	`, chatID, userID, until.UTC())
	if err != nil {
		return fmt.Errorf("set mute: %w", err)
	}
	return nil
}

func (r *UserStateRepo) ClearMute(ctx context.Context, chatID, userID int64) error {
	if r.db == nil {
		return nil
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE user_state SET muted_until = NULL
		WHERE chat_id = $1 AND user_id = $2
	`, chatID, userID)
	if err != nil {
		return fmt.Errorf("clear mute: %w", err)
	}
	return nil
}

// FindByUsername resolves a previously seen handle to a user id.
func (r *UserStateRepo) FindByUsername(ctx context.Context, chatID int64, username string) (int64, error) {
	if r.db == nil {
		return 0, ErrUserStateNotFound
	}

	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return 0, ErrUserStateNotFound
	}

	var userID int64
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id
		FROM user_state
		WHERE chat_id = $1 AND LOWER(username) = LOWER($2)
		LIMIT 1
	`, chatID, username).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserStateNotFound
		}
		return 0, fmt.Errorf("find user by username: %w", err)
	}
	return userID, nil
}

// ListExpiredMutes returns rows whose mute expiry has passed, for the
// background sweep.
func (r *UserStateRepo) ListExpiredMutes(ctx context.Context, now time.Time) ([]model.UserState, error) {
	if r.db == nil {
		return []model.UserState{}, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT chat_id, user_id, COALESCE(username, ''), warns, muted_until
		FROM user_state
		WHERE muted_until IS NOT NULL AND muted_until <= $1
	`, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("list expired mutes: %w", err)
	}
	defer rows.Close()

	states := make([]model.UserState, 0)
	for rows.Next() {
		var state model.UserState
		var mutedUntil sql.NullTime
		if err := rows.Scan(&state.ChatID, &state.UserID, &state.Username, &state.Warns, &mutedUntil); err != nil {
			return nil, fmt.Errorf("scan expired mute row: %w", err)
		}
		if mutedUntil.Valid {
			until := mutedUntil.Time.UTC()
			state.MutedUntil = &until
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired mute rows: %w", err)
	}

	return states, nil
}
