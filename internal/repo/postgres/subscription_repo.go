package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"chat_warden/internal/domain/model"
)

type SubscriptionRepo struct {
	db *sql.DB
}

func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo {
	return &SubscriptionRepo{db: db}
}

// MarkVerified records a confirmed subscription check.
func (r *SubscriptionRepo) MarkVerified(ctx context.Context, chatID, userID int64, now time.Time) error {
	if r.db == nil {
		return nil
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscription_state (chat_id, user_id, verified_at, last_checked)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (chat_id, user_id)
		DO UPDATE SET verified_at = EXCLUDED.verified_at, last_checked = EXCLUDED.last_checked
	`, chatID, userID, now.UTC())
	if err != nil {
		return fmt.Errorf("mark subscription verified: %w", err)
	}
	return nil
}

// MarkUnverified clears the verified timestamp. checkedAt is nil for
// membership-change resets (join/leave) and set for failed on-demand checks.
func (r *SubscriptionRepo) MarkUnverified(ctx context.Context, chatID, userID int64, checkedAt *time.Time) error {
	if r.db == nil {
		return nil
	}

	var lastChecked interface{}
	if checkedAt != nil {
		lastChecked = checkedAt.UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscription_state (chat_id, user_id, verified_at, last_checked)
		VALUES ($1, $2, NULL, $3)
		ON CONFLICT (chat_id, user_id)
		DO UPDATE SET verified_at = NULL, last_checked = EXCLUDED.last_checked
	`, chatID, userID, lastChecked)
	if err != nil {
		return fmt.Errorf("mark subscription unverified: %w", err)
	}
	return nil
}

func (r *SubscriptionRepo) TouchChecked(ctx context.Context, chatID, userID int64, now time.Time) error {
	if r.db == nil {
		return nil
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE subscription_state SET last_checked = $3
		WHERE chat_id = $1 AND user_id = $2
	`, chatID, userID, now.UTC())
	if err != nil {
		return fmt.Errorf("touch subscription check: %w", err)
	}
	return nil
}

// ListDueForRecheck returns verified rows whose last check predates the
// cutoff, for the periodic re-verification sweep.
func (r *SubscriptionRepo) ListDueForRecheck(ctx context.Context, cutoff time.Time) ([]model.SubscriptionState, error) {
	if r.db == nil {
		return []model.SubscriptionState{}, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT chat_id, user_id, verified_at, last_checked
		FROM subscription_state
		WHERE verified_at IS NOT NULL
		  AND (last_checked IS NULL OR last_checked < $1)
	`, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("list subscriptions due for recheck: %w", err)
	}
	defer rows.Close()

	states := make([]model.SubscriptionState, 0)
	for rows.Next() {
		var state model.SubscriptionState
		var verifiedAt, lastChecked sql.NullTime
		if err := rows.Scan(&state.ChatID, &state.UserID, &verifiedAt, &lastChecked); err != nil {
			return nil, fmt.Errorf("scan subscription row: %w", err)
		}
		if verifiedAt.Valid {
			at := verifiedAt.Time.UTC()
			state.VerifiedAt = &at
		}
		if lastChecked.Valid {
			at := lastChecked.Time.UTC()
			state.LastChecked = &at
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscription rows: %w", err)
	}

	return states, nil
}
