package audit

import (
	"context"
	"encoding/json"
	"time"

	"chat_warden/internal/domain/enums"
	"chat_warden/internal/domain/model"
)

const MaxListLimit = 100

type Repo interface {
	Append(context.Context, model.ModLog) error
	ListRecent(context.Context, int64, int) ([]model.ModLog, error)
}

// Service is the single appender of the moderation action log. Entries
// record attempted intent: they are written whether or not the platform
// accepted the underlying call.
type Service struct {
	repo Repo
	now  func() time.Time
}

func NewService(repo Repo) *Service {
	return newService(repo, func() time.Time { return time.Now().UTC() })
}

func newService(repo Repo, now func() time.Time) *Service {
	return &Service{repo: repo, now: now}
}

// Log appends one entry. actorID 0 marks an automated action.
func (s *Service) Log(ctx context.Context, chatID int64, action enums.ActionKind, reason string, actorID, targetID int64, meta map[string]interface{}) error {
	if s.repo == nil {
		return nil
	}

	payload, err := json.Marshal(meta)
	if err != nil || len(meta) == 0 {
		payload = json.RawMessage(`{}`)
	}

	entry := model.ModLog{
		ChatID:    chatID,
		ActorID:   actorID,
		TargetID:  targetID,
		Action:    action,
		Reason:    reason,
		Meta:      payload,
		CreatedAt: s.now(),
	}
	return s.repo.Append(ctx, entry)
}

// ListRecent returns a chat's newest entries, capped at MaxListLimit.
func (s *Service) ListRecent(ctx context.Context, chatID int64, limit int) ([]model.ModLog, error) {
	if s.repo == nil {
		return []model.ModLog{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.repo.ListRecent(ctx, chatID, limit)
}
