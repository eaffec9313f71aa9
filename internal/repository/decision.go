package repository

import (
	"context"
	"time"

	"github.com/claude-afk/afk/internal/database"
	"github.com/claude-afk/afk/internal/model"
)

type PendingDecisionRepository interface {
	FindByID(ctx context.Context, id string) (*model.PendingDecision, error)
	Create(ctx context.Context, params model.CreatePendingDecisionParams) (*model.PendingDecision, error)
	// Resolve records the outcome only if none is recorded yet.
	Resolve(ctx context.Context, id string, outcome model.DecisionOutcome, decidedAt time.Time) (bool, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type pendingDecisionRepo struct {
	db database.DBTX
}

func NewPendingDecisionRepository(db database.DBTX) PendingDecisionRepository {
	return &pendingDecisionRepo{db: db}
}

func (r *pendingDecisionRepo) FindByID(ctx context.Context, id string) (*model.PendingDecision, error) {
	return getOne[model.PendingDecision](ctx, r.db, `
		SELECT id, device_token, tool_use_id, claude_session_id, title, message,
			decision, created_at, decided_at, expires_at
		FROM pending_decisions WHERE id = ?
	`, id)
}

func (r *pendingDecisionRepo) Create(ctx context.Context, params model.CreatePendingDecisionParams) (*model.PendingDecision, error) {
	d := &model.PendingDecision{
		ID:              params.ID,
		DeviceToken:     params.DeviceToken,
		ToolUseID:       params.ToolUseID,
		ClaudeSessionID: params.ClaudeSessionID,
		Title:           params.Title,
		Message:         params.Message,
		CreatedAt:       params.CreatedAt.UTC(),
		ExpiresAt:       params.ExpiresAt.UTC(),
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO pending_decisions
			(id, device_token, tool_use_id, claude_session_id, title, message, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), d.ID, d.DeviceToken, d.ToolUseID, d.ClaudeSessionID, d.Title, d.Message, d.CreatedAt, d.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *pendingDecisionRepo) Resolve(ctx context.Context, id string, outcome model.DecisionOutcome, decidedAt time.Time) (bool, error) {
	return execGuarded(ctx, r.db, `
		UPDATE pending_decisions SET decision = ?, decided_at = ?
		WHERE id = ? AND decision IS NULL
	`, string(outcome), decidedAt.UTC(), id)
}

func (r *pendingDecisionRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM pending_decisions WHERE created_at < ?
	`), cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
