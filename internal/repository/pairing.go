package repository

import (
	"context"

	"github.com/claude-afk/afk/internal/database"
	"github.com/claude-afk/afk/internal/model"
)

type PairingSessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.PairingSession, error)
	FindByPairingToken(ctx context.Context, pairingToken string) (*model.PairingSession, error)
	FindByDeviceToken(ctx context.Context, deviceToken string) (*model.PairingSession, error)
	Create(ctx context.Context, params model.CreatePairingSessionParams) (*model.PairingSession, error)
	// Complete binds the device credential and subscription exactly once.
	// It reports false when the session is unknown or was already completed.
	Complete(ctx context.Context, params model.CompletePairingParams) (bool, error)
}

type pairingSessionRepo struct {
	db database.DBTX
}

func NewPairingSessionRepository(db database.DBTX) PairingSessionRepository {
	return &pairingSessionRepo{db: db}
}

const pairingSessionColumns = `id, pairing_token, device_token, push_subscription, created_at, completed_at`

func (r *pairingSessionRepo) FindByID(ctx context.Context, id string) (*model.PairingSession, error) {
	return getOne[model.PairingSession](ctx, r.db, `
		SELECT `+pairingSessionColumns+` FROM pairing_sessions WHERE id = ?
	`, id)
}

func (r *pairingSessionRepo) FindByPairingToken(ctx context.Context, pairingToken string) (*model.PairingSession, error) {
	return getOne[model.PairingSession](ctx, r.db, `
		SELECT `+pairingSessionColumns+` FROM pairing_sessions WHERE pairing_token = ?
	`, pairingToken)
}

func (r *pairingSessionRepo) FindByDeviceToken(ctx context.Context, deviceToken string) (*model.PairingSession, error) {
	return getOne[model.PairingSession](ctx, r.db, `
		SELECT `+pairingSessionColumns+` FROM pairing_sessions
		WHERE device_token = ? AND completed_at IS NOT NULL
	`, deviceToken)
}

func (r *pairingSessionRepo) Create(ctx context.Context, params model.CreatePairingSessionParams) (*model.PairingSession, error) {
	createdAt := params.CreatedAt.UTC()
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO pairing_sessions (id, pairing_token, created_at)
		VALUES (?, ?, ?)
	`), params.ID, params.PairingToken, createdAt)
	if err != nil {
		return nil, err
	}
	return &model.PairingSession{
		ID:           params.ID,
		PairingToken: params.PairingToken,
		CreatedAt:    createdAt,
	}, nil
}

func (r *pairingSessionRepo) Complete(ctx context.Context, params model.CompletePairingParams) (bool, error) {
	return execGuarded(ctx, r.db, `
		UPDATE pairing_sessions SET
			device_token = ?,
			push_subscription = ?,
			completed_at = ?
		WHERE pairing_token = ? AND completed_at IS NULL
	`, params.DeviceToken, params.PushSubscription, params.CompletedAt.UTC(), params.PairingToken)
}
