package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/claude-afk/afk/internal/audit"
	apperrors "github.com/claude-afk/afk/internal/errors"
	"github.com/claude-afk/afk/internal/model"
	"github.com/claude-afk/afk/internal/repository"
	"github.com/claude-afk/afk/internal/util"
)

type InitiateResult struct {
	PairingID    string
	PairingToken string
	PairingURL   string
}

type PairingStatus struct {
	Complete    bool
	DeviceToken *string
}

type PairingService struct {
	repo          repository.PairingSessionRepository
	sealer        *util.Sealer
	publicBaseURL string
	validate      *validator.Validate
	now           func() time.Time
}

func NewPairingService(
	repo repository.PairingSessionRepository,
	sealer *util.Sealer,
	publicBaseURL string,
) *PairingService {
	return &PairingService{
		repo:          repo,
		sealer:        sealer,
		publicBaseURL: publicBaseURL,
		validate:      validator.New(),
		now:           time.Now,
	}
}

func (s *PairingService) InitiatePairing(ctx context.Context) (*InitiateResult, error) {
	pairingToken, err := util.GenerateToken(util.PairingTokenBytes)
	if err != nil {
		return nil, apperrors.Internal("failed to generate pairing token").WithCause(err)
	}

	session, err := s.repo.Create(ctx, model.CreatePairingSessionParams{
		ID:           uuid.NewString(),
		PairingToken: pairingToken,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	result := &InitiateResult{
		PairingID:    session.ID,
		PairingToken: session.PairingToken,
	}
	if s.publicBaseURL != "" {
		result.PairingURL = fmt.Sprintf("%s/pair/%s", s.publicBaseURL, session.PairingToken)
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventPairingInitiated,
		PairingID: session.ID,
	})

	return result, nil
}

// GetPairingStatus withholds the device token until the session is completed.
func (s *PairingService) GetPairingStatus(ctx context.Context, pairingID string) (*PairingStatus, error) {
	if !util.IsValidUUID(pairingID) {
		return nil, apperrors.NotFound("Pairing session")
	}

	session, err := s.repo.FindByID(ctx, pairingID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Pairing session")
	}

	if !session.IsCompleted() {
		return &PairingStatus{Complete: false}, nil
	}
	return &PairingStatus{Complete: true, DeviceToken: session.DeviceToken}, nil
}

func (s *PairingService) CompletePairing(ctx context.Context, pairingToken string, sub *model.PushSubscription) error {
	session, err := s.repo.FindByPairingToken(ctx, pairingToken)
	if err != nil {
		return apperrors.Database(err)
	}
	if session == nil {
		return apperrors.NotFound("Pairing session")
	}
	if session.IsCompleted() {
		audit.Log(ctx, audit.Event{Type: audit.EventPairingReplay, PairingID: session.ID})
		return apperrors.AlreadyCompleted()
	}

	if sub == nil {
		return apperrors.InvalidSubscription("subscription is required")
	}
	if err := s.validate.Struct(sub); err != nil {
		return apperrors.InvalidSubscription("endpoint is required").WithCause(err)
	}

	stored, err := s.encodeSubscription(session.ID, sub)
	if err != nil {
		return err
	}

	deviceToken, err := util.GenerateToken(util.DeviceTokenBytes)
	if err != nil {
		return apperrors.Internal("failed to generate device token").WithCause(err)
	}

	ok, err := s.repo.Complete(ctx, model.CompletePairingParams{
		PairingToken:     pairingToken,
		DeviceToken:      deviceToken,
		PushSubscription: stored,
		CompletedAt:      s.now(),
	})
	if err != nil {
		return apperrors.Database(err)
	}
	if !ok {
		// lost the race against a concurrent completion
		audit.Log(ctx, audit.Event{Type: audit.EventPairingReplay, PairingID: session.ID})
		return apperrors.AlreadyCompleted()
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventPairingCompleted,
		PairingID: session.ID,
		Device:    util.MaskToken(deviceToken),
	})
	return nil
}

// ResolveDevice returns the completed session owning deviceToken.
func (s *PairingService) ResolveDevice(ctx context.Context, deviceToken string) (*model.PairingSession, error) {
	if deviceToken == "" {
		return nil, apperrors.Unauthorized("Missing device token")
	}

	session, err := s.repo.FindByDeviceToken(ctx, deviceToken)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		audit.Log(ctx, audit.Event{
			Type:   audit.EventAuthFailure,
			Device: util.MaskToken(deviceToken),
		})
		return nil, apperrors.Unauthorized("Invalid device token")
	}
	return session, nil
}

// Subscription decodes the push subscription stored for a completed session.
func (s *PairingService) Subscription(session *model.PairingSession) (model.PushSubscription, error) {
	var sub model.PushSubscription
	if session.PushSubscription == nil || *session.PushSubscription == "" {
		return sub, apperrors.InvalidSubscription("no push subscription found")
	}

	raw, err := s.sealer.Open(*session.PushSubscription, session.ID)
	if err != nil {
		log.Error().Err(err).Str("pairingId", session.ID).Msg("failed to decrypt push subscription")
		return sub, apperrors.Internal("failed to read push subscription").WithCause(err)
	}

	if err := json.Unmarshal(raw, &sub); err != nil {
		return sub, apperrors.Internal("failed to read push subscription").WithCause(err)
	}
	return sub, nil
}

func (s *PairingService) encodeSubscription(pairingID string, sub *model.PushSubscription) (string, error) {
	data, err := json.Marshal(sub)
	if err != nil {
		return "", apperrors.Internal("failed to encode push subscription").WithCause(err)
	}
	if s.sealer == nil {
		return string(data), nil
	}

	encrypted, err := s.sealer.Seal(data, pairingID)
	if err != nil {
		return "", apperrors.Internal("failed to encrypt push subscription").WithCause(err)
	}
	return encrypted, nil
}
