package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/claude-afk/afk/internal/audit"
	"github.com/claude-afk/afk/internal/config"
	apperrors "github.com/claude-afk/afk/internal/errors"
	"github.com/claude-afk/afk/internal/model"
	"github.com/claude-afk/afk/internal/push"
	"github.com/claude-afk/afk/internal/repository"
	"github.com/claude-afk/afk/internal/sse"
	"github.com/claude-afk/afk/internal/util"
)

// Sender delivers a push payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub model.PushSubscription, payload push.Payload) error
}

// Publisher fans decision events out to live watchers.
type Publisher interface {
	Publish(ctx context.Context, decisionID string, event sse.Event) error
}

type NotifyInput struct {
	Title     string
	Message   string `validate:"required"`
	ToolUseID string `validate:"required"`
	SessionID string `validate:"required"`
}

type SubmitInput struct {
	Decision  string
	ToolUseID string
}

type DecisionStatusResult struct {
	Status   model.DecisionStatus   `json:"status"`
	Decision *model.DecisionOutcome `json:"decision"`
}

type SubmitResult struct {
	Success  bool
	Decision *model.DecisionOutcome
	Message  string
}

type DecisionService struct {
	decisions repository.PendingDecisionRepository
	pairing   *PairingService
	sender    Sender
	publisher Publisher
	validate  *validator.Validate
	window    time.Duration
	now       func() time.Time
}

func NewDecisionService(
	decisions repository.PendingDecisionRepository,
	pairing *PairingService,
	sender Sender,
	publisher Publisher,
) *DecisionService {
	return &DecisionService{
		decisions: decisions,
		pairing:   pairing,
		sender:    sender,
		publisher: publisher,
		validate:  validator.New(),
		window:    config.DecisionWindow,
		now:       time.Now,
	}
}

// Notify records a pending decision and pushes it to the paired device. The
// record is created before dispatch and survives a failed dispatch.
func (s *DecisionService) Notify(ctx context.Context, deviceToken string, in NotifyInput) (string, error) {
	device, err := s.pairing.ResolveDevice(ctx, deviceToken)
	if err != nil {
		return "", err
	}

	if err := s.validateNotify(in); err != nil {
		return "", err
	}

	sub, err := s.pairing.Subscription(device)
	if err != nil {
		return "", err
	}

	title := in.Title
	if title == "" {
		title = push.DefaultTitle
	}

	now := s.now()
	decision, err := s.decisions.Create(ctx, model.CreatePendingDecisionParams{
		ID:              uuid.NewString(),
		DeviceToken:     deviceToken,
		ToolUseID:       in.ToolUseID,
		ClaudeSessionID: in.SessionID,
		Title:           title,
		Message:         in.Message,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.window),
	})
	if err != nil {
		return "", apperrors.Database(err)
	}

	logger := log.With().
		Str("decisionId", decision.ID).
		Str("toolUseId", decision.ToolUseID).
		Str("sessionId", decision.ClaudeSessionID).
		Logger()

	payload := push.DecisionPayload(decision.ID, decision.ToolUseID, title, in.Message)
	if err := s.sender.Send(ctx, sub, payload); err != nil {
		logger.Error().Err(err).Msg("push dispatch failed, decision left pending")
		return decision.ID, withDecisionID(err, decision.ID)
	}

	logger.Info().Time("expiresAt", decision.ExpiresAt).Msg("decision requested")
	return decision.ID, nil
}

// NotifySimple pushes an informational notification with no decision attached.
func (s *DecisionService) NotifySimple(ctx context.Context, deviceToken, title, message string) error {
	device, err := s.pairing.ResolveDevice(ctx, deviceToken)
	if err != nil {
		return err
	}
	if message == "" {
		return apperrors.MissingRequired("message")
	}

	sub, err := s.pairing.Subscription(device)
	if err != nil {
		return err
	}

	if title == "" {
		title = push.DefaultTitle
	}
	if err := s.sender.Send(ctx, sub, push.SimplePayload(title, message)); err != nil {
		log.Error().Err(err).Str("pairingId", device.ID).Msg("simple push dispatch failed")
		return err
	}

	log.Info().Str("pairingId", device.ID).Msg("simple notification sent")
	return nil
}

// GetDecisionStatus reports expiry ahead of any recorded outcome.
func (s *DecisionService) GetDecisionStatus(ctx context.Context, decisionID, deviceToken string) (*DecisionStatusResult, error) {
	decision, err := s.loadOwned(ctx, decisionID, deviceToken)
	if err != nil {
		return nil, err
	}
	return s.statusOf(decision), nil
}

// WatchStatus is GetDecisionStatus plus the instant the window closes.
func (s *DecisionService) WatchStatus(ctx context.Context, decisionID, deviceToken string) (*DecisionStatusResult, time.Time, error) {
	decision, err := s.loadOwned(ctx, decisionID, deviceToken)
	if err != nil {
		return nil, time.Time{}, err
	}
	return s.statusOf(decision), decision.ExpiresAt, nil
}

func (s *DecisionService) loadOwned(ctx context.Context, decisionID, deviceToken string) (*model.PendingDecision, error) {
	if _, err := s.pairing.ResolveDevice(ctx, deviceToken); err != nil {
		return nil, err
	}
	if !util.IsValidUUID(decisionID) {
		return nil, apperrors.NotFound("Decision")
	}

	decision, err := s.decisions.FindByID(ctx, decisionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if decision == nil {
		return nil, apperrors.NotFound("Decision")
	}

	if !util.ConstantTimeEqual(decision.DeviceToken, deviceToken) {
		audit.Log(ctx, audit.Event{
			Type:       audit.EventAuthFailure,
			DecisionID: decisionID,
			Device:     util.MaskToken(deviceToken),
			Details:    map[string]any{"reason": "decision owned by another device"},
		})
		return nil, apperrors.Unauthorized("Decision belongs to another device")
	}
	return decision, nil
}

func (s *DecisionService) statusOf(d *model.PendingDecision) *DecisionStatusResult {
	if d.IsExpiredAt(s.now()) {
		return &DecisionStatusResult{Status: model.DecisionStatusExpired}
	}
	if d.IsDecided() {
		return &DecisionStatusResult{Status: model.DecisionStatusDecided, Decision: d.Decision}
	}
	return &DecisionStatusResult{Status: model.DecisionStatusPending}
}

// SubmitDecision resolves a decision at most once. A recorded outcome is
// returned as-is, even after the window has elapsed.
func (s *DecisionService) SubmitDecision(ctx context.Context, decisionID string, in SubmitInput) (*SubmitResult, error) {
	outcome := model.DecisionOutcome(in.Decision)
	if !outcome.Valid() {
		return nil, apperrors.InvalidInput("decision", "must be allow or dismiss")
	}
	if in.ToolUseID == "" {
		return nil, apperrors.MissingRequired("toolUseId")
	}
	if !util.IsValidUUID(decisionID) {
		return nil, apperrors.NotFound("Decision")
	}

	decision, err := s.decisions.FindByID(ctx, decisionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if decision == nil {
		return nil, apperrors.NotFound("Decision")
	}

	if !util.ConstantTimeEqual(decision.ToolUseID, in.ToolUseID) {
		audit.Log(ctx, audit.Event{
			Type:       audit.EventTamperRejected,
			DecisionID: decisionID,
			Details:    map[string]any{"attempted": string(outcome)},
		})
		return nil, apperrors.Forbidden("Tool use ID mismatch")
	}

	if decision.IsDecided() {
		return alreadyRecorded(decision), nil
	}

	now := s.now()
	if decision.IsExpiredAt(now) {
		log.Info().Str("decisionId", decisionID).Msg("submit after decision window")
		return &SubmitResult{Success: false, Message: "Decision has expired"}, nil
	}

	ok, err := s.decisions.Resolve(ctx, decisionID, outcome, now)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if !ok {
		// a concurrent submit recorded first; report its outcome
		current, err := s.decisions.FindByID(ctx, decisionID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if current == nil || !current.IsDecided() {
			return nil, apperrors.Internal("decision changed during submit")
		}
		return alreadyRecorded(current), nil
	}

	audit.Log(ctx, audit.Event{
		Type:       audit.EventDecisionResolved,
		DecisionID: decisionID,
		Details: map[string]any{
			"decision":  string(outcome),
			"toolUseId": decision.ToolUseID,
			"sessionId": decision.ClaudeSessionID,
		},
	})

	s.publishResolved(ctx, decisionID, outcome)
	return &SubmitResult{Success: true, Decision: &outcome}, nil
}

func (s *DecisionService) publishResolved(ctx context.Context, decisionID string, outcome model.DecisionOutcome) {
	if s.publisher == nil {
		return
	}

	data, err := json.Marshal(DecisionStatusResult{Status: model.DecisionStatusDecided, Decision: &outcome})
	if err != nil {
		return
	}
	if err := s.publisher.Publish(ctx, decisionID, sse.Event{Type: sse.EventDecisionResolved, Data: data}); err != nil {
		log.Warn().Err(err).Str("decisionId", decisionID).Msg("failed to publish decision event")
	}
}

func (s *DecisionService) validateNotify(in NotifyInput) error {
	if err := s.validate.Struct(in); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return apperrors.MissingRequired(notifyFieldNames[verrs[0].Field()])
		}
		return apperrors.ValidationError(err.Error())
	}
	return nil
}

var notifyFieldNames = map[string]string{
	"Message":   "message",
	"ToolUseID": "tool_use_id",
	"SessionID": "session_id",
}

func alreadyRecorded(d *model.PendingDecision) *SubmitResult {
	return &SubmitResult{
		Success:  true,
		Decision: d.Decision,
		Message:  "Decision already recorded",
	}
}

func withDecisionID(err error, decisionID string) error {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		return apperrors.DispatchFailed(err).WithDetails(map[string]any{"decisionId": decisionID})
	}
	details, _ := appErr.Details.(map[string]any)
	merged := map[string]any{"decisionId": decisionID}
	for k, v := range details {
		merged[k] = v
	}
	return apperrors.New(appErr.Code, appErr.Message).WithCause(appErr).WithDetails(merged)
}
