package model

import "time"

// PairingSession binds a pairing flow to the device credential minted when it completes.
type PairingSession struct {
	ID               string     `db:"id" json:"id"`
	PairingToken     string     `db:"pairing_token" json:"-"`
	DeviceToken      *string    `db:"device_token" json:"-"`
	PushSubscription *string    `db:"push_subscription" json:"-"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	CompletedAt      *time.Time `db:"completed_at" json:"completedAt,omitempty"`
}

func (s *PairingSession) IsCompleted() bool {
	return s.CompletedAt != nil
}

type CreatePairingSessionParams struct {
	ID           string
	PairingToken string
	CreatedAt    time.Time
}

type CompletePairingParams struct {
	PairingToken     string
	DeviceToken      string
	PushSubscription string
	CompletedAt      time.Time
}

// PushSubscription is the browser PushSubscription JSON as delivered by the device.
type PushSubscription struct {
	Endpoint       string               `json:"endpoint" validate:"required"`
	ExpirationTime *int64               `json:"expirationTime,omitempty"`
	Keys           PushSubscriptionKeys `json:"keys"`
}

type PushSubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}
