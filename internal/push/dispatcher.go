package push

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog/log"

	apperrors "github.com/claude-afk/afk/internal/errors"
	"github.com/claude-afk/afk/internal/model"
)

// Credentials is the process-wide VAPID signing identity.
type Credentials struct {
	PublicKey  string
	PrivateKey string
	Subject    string
}

type Dispatcher struct {
	creds      Credentials
	ttl        time.Duration
	httpClient *http.Client

	once    sync.Once
	initErr error
}

func NewDispatcher(creds Credentials, ttl time.Duration, httpClient *http.Client) *Dispatcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Dispatcher{
		creds:      creds,
		ttl:        ttl,
		httpClient: httpClient,
	}
}

func (d *Dispatcher) init() error {
	d.once.Do(func() {
		var missing []string
		if d.creds.PublicKey == "" {
			missing = append(missing, "VAPID_PUBLIC_KEY")
		}
		if d.creds.PrivateKey == "" {
			missing = append(missing, "VAPID_PRIVATE_KEY")
		}
		if d.creds.Subject == "" {
			missing = append(missing, "VAPID_SUBJECT")
		}
		if len(missing) > 0 {
			d.initErr = apperrors.Configuration("VAPID keys not configured").
				WithDetails(map[string]any{"missing": missing})
			log.Error().Strs("missing", missing).Msg("push dispatcher not configured")
			return
		}
		log.Debug().Msg("push dispatcher initialized")
	})
	return d.initErr
}

// PublicKey returns the VAPID public key devices subscribe with.
func (d *Dispatcher) PublicKey() (string, error) {
	if d.creds.PublicKey == "" {
		return "", apperrors.Configuration("VAPID public key not configured")
	}
	return d.creds.PublicKey, nil
}

// Send delivers payload to a single subscription. Failures are not retried.
func (d *Dispatcher) Send(ctx context.Context, sub model.PushSubscription, payload Payload) error {
	if err := d.init(); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Internal("failed to encode push payload").WithCause(err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Keys.Auth,
			P256dh: sub.Keys.P256dh,
		},
	}, &webpush.Options{
		HTTPClient:      d.httpClient,
		Subscriber:      d.creds.Subject,
		VAPIDPublicKey:  d.creds.PublicKey,
		VAPIDPrivateKey: d.creds.PrivateKey,
		TTL:             int(d.ttl.Seconds()),
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		return apperrors.DispatchFailed(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		gone := resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone
		return apperrors.DispatchFailed(fmt.Errorf("push service responded %d", resp.StatusCode)).
			WithDetails(map[string]any{
				"status":           resp.StatusCode,
				"subscriptionGone": gone,
			})
	}

	log.Debug().Int("status", resp.StatusCode).Str("tag", payload.Tag).Msg("push dispatched")
	return nil
}

// GenerateVAPIDKeys returns a fresh (private, public) VAPID keypair.
func GenerateVAPIDKeys() (privateKey, publicKey string, err error) {
	return webpush.GenerateVAPIDKeys()
}
