package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/claude-afk/afk/internal/errors"
	"github.com/claude-afk/afk/internal/model"
)

func testCredentials(t *testing.T) Credentials {
	t.Helper()
	priv, pub, err := GenerateVAPIDKeys()
	require.NoError(t, err)
	return Credentials{PublicKey: pub, PrivateKey: priv, Subject: "mailto:ops@example.com"}
}

func testSubscription(t *testing.T, endpoint string) model.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)

	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	return model.PushSubscription{
		Endpoint: endpoint,
		Keys: model.PushSubscriptionKeys{
			P256dh: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
			Auth:   base64.RawURLEncoding.EncodeToString(auth),
		},
	}
}

func TestDispatcher_NotConfigured(t *testing.T) {
	d := NewDispatcher(Credentials{PublicKey: "pub"}, time.Minute, nil)
	sub := model.PushSubscription{Endpoint: "https://push.example.com/x"}

	for i := 0; i < 2; i++ {
		err := d.Send(context.Background(), sub, SimplePayload("t", "m"))
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfiguration))
	}
}

func TestDispatcher_PublicKey(t *testing.T) {
	_, err := NewDispatcher(Credentials{}, time.Minute, nil).PublicKey()
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfiguration))

	key, err := NewDispatcher(Credentials{PublicKey: "BPub"}, time.Minute, nil).PublicKey()
	require.NoError(t, err)
	assert.Equal(t, "BPub", key)
}

func TestDispatcher_Send(t *testing.T) {
	var hits atomic.Int32
	var gotAuth, gotTTL, gotEncoding string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gotAuth = r.Header.Get("Authorization")
		gotTTL = r.Header.Get("TTL")
		gotEncoding = r.Header.Get("Content-Encoding")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	d := NewDispatcher(testCredentials(t), 5*time.Minute, server.Client())
	err := d.Send(context.Background(), testSubscription(t, server.URL+"/push/abc"),
		DecisionPayload("d1", "tool42", "Confirm", "Run rm -rf?"))
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Contains(t, gotAuth, "vapid")
	assert.Equal(t, "300", gotTTL)
	assert.Equal(t, "aes128gcm", gotEncoding)
}

func TestDispatcher_SubscriptionGone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	d := NewDispatcher(testCredentials(t), time.Minute, server.Client())
	err := d.Send(context.Background(), testSubscription(t, server.URL), SimplePayload("t", "m"))
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeDispatchFailed, appErr.Code)
	details, ok := appErr.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, details["subscriptionGone"])
}

func TestDispatcher_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	d := NewDispatcher(testCredentials(t), time.Minute, nil)
	err := d.Send(context.Background(), testSubscription(t, endpoint), SimplePayload("t", "m"))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDispatchFailed))
}

func TestDispatcher_ConcurrentInit(t *testing.T) {
	d := NewDispatcher(Credentials{}, time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Error(t, d.init())
		}()
	}
	wg.Wait()
}
