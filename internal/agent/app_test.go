package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRelay struct {
	mu          sync.Mutex
	notified    map[string]string
	simple      map[string]string
	statusPolls atomic.Int32
	statuses    []string
	pairPolls   atomic.Int32
	pairAfter   int32
	authHeaders []string
}

func (f *fakeRelay) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /notify", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
		f.mu.Unlock()
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.notified = body
		f.mu.Unlock()
		w.Write([]byte(`{"success":true,"decisionId":"d-1"}`))
	})

	mux.HandleFunc("POST /notify/simple", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.simple = body
		f.mu.Unlock()
		w.Write([]byte(`{"success":true}`))
	})

	mux.HandleFunc("GET /decision/d-1/status", func(w http.ResponseWriter, r *http.Request) {
		n := int(f.statusPolls.Add(1)) - 1
		if n >= len(f.statuses) {
			n = len(f.statuses) - 1
		}
		w.Write([]byte(f.statuses[n]))
	})

	mux.HandleFunc("POST /pairing/initiate", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pairingId":"p-1","pairingToken":"pt"}`))
	})

	mux.HandleFunc("GET /pairing/p-1/status", func(w http.ResponseWriter, r *http.Request) {
		if f.pairPolls.Add(1) < f.pairAfter {
			w.Write([]byte(`{"complete":false,"deviceToken":null}`))
			return
		}
		w.Write([]byte(`{"complete":true,"deviceToken":"new-device"}`))
	})

	return mux
}

func (f *fakeRelay) notifiedBody() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notified
}

func (f *fakeRelay) simpleBody() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.simple
}

func (f *fakeRelay) auth() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.authHeaders...)
}

type testApp struct {
	app      *App
	stdout   *bytes.Buffer
	stderr   *bytes.Buffer
	path     string
	relay    *fakeRelay
	relayURL string
}

func newTestApp(t *testing.T, relay *fakeRelay, stdin string) *testApp {
	t.Helper()

	srv := httptest.NewServer(relay.handler(t))
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "config.yaml")
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	app := New(Options{
		Stdin:                bytes.NewBufferString(stdin),
		Stdout:               stdout,
		Stderr:               stderr,
		SettingsPath:         func() (string, error) { return path, nil },
		Env:                  &Env{BackendURL: srv.URL},
		PairingPollInterval:  5 * time.Millisecond,
		PairingTimeout:       time.Second,
		DecisionPollInterval: 5 * time.Millisecond,
		DecisionTimeout:      200 * time.Millisecond,
	})

	return &testApp{app: app, stdout: stdout, stderr: stderr, path: path, relay: relay, relayURL: srv.URL}
}

func (ta *testApp) pair(t *testing.T, active bool) {
	t.Helper()
	token := "dev-token"
	require.NoError(t, SaveSettings(ta.path, &Settings{DeviceToken: &token, Active: active}))
}

const permissionRequest = `{
	"session_id": "s-1",
	"hook_event_name": "PermissionRequest",
	"tool_name": "Bash",
	"tool_input": {"command": "rm -rf build"},
	"tool_use_id": "tu-1"
}`

func TestNotify_NotPairedExitsSilently(t *testing.T) {
	ta := newTestApp(t, &fakeRelay{}, permissionRequest)

	assert.Equal(t, 0, ta.app.Run(context.Background(), []string{"notify"}))
	assert.Empty(t, ta.stdout.String())
}

func TestNotify_InactiveExitsSilently(t *testing.T) {
	relay := &fakeRelay{}
	ta := newTestApp(t, relay, permissionRequest)
	ta.pair(t, false)

	assert.Equal(t, 0, ta.app.Run(context.Background(), []string{"notify"}))
	assert.Nil(t, relay.notifiedBody())
}

func TestNotify_AllowPrintsHookOutput(t *testing.T) {
	relay := &fakeRelay{statuses: []string{
		`{"status":"pending","decision":null}`,
		`{"status":"decided","decision":"allow"}`,
	}}
	ta := newTestApp(t, relay, permissionRequest)
	ta.pair(t, true)

	code := ta.app.Run(context.Background(), []string{"notify"})

	assert.Equal(t, 0, code)
	assert.JSONEq(t,
		`{"hookSpecificOutput":{"hookEventName":"PermissionRequest","decision":{"behavior":"allow"}}}`,
		ta.stdout.String())

	assert.Equal(t, "Bash Command", relay.notifiedBody()["title"])
	assert.Equal(t, "rm -rf build", relay.notifiedBody()["message"])
	assert.Equal(t, "tu-1", relay.notifiedBody()["tool_use_id"])
	assert.Equal(t, "s-1", relay.notifiedBody()["session_id"])
	assert.Equal(t, []string{"Bearer dev-token"}, relay.auth())
	assert.GreaterOrEqual(t, relay.statusPolls.Load(), int32(2))
}

func TestNotify_DismissExitsZeroWithoutOutput(t *testing.T) {
	relay := &fakeRelay{statuses: []string{`{"status":"decided","decision":"dismiss"}`}}
	ta := newTestApp(t, relay, permissionRequest)
	ta.pair(t, true)

	assert.Equal(t, 0, ta.app.Run(context.Background(), []string{"notify"}))
	assert.Empty(t, ta.stdout.String())
}

func TestNotify_ExpiredExitsOne(t *testing.T) {
	relay := &fakeRelay{statuses: []string{`{"status":"expired","decision":null}`}}
	ta := newTestApp(t, relay, permissionRequest)
	ta.pair(t, true)

	assert.Equal(t, 1, ta.app.Run(context.Background(), []string{"notify"}))
	assert.Empty(t, ta.stdout.String())
}

func TestNotify_TimeoutExitsOne(t *testing.T) {
	relay := &fakeRelay{statuses: []string{`{"status":"pending","decision":null}`}}
	ta := newTestApp(t, relay, permissionRequest)
	ta.pair(t, true)

	assert.Equal(t, 1, ta.app.Run(context.Background(), []string{"notify"}))
	assert.Empty(t, ta.stdout.String())
}

func TestNotify_JSONArgumentAndGeneratedToolUseID(t *testing.T) {
	relay := &fakeRelay{statuses: []string{`{"status":"decided","decision":"dismiss"}`}}
	ta := newTestApp(t, relay, "")
	ta.pair(t, true)

	input := `{"session_id":"s-2","hook_event_name":"PermissionRequest","tool_name":"Read","tool_input":{"file_path":"/etc/hosts"}}`
	assert.Equal(t, 0, ta.app.Run(context.Background(), []string{"notify", input}))

	assert.Equal(t, "Read File", relay.notifiedBody()["title"])
	assert.NotEmpty(t, relay.notifiedBody()["tool_use_id"])
}

func TestNotify_IdlePromptSendsSimple(t *testing.T) {
	relay := &fakeRelay{}
	ta := newTestApp(t, relay, `{"hook_event_name":"Notification","notification_type":"idle_prompt","message":"Waiting for input"}`)
	ta.pair(t, true)

	assert.Equal(t, 0, ta.app.Run(context.Background(), []string{"notify"}))
	assert.Equal(t, "Claude is waiting", relay.simpleBody()["title"])
	assert.Equal(t, "Waiting for input", relay.simpleBody()["message"])
	assert.Nil(t, relay.notifiedBody())
}

func TestNotify_OtherNotificationIgnored(t *testing.T) {
	relay := &fakeRelay{}
	ta := newTestApp(t, relay, `{"hook_event_name":"Notification","notification_type":"permission_prompt","message":"x"}`)
	ta.pair(t, true)

	assert.Equal(t, 0, ta.app.Run(context.Background(), []string{"notify"}))
	assert.Nil(t, relay.simpleBody())
}

func TestNotify_BadInput(t *testing.T) {
	ta := newTestApp(t, &fakeRelay{}, "not json")
	ta.pair(t, true)
	assert.Equal(t, 1, ta.app.Run(context.Background(), []string{"notify"}))

	ta = newTestApp(t, &fakeRelay{}, `{"hook_event_name":"Stop"}`)
	ta.pair(t, true)
	assert.Equal(t, 1, ta.app.Run(context.Background(), []string{"notify"}))
}

func TestSetup_SavesDeviceToken(t *testing.T) {
	relay := &fakeRelay{pairAfter: 3}
	ta := newTestApp(t, relay, "")

	assert.Equal(t, 0, ta.app.Run(context.Background(), []string{"setup"}))
	assert.Contains(t, ta.stdout.String(), ta.relayURL+"/pair/pt")
	assert.Contains(t, ta.stdout.String(), "█", "pairing link rendered as a terminal QR code")

	s, err := LoadSettings(ta.path)
	require.NoError(t, err)
	require.True(t, s.Paired())
	assert.Equal(t, "new-device", *s.DeviceToken)
	assert.True(t, s.Active)
	assert.Equal(t, ta.relayURL, s.BackendURL)
}

func TestSetup_TimesOut(t *testing.T) {
	relay := &fakeRelay{pairAfter: 1 << 30}
	ta := newTestApp(t, relay, "")
	ta.app.pairingTimeout = 30 * time.Millisecond

	assert.Equal(t, 1, ta.app.Run(context.Background(), []string{"setup"}))
	assert.Contains(t, ta.stderr.String(), "pairing timed out")
}

func TestActivateDeactivateClear(t *testing.T) {
	ta := newTestApp(t, &fakeRelay{}, "")
	ctx := context.Background()

	assert.Equal(t, 1, ta.app.Run(ctx, []string{"activate"}), "activate requires pairing")

	ta.pair(t, false)
	assert.Equal(t, 0, ta.app.Run(ctx, []string{"activate"}))
	s, _ := LoadSettings(ta.path)
	assert.True(t, s.Active)

	assert.Equal(t, 0, ta.app.Run(ctx, []string{"deactivate"}))
	s, _ = LoadSettings(ta.path)
	assert.False(t, s.Active)

	assert.Equal(t, 0, ta.app.Run(ctx, []string{"clear"}))
	s, _ = LoadSettings(ta.path)
	assert.False(t, s.Paired())
	assert.False(t, s.Active)
}

func TestStatus(t *testing.T) {
	ta := newTestApp(t, &fakeRelay{}, "")
	ta.pair(t, true)

	assert.Equal(t, 0, ta.app.Run(context.Background(), []string{"status"}))
	assert.Contains(t, ta.stdout.String(), "Paired")
	assert.Contains(t, ta.stdout.String(), "Active")
}

func TestUnknownCommand(t *testing.T) {
	ta := newTestApp(t, &fakeRelay{}, "")
	assert.Equal(t, 1, ta.app.Run(context.Background(), []string{"bogus"}))
	assert.Contains(t, ta.stderr.String(), "unknown command")
}

func TestBackendURLPrecedence(t *testing.T) {
	app := New(Options{Env: &Env{}})
	assert.Equal(t, DefaultBackendURL, app.backendURL(&Settings{}))
	assert.Equal(t, "https://saved.example", app.backendURL(&Settings{BackendURL: "https://saved.example/"}))

	app = New(Options{Env: &Env{BackendURL: "http://localhost:8080/"}})
	assert.Equal(t, "http://localhost:8080", app.backendURL(&Settings{BackendURL: "https://saved.example"}))
}
