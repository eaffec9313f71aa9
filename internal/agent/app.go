package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mdp/qrterminal/v3"
	"github.com/rs/zerolog/log"

	"github.com/claude-afk/afk/internal/client"
	"github.com/claude-afk/afk/internal/model"
)

const (
	PairingPollInterval  = 2 * time.Second
	PairingTimeout       = 5 * time.Minute
	DecisionPollInterval = 2 * time.Second
	DecisionTimeout      = 2 * time.Minute
)

// Options controls runtime dependencies for App.
type Options struct {
	Stdin        io.Reader
	Stdout       io.Writer
	Stderr       io.Writer
	SettingsPath func() (string, error)
	Env          *Env
	HTTPClient   *http.Client

	PairingPollInterval  time.Duration
	PairingTimeout       time.Duration
	DecisionPollInterval time.Duration
	DecisionTimeout      time.Duration
}

// App is the agent-side command dispatcher. Exit codes and stdout of the
// notify command are the hook contract.
type App struct {
	stdin        io.Reader
	stdout       io.Writer
	stderr       io.Writer
	settingsPath func() (string, error)
	env          Env
	httpClient   *http.Client

	pairingPoll     time.Duration
	pairingTimeout  time.Duration
	decisionPoll    time.Duration
	decisionTimeout time.Duration
	now             func() time.Time
}

func New(opts Options) *App {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.SettingsPath == nil {
		opts.SettingsPath = DefaultSettingsPath
	}
	if opts.Env == nil {
		e, err := LoadEnv()
		if err != nil {
			log.Warn().Err(err).Msg("ignoring invalid environment")
		}
		opts.Env = &e
	}
	if opts.PairingPollInterval <= 0 {
		opts.PairingPollInterval = PairingPollInterval
	}
	if opts.PairingTimeout <= 0 {
		opts.PairingTimeout = PairingTimeout
	}
	if opts.DecisionPollInterval <= 0 {
		opts.DecisionPollInterval = DecisionPollInterval
	}
	if opts.DecisionTimeout <= 0 {
		opts.DecisionTimeout = DecisionTimeout
	}

	return &App{
		stdin:           opts.Stdin,
		stdout:          opts.Stdout,
		stderr:          opts.Stderr,
		settingsPath:    opts.SettingsPath,
		env:             *opts.Env,
		httpClient:      opts.HTTPClient,
		pairingPoll:     opts.PairingPollInterval,
		pairingTimeout:  opts.PairingTimeout,
		decisionPoll:    opts.DecisionPollInterval,
		decisionTimeout: opts.DecisionTimeout,
		now:             time.Now,
	}
}

func (a *App) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		a.printUsage()
		return 1
	}

	if args[0] == "notify" {
		return a.runNotify(ctx, args[1:])
	}

	var err error
	switch args[0] {
	case "setup":
		err = a.runSetup(ctx)
	case "status":
		err = a.runStatus()
	case "activate":
		err = a.runActivate()
	case "deactivate":
		err = a.runDeactivate()
	case "clear":
		err = a.runClear()
	case "help", "-h", "--help":
		a.printUsage()
		return 0
	default:
		err = fmt.Errorf("unknown command: %s", args[0])
	}

	if err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func (a *App) printUsage() {
	fmt.Fprintln(a.stdout, `Usage: claude-afk <command>

Commands:
  setup          Pair this machine with a phone
  notify [json]  Handle a hook event (JSON argument or stdin)
  status         Show pairing and activation state
  activate       Enable remote notifications
  deactivate     Disable remote notifications
  clear          Forget the paired device`)
}

func (a *App) loadSettings() (string, *Settings, error) {
	path, err := a.settingsPath()
	if err != nil {
		return "", nil, err
	}
	s, err := LoadSettings(path)
	if err != nil {
		return "", nil, err
	}
	return path, s, nil
}

// backendURL prefers the environment, then the URL recorded at pairing.
func (a *App) backendURL(s *Settings) string {
	if a.env.BackendURL != "" {
		return strings.TrimRight(a.env.BackendURL, "/")
	}
	if s != nil && s.BackendURL != "" {
		return strings.TrimRight(s.BackendURL, "/")
	}
	return DefaultBackendURL
}

func (a *App) newClient(baseURL string, deviceToken string) *client.Client {
	opts := []client.Option{client.WithDeviceToken(deviceToken)}
	if a.httpClient != nil {
		opts = append(opts, client.WithHTTPClient(a.httpClient))
	}
	return client.New(baseURL, opts...)
}

func (a *App) runSetup(ctx context.Context) error {
	path, settings, err := a.loadSettings()
	if err != nil {
		return err
	}

	baseURL := a.backendURL(settings)
	c := a.newClient(baseURL, "")

	fmt.Fprintf(a.stdout, "\n  Claude AFK pairing\n  -> %s\n\n", baseURL)

	initiated, err := c.InitiatePairing(ctx)
	if err != nil {
		return fmt.Errorf("initiate pairing: %w", err)
	}

	pairingURL := initiated.PairingURL
	if pairingURL == "" {
		pairingURL = c.PairingURL(initiated.PairingToken)
	}
	fmt.Fprintf(a.stdout, "  Scan this QR code on your phone:\n\n")
	qrterminal.GenerateHalfBlock(pairingURL, qrterminal.L, a.stdout)
	fmt.Fprintf(a.stdout, "\n  Or open this link:\n\n    %s\n\n  Waiting for pairing... (Ctrl+C to cancel)\n", pairingURL)

	start := a.now()
	for {
		if a.now().Sub(start) > a.pairingTimeout {
			fmt.Fprintf(a.stdout, "\n  Pairing timed out after %s\n", a.pairingTimeout)
			return errors.New("pairing timed out")
		}
		if err := sleep(ctx, a.pairingPoll); err != nil {
			return err
		}

		status, err := c.PairingStatus(ctx, initiated.PairingID)
		if err != nil {
			return fmt.Errorf("poll pairing status: %w", err)
		}
		if !status.Complete {
			continue
		}
		if status.DeviceToken == nil || *status.DeviceToken == "" {
			return errors.New("pairing completed but no device token received")
		}

		settings.DeviceToken = status.DeviceToken
		settings.BackendURL = baseURL
		settings.Active = true
		if err := SaveSettings(path, settings); err != nil {
			return err
		}

		fmt.Fprintf(a.stdout, "\n  Pairing successful. Notifications are now enabled.\n\n")
		return nil
	}
}

func (a *App) runStatus() error {
	_, settings, err := a.loadSettings()
	if err != nil {
		return err
	}

	device := "Not paired"
	if settings.Paired() {
		device = "Paired"
	}
	notifications := "Inactive"
	if settings.Active {
		notifications = "Active"
	}

	fmt.Fprintf(a.stdout, "\n  Claude AFK status\n\n  Device          %s\n  Notifications   %s\n  Backend         %s\n",
		device, notifications, a.backendURL(settings))

	switch {
	case !settings.Paired():
		fmt.Fprintf(a.stdout, "\n  Tip: run 'claude-afk setup' to pair a device\n")
	case !settings.Active:
		fmt.Fprintf(a.stdout, "\n  Tip: run 'claude-afk activate' to enable notifications\n")
	}
	fmt.Fprintln(a.stdout)
	return nil
}

func (a *App) runActivate() error {
	path, settings, err := a.loadSettings()
	if err != nil {
		return err
	}
	if !settings.Paired() {
		return errors.New("no device paired, run 'claude-afk setup' first")
	}
	if settings.Active {
		fmt.Fprintln(a.stdout, "Notifications are already active")
		return nil
	}

	settings.Active = true
	if err := SaveSettings(path, settings); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Notifications activated")
	return nil
}

func (a *App) runDeactivate() error {
	path, settings, err := a.loadSettings()
	if err != nil {
		return err
	}
	if !settings.Active {
		fmt.Fprintln(a.stdout, "Notifications are already inactive")
		return nil
	}

	settings.Active = false
	if err := SaveSettings(path, settings); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Notifications deactivated")
	return nil
}

func (a *App) runClear() error {
	path, settings, err := a.loadSettings()
	if err != nil {
		return err
	}
	if !settings.Paired() {
		fmt.Fprintln(a.stdout, "No device pairing to clear")
		return nil
	}

	settings.DeviceToken = nil
	settings.Active = false
	if err := SaveSettings(path, settings); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Device pairing cleared")
	return nil
}

// runNotify returns 0 to let the terminal prompt proceed and 1 when the
// remote path failed or timed out.
func (a *App) runNotify(ctx context.Context, args []string) int {
	_, settings, err := a.loadSettings()
	if err != nil {
		log.Error().Err(err).Msg("failed to load settings")
		return 1
	}
	if !settings.Paired() || !settings.Active {
		return 0
	}

	var input []byte
	if len(args) > 0 {
		input = []byte(args[0])
	} else {
		input, err = io.ReadAll(a.stdin)
		if err != nil {
			log.Error().Err(err).Msg("failed to read hook input")
			return 1
		}
	}

	var envelope hookEnvelope
	if err := json.Unmarshal(input, &envelope); err != nil {
		log.Error().Err(err).Msg("failed to parse hook input")
		return 1
	}

	c := a.newClient(a.backendURL(settings), *settings.DeviceToken)

	switch envelope.HookEventName {
	case HookNotification:
		return a.handleNotification(ctx, c, input)
	case HookPermissionRequest:
		return a.handlePermissionRequest(ctx, c, input)
	default:
		log.Error().Str("event", envelope.HookEventName).Msg("unknown hook event")
		return 1
	}
}

func (a *App) handleNotification(ctx context.Context, c *client.Client, input []byte) int {
	var n notificationInput
	if err := json.Unmarshal(input, &n); err != nil {
		log.Error().Err(err).Msg("failed to parse Notification input")
		return 1
	}
	if n.NotificationType != NotificationIdlePrompt {
		return 0
	}

	if err := c.NotifySimple(ctx, idleTitle, n.Message); err != nil {
		log.Error().Err(err).Msg("failed to send notification")
	}
	return 0
}

func (a *App) handlePermissionRequest(ctx context.Context, c *client.Client, input []byte) int {
	var req permissionRequestInput
	if err := json.Unmarshal(input, &req); err != nil {
		log.Error().Err(err).Msg("failed to parse PermissionRequest input")
		return 1
	}

	toolUseID := uuid.NewString()
	if req.ToolUseID != nil && *req.ToolUseID != "" {
		toolUseID = *req.ToolUseID
	}

	title, message := FormatTool(req.ToolName, req.ToolInput)
	notified, err := c.Notify(ctx, client.NotifyRequest{
		Title:     title,
		Message:   message,
		ToolUseID: toolUseID,
		SessionID: req.SessionID,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to send notification")
		return 1
	}

	logger := log.With().Str("decisionId", notified.DecisionID).Str("toolUseId", toolUseID).Logger()

	start := a.now()
	for {
		if a.now().Sub(start) > a.decisionTimeout {
			logger.Warn().Msg("decision timed out")
			return 1
		}
		if err := sleep(ctx, a.decisionPoll); err != nil {
			return 1
		}

		status, err := c.DecisionStatus(ctx, notified.DecisionID)
		if err != nil {
			logger.Error().Err(err).Msg("failed to poll decision status")
			return 1
		}

		switch status.Status {
		case model.DecisionStatusPending:
			logger.Debug().Msg("decision pending")
			continue
		case model.DecisionStatusDecided:
			return a.applyDecision(status.Decision)
		default:
			logger.Warn().Str("status", string(status.Status)).Msg("decision not resolved, falling back to terminal prompt")
			return 1
		}
	}
}

func (a *App) applyDecision(decision *model.DecisionOutcome) int {
	if decision == nil {
		log.Error().Msg("decided status without a decision")
		return 1
	}

	switch *decision {
	case model.DecisionAllow:
		if err := json.NewEncoder(a.stdout).Encode(allowOutput()); err != nil {
			log.Error().Err(err).Msg("failed to write hook output")
			return 1
		}
		return 0
	case model.DecisionDismiss:
		return 0
	default:
		log.Error().Str("decision", string(*decision)).Msg("unknown decision")
		return 1
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
