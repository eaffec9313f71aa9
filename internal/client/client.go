package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/claude-afk/afk/internal/model"
)

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx response from the relay.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("relay returned %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("relay returned %d: %s", e.Status, e.Message)
}

type InitiateResponse struct {
	PairingID    string `json:"pairingId"`
	PairingToken string `json:"pairingToken"`
	PairingURL   string `json:"pairingUrl,omitempty"`
}

type PairingStatusResponse struct {
	Complete    bool    `json:"complete"`
	DeviceToken *string `json:"deviceToken"`
}

type NotifyRequest struct {
	Title     string `json:"title,omitempty"`
	Message   string `json:"message"`
	ToolUseID string `json:"tool_use_id"`
	SessionID string `json:"session_id"`
}

type NotifyResponse struct {
	Success    bool   `json:"success"`
	DecisionID string `json:"decisionId"`
}

type DecisionStatusResponse struct {
	Status   model.DecisionStatus   `json:"status"`
	Decision *model.DecisionOutcome `json:"decision"`
}

type SubmitResponse struct {
	Success  bool                   `json:"success"`
	Decision *model.DecisionOutcome `json:"decision,omitempty"`
	Message  string                 `json:"message,omitempty"`
}

type Client struct {
	baseURL     string
	deviceToken string
	http        *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithDeviceToken(token string) Option {
	return func(c *Client) { c.deviceToken = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PairingURL is the page a device opens to enroll.
func (c *Client) PairingURL(pairingToken string) string {
	return fmt.Sprintf("%s/pair/%s", c.baseURL, pairingToken)
}

func (c *Client) InitiatePairing(ctx context.Context) (*InitiateResponse, error) {
	var out InitiateResponse
	if err := c.do(ctx, http.MethodPost, "/pairing/initiate", nil, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PairingStatus(ctx context.Context, pairingID string) (*PairingStatusResponse, error) {
	var out PairingStatusResponse
	path := "/pairing/" + url.PathEscape(pairingID) + "/status"
	if err := c.do(ctx, http.MethodGet, path, nil, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CompletePairing(ctx context.Context, pairingToken string, sub model.PushSubscription) error {
	body := struct {
		Subscription model.PushSubscription `json:"subscription"`
	}{Subscription: sub}
	path := "/pairing/" + url.PathEscape(pairingToken) + "/complete"
	return c.do(ctx, http.MethodPost, path, body, false, nil)
}

func (c *Client) VAPIDPublicKey(ctx context.Context) (string, error) {
	var out struct {
		PublicKey string `json:"publicKey"`
	}
	if err := c.do(ctx, http.MethodGet, "/vapid-public-key", nil, false, &out); err != nil {
		return "", err
	}
	return out.PublicKey, nil
}

func (c *Client) Notify(ctx context.Context, req NotifyRequest) (*NotifyResponse, error) {
	var out NotifyResponse
	if err := c.do(ctx, http.MethodPost, "/notify", req, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) NotifySimple(ctx context.Context, title, message string) error {
	body := struct {
		Title   string `json:"title,omitempty"`
		Message string `json:"message"`
	}{Title: title, Message: message}
	return c.do(ctx, http.MethodPost, "/notify/simple", body, true, nil)
}

func (c *Client) DecisionStatus(ctx context.Context, decisionID string) (*DecisionStatusResponse, error) {
	var out DecisionStatusResponse
	path := "/decision/" + url.PathEscape(decisionID) + "/status"
	if err := c.do(ctx, http.MethodGet, path, nil, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SubmitDecision(ctx context.Context, decisionID, toolUseID string, decision model.DecisionOutcome) (*SubmitResponse, error) {
	body := struct {
		Decision  model.DecisionOutcome `json:"decision"`
		ToolUseID string                `json:"toolUseId"`
	}{Decision: decision, ToolUseID: toolUseID}

	var out SubmitResponse
	path := "/decision/" + url.PathEscape(decisionID) + "/submit"
	if err := c.do(ctx, http.MethodPost, path, body, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Submit satisfies device.Submitter. A 200 with success=false (expired) is
// reported as an error so the caller can log it.
func (c *Client) Submit(ctx context.Context, decisionID, toolUseID string, decision model.DecisionOutcome) error {
	res, err := c.SubmitDecision(ctx, decisionID, toolUseID, decision)
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("decision %s not recorded: %s", decisionID, res.Message)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in any, auth bool, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.deviceToken)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("relay request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	return apiErr
}
