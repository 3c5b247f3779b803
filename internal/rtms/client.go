package rtms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/chat-widget/internal/config"
	"github.com/spec-kit/chat-widget/internal/domain"
)

// Settings carries the per-widget vendor parameters derived at bootstrap.
type Settings struct {
	AppID        string
	ClientSecret string
	APIBaseURL   string
	RealtimeHost string
	AccessToken  string
	Language     string
}

// DeriveEndpoints fills APIBaseURL and RealtimeHost from a site URL unless
// explicit overrides are present. The API lives under /rtmsAPI/api/v3 on the
// site host; the push channel shares the host.
func (s *Settings) DeriveEndpoints(siteURL string) error {
	host := strings.TrimSpace(siteURL)
	if host == "" && (s.APIBaseURL == "" || s.RealtimeHost == "") {
		return errors.New("site url required when endpoint overrides are absent")
	}
	if host != "" {
		if !strings.Contains(host, "://") {
			host = "https://" + host
		}
		parsed, err := url.Parse(host)
		if err != nil || parsed.Host == "" {
			return fmt.Errorf("invalid site url %q", siteURL)
		}
		if s.APIBaseURL == "" {
			s.APIBaseURL = "https://" + parsed.Host + "/rtmsAPI/api/v3"
		}
		if s.RealtimeHost == "" {
			s.RealtimeHost = parsed.Host
		}
	}
	s.APIBaseURL = strings.TrimSuffix(s.APIBaseURL, "/")
	return nil
}

// SendOptions carries optional send parameters.
type SendOptions struct {
	RelatedTID      string
	Interactive     *RawInteractiveData
	Language        string
	ClientMessageID string
}

// Asset is the result of a file upload.
type Asset struct {
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
}

// API is the vendor REST surface the engine depends on.
type API interface {
	Register(ctx context.Context) (string, error)
	ListThreads(ctx context.Context) ([]RawThread, error)
	CreateThread(ctx context.Context) (*RawThread, error)
	DeleteThread(ctx context.Context, threadID string) error
	FetchHistory(ctx context.Context, threadID string) ([]*RawEvent, error)
	SendMessage(ctx context.Context, threadID, text string, media []RawMedia, opts SendOptions) (*RawEvent, error)
	UploadFile(ctx context.Context, fileName, contentType string, r io.Reader) (*Asset, error)
	Credentials() Credentials
}

// Credentials bundles the derived push-channel connection values.
type Credentials struct {
	Host     string
	ClientID string
	Username string
	Password string
	Topic    string
}

// Client talks to the vendor chat backend. The access token is obtained via
// guest registration and refreshed lazily when a call returns 401.
type Client struct {
	settings Settings
	identity domain.Identity
	cfg      config.VendorConfig
	http     *http.Client
	logger   *zap.Logger

	mu    sync.Mutex
	token string
}

// NewClient constructs a vendor client for one widget session.
func NewClient(settings Settings, identity domain.Identity, cfg config.VendorConfig, logger *zap.Logger) *Client {
	return &Client{
		settings: settings,
		identity: identity,
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.HTTPTimeout()},
		logger:   logger,
		token:    settings.AccessToken,
	}
}

type registerResponse struct {
	AccessToken string `json:"accessToken"`
}

// Register performs guest registration and stores the opaque access token.
func (c *Client) Register(ctx context.Context) (string, error) {
	body := map[string]any{
		"tenant":      "1",
		"userId":      c.identity.UserID,
		"channel":     "rt",
		"channelType": "web",
		"deviceId":    c.identity.DeviceID,
		"data": map[string]any{
			"update": map[string]any{
				"os":        "web",
				"osversion": "1.0",
				"language":  c.settings.Language,
			},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/%s/register", c.settings.APIBaseURL, c.settings.AppID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("secretkey", c.settings.ClientSecret)
	req.Header.Set("sdkversion", c.cfg.SDKVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("registration request: %w", err)
	}
	defer resp.Body.Close()

	var parsed registerResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("registration response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("registration failed with status %d", resp.StatusCode)
	}

	c.mu.Lock()
	c.token = parsed.AccessToken
	c.mu.Unlock()

	c.logger.Info("guest registered", zap.String("user_id", c.identity.UserID))
	return parsed.AccessToken, nil
}

type threadsResponse struct {
	Threads []RawThread `json:"threads"`
}

// ListThreads returns all threads of the registered user.
func (c *Client) ListThreads(ctx context.Context) ([]RawThread, error) {
	endpoint := fmt.Sprintf("%s/apps/%s/user/%s/threads?start=0&limit=9999",
		c.settings.APIBaseURL, c.settings.AppID, c.identity.UserID)

	var parsed threadsResponse
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &parsed); err != nil {
		return nil, err
	}
	return parsed.Threads, nil
}

type createThreadResponse struct {
	Thread *RawThread `json:"thread"`
}

// CreateThread creates a fresh conversation thread.
func (c *Client) CreateThread(ctx context.Context) (*RawThread, error) {
	endpoint := fmt.Sprintf("%s/apps/%s/threads", c.settings.APIBaseURL, c.settings.AppID)
	body := map[string]string{
		"title":  fmt.Sprintf("%d_wrapper", nowUnixMilli()),
		"type":   "Conversation",
		"status": "Active",
	}

	var parsed createThreadResponse
	if err := c.doJSON(ctx, http.MethodPost, endpoint, body, &parsed); err != nil {
		return nil, err
	}
	if parsed.Thread == nil || parsed.Thread.ID == "" {
		return nil, errors.New("create thread response missing thread")
	}
	return parsed.Thread, nil
}

// DeleteThread removes a conversation thread.
func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	endpoint := fmt.Sprintf("%s/apps/%s/threads/%s", c.settings.APIBaseURL, c.settings.AppID, threadID)
	return c.doJSON(ctx, http.MethodDelete, endpoint, nil, nil)
}

type historyResponse struct {
	Messages []*RawEvent `json:"messages"`
}

// FetchHistory returns the raw message history of one thread. Order is not
// guaranteed; callers must sort.
func (c *Client) FetchHistory(ctx context.Context, threadID string) ([]*RawEvent, error) {
	endpoint := fmt.Sprintf("%s/apps/%s/user/%s/threads/%s/messages?limit=%d",
		c.settings.APIBaseURL, c.settings.AppID, c.identity.UserID, threadID, c.cfg.HistoryLimit)

	var parsed historyResponse
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &parsed); err != nil {
		return nil, err
	}
	return parsed.Messages, nil
}

// SendMessage posts an outbound message. The clientId in the payload is the
// base client id without the token suffix; only the push channel uses the
// suffixed form.
func (c *Client) SendMessage(ctx context.Context, threadID, text string, media []RawMedia, opts SendOptions) (*RawEvent, error) {
	endpoint := fmt.Sprintf("%s/%s/mo", c.settings.APIBaseURL, c.settings.AppID)

	body := map[string]any{
		"clientId": c.baseClientID(),
		"channel":  "rt",
		"thread": map[string]string{
			"id":    threadID,
			"title": "Conversation",
			"type":  "Conversation",
		},
		"outgoing": true,
		"extras": map[string]any{
			"browserfingerprint": c.identity.UserID,
		},
	}
	if text != "" {
		body["message"] = text
	}
	if len(media) > 0 {
		body["media"] = media
	}
	if opts.RelatedTID != "" {
		body["relatedTid"] = opts.RelatedTID
	}
	if opts.Interactive != nil {
		body["interactiveData"] = opts.Interactive
	}
	if opts.Language != "" {
		body["language"] = opts.Language
	}
	if opts.ClientMessageID != "" {
		body["clientMessageId"] = opts.ClientMessageID
	}

	var parsed RawEvent
	if err := c.doJSON(ctx, http.MethodPost, endpoint, body, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// UploadFile posts a multipart asset upload and returns the stored URL.
func (c *Client) UploadFile(ctx context.Context, fileName, contentType string, r io.Reader) (*Asset, error) {
	endpoint := fmt.Sprintf("%s/apps/%s/assets", c.settings.APIBaseURL, c.settings.AppID)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, err
	}
	if err := writer.WriteField("type", "attachment"); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, err
	}
	c.setAuthHeaders(req)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upload failed with status %d", resp.StatusCode)
	}

	var asset Asset
	if err := json.NewDecoder(resp.Body).Decode(&asset); err != nil {
		return nil, fmt.Errorf("upload response: %w", err)
	}
	if asset.MimeType == "" {
		asset.MimeType = contentType
	}
	return &asset, nil
}

// Credentials returns the derived push-channel connection values. Client id
// carries the at_{token} suffix; username and topic are {appId}/{userId}.
func (c *Client) Credentials() Credentials {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	return Credentials{
		Host:     c.settings.RealtimeHost,
		ClientID: fmt.Sprintf("%s/at_%s", c.baseClientID(), token),
		Username: fmt.Sprintf("%s/%s", c.settings.AppID, c.identity.UserID),
		Password: c.settings.ClientSecret,
		Topic:    fmt.Sprintf("%s/%s", c.settings.AppID, c.identity.UserID),
	}
}

func (c *Client) baseClientID() string {
	return fmt.Sprintf("%s/%s/%s", c.settings.AppID, c.identity.UserID, c.identity.DeviceID)
}

// doJSON performs an authenticated call, re-registering and replaying once
// when the token is rejected.
func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	status, err := c.attempt(ctx, method, endpoint, body, out)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		c.logger.Warn("vendor token rejected, re-registering")
		if _, err := c.Register(ctx); err != nil {
			return err
		}
		status, err = c.attempt(ctx, method, endpoint, body, out)
		if err != nil {
			return err
		}
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("vendor call %s %s failed with status %d", method, endpoint, status)
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, method, endpoint string, body, out any) (int, error) {
	if err := c.ensureToken(ctx); err != nil {
		return 0, err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, err
	}
	c.setAuthHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("vendor request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("vendor response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) ensureToken(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		return nil
	}
	_, err := c.Register(ctx)
	return err
}

func nowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

func (c *Client) setAuthHeaders(req *http.Request) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	req.Header.Set("accesstoken", token)
	req.Header.Set("secretkey", c.settings.ClientSecret)
	req.Header.Set("sdkversion", c.cfg.SDKVersion)
}
