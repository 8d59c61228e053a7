package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/farmlabor-backend/pkg/errors"
)

const (
	sendPath                    = "send"
	defaultTimeout              = 10 * time.Second
	responseBodyReadLimit int64 = 1024
)

var errBaseURLRequired = errors.New("notifier base url is required")

// Sender is what callers depend on to reach a phone number.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
	SendTemplate(ctx context.Context, phone, contentSid string, contentVariables map[string]string) error
}

// Client posts messages to the outbound messaging endpoint. Success means the
// endpoint accepted the request; there is no delivery confirmation.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	sender     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// WithSenderName sets the "from" label when the endpoint supports one.
func WithSenderName(name string) Option {
	return func(c *Client) {
		c.sender = strings.TrimSpace(name)
	}
}

// WithTimeout replaces the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout, Transport: c.httpClient.Transport}
		}
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return client, nil
}

type plainMessage struct {
	To      string `json:"to"`
	Message string `json:"message"`
	From    string `json:"from,omitempty"`
}

type templateMessage struct {
	To               string `json:"to"`
	ContentSid       string `json:"contentSid"`
	ContentVariables string `json:"contentVariables,omitempty"`
	From             string `json:"from,omitempty"`
}

// Send delivers a free-text message.
func (c *Client) Send(ctx context.Context, phone, message string) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "notifier not configured")
	}
	to := strings.TrimSpace(phone)
	if to == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "phone is required")
	}
	if strings.TrimSpace(message) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "message is required")
	}
	return c.post(ctx, plainMessage{To: to, Message: message, From: c.sender})
}

// SendTemplate delivers a pre-approved template. Variables are encoded as a
// JSON object string, which is what template APIs expect in contentVariables.
func (c *Client) SendTemplate(ctx context.Context, phone, contentSid string, contentVariables map[string]string) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "notifier not configured")
	}
	to := strings.TrimSpace(phone)
	if to == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "phone is required")
	}
	sid := strings.TrimSpace(contentSid)
	if sid == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "content sid is required")
	}

	msg := templateMessage{To: to, ContentSid: sid, From: c.sender}
	if len(contentVariables) > 0 {
		vars, err := json.Marshal(contentVariables)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encode content variables")
		}
		msg.ContentVariables = string(vars)
	}
	return c.post(ctx, msg)
}

func (c *Client) post(ctx context.Context, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal notifier request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(sendPath), bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build notifier request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute notifier request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "notifier request failed")
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, responseBodyReadLimit))
	return nil
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
