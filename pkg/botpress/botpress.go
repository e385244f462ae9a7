// Package botpress talks to a Botpress Cloud bot through its webhook and the
// Chat and Admin APIs.
package botpress

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

	"github.com/fsandov/botpress-simulator/pkg/client"
	"github.com/fsandov/botpress-simulator/pkg/logs"
	"go.uber.org/zap"
)

const (
	DefaultReply          = "Sorry, I could not process your request."
	DefaultAPIURL         = "https://api.botpress.cloud"
	DefaultChatURL        = "https://chat.botpress.cloud"
	DefaultRequestTimeout = 30 * time.Second

	// errorBodyLimit bounds how much of a refused Chat or Admin API answer
	// is kept for the operator.
	errorBodyLimit = 512
)

type Config struct {
	// WebhookURL receives simulated user messages.
	WebhookURL string
	// BotID and Token authorise Admin API calls.
	BotID string
	Token string
	// WebhookID and Secret address the Chat API.
	WebhookID string
	Secret    string
	APIURL    string
	ChatURL   string
	Timeout   time.Duration
}

func (c *Config) applyDefaults() {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.ChatURL == "" {
		c.ChatURL = DefaultChatURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultRequestTimeout
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	c.ChatURL = strings.TrimRight(c.ChatURL, "/")
}

func (c *Config) adminConversationsURL() string {
	return c.APIURL + "/v1/chat/conversations"
}

func (c *Config) chatURL(resource string) string {
	return c.ChatURL + "/" + c.WebhookID + "/" + resource
}

// apiEndpoints returns per-call settings that keep the start of a refused
// Chat or Admin API body. Webhook calls use the defaults.
func (c *Config) apiEndpoints(defaults *client.EndpointSettings) client.EndpointConfig {
	paths := map[string]bool{}
	for _, raw := range []string{c.adminConversationsURL(), c.chatURL("users"), c.chatURL("conversations")} {
		if u, err := url.Parse(raw); err == nil {
			paths[u.Path] = true
		}
	}
	api := *defaults
	api.ErrorBodyLimit = errorBodyLimit
	return func(method, path string) *client.EndpointSettings {
		if paths[path] {
			return &api
		}
		return nil
	}
}

type Client struct {
	cfg    Config
	http   *client.Client
	logger *logs.Logger
}

type Option func(*options)

type options struct {
	logger     *logs.Logger
	clientOpts []client.Option
}

func WithLogger(l *logs.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClientOptions forwards options, typically middlewares, to the
// underlying HTTP client.
func WithClientOptions(opts ...client.Option) Option {
	return func(o *options) { o.clientOpts = append(o.clientOpts, opts...) }
}

func New(cfg Config, opts ...Option) *Client {
	cfg.applyDefaults()
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logs.GetLogger()
	}
	defaults := &client.EndpointSettings{
		Timeout: cfg.Timeout,
		Headers: map[string]string{
			"Accept":       "application/json",
			"Content-Type": "application/json",
		},
	}
	clientOpts := append([]client.Option{
		client.WithDefaultSettings(defaults),
		client.WithEndpointConfig(cfg.apiEndpoints(defaults)),
	}, o.clientOpts...)
	return &Client{
		cfg:    cfg,
		http:   client.NewClient(clientOpts...),
		logger: o.logger,
	}
}

func (c *Client) Close() {
	c.http.Close()
}

type webhookPayload struct {
	Message        string         `json:"message"`
	ConversationID string         `json:"conversationId"`
	UserID         string         `json:"userId"`
	Payload        messagePayload `json:"payload"`
}

type messagePayload struct {
	Type     string         `json:"type"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

type botMessage struct {
	Text           *string `json:"text"`
	ConversationID *string `json:"conversationId"`
}

// Send posts one user message to the webhook and returns the bot's reply and
// the conversation id it answered in, which falls back to conversationID.
func (c *Client) Send(ctx context.Context, message, userID, conversationID string) (string, string, error) {
	if c.cfg.WebhookURL == "" {
		return "", conversationID, fmt.Errorf("%w: webhook url", ErrNotConfigured)
	}
	body, err := json.Marshal(webhookPayload{
		Message:        message,
		ConversationID: conversationID,
		UserID:         userID,
		Payload: messagePayload{
			Type:     "text",
			Text:     message,
			Metadata: map[string]any{},
		},
	})
	if err != nil {
		return "", conversationID, fmt.Errorf("botpress: marshal payload: %w", err)
	}

	c.logger.Debug(ctx, "sending request to Botpress",
		zap.String("url", c.cfg.WebhookURL),
		zap.ByteString("payload", body),
	)

	data, status, err := c.post(ctx, c.cfg.WebhookURL, body, nil)
	if err != nil {
		return "", conversationID, err
	}
	if status != http.StatusOK {
		return "", conversationID, &StatusError{StatusCode: status}
	}
	if len(data) == 0 {
		return "", conversationID, ErrEmptyResponse
	}

	c.logger.Debug(ctx, "Botpress response", zap.ByteString("body", data))

	msg, err := firstMessage(data)
	if err != nil {
		return "", conversationID, &DecodeError{Err: err}
	}
	reply := DefaultReply
	if msg.Text != nil {
		reply = *msg.Text
	}
	if msg.ConversationID != nil {
		conversationID = *msg.ConversationID
	}
	return reply, conversationID, nil
}

// firstMessage accepts either a single message object or a list of them, in
// which case only the first counts. An empty list yields an empty message.
func firstMessage(data []byte) (botMessage, error) {
	var msg botMessage
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []botMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return msg, err
		}
		if len(list) > 0 {
			msg = list[0]
		}
		return msg, nil
	}
	err := json.Unmarshal(trimmed, &msg)
	return msg, err
}

// CreateConversation creates a conversation through the Admin API.
func (c *Client) CreateConversation(ctx context.Context) (json.RawMessage, error) {
	if c.cfg.Token == "" || c.cfg.BotID == "" {
		return nil, fmt.Errorf("%w: token and bot id", ErrNotConfigured)
	}
	return c.postJSON(ctx, c.cfg.adminConversationsURL(), nil, map[string]string{
		"Authorization": "Bearer " + c.cfg.Token,
		"x-bot-id":      c.cfg.BotID,
	})
}

type User struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name,omitempty"`
	PictureURL string `json:"pictureUrl,omitempty"`
	Profile    string `json:"profile,omitempty"`
}

// CreateUser registers a user with the Chat API.
func (c *Client) CreateUser(ctx context.Context, u User) (json.RawMessage, error) {
	if c.cfg.WebhookID == "" {
		return nil, fmt.Errorf("%w: webhook id", ErrNotConfigured)
	}
	body, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("botpress: marshal user: %w", err)
	}
	return c.postJSON(ctx, c.cfg.chatURL("users"), body, nil)
}

// OpenConversation opens a conversation with the Chat API using the shared secret.
func (c *Client) OpenConversation(ctx context.Context) (json.RawMessage, error) {
	if c.cfg.WebhookID == "" || c.cfg.Secret == "" {
		return nil, fmt.Errorf("%w: webhook id and secret", ErrNotConfigured)
	}
	return c.postJSON(ctx, c.cfg.chatURL("conversations"), nil, map[string]string{
		"x-bp-secret": c.cfg.Secret,
	})
}

func (c *Client) postJSON(ctx context.Context, url string, body []byte, headers map[string]string) (json.RawMessage, error) {
	data, _, err := c.post(ctx, url, body, headers)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyResponse
	}
	if !json.Valid(data) {
		return nil, &DecodeError{Err: fmt.Errorf("invalid JSON body: %.64q", data)}
	}
	return json.RawMessage(data), nil
}

func (c *Client) post(ctx context.Context, url string, body []byte, headers map[string]string) ([]byte, int, error) {
	resp, cErr := c.http.Post(ctx, url, body, headers)
	if cErr != nil {
		if cErr.IsStatus() {
			return nil, cErr.StatusCode, &StatusError{StatusCode: cErr.StatusCode, Body: string(cErr.Body)}
		}
		if cErr.Err != nil {
			return nil, 0, &NetworkError{Err: cErr.Err}
		}
		return nil, 0, &NetworkError{Err: cErr}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &NetworkError{Err: err}
	}
	return data, resp.StatusCode, nil
}
