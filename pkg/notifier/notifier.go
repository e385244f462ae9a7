// Package notifier sends a single message to the simulator endpoint and
// reports the bot's reply.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/fsandov/botpress-simulator/pkg/client"
	"github.com/fsandov/botpress-simulator/pkg/logs"
	"go.uber.org/zap"
)

const (
	DefaultEndpointURL = "http://localhost:5000/api/message"
	DefaultMessage     = "Hello there!"
	DefaultUserID      = "botpress_user"

	successPrefix = "Bot response: "
	failurePrefix = "Error calling simulator: "
)

type Config struct {
	EndpointURL string
	Message     string
	UserID      string
}

func DefaultConfig() Config {
	return Config{
		EndpointURL: DefaultEndpointURL,
		Message:     DefaultMessage,
		UserID:      DefaultUserID,
	}
}

// OutboundMessage is the request body.
type OutboundMessage struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

type inboundBody struct {
	Response string `json:"response"`
}

// InboundResult is the outcome of one exchange: either Response or Err is meaningful.
type InboundResult struct {
	Response string
	Err      error
}

func (r InboundResult) OK() bool { return r.Err == nil }

// Poster is the subset of *client.Client the notifier depends on.
type Poster interface {
	Post(ctx context.Context, path string, body []byte, headers map[string]string) (*http.Response, *client.Error)
}

type Notifier struct {
	cfg    Config
	poster Poster
	logger *logs.Logger
}

type Option func(*Notifier)

func WithPoster(p Poster) Option {
	return func(n *Notifier) { n.poster = p }
}

func WithLogger(l *logs.Logger) Option {
	return func(n *Notifier) { n.logger = l }
}

func New(cfg Config, opts ...Option) *Notifier {
	n := &Notifier{cfg: cfg}
	for _, opt := range opts {
		opt(n)
	}
	if n.poster == nil {
		n.poster = client.NewClient()
	}
	if n.logger == nil {
		n.logger = logs.GetLogger()
	}
	return n
}

// SendMessage posts {message, user_id} to the configured endpoint once and
// returns the "response" field of the reply. Errors are *TransportError,
// *HTTPStatusError or *DecodeError.
func (n *Notifier) SendMessage(ctx context.Context, message, userID string) (string, error) {
	payload, err := json.Marshal(OutboundMessage{Message: message, UserID: userID})
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}

	resp, cErr := n.poster.Post(ctx, n.cfg.EndpointURL, payload, map[string]string{
		"Content-Type": "application/json",
	})
	if cErr != nil {
		if cErr.IsStatus() {
			return "", &HTTPStatusError{StatusCode: cErr.StatusCode}
		}
		if cErr.Err != nil {
			return "", &TransportError{Err: cErr.Err}
		}
		return "", &TransportError{Err: cErr}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	var body inboundBody
	if err := json.Unmarshal(data, &body); err != nil {
		return "", &DecodeError{Err: err}
	}
	return body.Response, nil
}

// Exchange sends the configured message and user id.
func (n *Notifier) Exchange(ctx context.Context) InboundResult {
	n.logger.Debug(ctx, "sending message to simulator",
		zap.String("endpoint", n.cfg.EndpointURL),
		zap.String("user_id", n.cfg.UserID),
	)
	reply, err := n.SendMessage(ctx, n.cfg.Message, n.cfg.UserID)
	if err != nil {
		return InboundResult{Err: err}
	}
	return InboundResult{Response: reply}
}

// Run performs one exchange and writes exactly one line for its outcome:
// the reply at info level or the failure at error level.
func (n *Notifier) Run(ctx context.Context) InboundResult {
	res := n.Exchange(ctx)
	n.Report(ctx, res)
	return res
}

func (n *Notifier) Report(ctx context.Context, res InboundResult) {
	if res.Err != nil {
		n.logger.Error(ctx, failurePrefix+res.Err.Error())
		return
	}
	n.logger.Info(ctx, successPrefix+res.Response)
}
