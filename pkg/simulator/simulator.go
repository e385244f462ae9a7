// Package simulator serves the message endpoint a Botpress client talks to
// and relays each message to the bot.
package simulator

import (
	"context"
	"errors"

	"github.com/fsandov/botpress-simulator/pkg/logs"
	"github.com/fsandov/botpress-simulator/pkg/paginate"
	"github.com/fsandov/botpress-simulator/pkg/transcript"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	DefaultUserID         = "simulator_user"
	DefaultConversationID = "default_conversation"
)

// MessageRequest is the body of POST /api/message. Absent fields take the
// defaults above.
type MessageRequest struct {
	Message        *string `json:"message"`
	UserID         *string `json:"user_id"`
	ConversationID *string `json:"conversationId"`
}

type MessageResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversationId"`
	UserID         string `json:"user_id"`
}

// TranscriptStore is the part of *transcript.Store the service uses.
type TranscriptStore interface {
	Record(ctx context.Context, e *transcript.Exchange) error
	List(ctx context.Context, userID string) (*paginate.PaginatedResponse[transcript.Exchange], error)
}

type Service struct {
	forwarder     Forwarder
	conversations *Conversations
	transcripts   TranscriptStore
	logger        *logs.Logger
	messages      *prometheus.CounterVec
}

type Option func(*Service)

func WithConversations(c *Conversations) Option {
	return func(s *Service) { s.conversations = c }
}

func WithTranscripts(t TranscriptStore) Option {
	return func(s *Service) { s.transcripts = t }
}

func WithLogger(l *logs.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithRegisterer counts handled messages by outcome on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Service) {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simulator",
			Name:      "messages_total",
			Help:      "Messages relayed to the bot by outcome.",
		}, []string{"outcome"})
		if err := reg.Register(vec); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(err)
			}
			vec = are.ExistingCollector.(*prometheus.CounterVec)
		}
		s.messages = vec
	}
}

func NewService(fwd Forwarder, opts ...Option) *Service {
	if fwd == nil {
		fwd = EchoForwarder{}
	}
	s := &Service{forwarder: fwd}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logs.GetLogger()
	}
	return s
}

// HandleMessage relays one message. Forwarding failures do not fail the call:
// they become the reply text and the conversation id is left unchanged.
func (s *Service) HandleMessage(ctx context.Context, req MessageRequest) MessageResponse {
	message := valueOr(req.Message, "")
	userID := valueOr(req.UserID, DefaultUserID)
	conversationID := DefaultConversationID
	if req.ConversationID != nil {
		conversationID = *req.ConversationID
	} else if s.conversations != nil {
		if id, ok := s.conversations.Lookup(ctx, userID); ok {
			conversationID = id
		}
	}

	s.logger.Info(ctx, "Received from client",
		zap.String("message", message),
		zap.String("user_id", userID),
		zap.String("conversation_id", conversationID),
	)

	reply, newConversationID, err := s.forwarder.Send(ctx, message, userID, conversationID)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		s.logger.Warn(ctx, "forwarding failed", zap.Error(err), zap.String("user_id", userID))
		reply = replyForError(err)
		newConversationID = conversationID
	} else if s.conversations != nil {
		if err := s.conversations.Remember(ctx, userID, newConversationID); err != nil {
			s.logger.Warn(ctx, "failed to remember conversation", zap.Error(err), zap.String("user_id", userID))
		}
	}
	if s.messages != nil {
		s.messages.WithLabelValues(outcome).Inc()
	}

	s.logger.Info(ctx, "Bot response",
		zap.String("response", reply),
		zap.String("conversation_id", newConversationID),
	)

	if s.transcripts != nil {
		if err := s.transcripts.Record(ctx, &transcript.Exchange{
			UserID:         userID,
			ConversationID: newConversationID,
			Message:        message,
			Response:       reply,
		}); err != nil {
			s.logger.Warn(ctx, "failed to record transcript", zap.Error(err))
		}
	}

	return MessageResponse{
		Response:       reply,
		ConversationID: newConversationID,
		UserID:         userID,
	}
}

func valueOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}
