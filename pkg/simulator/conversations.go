package simulator

import (
	"context"
	"errors"
	"time"

	"github.com/fsandov/botpress-simulator/pkg/cache"
)

const conversationKeyPrefix = "conversation:"

var ErrNoConversation = errors.New("no conversation stored for user")

// Conversation is the stored conversation of one user. ExpiresIn is in whole
// seconds; zero means the entry does not expire.
type Conversation struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversationId"`
	ExpiresIn      int64  `json:"expires_in"`
}

// Conversations remembers the last conversation id Botpress answered in for
// each user.
type Conversations struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewConversations(c cache.Cache, ttl time.Duration) *Conversations {
	return &Conversations{cache: c, ttl: ttl}
}

// Lookup reports the stored id for userID. Cache failures read as a miss.
func (c *Conversations) Lookup(ctx context.Context, userID string) (string, bool) {
	id, err := c.cache.Get(ctx, conversationKeyPrefix+userID)
	if err != nil || id == "" {
		return "", false
	}
	return id, true
}

// Describe returns the stored conversation and its remaining lifetime, or
// ErrNoConversation.
func (c *Conversations) Describe(ctx context.Context, userID string) (Conversation, error) {
	key := conversationKeyPrefix + userID
	id, err := c.cache.Get(ctx, key)
	if errors.Is(err, cache.ErrKeyNotFound) {
		return Conversation{}, ErrNoConversation
	}
	if err != nil {
		return Conversation{}, err
	}
	ttl, err := c.cache.TTL(ctx, key)
	if errors.Is(err, cache.ErrKeyNotFound) {
		return Conversation{}, ErrNoConversation
	}
	if err != nil {
		return Conversation{}, err
	}
	return Conversation{
		UserID:         userID,
		ConversationID: id,
		ExpiresIn:      int64(ttl.Round(time.Second) / time.Second),
	}, nil
}

func (c *Conversations) Remember(ctx context.Context, userID, conversationID string) error {
	return c.cache.Set(ctx, conversationKeyPrefix+userID, conversationID, c.ttl)
}

// Forget drops the stored id. Forgetting an unknown user is not an error.
func (c *Conversations) Forget(ctx context.Context, userID string) error {
	err := c.cache.Delete(ctx, conversationKeyPrefix+userID)
	if errors.Is(err, cache.ErrKeyNotFound) {
		return nil
	}
	return err
}
