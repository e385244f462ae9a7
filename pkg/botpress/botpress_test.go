package botpress

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fsandov/botpress-simulator/pkg/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captured struct {
	method  string
	path    string
	headers http.Header
	body    []byte
}

func newBotpress(t *testing.T, status int, reply string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.method = r.Method
		c.path = r.URL.Path
		c.headers = r.Header.Clone()
		c.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func newClient(cfg Config) *Client {
	return New(cfg, WithLogger(logs.New(zap.NewNop())))
}

func TestSendPayloadShape(t *testing.T) {
	srv, got := newBotpress(t, http.StatusOK, `{"text":"hi"}`)
	c := newClient(Config{WebhookURL: srv.URL + "/hook"})

	_, _, err := c.Send(context.Background(), "Hello", "u1", "conv-1")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/hook", got.path)
	assert.Equal(t, "application/json", got.headers.Get("Content-Type"))
	assert.Equal(t, "application/json", got.headers.Get("Accept"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(got.body, &body))
	assert.Equal(t, "Hello", body["message"])
	assert.Equal(t, "conv-1", body["conversationId"])
	assert.Equal(t, "u1", body["userId"])
	assert.Equal(t, map[string]any{"type": "text", "text": "Hello", "metadata": map[string]any{}}, body["payload"])
}

func TestSendReplyShapes(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantText string
		wantConv string
	}{
		{"object", `{"text":"hello","conversationId":"c-9"}`, "hello", "c-9"},
		{"object without conversation", `{"text":"hello"}`, "hello", "c-1"},
		{"object without text", `{"conversationId":"c-9"}`, DefaultReply, "c-9"},
		{"list uses first element", `[{"text":"first","conversationId":"c-2"},{"text":"second"}]`, "first", "c-2"},
		{"empty list", `[]`, DefaultReply, "c-1"},
		{"leading whitespace list", "  \n[{\"text\":\"ws\"}]", "ws", "c-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newBotpress(t, http.StatusOK, tt.body)
			c := newClient(Config{WebhookURL: srv.URL})

			reply, conv, err := c.Send(context.Background(), "m", "u", "c-1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, reply)
			assert.Equal(t, tt.wantConv, conv)
		})
	}
}

func TestSendErrors(t *testing.T) {
	t.Run("non-200 success status", func(t *testing.T) {
		srv, _ := newBotpress(t, http.StatusAccepted, `{"text":"x"}`)
		_, conv, err := newClient(Config{WebhookURL: srv.URL}).Send(context.Background(), "m", "u", "c-1")
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusAccepted, statusErr.StatusCode)
		assert.Equal(t, "c-1", conv)
	})

	t.Run("server error", func(t *testing.T) {
		srv, _ := newBotpress(t, http.StatusBadGateway, `oops`)
		_, _, err := newClient(Config{WebhookURL: srv.URL}).Send(context.Background(), "m", "u", "c-1")
		assert.EqualError(t, err, "Botpress returned status code 502")
	})

	t.Run("empty body", func(t *testing.T) {
		srv, _ := newBotpress(t, http.StatusOK, ``)
		_, _, err := newClient(Config{WebhookURL: srv.URL}).Send(context.Background(), "m", "u", "c-1")
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})

	t.Run("invalid json", func(t *testing.T) {
		srv, _ := newBotpress(t, http.StatusOK, `not json`)
		_, _, err := newClient(Config{WebhookURL: srv.URL}).Send(context.Background(), "m", "u", "c-1")
		var decodeErr *DecodeError
		assert.ErrorAs(t, err, &decodeErr)
	})

	t.Run("connection refused", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		ln.Close()

		_, _, err = newClient(Config{WebhookURL: "http://" + addr}).Send(context.Background(), "m", "u", "c-1")
		var netErr *NetworkError
		assert.ErrorAs(t, err, &netErr)
	})

	t.Run("missing webhook", func(t *testing.T) {
		_, conv, err := newClient(Config{}).Send(context.Background(), "m", "u", "c-1")
		assert.ErrorIs(t, err, ErrNotConfigured)
		assert.Equal(t, "c-1", conv)
	})
}

func TestCreateConversation(t *testing.T) {
	srv, got := newBotpress(t, http.StatusOK, `{"conversation":{"id":"conv-123"}}`)
	c := newClient(Config{APIURL: srv.URL + "/", Token: "bp_pat_x", BotID: "bot-1"})

	raw, err := c.CreateConversation(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"conversation":{"id":"conv-123"}}`, string(raw))
	assert.Equal(t, "/v1/chat/conversations", got.path)
	assert.Equal(t, "Bearer bp_pat_x", got.headers.Get("Authorization"))
	assert.Equal(t, "bot-1", got.headers.Get("x-bot-id"))
	assert.Empty(t, got.body)
}

func TestCreateConversationRequiresCredentials(t *testing.T) {
	_, err := newClient(Config{Token: "t"}).CreateConversation(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCreateUser(t *testing.T) {
	srv, got := newBotpress(t, http.StatusOK, `{"user":{"id":"prmods"},"key":"k"}`)
	c := newClient(Config{ChatURL: srv.URL, WebhookID: "wh-1"})

	raw, err := c.CreateUser(context.Background(), User{ID: "prmods", Name: "Pranav", PictureURL: "pic", Profile: "my profile"})
	require.NoError(t, err)
	assert.Contains(t, string(raw), "prmods")
	assert.Equal(t, "/wh-1/users", got.path)

	var body map[string]string
	require.NoError(t, json.Unmarshal(got.body, &body))
	assert.Equal(t, map[string]string{"id": "prmods", "name": "Pranav", "pictureUrl": "pic", "profile": "my profile"}, body)
}

func TestOpenConversation(t *testing.T) {
	srv, got := newBotpress(t, http.StatusCreated, `{"conversation":{"id":"c"}}`)
	c := newClient(Config{ChatURL: srv.URL, WebhookID: "wh-1", Secret: "mypass"})

	_, err := c.OpenConversation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/wh-1/conversations", got.path)
	assert.Equal(t, "mypass", got.headers.Get("x-bp-secret"))
}

func TestChatAPIStatusError(t *testing.T) {
	srv, _ := newBotpress(t, http.StatusUnauthorized, `{"message":"nope"}`)
	c := newClient(Config{ChatURL: srv.URL, WebhookID: "wh-1", Secret: "bad"})

	_, err := c.OpenConversation(context.Background())
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, `{"message":"nope"}`, statusErr.Body)
	assert.EqualError(t, err, `Botpress returned status code 401: {"message":"nope"}`)
}

func TestAdminAPIStatusErrorBodyIsBounded(t *testing.T) {
	long := strings.Repeat("x", 2*errorBodyLimit)
	srv, _ := newBotpress(t, http.StatusForbidden, long)
	c := newClient(Config{APIURL: srv.URL, Token: "t", BotID: "b"})

	_, err := c.CreateConversation(context.Background())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Len(t, statusErr.Body, errorBodyLimit)
}

func TestWebhookStatusErrorHasNoBody(t *testing.T) {
	srv, _ := newBotpress(t, http.StatusUnauthorized, `{"message":"nope"}`)
	c := newClient(Config{WebhookURL: srv.URL + "/hook", ChatURL: srv.URL, WebhookID: "wh-1"})

	_, _, err := c.Send(context.Background(), "m", "u", "c-1")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Empty(t, statusErr.Body)
}

func TestChatAPIInvalidBody(t *testing.T) {
	srv, _ := newBotpress(t, http.StatusOK, `<html>`)
	c := newClient(Config{ChatURL: srv.URL, WebhookID: "wh-1"})

	_, err := c.CreateUser(context.Background(), User{ID: "u"})
	var decodeErr *DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()
	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, DefaultChatURL, cfg.ChatURL)
	assert.Equal(t, DefaultRequestTimeout, cfg.Timeout)
}
