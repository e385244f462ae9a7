// Command botpress calls the Botpress Chat and Admin APIs directly:
//
//	botpress create-user -id prmods -name Pranav
//	botpress create-conversation
//	botpress open-conversation
//	botpress send -user u1 -conversation c1 "Hello there!"
//
// Endpoints and credentials come from the same BOTPRESS_* variables the
// simulator reads.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fsandov/botpress-simulator/pkg/botpress"
	"github.com/fsandov/botpress-simulator/pkg/client"
	"github.com/fsandov/botpress-simulator/pkg/config"
	"github.com/fsandov/botpress-simulator/pkg/env"
	"github.com/fsandov/botpress-simulator/pkg/logs"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var errUsage = errors.New("usage")

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr))
}

func run(ctx context.Context, args []string, usageOut io.Writer) int {
	envErr := env.Load()
	logger := logs.NewLogger(logs.Options{Level: logs.CapLevel(os.Getenv("LOG_LEVEL"), zapcore.InfoLevel), Plain: true})
	defer logger.Sync()

	if envErr != nil {
		logger.Error(ctx, "failed to load .env", zap.Error(envErr))
		return exitUsage
	}
	var cfg config.BotpressConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logger.Error(ctx, "invalid configuration", zap.Error(err))
		return exitUsage
	}

	bp := botpress.New(botpress.Config{
		WebhookURL: cfg.WebhookURL,
		BotID:      cfg.BotID,
		Token:      cfg.Token,
		WebhookID:  cfg.WebhookID,
		Secret:     cfg.Secret,
		APIURL:     cfg.APIURL,
		ChatURL:    cfg.ChatURL,
	}, botpress.WithLogger(logger), botpress.WithClientOptions(
		client.WithMiddleware(client.RequestIDMiddleware()),
	))
	defer bp.Close()

	out, err := dispatch(ctx, bp, args, usageOut)
	if errors.Is(err, errUsage) {
		return exitUsage
	}
	if err != nil {
		logger.Error(ctx, "Error: "+err.Error())
		return exitError
	}
	logger.Info(ctx, out)
	return exitOK
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: botpress <create-user|create-conversation|open-conversation|send> [flags]")
}

func dispatch(ctx context.Context, bp *botpress.Client, args []string, usageOut io.Writer) (string, error) {
	if len(args) == 0 {
		usage(usageOut)
		return "", errUsage
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(usageOut)

	switch args[0] {
	case "create-user":
		var u botpress.User
		fs.StringVar(&u.ID, "id", "", "user id")
		fs.StringVar(&u.Name, "name", "", "display name")
		fs.StringVar(&u.PictureURL, "picture", "", "picture url")
		fs.StringVar(&u.Profile, "profile", "", "profile text")
		if err := fs.Parse(args[1:]); err != nil {
			return "", errUsage
		}
		return pretty(bp.CreateUser(ctx, u))

	case "create-conversation":
		if err := fs.Parse(args[1:]); err != nil {
			return "", errUsage
		}
		return pretty(bp.CreateConversation(ctx))

	case "open-conversation":
		if err := fs.Parse(args[1:]); err != nil {
			return "", errUsage
		}
		return pretty(bp.OpenConversation(ctx))

	case "send":
		userID := fs.String("user", "simulator_user", "user id")
		conversationID := fs.String("conversation", "cli_conversation", "conversation id")
		if err := fs.Parse(args[1:]); err != nil {
			return "", errUsage
		}
		if fs.NArg() == 0 {
			fmt.Fprintln(usageOut, "send: message is required")
			return "", errUsage
		}
		reply, conv, err := bp.Send(ctx, strings.Join(fs.Args(), " "), *userID, *conversationID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Bot: %s\nConversationId: %s", reply, conv), nil

	default:
		usage(usageOut)
		return "", errUsage
	}
}

func pretty(raw json.RawMessage, err error) (string, error) {
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw), nil
	}
	return buf.String(), nil
}
