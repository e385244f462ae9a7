package config

import (
	"errors"
	"fmt"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/fsandov/botpress-simulator/pkg/env"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrInvalidEndpoint = errors.New("config: endpoint must be an absolute http(s) URL")
	ErrInvalidPort     = errors.New("config: port is required")
)

// AppConfig carries the process-wide identity shared by every binary.
type AppConfig struct {
	AppName      string `envconfig:"APP_NAME" default:"botpress-simulator"`
	Environment  string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	Architecture string `ignored:"true"`
	OS           string `ignored:"true"`
}

// NotifierConfig configures the one-shot notifier. The defaults are the
// literals the notifier has always sent.
type NotifierConfig struct {
	AppConfig

	EndpointURL     string `envconfig:"SIMULATOR_URL" default:"http://localhost:5000/api/message"`
	Message         string `envconfig:"SIMULATOR_MESSAGE" default:"Hello there!"`
	UserID          string `envconfig:"SIMULATOR_USER_ID" default:"botpress_user"`
	MetricsTextfile string `envconfig:"METRICS_TEXTFILE"`
	OTELEndpoint    string `envconfig:"OTEL_ENDPOINT"`
}

// SimulatorConfig configures the simulator HTTP server.
type SimulatorConfig struct {
	AppConfig

	Port            string        `envconfig:"SIMULATOR_PORT" default:"5000"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	AllowedOrigins  []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"https://studio.botpress.cloud"`
	EnablePprof     bool          `envconfig:"ENABLE_PPROF" default:"false"`
	EnableMetrics   bool          `envconfig:"ENABLE_METRICS" default:"true"`
	OTELEndpoint    string        `envconfig:"OTEL_ENDPOINT"`

	Botpress BotpressConfig

	ConversationTTL time.Duration `envconfig:"CONVERSATION_TTL" default:"24h"`
	RedisAddr       string        `envconfig:"REDIS_ADDR"`
	RedisPassword   string        `envconfig:"REDIS_PASSWORD"`
	RedisDB         int           `envconfig:"REDIS_DB" default:"0"`

	DBDialect string `envconfig:"DB_DIALECT" default:"sqlite"`
	DBDSN     string `envconfig:"DB_DSN" default:"file:transcripts.db?cache=shared"`

	TranscriptRetention time.Duration `envconfig:"TRANSCRIPT_RETENTION" default:"720h"`
	RetentionSchedule   string        `envconfig:"TRANSCRIPT_RETENTION_SCHEDULE" default:"@every 1h"`
}

// BotpressConfig holds the Botpress endpoints and credentials. An empty
// WebhookURL switches the simulator to echo mode.
type BotpressConfig struct {
	WebhookURL string `envconfig:"BOTPRESS_WEBHOOK_URL"`
	BotID      string `envconfig:"BOTPRESS_BOT_ID"`
	APIURL     string `envconfig:"BOTPRESS_API_URL" default:"https://api.botpress.cloud"`
	ChatURL    string `envconfig:"BOTPRESS_CHAT_URL" default:"https://chat.botpress.cloud"`
	WebhookID  string `envconfig:"BOTPRESS_WEBHOOK_ID"`
	Token      string `envconfig:"BOTPRESS_TOKEN"`
	Secret     string `envconfig:"BOTPRESS_SECRET"`
}

func (c *AppConfig) fill() {
	c.OS = runtime.GOOS
	c.Architecture = runtime.GOARCH
	if c.Environment == "" {
		c.Environment = env.GetEnvironment()
	}
}

// LoadNotifier reads NotifierConfig from the environment.
func LoadNotifier() (*NotifierConfig, error) {
	var cfg NotifierConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.fill()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the endpoint is usable. Message and user id are free text.
func (c *NotifierConfig) Validate() error {
	return validateURL(c.EndpointURL)
}

// LoadSimulator reads SimulatorConfig from the environment.
func LoadSimulator() (*SimulatorConfig, error) {
	var cfg SimulatorConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.fill()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *SimulatorConfig) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return ErrInvalidPort
	}
	if c.Botpress.WebhookURL != "" {
		if err := validateURL(c.Botpress.WebhookURL); err != nil {
			return fmt.Errorf("botpress webhook: %w", err)
		}
	}
	return nil
}

// EchoMode reports whether messages are answered locally instead of relayed.
func (c *SimulatorConfig) EchoMode() bool {
	return c.Botpress.WebhookURL == ""
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, raw)
	}
	return nil
}
