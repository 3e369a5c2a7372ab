// Package config loads process settings from env files and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

const (
	LLMResponses = "responses"
	LLMChat      = "chat"

	GatewayActions = "actions"
	GatewayMCP     = "mcp"
	GatewayGmail   = "gmail"
)

// DefaultEnv selects .env.personal when ENV is unset.
const DefaultEnv = "personal"

// Config is the process configuration.
type Config struct {
	Env string `envconfig:"ENV" default:"personal"`

	ConnectTokenURL string `envconfig:"CONNECT_TOKEN_URL" default:"http://localhost:3001/connect-token"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY" required:"true"`
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"gpt-4.1"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	LLMAPI        string `envconfig:"LLM_API" default:"responses"`

	ProjectID      string `envconfig:"PIPEDREAM_PROJECT_ID"`
	Environment    string `envconfig:"PIPEDREAM_ENVIRONMENT" default:"development"`
	ExternalUserID string `envconfig:"PIPEDREAM_EXTERNAL_USER_ID"`
	MCPServerURL   string `envconfig:"MCP_SERVER_URL" default:"https://remote.mcp.pipedream.net"`

	GatewayMode    string `envconfig:"GATEWAY_MODE" default:"actions"`
	ActionsBaseURL string `envconfig:"ACTIONS_BASE_URL" default:"https://remote.mcp.pipedream.net/actions"`
	GmailEndpoint  string `envconfig:"GMAIL_ENDPOINT"`

	SlackBotToken      string `envconfig:"SLACK_BOT_TOKEN" required:"true"`
	SlackAppToken      string `envconfig:"SLACK_APP_TOKEN" required:"true"`
	SlackSigningSecret string `envconfig:"SLACK_SIGNING_SECRET"`

	StatusAddr  string        `envconfig:"STATUS_ADDR" default:"localhost:3000"`
	LogLevel    string        `envconfig:"LOG_LEVEL" default:"info"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
}

// Load reads envFile, or .env.<ENV> when envFile is empty, into the process
// environment and binds the result. Variables already set win over file values.
// A missing default env file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("godotenv.Load failed: %w", err)
		}
	} else {
		env := os.Getenv("ENV")
		if env == "" {
			env = DefaultEnv
		}
		if err := godotenv.Load(".env." + env); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("godotenv.Load failed: %w", err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("envconfig.Process failed: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects empty secrets and unknown modes.
func (c *Config) Validate() error {
	var errs []error

	for name, v := range map[string]string{
		"OPENAI_API_KEY":  c.OpenAIAPIKey,
		"SLACK_BOT_TOKEN": c.SlackBotToken,
		"SLACK_APP_TOKEN": c.SlackAppToken,
	} {
		if v == "" {
			errs = append(errs, fmt.Errorf("%s must be set", name))
		}
	}

	switch c.LLMAPI {
	case LLMResponses, LLMChat:
	default:
		errs = append(errs, fmt.Errorf("LLM_API %q is not one of %s, %s", c.LLMAPI, LLMResponses, LLMChat))
	}

	switch c.GatewayMode {
	case GatewayActions, GatewayMCP, GatewayGmail:
	default:
		errs = append(errs, fmt.Errorf("GATEWAY_MODE %q is not one of %s, %s, %s", c.GatewayMode, GatewayActions, GatewayMCP, GatewayGmail))
	}

	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// MarshalZerologObject logs settings, reporting secrets only as set or unset.
func (c Config) MarshalZerologObject(e *zerolog.Event) {
	e.Str("env", c.Env).
		Str("connect_token_url", c.ConnectTokenURL).
		Str("llm_api", c.LLMAPI).
		Str("openai_model", c.OpenAIModel).
		Str("openai_base_url", c.OpenAIBaseURL).
		Bool("openai_api_key_set", c.OpenAIAPIKey != "").
		Str("gateway_mode", c.GatewayMode).
		Str("mcp_server_url", c.MCPServerURL).
		Bool("project_id_set", c.ProjectID != "").
		Bool("external_user_id_set", c.ExternalUserID != "").
		Bool("slack_bot_token_set", c.SlackBotToken != "").
		Bool("slack_app_token_set", c.SlackAppToken != "").
		Str("status_addr", c.StatusAddr).
		Dur("http_timeout", c.HTTPTimeout)
}
