// Package config loads the chat client configuration from a TOML file and
// the environment.
//
// Values are resolved in order: built-in defaults, the config file, then the
// OPENAI_API_KEY, OPENAI_BASE_URL and AIDER_MODEL environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/exajoy/aider/core/llms/openai"
	"github.com/exajoy/aider/core/transport"
	"github.com/invopop/jsonschema"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"

	EnvAPIKey  = "OPENAI_API_KEY"
	EnvBaseURL = "OPENAI_BASE_URL"
	EnvModel   = "AIDER_MODEL"
)

var ErrMissingAPIKey = errors.New("missing API key: set " + EnvAPIKey + " or api_key in the config file")

type Config struct {
	APIKey        string `toml:"api_key" json:"api_key,omitempty" jsonschema:"description=Provider API key. Prefer the OPENAI_API_KEY environment variable"`
	BaseURL       string `toml:"base_url" json:"base_url" jsonschema:"description=Responses API base URL. http(s) streams SSE and ws(s) streams over a WebSocket,default=https://api.openai.com/v1"`
	Model         string `toml:"model" json:"model" jsonschema:"description=Model used for every exchange,default=gpt-4.1-mini"`
	Instructions  string `toml:"instructions" json:"instructions,omitempty" jsonschema:"description=System instructions sent with every prompt"`
	QueueCapacity int    `toml:"queue_capacity" json:"queue_capacity" jsonschema:"description=Capacity of the input and response event queues,minimum=1,default=32"`
	Welcome       string `toml:"welcome" json:"welcome" jsonschema:"description=System message shown when the chat starts"`
}

func Default() *Config {
	return &Config{
		BaseURL:       DefaultBaseURL,
		Model:         openai.DefaultModel,
		QueueCapacity: openai.DefaultQueueCapacity,
		Welcome:       "Welcome to AI Chat!",
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/aider/config.toml, falling back to the
// platform config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not determine config directory: %w", err)
	}
	return filepath.Join(dir, "aider", "config.toml"), nil
}

// Load reads the config file at path, applies environment overrides and
// validates the result. An empty path loads the default location, which may
// be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		defaultPath, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv(EnvAPIKey); key != "" {
		c.APIKey = key
	}
	if baseURL := os.Getenv(EnvBaseURL); baseURL != "" {
		c.BaseURL = baseURL
	}
	if model := os.Getenv(EnvModel); model != "" {
		c.Model = model
	}
}

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate reports every problem at once. ErrMissingAPIKey is matchable with
// errors.Is.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.APIKey) == "" {
		errs = append(errs, ErrMissingAPIKey)
	}

	if u, err := url.Parse(c.BaseURL); err != nil || u.Host == "" {
		errs = append(errs, ValidationError{Field: "base_url", Message: fmt.Sprintf("invalid URL %q", c.BaseURL)})
	} else {
		switch u.Scheme {
		case "http", "https", "ws", "wss":
		default:
			errs = append(errs, ValidationError{Field: "base_url", Message: fmt.Sprintf("unsupported scheme %q", u.Scheme)})
		}
	}

	if strings.TrimSpace(c.Model) == "" {
		errs = append(errs, ValidationError{Field: "model", Message: "must not be empty"})
	}
	if c.QueueCapacity < 1 {
		errs = append(errs, ValidationError{Field: "queue_capacity", Message: fmt.Sprintf("must be positive, got %d", c.QueueCapacity)})
	}

	return errors.Join(errs...)
}

func (c *Config) Credential() transport.Credential {
	return transport.NewCredential(c.APIKey)
}

func (c *Config) StreamerConfig() openai.Config {
	return openai.Config{
		Model:         c.Model,
		Instructions:  c.Instructions,
		QueueCapacity: c.QueueCapacity,
	}
}

// Schema describes the config file format.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{DoNotReference: true, RequiredFromJSONSchemaTags: true}
	schema := reflector.Reflect(&Config{})
	schema.Title = "aider configuration"
	return schema
}
