package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"taskline/internal/domain"
)

// Config models taskline.yml.
type Config struct {
	Defaults struct {
		OrganizationID string `yaml:"organization_id"`
		ProjectID      string `yaml:"project_id"`
		Owner          string `yaml:"owner"`
		ActorID        string `yaml:"actor_id"`
	} `yaml:"defaults"`
	Server struct {
		Addr      string `yaml:"addr"`
		BasePath  string `yaml:"base_path"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"server"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "taskline.yml")
}

// Load reads and validates config from the workspace; the file is required.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults when the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	cfg.Defaults.ActorID = "local-user"
	cfg.Server.Addr = "127.0.0.1:8080"
	cfg.Server.BasePath = "/v0"
	return &cfg
}

// Validate ensures the config meets required structure. Task defaults must
// satisfy the entity field constraints so a configured value can never fail
// at task-creation time.
func (c *Config) Validate() error {
	for field, value := range map[string]string{
		domain.FieldOrganizationID: c.Defaults.OrganizationID,
		domain.FieldProjectID:      c.Defaults.ProjectID,
		domain.FieldOwner:          c.Defaults.Owner,
	} {
		if value == "" {
			continue
		}
		if err := domain.ValidateField(field, value); err != nil {
			return fmt.Errorf("config defaults.%s: %w", field, err)
		}
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("config server.addr is required")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config server.base_path must start with /")
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config webhooks[%d].timeout_seconds must not be negative", i)
		}
		for _, evt := range hook.Events {
			if strings.TrimSpace(evt) == "" {
				return fmt.Errorf("config webhooks[%d] has empty event type", i)
			}
		}
	}
	return nil
}

// GenerateDefault returns a commented starter taskline.yml.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `defaults:
  # Applied to new tasks when the caller supplies no value.
  organization_id: ""
  project_id: ""
  owner: ""
  # Actor recorded in audit fields and the event log.
  actor_id: local-user

server:
  addr: 127.0.0.1:8080
  base_path: /v0
  # HS256 secret for bearer auth. Empty runs the server in open,
  # X-Actor-Id header mode (local use only).
  jwt_secret: ""

webhooks: []
#  - url: https://example.com/hooks/taskline
#    events: [task.created, task.deleted]
#    secret: change-me
#    timeout_seconds: 5
`
