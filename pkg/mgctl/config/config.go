package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

const (
	VersionV1 = "v1"
)

type Config struct {
	Version           string             `yaml:"version"`
	CurrentContext    string             `yaml:"current-context,omitempty"`
	IdentityProviders []IdentityProvider `yaml:"identity-providers,omitempty"`
	Contexts          []Context          `yaml:"contexts,omitempty"`
	Settings          Settings           `yaml:"settings,omitempty"`
}

type Settings struct {
	OutputFormat string `yaml:"output-format,omitempty"`
	Timeout      string `yaml:"timeout,omitempty"`
	TokenStorage string `yaml:"token-storage,omitempty"`
}

// IdentityProvider configures where Google ID tokens are obtained before
// being exchanged at /auth/google.
type IdentityProvider struct {
	Name             string   `yaml:"name"`
	Authority        string   `yaml:"authority,omitempty"`
	ClientID         string   `yaml:"client-id"`
	ClientSecret     string   `yaml:"client-secret,omitempty"`
	ClientSecretEnv  string   `yaml:"client-secret-env,omitempty"`
	ClientSecretFile string   `yaml:"client-secret-file,omitempty"`
	Scopes           []string `yaml:"scopes,omitempty"`
	DeviceCodeFlow   bool     `yaml:"device-code-flow,omitempty"`
	CAFile           string   `yaml:"ca-file,omitempty"`
	InsecureSkipTLS  bool     `yaml:"insecure-skip-tls-verify,omitempty"`
}

type Context struct {
	Name                  string          `yaml:"name"`
	Server                string          `yaml:"server"`
	IdentityProvider      string          `yaml:"identity-provider,omitempty"`
	CAFile                string          `yaml:"ca-file,omitempty"`
	InsecureSkipTLSVerify bool            `yaml:"insecure-skip-tls-verify,omitempty"`
	Identity              *InlineIdentity `yaml:"identity,omitempty"`
}

type InlineIdentity struct {
	Authority       string   `yaml:"authority,omitempty"`
	ClientID        string   `yaml:"client-id"`
	ClientSecret    string   `yaml:"client-secret,omitempty"`
	Scopes          []string `yaml:"scopes,omitempty"`
	DeviceCodeFlow  bool     `yaml:"device-code-flow,omitempty"`
	CAFile          string   `yaml:"ca-file,omitempty"`
	InsecureSkipTLS bool     `yaml:"insecure-skip-tls-verify,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Version: VersionV1,
		Settings: Settings{
			OutputFormat: "table",
			TokenStorage: "file",
		},
	}
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, content, 0o600)
}

func (c *Config) FindContext(name string) (*Context, error) {
	for i := range c.Contexts {
		if c.Contexts[i].Name == name {
			return &c.Contexts[i], nil
		}
	}
	return nil, fmt.Errorf("context not found: %s", name)
}

func (c *Config) FindIdentityProvider(name string) (*IdentityProvider, error) {
	for i := range c.IdentityProviders {
		if c.IdentityProviders[i].Name == name {
			return &c.IdentityProviders[i], nil
		}
	}
	return nil, fmt.Errorf("identity provider not found: %s", name)
}

func (c *Config) CurrentContextOrDefault() string {
	if c.CurrentContext != "" {
		return c.CurrentContext
	}
	if len(c.Contexts) > 0 {
		return c.Contexts[0].Name
	}
	return ""
}

// ResolvedIdentity is the merged identity-provider settings for a context,
// whether referenced by name or declared inline.
type ResolvedIdentity struct {
	ProviderName     string
	Authority        string
	ClientID         string
	ClientSecret     string
	ClientSecretEnv  string
	ClientSecretFile string
	Scopes           []string
	DeviceCodeFlow   bool
	CAFile           string
	InsecureSkipTLS  bool
}

func (c *Config) ResolveIdentity(ctx *Context) (*ResolvedIdentity, error) {
	if ctx == nil {
		return nil, errors.New("context is nil")
	}
	if ctx.Identity != nil {
		return &ResolvedIdentity{
			Authority:       ctx.Identity.Authority,
			ClientID:        ctx.Identity.ClientID,
			ClientSecret:    ctx.Identity.ClientSecret,
			Scopes:          ctx.Identity.Scopes,
			DeviceCodeFlow:  ctx.Identity.DeviceCodeFlow,
			CAFile:          ctx.Identity.CAFile,
			InsecureSkipTLS: ctx.Identity.InsecureSkipTLS,
		}, nil
	}
	if ctx.IdentityProvider == "" {
		return nil, errors.New("no identity provider configured")
	}
	provider, err := c.FindIdentityProvider(ctx.IdentityProvider)
	if err != nil {
		return nil, err
	}
	return &ResolvedIdentity{
		ProviderName:     provider.Name,
		Authority:        provider.Authority,
		ClientID:         provider.ClientID,
		ClientSecret:     provider.ClientSecret,
		ClientSecretEnv:  provider.ClientSecretEnv,
		ClientSecretFile: provider.ClientSecretFile,
		Scopes:           provider.Scopes,
		DeviceCodeFlow:   provider.DeviceCodeFlow,
		CAFile:           provider.CAFile,
		InsecureSkipTLS:  provider.InsecureSkipTLS,
	}, nil
}

func (c *Config) Validate() error {
	if c.Version == "" {
		return errors.New("config version missing")
	}
	for _, ctx := range c.Contexts {
		if strings.TrimSpace(ctx.Name) == "" {
			return errors.New("context name cannot be empty")
		}
		if strings.TrimSpace(ctx.Server) == "" {
			return fmt.Errorf("context %s server is required", ctx.Name)
		}
	}
	return nil
}
