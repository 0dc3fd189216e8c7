// Package config holds configuration shared by the completion client and
// the kernel.
package config

import (
	"os"
	"time"
)

const (
	DefaultBaseURL   = "https://api.openai.com/v1"
	DefaultModel     = "gpt-4"
	DefaultAPIKeyEnv = "OPENAI_API_KEY"
)

// AgentConfig configures the OpenAI-compatible completion client.
type AgentConfig struct {
	BaseURL     string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model       string   `json:"model,omitempty" yaml:"model,omitempty"`
	APIKeyEnv   string   `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	APIKey      string   `json:"-" yaml:"-"`
	Timeout     Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// DefaultAgentConfig returns the production completion settings.
func DefaultAgentConfig() AgentConfig {
	temperature := 0.7
	return AgentConfig{
		BaseURL:     DefaultBaseURL,
		Model:       DefaultModel,
		APIKeyEnv:   DefaultAPIKeyEnv,
		Timeout:     Duration(30 * time.Second),
		Temperature: &temperature,
	}
}

// Merge applies non-zero values from source into c.
func (c *AgentConfig) Merge(source *AgentConfig) {
	if source.BaseURL != "" {
		c.BaseURL = source.BaseURL
	}
	if source.Model != "" {
		c.Model = source.Model
	}
	if source.APIKeyEnv != "" {
		c.APIKeyEnv = source.APIKeyEnv
	}
	if source.APIKey != "" {
		c.APIKey = source.APIKey
	}
	if source.Timeout > 0 {
		c.Timeout = source.Timeout
	}
	if source.Temperature != nil {
		c.Temperature = source.Temperature
	}
	if source.MaxTokens > 0 {
		c.MaxTokens = source.MaxTokens
	}
}

// ResolveAPIKey returns APIKey when set, otherwise the value of the
// environment variable named by APIKeyEnv.
func (c *AgentConfig) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}
