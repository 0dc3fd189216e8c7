package kernel

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tailored-agentic-units/lifeline/core/config"
	"github.com/tailored-agentic-units/lifeline/crisis"
	"github.com/tailored-agentic-units/lifeline/handoff"
	"github.com/tailored-agentic-units/lifeline/session"
)

const (
	defaultMaxMessageLength   = 2000
	defaultMaxSessionIDLength = 128
)

// DefaultSystemPrompt instructs the completion service to answer as a
// warm, brief companion for people affected by gambling addiction.
const DefaultSystemPrompt = "Você é um assistente empático e próximo, alguém que conversa de coração aberto com pessoas afetadas pelo vício em apostas. " +
	"Fale como um amigo que quer ajudar, validando sentimentos, mostrando compreensão e carinho. " +
	"Suas respostas devem ser curtas, diretas e cheias de humanidade, como alguém que está ali para ouvir e apoiar. " +
	"Jamais diga apenas que não pode ajudar ou que precisa procurar um profissional; você deve tentar ajudar com palavras de conforto e dicas práticas simples para lidar com o vício e o sofrimento. " +
	"Nunca incentive ou ensine qualquer tipo de aposta, jogo ou site relacionado. " +
	"Não forneça links, telefones ou recomendações de serviços externos. " +
	"Mantenha o foco em acolher, ouvir, validar e oferecer conselhos breves, como alguém próximo que está disposto a conversar, encorajar e ajudar a pessoa a se sentir menos sozinha. " +
	"Use linguagem simples, frases curtas e um tom humano e acolhedor. " +
	"Se a pessoa compartilhar dores ou frustrações, responda com empatia e apoio, sem julgamentos."

// Replies holds the fixed texts returned to the user without being
// appended to the transcript.
type Replies struct {
	HumanActive string `json:"human_active,omitempty" yaml:"human_active,omitempty"`
	Unavailable string `json:"unavailable,omitempty" yaml:"unavailable,omitempty"`
}

// DefaultReplies returns the Portuguese defaults.
func DefaultReplies() Replies {
	return Replies{
		HumanActive: "Um profissional está atendendo você. Aguarde a resposta dele aqui.",
		Unavailable: "Desculpe, não consegui responder agora. Tente novamente em instantes. " +
			"Se precisar de ajuda imediata, peça para falar com um profissional.",
	}
}

// Merge applies non-empty values from source into r.
func (r *Replies) Merge(source *Replies) {
	if source.HumanActive != "" {
		r.HumanActive = source.HumanActive
	}
	if source.Unavailable != "" {
		r.Unavailable = source.Unavailable
	}
}

// ServerConfig configures the HTTP listener and per-session rate limiting.
type ServerConfig struct {
	Address         string          `json:"address,omitempty" yaml:"address,omitempty"`
	ReadTimeout     config.Duration `json:"read_timeout,omitempty" yaml:"read_timeout,omitempty"`
	WriteTimeout    config.Duration `json:"write_timeout,omitempty" yaml:"write_timeout,omitempty"`
	ShutdownTimeout config.Duration `json:"shutdown_timeout,omitempty" yaml:"shutdown_timeout,omitempty"`
	// RateLimit is the sustained submit rate per session, in messages per
	// second. A negative value disables limiting.
	RateLimit float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	RateBurst int     `json:"rate_burst,omitempty" yaml:"rate_burst,omitempty"`
}

// DefaultServerConfig returns the default listener settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:         ":8080",
		ReadTimeout:     config.Duration(10 * time.Second),
		WriteTimeout:    config.Duration(60 * time.Second),
		ShutdownTimeout: config.Duration(15 * time.Second),
		RateLimit:       1,
		RateBurst:       5,
	}
}

// Merge applies non-zero values from source into c.
func (c *ServerConfig) Merge(source *ServerConfig) {
	if source.Address != "" {
		c.Address = source.Address
	}
	if source.ReadTimeout > 0 {
		c.ReadTimeout = source.ReadTimeout
	}
	if source.WriteTimeout > 0 {
		c.WriteTimeout = source.WriteTimeout
	}
	if source.ShutdownTimeout > 0 {
		c.ShutdownTimeout = source.ShutdownTimeout
	}
	if source.RateLimit != 0 {
		c.RateLimit = source.RateLimit
	}
	if source.RateBurst > 0 {
		c.RateBurst = source.RateBurst
	}
}

// Config holds initialization parameters for all kernel subsystems.
// Each subsystem section delegates to that subsystem's config-driven constructor.
type Config struct {
	Agent              config.AgentConfig `json:"agent" yaml:"agent"`
	Session            session.Config     `json:"session" yaml:"session"`
	Detector           crisis.Config      `json:"detector" yaml:"detector"`
	Notices            handoff.Notices    `json:"notices" yaml:"notices"`
	Replies            Replies            `json:"replies" yaml:"replies"`
	Server             ServerConfig       `json:"server" yaml:"server"`
	Observers          []string           `json:"observers,omitempty" yaml:"observers,omitempty"`
	SystemPrompt       string             `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	MaxMessageLength   int                `json:"max_message_length,omitempty" yaml:"max_message_length,omitempty"`
	MaxSessionIDLength int                `json:"max_session_id_length,omitempty" yaml:"max_session_id_length,omitempty"`
}

// DefaultConfig returns a Config with production defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		Agent:              config.DefaultAgentConfig(),
		Session:            session.DefaultConfig(),
		Detector:           crisis.DefaultConfig(),
		Notices:            handoff.DefaultNotices(),
		Replies:            DefaultReplies(),
		Server:             DefaultServerConfig(),
		Observers:          []string{"slog"},
		SystemPrompt:       DefaultSystemPrompt,
		MaxMessageLength:   defaultMaxMessageLength,
		MaxSessionIDLength: defaultMaxSessionIDLength,
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	c.Agent.Merge(&source.Agent)
	c.Session.Merge(&source.Session)
	c.Detector.Merge(&source.Detector)
	c.Notices.Merge(&source.Notices)
	c.Replies.Merge(&source.Replies)
	c.Server.Merge(&source.Server)

	if len(source.Observers) > 0 {
		c.Observers = source.Observers
	}
	if source.SystemPrompt != "" {
		c.SystemPrompt = source.SystemPrompt
	}
	if source.MaxMessageLength > 0 {
		c.MaxMessageLength = source.MaxMessageLength
	}
	if source.MaxSessionIDLength > 0 {
		c.MaxSessionIDLength = source.MaxSessionIDLength
	}
}

// LoadConfig reads a JSON or YAML config file (by extension), merges it
// with defaults, and returns the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &loaded)
	default:
		err = json.Unmarshal(data, &loaded)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
