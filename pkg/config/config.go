// Package config defines the service configuration schema and its loading
// pipeline: read from a provider, parse YAML, expand environment
// references, decode, apply defaults, validate.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config is the root configuration for the triage agent service.
type Config struct {
	Server        ServerConfig        `yaml:"server" mapstructure:"server" json:"server"`
	Triage        TriageConfig        `yaml:"triage" mapstructure:"triage" json:"triage"`
	TBAC          TBACConfig          `yaml:"tbac" mapstructure:"tbac" json:"tbac"`
	Logging       LoggingConfig       `yaml:"logging" mapstructure:"logging" json:"logging"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability" json:"observability"`
}

// ServerConfig configures the HTTP listener and public identity.
type ServerConfig struct {
	Host      string `yaml:"host" mapstructure:"host" json:"host"`
	Port      int    `yaml:"port" mapstructure:"port" json:"port"`
	PublicURL string `yaml:"public_url" mapstructure:"public_url" json:"public_url,omitempty"`
	Debug     bool   `yaml:"debug" mapstructure:"debug" json:"debug"`
}

// TriageConfig holds the upstream triage engine credentials and endpoints.
type TriageConfig struct {
	AppID      string        `yaml:"app_id" mapstructure:"app_id" json:"app_id"`
	AppKey     string        `yaml:"app_key" mapstructure:"app_key" json:"app_key"`
	InstanceID string        `yaml:"instance_id" mapstructure:"instance_id" json:"instance_id"`
	TokenURL   string        `yaml:"token_url" mapstructure:"token_url" json:"token_url"`
	BaseURL    string        `yaml:"base_url" mapstructure:"base_url" json:"base_url"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout" json:"timeout"`
}

// TBACConfig holds the identity service endpoint and the paired
// credentials for bidirectional authorization. TBAC activates only when
// both credential pairs are present.
type TBACConfig struct {
	IdentityServiceURL string        `yaml:"identity_service_url" mapstructure:"identity_service_url" json:"identity_service_url"`
	AgentAPIKey        string        `yaml:"agent_api_key" mapstructure:"agent_api_key" json:"agent_api_key"`
	AgentID            string        `yaml:"agent_id" mapstructure:"agent_id" json:"agent_id"`
	ServiceAPIKey      string        `yaml:"service_api_key" mapstructure:"service_api_key" json:"service_api_key"`
	ServiceID          string        `yaml:"service_id" mapstructure:"service_id" json:"service_id"`
	Timeout            time.Duration `yaml:"timeout" mapstructure:"timeout" json:"timeout"`
}

// Enabled reports whether both credential pairs are configured.
func (c TBACConfig) Enabled() bool {
	return c.AgentAPIKey != "" && c.AgentID != "" && c.ServiceAPIKey != "" && c.ServiceID != ""
}

// LoggingConfig configures the slog setup.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level" json:"level"`
	Format string `yaml:"format" mapstructure:"format" json:"format"`
	File   string `yaml:"file" mapstructure:"file" json:"file,omitempty"`
}

// ObservabilityConfig configures metrics and optional tracing.
type ObservabilityConfig struct {
	MetricsEnabled bool    `yaml:"metrics_enabled" mapstructure:"metrics_enabled" json:"metrics_enabled"`
	TracingEnabled bool    `yaml:"tracing_enabled" mapstructure:"tracing_enabled" json:"tracing_enabled"`
	OTLPEndpoint   string  `yaml:"otlp_endpoint" mapstructure:"otlp_endpoint" json:"otlp_endpoint,omitempty"`
	SampleRate     float64 `yaml:"sample_rate" mapstructure:"sample_rate" json:"sample_rate"`
	ServiceName    string  `yaml:"service_name" mapstructure:"service_name" json:"service_name"`
}

// SetDefaults fills zero values and applies environment fallbacks for
// fields not set in the config file.
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = envOr("HOST", "0.0.0.0")
	}
	if c.Server.Port == 0 {
		c.Server.Port = envIntOr("PORT", 8000)
	}
	if !c.Server.Debug {
		c.Server.Debug = os.Getenv("DEBUG") == "true"
	}

	if c.Triage.AppID == "" {
		c.Triage.AppID = os.Getenv("TRIAGE_APP_ID")
	}
	if c.Triage.AppKey == "" {
		c.Triage.AppKey = os.Getenv("TRIAGE_APP_KEY")
	}
	if c.Triage.InstanceID == "" {
		c.Triage.InstanceID = os.Getenv("TRIAGE_INSTANCE_ID")
	}
	if c.Triage.TokenURL == "" {
		c.Triage.TokenURL = os.Getenv("TRIAGE_TOKEN_URL")
	}
	if c.Triage.BaseURL == "" {
		c.Triage.BaseURL = os.Getenv("TRIAGE_BASE_URL")
	}
	if c.Triage.Timeout == 0 {
		c.Triage.Timeout = 30 * time.Second
	}

	if c.TBAC.IdentityServiceURL == "" {
		c.TBAC.IdentityServiceURL = os.Getenv("IDENTITY_SERVICE_URL")
	}
	if c.TBAC.AgentAPIKey == "" {
		c.TBAC.AgentAPIKey = os.Getenv("CLIENT_AGENT_API_KEY")
	}
	if c.TBAC.AgentID == "" {
		c.TBAC.AgentID = os.Getenv("CLIENT_AGENT_ID")
	}
	if c.TBAC.ServiceAPIKey == "" {
		c.TBAC.ServiceAPIKey = os.Getenv("A2A_SERVICE_API_KEY")
	}
	if c.TBAC.ServiceID == "" {
		c.TBAC.ServiceID = os.Getenv("A2A_SERVICE_ID")
	}
	if c.TBAC.Timeout == 0 {
		c.TBAC.Timeout = 30 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = envOr("LOG_LEVEL", "info")
	}
	if c.Logging.Format == "" {
		c.Logging.Format = envOr("LOG_FORMAT", "simple")
	}
	if c.Logging.File == "" {
		c.Logging.File = os.Getenv("LOG_FILE")
	}

	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = "triagent"
	}
	if c.Observability.SampleRate == 0 {
		c.Observability.SampleRate = 1.0
	}
}

// Validate checks constraints that would otherwise surface as runtime
// failures deep in a request.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1-65535, got %d", c.Server.Port)
	}
	if c.Triage.Timeout < 0 {
		return fmt.Errorf("triage.timeout must not be negative")
	}
	if c.Observability.SampleRate < 0 || c.Observability.SampleRate > 1 {
		return fmt.Errorf("observability.sample_rate must be in [0,1], got %v", c.Observability.SampleRate)
	}
	if c.Observability.TracingEnabled && c.Observability.OTLPEndpoint == "" {
		return fmt.Errorf("observability.otlp_endpoint is required when tracing is enabled")
	}
	return nil
}

// TriageConfigured reports whether the upstream triage engine credentials
// are all present.
func (c *Config) TriageConfigured() bool {
	t := c.Triage
	return t.AppID != "" && t.AppKey != "" && t.InstanceID != "" && t.TokenURL != "" && t.BaseURL != ""
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return def
}
