package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/outshift/triagent/pkg/config/provider"
)

// Loader reads configuration from a provider and decodes it into Config.
type Loader struct {
	provider provider.Provider
}

// NewLoader creates a loader backed by the given provider.
func NewLoader(p provider.Provider) *Loader {
	return &Loader{provider: p}
}

// NewFileLoader creates a loader backed by a local YAML file.
func NewFileLoader(path string) (*Loader, error) {
	p, err := provider.NewFileProvider(path)
	if err != nil {
		return nil, err
	}
	return NewLoader(p), nil
}

// Load runs the full pipeline: read, parse, expand env references,
// decode, defaults, validate.
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	raw, err := l.provider.Load(ctx)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes raw YAML bytes into a validated Config.
func Parse(raw []byte) (*Config, error) {
	var tree map[string]interface{}
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	expanded := ExpandEnvVarsInData(tree)

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create config decoder: %w", err)
	}
	if err := decoder.Decode(expanded); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Default builds a Config entirely from environment variables and
// defaults, for running without a config file.
func Default() (*Config, error) {
	var cfg Config
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Watch reloads the config whenever the provider signals a change and
// delivers each valid new config on the returned channel. Invalid updates
// are logged and skipped.
func (l *Loader) Watch(ctx context.Context) (<-chan *Config, error) {
	changes, err := l.provider.Watch(ctx)
	if err != nil {
		return nil, err
	}
	if changes == nil {
		return nil, nil
	}

	out := make(chan *Config, 1)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				cfg, err := l.Load(ctx)
				if err != nil {
					slog.Error("Ignoring config update", "error", err)
					continue
				}
				select {
				case out <- cfg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close releases provider resources.
func (l *Loader) Close() error {
	return l.provider.Close()
}
