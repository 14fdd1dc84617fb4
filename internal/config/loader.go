// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/agent-memory/internal/config/provider"
)

const envPrefix = "MEMORY_"

// RuntimeOverrides carries the handful of settings the daemon accepts as
// command-line flags (spec.md §6: flags outrank everything else). Zero
// values mean "not set on the command line".
type RuntimeOverrides struct {
	DBPath string
	Port   int
	Host   string
}

// Loader reads, parses, and decodes a Config from a provider.Provider, and
// can watch it for live reloads.
type Loader struct {
	src      provider.Provider
	onChange func(*Config)
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithOnChange registers a callback invoked with the newly loaded Config
// each time Watch observes a change.
func WithOnChange(fn func(*Config)) LoaderOption {
	return func(l *Loader) { l.onChange = fn }
}

// NewLoader builds a Loader around an already-constructed provider.
func NewLoader(src provider.Provider, opts ...LoaderOption) *Loader {
	l := &Loader{src: src}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load runs the full pipeline: read raw bytes, parse YAML/JSON, expand
// environment variables, overlay MEMORY_-prefixed env vars, decode via
// mapstructure, apply runtime flag overrides, fill defaults, validate.
func (l *Loader) Load(ctx context.Context, runtime RuntimeOverrides) (*Config, error) {
	raw, err := l.src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("config: load from provider: %w", err)
	}

	doc, err := parseBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	expanded, ok := expandEnvVars(doc).(map[string]any)
	if !ok {
		expanded = map[string]any{}
	}
	applyEnvOverrides(expanded, envOverrides(envPrefix))

	cfg := &Config{}
	if err := decodeConfig(expanded, cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	applyRuntimeOverrides(cfg, runtime)

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyRuntimeOverrides(cfg *Config, runtime RuntimeOverrides) {
	if runtime.DBPath != "" {
		cfg.Core.DBPath = runtime.DBPath
	}
	if runtime.Port != 0 {
		cfg.Core.Port = runtime.Port
	}
	if runtime.Host != "" {
		cfg.Core.Host = runtime.Host
	}
}

// Watch blocks, reloading the config and invoking onChange whenever the
// underlying provider signals a change. It returns when ctx is cancelled
// or the provider's change channel closes.
func (l *Loader) Watch(ctx context.Context, runtime RuntimeOverrides) error {
	ch, err := l.src.Watch(ctx)
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}
	if ch == nil {
		slog.Info("config watching not supported by provider", "type", l.src.Type())
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			cfg, err := l.Load(ctx, runtime)
			if err != nil {
				slog.Error("config reload failed, keeping previous config", "error", err)
				continue
			}
			if l.onChange != nil {
				l.onChange(cfg)
			}
		}
	}
}

// Close releases the underlying provider's resources.
func (l *Loader) Close() error {
	return l.src.Close()
}

// Provider returns the underlying provider.Provider.
func (l *Loader) Provider() provider.Provider {
	return l.src
}

func parseBytes(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("not valid YAML or JSON: %w", err)
	}
	return doc, nil
}

func decodeConfig(input map[string]any, out *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// LoadConfig is a convenience wrapper building a file-backed provider and
// loading a Config from it in one call.
func LoadConfig(ctx context.Context, path string, runtime RuntimeOverrides) (*Config, error) {
	src, err := provider.NewFileProvider(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return NewLoader(src).Load(ctx, runtime)
}
