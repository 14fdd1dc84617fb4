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

// Package provider defines the config source abstraction: file, Consul, or
// etcd, each able to load raw bytes and optionally watch for changes.
package provider

import (
	"context"
	"fmt"
)

// Type identifies the config source type.
type Type string

const (
	TypeFile   Type = "file"
	TypeConsul Type = "consul"
	TypeEtcd   Type = "etcd"
)

// ParseType converts a string to a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "file", "":
		return TypeFile, nil
	case "consul":
		return TypeConsul, nil
	case "etcd":
		return TypeEtcd, nil
	default:
		return "", fmt.Errorf("unknown provider type: %s", s)
	}
}

// Provider abstracts config sources. Implementations must be safe for
// concurrent use.
type Provider interface {
	// Type returns the provider type for logging.
	Type() Type

	// Load reads raw config bytes from the source.
	Load(ctx context.Context) ([]byte, error)

	// Watch signals on the returned channel when the source changes.
	// Cancel ctx to stop watching. Returns a nil channel if the source
	// does not support watching.
	Watch(ctx context.Context) (<-chan struct{}, error)

	// Close releases any resources held by the provider.
	Close() error
}

// Config configures provider creation.
type Config struct {
	Type Type
	// Path is the config file path for TypeFile, or the KV key for
	// TypeConsul/TypeEtcd.
	Path string
	// Endpoints is the address list for TypeConsul/TypeEtcd.
	Endpoints []string
}

// New builds a Provider from Config.
func New(cfg Config) (Provider, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("config path is required")
	}
	switch cfg.Type {
	case TypeFile, "":
		return NewFileProvider(cfg.Path)
	case TypeConsul:
		return NewConsulProvider(cfg.Endpoints, cfg.Path)
	case TypeEtcd:
		return NewEtcdProvider(cfg.Endpoints, cfg.Path)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}
