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

package provider

import (
	"context"
	"fmt"

	"github.com/hashicorp/consul/api"
)

// ConsulProvider loads config from a Consul KV key and watches it via
// Consul's long-polling blocking queries.
type ConsulProvider struct {
	client    *api.Client
	key       string
	lastIndex uint64
}

// NewConsulProvider builds a provider backed by Consul KV. endpoints[0], if
// present, overrides the client's default address (127.0.0.1:8500).
func NewConsulProvider(endpoints []string, key string) (*ConsulProvider, error) {
	if key == "" {
		return nil, fmt.Errorf("consul key is required")
	}
	cfg := api.DefaultConfig()
	if len(endpoints) > 0 {
		cfg.Address = endpoints[0]
	}
	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create consul client: %w", err)
	}
	return &ConsulProvider{client: client, key: key}, nil
}

func (p *ConsulProvider) Type() Type { return TypeConsul }

func (p *ConsulProvider) Load(ctx context.Context) ([]byte, error) {
	pair, meta, err := p.client.KV().Get(p.key, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("consul KV get %s: %w", p.key, err)
	}
	if pair == nil {
		return nil, fmt.Errorf("consul key %s not found", p.key)
	}
	if meta != nil {
		p.lastIndex = meta.LastIndex
	}
	return pair.Value, nil
}

// Watch issues blocking KV reads against the key, signalling whenever
// Consul reports a new ModifyIndex.
func (p *ConsulProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			opts := (&api.QueryOptions{WaitIndex: p.lastIndex, WaitTime: 0}).WithContext(ctx)
			_, meta, err := p.client.KV().Get(p.key, opts)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				continue
			}
			if meta != nil && meta.LastIndex != p.lastIndex {
				p.lastIndex = meta.LastIndex
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()
	return ch, nil
}

func (p *ConsulProvider) Close() error { return nil }

var _ Provider = (*ConsulProvider)(nil)
