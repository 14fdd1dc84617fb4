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

package observability

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/trace"
)

// Config configures the whole observability subsystem.
type Config struct {
	Metrics MetricsConfig
	Tracing TracingConfig
}

// Manager owns the daemon's Metrics and TracerProvider lifecycles.
type Manager struct {
	metrics  *Metrics
	tracer   trace.TracerProvider
	shutdown func(context.Context) error
}

// NewManager builds a Manager from Config. Either subsystem may be
// disabled independently; every Manager method tolerates that.
func NewManager(ctx context.Context, cfg Config) (*Manager, error) {
	m := &Manager{metrics: NewMetrics(cfg.Metrics)}
	tp, shutdown, err := NewTracerProvider(ctx, cfg.Tracing)
	if err != nil {
		return nil, err
	}
	m.tracer = tp
	m.shutdown = shutdown
	return m, nil
}

func (m *Manager) Metrics() *Metrics           { return m.metrics }
func (m *Manager) Tracer() trace.TracerProvider { return m.tracer }
func (m *Manager) MetricsHandler() http.Handler { return m.metrics.Handler() }

// Shutdown flushes and closes the tracer provider.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.shutdown == nil {
		return nil
	}
	return m.shutdown(ctx)
}
