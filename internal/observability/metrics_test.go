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
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsDisabledReturnsNil(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	assert.Nil(t, m)
	// Calling methods on a nil *Metrics must be a safe no-op.
	m.IngestEvent("user_message")
	m.SegmentClosed()
}

func TestMetricsHandlerServesPrometheusFormat(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, Namespace: "agent_memory_test"})
	require.NotNil(t, m)
	m.IngestEvent("user_message")
	m.SegmentClosed()
	m.RouterQuery("explore", 3, 0.01)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "agent_memory_test_ingest_events_total")
}

func TestNewTracerProviderDisabledIsNoop(t *testing.T) {
	tp, shutdown, err := NewTracerProvider(context.Background(), TracingConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, tp)
	require.NoError(t, shutdown(context.Background()))
}

func TestNewManagerWiresMetricsAndTracer(t *testing.T) {
	m, err := NewManager(context.Background(), Config{
		Metrics: MetricsConfig{Enabled: true},
		Tracing: TracingConfig{Enabled: false},
	})
	require.NoError(t, err)
	require.NotNil(t, m.Metrics())
	require.NotNil(t, m.Tracer())
	require.NoError(t, m.Shutdown(context.Background()))
}
