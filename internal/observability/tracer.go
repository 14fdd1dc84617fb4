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
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracingConfig configures the daemon's tracer provider. The daemon is a
// single local process with no remote collector to ship spans to, so the
// only exporter wired is stdout — swapping in an OTLP exporter later is a
// one-line change behind this same TracerProvider interface.
type TracingConfig struct {
	Enabled      bool
	ServiceName  string
	SamplingRate float64
	Writer       io.Writer // nil keeps the exporter's default, os.Stdout
}

func (c TracingConfig) withDefaults() TracingConfig {
	if c.ServiceName == "" {
		c.ServiceName = "agent-memoryd"
	}
	if c.SamplingRate == 0 {
		c.SamplingRate = 1.0
	}
	return c
}

// NewTracerProvider builds and installs a global TracerProvider. Disabled
// configs get a no-op provider so callers never need a nil check.
func NewTracerProvider(ctx context.Context, cfg TracingConfig) (trace.TracerProvider, func(context.Context) error, error) {
	if !cfg.Enabled {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, func(context.Context) error { return nil }, nil
	}
	cfg = cfg.withDefaults()

	opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
	if cfg.Writer != nil {
		opts = append(opts, stdouttrace.WithWriter(cfg.Writer))
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("observability: create stdout trace exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, nil, fmt.Errorf("observability: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, tp.Shutdown, nil
}

// Tracer returns a named tracer from the currently installed global
// TracerProvider, mirroring the teacher's GetTracer helper.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
