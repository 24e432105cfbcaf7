// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package columnar

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// EngineLogging is implemented by engines that accept the cluster's
// logger. The driver hands it over right after the engine is opened.
type EngineLogging interface {
	SetLogger(*slog.Logger)
}

// ClusterLogging is implemented by clusters whose logger can be replaced
// after Connect.
//
// EXPERIMENTAL.
type ClusterLogging interface {
	SetLogger(*slog.Logger)
}

// OTelTracingInit sets up the tracer provider of a cluster. Exporters are
// chosen from the OTEL_TRACES_EXPORTER environment variable; see
// OptionTelemetryExporter.
//
// EXPERIMENTAL.
type OTelTracingInit interface {
	InitTracing(ctx context.Context, driverName string, driverVersion string) error
}

// OTelTracing is implemented by clusters and scopes that emit a span for
// every query they execute.
//
// EXPERIMENTAL.
type OTelTracing interface {
	// SetTraceParent parents every later query span to a W3C traceparent
	// value. An empty value detaches the spans again.
	SetTraceParent(string)
	// GetTraceParent returns the current traceparent, or "".
	GetTraceParent() string
	// StartSpan starts a span under the configured trace parent, if any.
	StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span)
	// GetInitialSpanAttributes returns the driver and engine attributes
	// every query span starts with.
	GetInitialSpanAttributes() []attribute.KeyValue
}
