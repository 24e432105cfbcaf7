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

package driverbase

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/columnar-sdk/columnar-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	driverNamespace    = "columnar"
	otelTracesExporter = "OTEL_TRACES_EXPORTER"
)

type traceExporterType int

const (
	TraceExporterNone traceExporterType = iota
	TraceExporterOtlp
	TraceExporterConsole
	TraceExporterColumnarFile
)

var traceExporterNames = map[string]traceExporterType{
	string(columnar.TelemetryExporterNone):         TraceExporterNone,
	string(columnar.TelemetryExporterOtlp):         TraceExporterOtlp,
	string(columnar.TelemetryExporterConsole):      TraceExporterConsole,
	string(columnar.TelemetryExporterColumnarFile): TraceExporterColumnarFile,
}

func (te traceExporterType) String() string {
	return [...]string{
		string(columnar.TelemetryExporterNone),
		string(columnar.TelemetryExporterOtlp),
		string(columnar.TelemetryExporterConsole),
		string(columnar.TelemetryExporterColumnarFile),
	}[te]
}

const (
	ClusterMessageOtelTracesExporterOptionUnknown = "Unknown " + otelTracesExporter + " option"
	ClusterMessageNoOtelTracesExporters           = "No trace exporters added"
)

// getExporterName is a variable so tests can pick an exporter without
// touching the process environment.
var getExporterName = sync.OnceValue(func() string {
	return os.Getenv(otelTracesExporter)
})

// ClusterImplBase carries the resources shared by everything opened from
// one cluster: the error helper, the logger and the tracer. It is meant
// to be embedded by the driver's cluster type.
type ClusterImplBase struct {
	ErrorHelper ErrorHelper
	DriverInfo  *DriverInfo
	Logger      *slog.Logger
	Tracer      trace.Tracer

	tracerShutdownFunc func(context.Context) error
	traceParent        string
}

// NewClusterImplBase instantiates ClusterImplBase and initializes tracing
// according to OTEL_TRACES_EXPORTER.
//
//   - driver is a DriverImplBase containing the common resources from the parent
//     driver, allowing the error helper and driver info to be reused.
func NewClusterImplBase(ctx context.Context, driver *DriverImplBase) (ClusterImplBase, error) {
	cluster := ClusterImplBase{
		ErrorHelper: driver.ErrorHelper,
		DriverInfo:  driver.DriverInfo,
		Logger:      nilLogger(),
		Tracer:      nilTracer(),
	}
	err := cluster.InitTracing(ctx, driver.DriverInfo.GetName(), getDriverVersion(driver.DriverInfo))
	return cluster, err
}

func (base *ClusterImplBase) Base() *ClusterImplBase {
	return base
}

// SetLogger replaces the logger. A nil logger discards everything.
func (base *ClusterImplBase) SetLogger(logger *slog.Logger) {
	if logger != nil {
		base.Logger = logger
	} else {
		base.Logger = nilLogger()
	}
}

// Close flushes and stops the tracer provider, if one was created.
func (base *ClusterImplBase) Close() (err error) {
	if base.tracerShutdownFunc != nil {
		err = base.tracerShutdownFunc(context.Background())
		base.tracerShutdownFunc = nil
	}
	return
}

func (base *ClusterImplBase) GetInitialSpanAttributes() []attribute.KeyValue {
	return getInitialSpanAttributes(base.DriverInfo)
}

func (base *ClusterImplBase) GetTraceParent() (traceParent string) {
	return base.traceParent
}

func (base *ClusterImplBase) SetTraceParent(traceParent string) {
	base.traceParent = traceParent
}

func (base *ClusterImplBase) StartSpan(
	ctx context.Context,
	spanName string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	ctx, _ = maybeAddTraceParent(ctx, base)
	return base.Tracer.Start(ctx, spanName, opts...)
}

func (base *ClusterImplBase) InitTracing(ctx context.Context, driverName string, driverVersion string) (err error) {
	fullyQualifiedDriverName := driverNamespace + "." + driverName

	exporterName := getExporterName()

	// Empty exporter
	if exporterName == "" {
		base.Tracer = otel.Tracer(fullyQualifiedDriverName)
		return
	}

	var (
		exporterType traceExporterType
		exporters    []sdktrace.SpanExporter
	)

	exporters, exporterType, err = getExporters(ctx, exporterName, base, driverName)
	if err != nil {
		return
	}

	if len(exporters) < 1 {
		if exporterType == TraceExporterNone {
			base.Tracer = nilTracer()
			return
		}
		err = base.ErrorHelper.Errorf(
			columnar.StatusInternalSDK,
			"%s '%s'",
			ClusterMessageNoOtelTracesExporters,
			exporterType.String(),
		)
		return
	}

	base.Tracer, err = newTracer(exporters, base, fullyQualifiedDriverName, driverVersion)
	return
}

var _ columnar.OTelTracingInit = (*ClusterImplBase)(nil)
var _ columnar.OTelTracing = (*ClusterImplBase)(nil)
var _ columnar.ClusterLogging = (*ClusterImplBase)(nil)

func getExporters(
	ctx context.Context,
	exporterName string,
	base *ClusterImplBase,
	driverName string,
) (exporters []sdktrace.SpanExporter, exporterType traceExporterType, err error) {
	var exporter sdktrace.SpanExporter
	exporterType, ok := tryParseTraceExporterType(exporterName)
	if !ok {
		err = base.ErrorHelper.Errorf(
			columnar.StatusInvalidArgument,
			"%s '%s'",
			ClusterMessageOtelTracesExporterOptionUnknown,
			exporterName,
		)
		return
	}
	switch exporterType {
	case TraceExporterNone:
	case TraceExporterConsole:
		exporter, err = stdouttrace.New()
		if err != nil {
			return
		}
		exporters = append(exporters, exporter)
	case TraceExporterOtlp:
		exporters, err = newOtlpTraceExporters(ctx)
		if err != nil {
			return
		}
	case TraceExporterColumnarFile:
		exporter, err = newColumnarFileExporter(driverName)
		if err != nil {
			return
		}
		exporters = append(exporters, exporter)
	}
	return
}

func newTracer(
	exporters []sdktrace.SpanExporter,
	base *ClusterImplBase,
	fullyQualifiedDriverName string,
	driverVersion string,
) (tracer trace.Tracer, err error) {
	var tracerProvider *sdktrace.TracerProvider
	tracerProvider, err = newTracerProvider(exporters...)
	if err != nil {
		return
	}
	base.tracerShutdownFunc = tracerProvider.Shutdown
	tracer = tracerProvider.Tracer(
		fullyQualifiedDriverName,
		trace.WithInstrumentationVersion(driverVersion),
		trace.WithSchemaURL(semconv.SchemaURL),
	)
	return
}

func tryParseTraceExporterType(value string) (traceExporterType, bool) {
	if te, ok := traceExporterNames[strings.ToLower(value)]; ok {
		return te, true
	}
	return TraceExporterNone, false
}

func getDriverVersion(driverInfo *DriverInfo) string {
	const unknownDriverVersion = "unknown"
	value, ok := driverInfo.GetInfoForInfoCode(InfoDriverVersion)
	if !ok {
		return unknownDriverVersion
	}
	if driverVersion, ok := value.(string); ok {
		return driverVersion
	}
	return unknownDriverVersion
}

func newOtlpTraceExporters(ctx context.Context) ([]sdktrace.SpanExporter, error) {
	// Both exporters read their endpoints from the OTEL_EXPORTER_OTLP_*
	// environment variables.
	grpcExporter, err := otlptracegrpc.New(
		ctx,
		otlptracegrpc.WithRetry(otlptracegrpc.RetryConfig{
			Enabled:         true,
			InitialInterval: 5 * time.Second,
			MaxInterval:     30 * time.Second,
		}),
	)
	if err != nil {
		return nil, err
	}
	httpExporter, err := otlptracehttp.New(
		ctx,
		otlptracehttp.WithRetry(otlptracehttp.RetryConfig{
			Enabled:         true,
			InitialInterval: 5 * time.Second,
			MaxInterval:     30 * time.Second,
		}),
	)
	if err != nil {
		return nil, errors.Join(err, grpcExporter.Shutdown(ctx))
	}

	return []sdktrace.SpanExporter{grpcExporter, httpExporter}, nil
}

func newColumnarFileExporter(driverName string, opts ...rotatingFileWriterOption) (*stdouttrace.Exporter, error) {
	fullyQualifiedDriverName := strings.ToLower(driverNamespace + "." + driverName)
	opts = append([]rotatingFileWriterOption{WithLogNamePrefix(fullyQualifiedDriverName)}, opts...)
	fileWriter, err := NewRotatingFileWriter(opts...)
	if err != nil {
		return nil, err
	}
	return stdouttrace.New(stdouttrace.WithWriter(fileWriter))
}

func newTracerProvider(exporters ...sdktrace.SpanExporter) (*sdktrace.TracerProvider, error) {
	tracerResource, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(driverNamespace),
		),
	)
	if err != nil {
		if errors.Is(err, resource.ErrSchemaURLConflict) {
			// the default resource uses another schema version
			tracerResource = resource.NewWithAttributes(
				semconv.SchemaURL,
				semconv.ServiceName(driverNamespace),
			)
		} else {
			return nil, err
		}
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(tracerResource),
	}
	for _, exporter := range exporters {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}
