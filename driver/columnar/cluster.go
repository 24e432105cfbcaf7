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
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/memory"
	sdk "github.com/columnar-sdk/columnar-go"
	"github.com/columnar-sdk/columnar-go/driver/internal/driverbase"
	"github.com/columnar-sdk/columnar-go/errmap"
	"github.com/columnar-sdk/columnar-go/internal/streaming"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
	"go.opentelemetry.io/otel/trace"
)

// Cluster is a connection to a Columnar cluster. It is safe for
// concurrent use.
type Cluster struct {
	driverbase.ClusterImplBase

	alloc   memory.Allocator
	engine  sdk.Engine
	options sdk.ClusterOptions
	spec    ConnSpec
	mapper  *errmap.Mapper

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var errClusterClosed = fmt.Errorf("%w: cannot perform operations on a closed cluster", sdk.ErrRuntime)

// Options returns the resolved options of the cluster.
func (c *Cluster) Options() sdk.ClusterOptions { return c.options }

// ConnSpec returns the parsed connection string.
func (c *Cluster) ConnSpec() ConnSpec { return c.spec }

// Info is Driver.Info with the engine name of the cluster.
func (c *Cluster) Info() map[string]any { return infoMap(c.DriverInfo) }

// Allocator is the arrow allocator for records built from results.
func (c *Cluster) Allocator() memory.Allocator { return c.alloc }

// Database returns a handle on the named database. No request is made.
func (c *Cluster) Database(name string) *Database {
	return &Database{cluster: c, name: name}
}

// ExecuteQuery prepares statement for execution. The query is submitted
// when its rows are first requested.
func (c *Cluster) ExecuteQuery(ctx context.Context, statement string, opts ...QueryOption) (res *BlockingQueryResult, err error) {
	ctx, span := c.startQuerySpan(ctx, &c.ClusterImplBase, statement, "")
	defer func() { endSpan(span, err) }()

	exec, _, err := c.newExecutor(ctx, statement, "", opts, true)
	if err != nil {
		return nil, err
	}
	return &BlockingQueryResult{exec: exec}, nil
}

// Close closes the engine and flushes the tracer. Queries still running
// are canceled by the engine.
func (c *Cluster) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.engine.Close()
		if err := c.ClusterImplBase.Close(); err != nil && c.closeErr == nil {
			c.closeErr = err
		}
		c.Logger.Info("cluster closed", "scheme", c.spec.Scheme)
	})
	return c.closeErr
}

func (c *Cluster) builder(queryContext string) *requestBuilder {
	return &requestBuilder{
		logger:       c.Logger,
		deserializer: c.options.Deserializer,
		queryContext: queryContext,
	}
}

// newExecutor builds the request and its executor. lazy is the default
// when the query options do not ask for lazy execution.
func (c *Cluster) newExecutor(ctx context.Context, statement, queryContext string, opts []QueryOption, lazy bool) (*streaming.Executor, sdk.QueryOptions, error) {
	if c.closed.Load() {
		return nil, sdk.QueryOptions{}, errClusterClosed
	}
	req, qopts, err := c.builder(queryContext).build(ctx, statement, opts)
	if err != nil {
		return nil, qopts, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("columnar.query.client_context_id", req.ClientContextID))

	exec := streaming.NewExecutor(c.engine, req, streaming.Config{
		Mapper:      c.mapper,
		Logger:      c.Logger,
		Policy:      streaming.PolicyFor(qopts.CancelToken, qopts.CancelPollInterval),
		LazyExecute: lazy || qopts.LazyExecute,
	})
	return exec, qopts, nil
}

type spanStarter interface {
	StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span)
}

func (c *Cluster) startQuerySpan(ctx context.Context, tracer spanStarter, statement, namespace string) (context.Context, trace.Span) {
	attrs := append(c.GetInitialSpanAttributes(), semconv.DBQueryText(statement))
	if namespace != "" {
		attrs = append(attrs, semconv.DBNamespace(namespace))
	}
	return tracer.StartSpan(ctx, "ExecuteQuery",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Database is a database of a cluster.
type Database struct {
	cluster *Cluster
	name    string
}

func (d *Database) Name() string { return d.name }

func (d *Database) Cluster() *Cluster { return d.cluster }

// Scope returns a handle on the named scope of the database.
func (d *Database) Scope(name string) *Scope {
	return &Scope{
		ScopeImplBase: driverbase.NewScopeImplBase(&d.cluster.ClusterImplBase),
		database:      d,
		name:          name,
	}
}

// Scope is a scope of a database. Queries executed on a scope resolve
// unqualified names within it.
type Scope struct {
	driverbase.ScopeImplBase

	database *Database
	name     string
}

func (s *Scope) Name() string { return s.name }

func (s *Scope) Database() *Database { return s.database }

// QueryContext is the qualifier sent with every query of the scope.
func (s *Scope) QueryContext() string {
	return queryContext(s.database.name, s.name)
}

func queryContext(database, scope string) string {
	return fmt.Sprintf("default:`%s`.`%s`", database, scope)
}

// ExecuteQuery submits statement and waits for its result to be ready,
// unless WithLazyExecute is given. With a cancel token, the submission
// can be abandoned by setting the token.
func (s *Scope) ExecuteQuery(ctx context.Context, statement string, opts ...QueryOption) (res *BlockingQueryResult, err error) {
	c := s.database.cluster
	ctx, span := c.startQuerySpan(ctx, &s.ScopeImplBase, statement, s.QueryContext())
	defer func() { endSpan(span, err) }()

	exec, qopts, err := c.newExecutor(ctx, statement, s.QueryContext(), opts, false)
	if err != nil {
		return nil, err
	}
	// a cancelable query is always submitted right away
	if !exec.LazyExecute() || qopts.CancelToken != nil {
		if err := exec.Submit(ctx); err != nil {
			return nil, err
		}
	}
	return &BlockingQueryResult{exec: exec}, nil
}
