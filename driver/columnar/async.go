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
	"sync"

	sdk "github.com/columnar-sdk/columnar-go"
	"github.com/columnar-sdk/columnar-go/driver/internal/driverbase"
	"github.com/columnar-sdk/columnar-go/internal/streaming"
)

// AsyncCluster is the async flavor of Cluster. Engine callbacks are
// serialized on a single goroutine owned by the cluster, and every
// ExecuteQuery returns once the query was submitted and its result is
// ready.
type AsyncCluster struct {
	cluster *Cluster
	engine  sdk.AsyncEngine
	loop    *streaming.Loop

	closeOnce sync.Once
	closeErr  error
}

func newAsyncCluster(cluster *Cluster) *AsyncCluster {
	return &AsyncCluster{
		cluster: cluster,
		engine:  sdk.AsAsyncEngine(cluster.engine),
		loop:    streaming.NewLoop(),
	}
}

// Cluster returns the blocking cluster sharing this cluster's engine.
func (c *AsyncCluster) Cluster() *Cluster { return c.cluster }

// Database returns a handle on the named database.
func (c *AsyncCluster) Database(name string) *AsyncDatabase {
	return &AsyncDatabase{cluster: c, name: name}
}

func (c *AsyncCluster) ExecuteQuery(ctx context.Context, statement string, opts ...QueryOption) (res *AsyncQueryResult, err error) {
	ctx, span := c.cluster.startQuerySpan(ctx, &c.cluster.ClusterImplBase, statement, "")
	defer func() { endSpan(span, err) }()
	return c.execute(ctx, statement, "", opts)
}

func (c *AsyncCluster) execute(ctx context.Context, statement, queryContext string, opts []QueryOption) (*AsyncQueryResult, error) {
	if c.cluster.closed.Load() {
		return nil, errClusterClosed
	}
	req, _, err := c.cluster.builder(queryContext).build(ctx, statement, opts)
	if err != nil {
		return nil, err
	}
	exec := streaming.NewAsyncExecutor(c.engine, c.loop, req, streaming.Config{
		Mapper: c.cluster.mapper,
		Logger: c.cluster.Logger,
	})
	if err := exec.Submit(ctx); err != nil {
		return nil, err
	}
	return &AsyncQueryResult{exec: exec}, nil
}

// Close closes the engine, then stops the callback goroutine once the
// callbacks already queued have run.
func (c *AsyncCluster) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.cluster.Close()
		c.loop.Close()
	})
	return c.closeErr
}

// AsyncDatabase is a database of an AsyncCluster.
type AsyncDatabase struct {
	cluster *AsyncCluster
	name    string
}

func (d *AsyncDatabase) Name() string { return d.name }

func (d *AsyncDatabase) Scope(name string) *AsyncScope {
	return &AsyncScope{
		ScopeImplBase: driverbase.NewScopeImplBase(&d.cluster.cluster.ClusterImplBase),
		database:      d,
		name:          name,
	}
}

// AsyncScope is the async flavor of Scope.
type AsyncScope struct {
	driverbase.ScopeImplBase

	database *AsyncDatabase
	name     string
}

func (s *AsyncScope) Name() string { return s.name }

func (s *AsyncScope) QueryContext() string {
	return queryContext(s.database.name, s.name)
}

func (s *AsyncScope) ExecuteQuery(ctx context.Context, statement string, opts ...QueryOption) (res *AsyncQueryResult, err error) {
	c := s.database.cluster
	ctx, span := c.cluster.startQuerySpan(ctx, &s.ScopeImplBase, statement, s.QueryContext())
	defer func() { endSpan(span, err) }()
	return c.execute(ctx, statement, s.QueryContext(), opts)
}
