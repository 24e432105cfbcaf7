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

// Package validation is an engine-agnostic test suite intended to aid in
// engine development. It checks that an engine honors the contract the
// driver relies on, both directly and through a connected cluster.
package validation

import (
	"context"
	"testing"

	"github.com/columnar-sdk/columnar-go"
	driver "github.com/columnar-sdk/columnar-go/driver/columnar"
	"github.com/columnar-sdk/columnar-go/errmap"
	"github.com/stretchr/testify/suite"
)

type EngineQuirks interface {
	// Called in SetupTest to create the engine under test
	SetupEngine(*testing.T) columnar.Engine
	// Called in TearDownTest, after the engine was closed
	TearDownEngine(*testing.T, columnar.Engine)
	// A statement returning the single row {"$1": 1}
	SelectOne() string
	// A statement returning the rows of SampleRows, in order
	SampleQuery() string
	SampleRows() []any
	// A statement the engine rejects with a query error
	InvalidQuery() string
}

type EngineTests struct {
	suite.Suite

	Quirks EngineQuirks
	Engine columnar.Engine

	ctx    context.Context
	mapper *errmap.Mapper
}

func (e *EngineTests) SetupTest() {
	e.ctx = context.Background()
	e.mapper = errmap.New(nil)
	e.Engine = e.Quirks.SetupEngine(e.T())
}

func (e *EngineTests) TearDownTest() {
	e.NoError(e.Engine.Close())
	e.Quirks.TearDownEngine(e.T(), e.Engine)
	e.Engine = nil
}

func (e *EngineTests) submit(statement string) (columnar.QueryHandle, error) {
	h, err := e.Engine.SubmitQuery(e.ctx, &columnar.QueryRequest{Statement: statement, ClientContextID: "validation"})
	if err != nil {
		return nil, e.mapper.Map(err)
	}
	if err := h.WaitForResult(e.ctx); err != nil {
		return h, e.mapper.Map(err)
	}
	return h, nil
}

func (e *EngineTests) TestSelectOne() {
	h, err := e.submit(e.Quirks.SelectOne())
	e.Require().NoError(err)

	md, err := h.Metadata()
	e.NoError(err)
	e.Nil(md, "metadata is only reported after the last row")

	row, err := h.Next()
	e.Require().NoError(err)
	e.JSONEq(`{"$1":1}`, string(row))

	row, err = h.Next()
	e.NoError(err)
	e.Nil(row)
	// the sentinel repeats
	row, err = h.Next()
	e.NoError(err)
	e.Nil(row)

	md, err = h.Metadata()
	e.Require().NoError(err)
	e.Require().NotNil(md)
	e.Equal(columnar.QueryStatusSuccess, md.Status)
	e.Require().NotNil(md.Metrics)
	e.EqualValues(1, md.Metrics.ResultCount)
}

func (e *EngineTests) TestSampleRows() {
	h, err := e.submit(e.Quirks.SampleQuery())
	e.Require().NoError(err)

	var rows []any
	for {
		raw, err := h.Next()
		e.Require().NoError(err)
		if raw == nil {
			break
		}
		row, err := columnar.JSONDeserializer{}.Deserialize(raw)
		e.Require().NoError(err)
		rows = append(rows, row)
	}
	e.Equal(e.Quirks.SampleRows(), rows)
}

func (e *EngineTests) TestInvalidQuery() {
	h, err := e.submit(e.Quirks.InvalidQuery())
	if err == nil {
		_, err = h.Next()
		err = e.mapper.Map(err)
	}
	e.True(columnar.IsStatus(err, columnar.StatusQuery), "got %v", err)
}

func (e *EngineTests) TestCancelTwice() {
	h, err := e.Engine.SubmitQuery(e.ctx, &columnar.QueryRequest{Statement: e.Quirks.SampleQuery()})
	e.Require().NoError(err)
	h.Cancel()
	h.Cancel()

	// a canceled query either fails as canceled or stops early
	if err := h.WaitForResult(e.ctx); err != nil {
		e.True(columnar.IsStatus(e.mapper.Map(err), columnar.StatusQueryOperationCanceled), "got %v", err)
		return
	}
	if _, err := h.Next(); err != nil {
		e.True(columnar.IsStatus(e.mapper.Map(err), columnar.StatusQueryOperationCanceled), "got %v", err)
	}
}

func (e *EngineTests) TestSubmitAfterClose() {
	e.Require().NoError(e.Engine.Close())
	_, err := e.Engine.SubmitQuery(e.ctx, &columnar.QueryRequest{Statement: e.Quirks.SelectOne()})
	e.ErrorIs(e.mapper.Map(err), columnar.ErrRuntime)
}

type ClusterTests struct {
	suite.Suite

	Quirks  EngineQuirks
	Cluster *driver.Cluster

	ctx context.Context
}

func (c *ClusterTests) SetupTest() {
	c.ctx = context.Background()
	var err error
	c.Cluster, err = driver.NewDriver(nil).Connect(c.ctx, "validation://localhost", columnar.Credential{},
		driver.WithEngine(c.Quirks.SetupEngine(c.T())))
	c.Require().NoError(err)
}

func (c *ClusterTests) TearDownTest() {
	c.NoError(c.Cluster.Close())
	c.Cluster = nil
}

func (c *ClusterTests) TestSelectOne() {
	res, err := c.Cluster.ExecuteQuery(c.ctx, c.Quirks.SelectOne())
	c.Require().NoError(err)
	rows, err := res.GetAllRows(c.ctx)
	c.Require().NoError(err)
	c.Equal([]any{map[string]any{"$1": float64(1)}}, rows)

	md, err := res.Metadata()
	c.Require().NoError(err)
	c.Equal(columnar.QueryStatusSuccess, md.Status)

	_, err = res.GetAllRows(c.ctx)
	c.True(columnar.IsStatus(err, columnar.StatusAlreadyIterated))
}

func (c *ClusterTests) TestScope() {
	res, err := c.Cluster.Database("travel").Scope("inventory").ExecuteQuery(c.ctx, c.Quirks.SampleQuery())
	c.Require().NoError(err)
	c.Equal(columnar.StreamingStarted, res.State())

	rows, err := res.GetAllRows(c.ctx)
	c.Require().NoError(err)
	c.Equal(c.Quirks.SampleRows(), rows)
	c.Equal(columnar.StreamingCompleted, res.State())
}

func (c *ClusterTests) TestPassthrough() {
	res, err := c.Cluster.ExecuteQuery(c.ctx, c.Quirks.SelectOne(), driver.WithDeserializer(columnar.PassthroughDeserializer{}))
	c.Require().NoError(err)
	rows, err := res.GetAllRows(c.ctx)
	c.Require().NoError(err)
	c.Require().Len(rows, 1)
	c.IsType([]byte(nil), rows[0])
}

func (c *ClusterTests) TestInvalidQuery() {
	res, err := c.Cluster.ExecuteQuery(c.ctx, c.Quirks.InvalidQuery())
	c.Require().NoError(err)
	_, err = res.GetAllRows(c.ctx)
	c.True(columnar.IsStatus(err, columnar.StatusQuery), "got %v", err)
}

func (c *ClusterTests) TestCancel() {
	res, err := c.Cluster.ExecuteQuery(c.ctx, c.Quirks.SampleQuery())
	c.Require().NoError(err)
	it, err := res.Rows(c.ctx)
	c.Require().NoError(err)
	c.Require().True(it.Next())

	res.Cancel()
	c.False(it.Next())
	c.NoError(it.Err())
	c.Equal(columnar.StreamingCancelled, res.State())
}

func (c *ClusterTests) TestAsync() {
	async, err := driver.NewDriver(nil).ConnectAsync(c.ctx, "validation://localhost", columnar.Credential{},
		driver.WithEngine(c.Quirks.SetupEngine(c.T())))
	c.Require().NoError(err)
	defer func() { c.NoError(async.Close()) }()

	res, err := async.Database("travel").Scope("inventory").ExecuteQuery(c.ctx, c.Quirks.SampleQuery())
	c.Require().NoError(err)
	rows, err := res.GetAllRows(c.ctx)
	c.Require().NoError(err)
	c.Equal(c.Quirks.SampleRows(), rows)
}
