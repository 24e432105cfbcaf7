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

package streaming

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/columnar-sdk/columnar-go"
	"golang.org/x/sync/errgroup"
)

// Executor runs one query against a blocking Engine. Submit and NextRow
// are meant to be called from a single goroutine; Cancel, State and
// Metadata may be called from any goroutine.
type Executor struct {
	machine

	engine columnar.Engine
	req    *columnar.QueryRequest
	policy CancelPolicy

	hmu    sync.Mutex
	handle columnar.QueryHandle
}

// NewExecutor returns an executor for req in the NotStarted state.
func NewExecutor(engine columnar.Engine, req *columnar.QueryRequest, cfg Config) *Executor {
	e := &Executor{engine: engine, req: req, policy: cfg.Policy}
	if e.policy == nil {
		e.policy = NoCancel{}
	}
	if p, ok := e.policy.(PolledCancel); ok {
		e.token = p.Token
	}
	e.init(req, cfg)
	return e
}

// Policy returns the cancel policy of the executor.
func (e *Executor) Policy() CancelPolicy { return e.policy }

// CancelToken returns the token of a PolledCancel executor, or nil.
func (e *Executor) CancelToken() *columnar.CancelToken { return e.token }

// Request returns the request the executor dispatches.
func (e *Executor) Request() *columnar.QueryRequest { return e.req }

func (e *Executor) queryHandle() columnar.QueryHandle {
	e.hmu.Lock()
	defer e.hmu.Unlock()
	return e.handle
}

// Submit dispatches the query and waits until its result is ready to be
// iterated. ctx governs the whole query, not only the submission: once it
// is done the engine stops producing rows.
//
// Under PolledCancel, setting the token while Submit waits cancels the
// query and Submit returns nil; the executor is then Cancelled and yields
// no rows.
func (e *Executor) Submit(ctx context.Context) error {
	if err := e.begin(); err != nil {
		return err
	}

	handle, err := e.engine.SubmitQuery(ctx, e.req)
	if err != nil {
		return e.failDispatch(checkContext(ctx, e.mapper.Map(err)))
	}
	e.hmu.Lock()
	e.handle = handle
	e.hmu.Unlock()
	e.setCursor(handle)

	switch p := e.policy.(type) {
	case PolledCancel:
		return e.waitInBackground(ctx, handle, p)
	default:
		if err := handle.WaitForResult(ctx); err != nil {
			if ctx.Err() != nil {
				e.Cancel()
			}
			return e.mapper.Map(err)
		}
		return checkContext(ctx, nil)
	}
}

// waitInBackground waits for the result on a worker while polling the
// cancel token.
func (e *Executor) waitInBackground(ctx context.Context, handle columnar.QueryHandle, p PolledCancel) error {
	var g errgroup.Group
	g.SetLimit(2)

	done := make(chan struct{})
	g.Go(func() error {
		defer close(done)
		return e.mapper.Map(handle.WaitForResult(ctx))
	})

	ticker := time.NewTicker(p.interval())
	defer ticker.Stop()

	var ctxErr error
wait:
	for {
		select {
		case <-done:
			break wait
		case <-ctx.Done():
			ctxErr = ctx.Err()
			e.Cancel()
			break wait
		case <-ticker.C:
			if e.State() == columnar.StreamingCancelled {
				break wait
			}
			if p.Token != nil && p.Token.IsSet() {
				e.logger.Debug("cancel token set while waiting for query result")
				e.Cancel()
				break wait
			}
		}
	}

	err := g.Wait()
	if ctxErr != nil {
		return e.mapper.Map(ctxErr)
	}
	if columnar.IsStatus(err, columnar.StatusQueryOperationCanceled) {
		return nil
	}
	return err
}

// NextRow returns the next decoded row, or io.EOF once the stream has
// ended. A row that fails to decode is returned with the decoder's error
// as is. If the engine refused the query, every call returns that
// failure.
func (e *Executor) NextRow() (any, error) {
	handle := e.queryHandle()
	if handle == nil {
		return nil, e.undispatched()
	}
	if !e.State().OkayToIterate() {
		return nil, io.EOF
	}
	if e.token != nil && e.token.IsSet() {
		e.Cancel()
		return nil, io.EOF
	}
	return e.row(handle.Next())
}

func checkContext(ctx context.Context, maybeErr error) error {
	if maybeErr != nil {
		return maybeErr
	} else if ctx.Err() == context.Canceled {
		return columnar.Error{Msg: "Cancelled by request", Code: columnar.StatusQueryOperationCanceled, InnerCause: ctx.Err()}
	} else if ctx.Err() == context.DeadlineExceeded {
		return columnar.Error{Msg: "Deadline exceeded", Code: columnar.StatusTimeout, InnerCause: ctx.Err()}
	}
	return ctx.Err()
}
