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

	"github.com/columnar-sdk/columnar-go"
)

var errCanceledBeforeReady = columnar.Error{
	Msg:  "query was canceled before its result was ready",
	Code: columnar.StatusQueryOperationCanceled,
}

// AsyncExecutor runs one query against an AsyncEngine. Engine callbacks
// are posted onto loop, and only the loop goroutine resolves the futures
// Submit and NextRow wait on. There is never more than one of them
// outstanding.
type AsyncExecutor struct {
	machine

	engine columnar.AsyncEngine
	req    *columnar.QueryRequest
	loop   *Loop

	hmu    sync.Mutex
	handle columnar.AsyncQueryHandle

	// owned by the loop goroutine once the query is dispatched
	ready   *Future[struct{}]
	pending *Future[[]byte]
}

// NewAsyncExecutor returns an executor for req in the NotStarted state.
// The loop is shared, not owned: closing it is up to the caller.
func NewAsyncExecutor(engine columnar.AsyncEngine, loop *Loop, req *columnar.QueryRequest, cfg Config) *AsyncExecutor {
	e := &AsyncExecutor{engine: engine, req: req, loop: loop}
	e.init(req, cfg)
	return e
}

// Policy always returns Cooperative.
func (e *AsyncExecutor) Policy() CancelPolicy { return Cooperative{} }

// Request returns the request the executor dispatches.
func (e *AsyncExecutor) Request() *columnar.QueryRequest { return e.req }

func (e *AsyncExecutor) queryHandle() columnar.AsyncQueryHandle {
	e.hmu.Lock()
	defer e.hmu.Unlock()
	return e.handle
}

// Submit dispatches the query and returns once the engine reports the
// result ready, or ctx is done, in which case the query is canceled.
func (e *AsyncExecutor) Submit(ctx context.Context) error {
	if err := e.begin(); err != nil {
		return err
	}

	ready := NewFuture[struct{}]()
	e.ready = ready
	handle, err := e.engine.SubmitQueryAsync(e.req, e.onReady, e.onRow)
	if err != nil {
		return e.failDispatch(e.mapper.Map(err))
	}
	e.hmu.Lock()
	e.handle = handle
	e.hmu.Unlock()
	e.setCursor(handle)

	if _, err := ready.Await(ctx); err != nil {
		if ctx.Err() != nil {
			e.Cancel()
			return checkContext(ctx, nil)
		}
		return err
	}
	return nil
}

func (e *AsyncExecutor) onReady(err error) {
	_ = e.loop.Post(func() {
		e.ready.Resolve(struct{}{}, e.mapper.Map(err))
	})
}

func (e *AsyncExecutor) onRow(raw []byte, err error) {
	_ = e.loop.Post(func() {
		f := e.pending
		e.pending = nil
		if f != nil {
			f.Resolve(raw, err)
		}
	})
}

// NextRow requests the next row from the engine and waits for it. It
// returns io.EOF once the stream has ended, and the dispatch failure on
// every call if the engine refused the query.
func (e *AsyncExecutor) NextRow(ctx context.Context) (any, error) {
	handle := e.queryHandle()
	if handle == nil {
		return nil, e.undispatched()
	}
	if !e.State().OkayToIterate() {
		return nil, io.EOF
	}

	f := NewFuture[[]byte]()
	if err := e.loop.Post(func() { e.pending = f }); err != nil {
		return nil, err
	}
	handle.RequestNext()

	raw, err := f.Await(ctx)
	if err != nil && ctx.Err() != nil {
		e.Cancel()
		return nil, checkContext(ctx, nil)
	}
	return e.row(raw, err)
}

// Cancel cancels the query on the engine, and releases a Submit or
// NextRow call that is waiting for it.
func (e *AsyncExecutor) Cancel() {
	if e.queryHandle() == nil {
		return
	}
	e.machine.Cancel()
	_ = e.loop.Post(func() {
		if e.ready != nil {
			e.ready.Resolve(struct{}{}, errCanceledBeforeReady)
		}
		if f := e.pending; f != nil {
			e.pending = nil
			f.Resolve(nil, nil)
		}
	})
}
