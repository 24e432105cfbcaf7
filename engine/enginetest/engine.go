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

// Package enginetest provides a scripted columnar.Engine for tests.
//
// Every query submitted to an Engine plays the next Script: the rows it
// returns, where it fails, and whether the result waits to be released.
package enginetest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/columnar-sdk/columnar-go"
)

// Script describes how the engine answers one query.
type Script struct {
	// Rows are returned in order, followed by the completion sentinel.
	Rows [][]byte
	// SubmitErr fails the dispatch itself.
	SubmitErr error
	// ReadyErr is returned by WaitForResult.
	ReadyErr error
	// RowErr is returned by Next in place of the row at RowErrAt.
	RowErr   error
	RowErrAt int
	// Metadata is reported once the sentinel was returned. When nil, a
	// success metadata counting the rows is reported.
	Metadata    *columnar.Metadata
	MetadataErr error
	// Hold makes WaitForResult block until Release, Cancel, or the
	// submission context is done.
	Hold bool
}

// Rows is a convenience for building Script.Rows from strings.
func Rows(rows ...string) [][]byte {
	out := make([][]byte, len(rows))
	for i, r := range rows {
		out[i] = []byte(r)
	}
	return out
}

// Engine is a scripted engine. The last script is replayed once all the
// others have been consumed.
type Engine struct {
	mu       sync.Mutex
	scripts  []Script
	requests []*columnar.QueryRequest
	handles  []*Handle
	closed   bool
}

var _ columnar.Engine = (*Engine)(nil)

// New returns an engine playing scripts in order.
func New(scripts ...Script) *Engine {
	if len(scripts) == 0 {
		scripts = []Script{{}}
	}
	return &Engine{scripts: scripts}
}

func (e *Engine) SubmitQuery(ctx context.Context, req *columnar.QueryRequest) (columnar.QueryHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.requests = append(e.requests, req)
	script := e.scripts[0]
	if len(e.scripts) > 1 {
		e.scripts = e.scripts[1:]
	}
	if e.closed {
		return nil, &columnar.BindingError{Type: columnar.BindingErrorRuntime, Message: "engine is closed"}
	}
	if script.SubmitErr != nil {
		return nil, script.SubmitErr
	}

	h := &Handle{
		script:  script,
		ctx:     ctx,
		cancel:  make(chan struct{}),
		release: make(chan struct{}),
	}
	e.handles = append(e.handles, h)
	return h, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Requests returns every request submitted so far.
func (e *Engine) Requests() []*columnar.QueryRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*columnar.QueryRequest(nil), e.requests...)
}

// Handles returns the handle of every successful submission so far.
func (e *Engine) Handles() []*Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Handle(nil), e.handles...)
}

// LastHandle returns the most recent handle, or nil.
func (e *Engine) LastHandle() *Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.handles) == 0 {
		return nil
	}
	return e.handles[len(e.handles)-1]
}

// Handle is the cursor of one scripted query.
type Handle struct {
	script Script
	ctx    context.Context

	mu       sync.Mutex
	pos      int
	finished bool
	nextCall int

	cancelOnce  sync.Once
	cancel      chan struct{}
	releaseOnce sync.Once
	release     chan struct{}
	cancels     atomic.Int32
}

var errCanceled = &columnar.BindingError{Type: columnar.BindingErrorRuntime, Message: "query operation canceled"}

func (h *Handle) Next() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextCall++

	if h.Canceled() {
		return nil, errCanceled
	}
	if h.script.RowErr != nil && h.pos == h.script.RowErrAt {
		h.pos++
		return nil, h.script.RowErr
	}
	if h.pos < len(h.script.Rows) {
		row := h.script.Rows[h.pos]
		h.pos++
		return row, nil
	}
	h.finished = true
	return nil, nil
}

func (h *Handle) Metadata() (*columnar.Metadata, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.script.MetadataErr != nil {
		return nil, h.script.MetadataErr
	}
	if !h.finished {
		return nil, nil
	}
	if h.script.Metadata != nil {
		return h.script.Metadata, nil
	}
	return &columnar.Metadata{
		RequestID: "enginetest",
		Status:    columnar.QueryStatusSuccess,
		Metrics:   &columnar.Metrics{ResultCount: uint64(len(h.script.Rows))},
	}, nil
}

func (h *Handle) Cancel() {
	h.cancels.Add(1)
	h.cancelOnce.Do(func() { close(h.cancel) })
}

func (h *Handle) WaitForResult(ctx context.Context) error {
	if !h.script.Hold {
		return h.script.ReadyErr
	}
	select {
	case <-h.release:
		return h.script.ReadyErr
	case <-h.cancel:
		return errCanceled
	case <-ctx.Done():
		return ctx.Err()
	case <-h.ctx.Done():
		return h.ctx.Err()
	}
}

// Release lets a held WaitForResult return.
func (h *Handle) Release() {
	h.releaseOnce.Do(func() { close(h.release) })
}

// Canceled reports whether Cancel was called.
func (h *Handle) Canceled() bool {
	select {
	case <-h.cancel:
		return true
	default:
		return false
	}
}

// CancelCount returns how many times Cancel was called.
func (h *Handle) CancelCount() int { return int(h.cancels.Load()) }

// NextCalls returns how many times Next was called.
func (h *Handle) NextCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nextCall
}

// Router answers each statement with its own Script, so that the same
// engine can serve queries in any order.
type Router struct {
	mu      sync.Mutex
	scripts map[string]Script
	engines []*Engine
	closed  bool
}

var _ columnar.Engine = (*Router)(nil)

// NewRouter returns an engine playing scripts[req.Statement] for every
// query. Unknown statements fail with a query error.
func NewRouter(scripts map[string]Script) *Router {
	return &Router{scripts: scripts}
}

func (r *Router) SubmitQuery(ctx context.Context, req *columnar.QueryRequest) (columnar.QueryHandle, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, &columnar.BindingError{Type: columnar.BindingErrorRuntime, Message: "engine is closed"}
	}
	script, ok := r.scripts[req.Statement]
	if !ok {
		r.mu.Unlock()
		return nil, &columnar.EngineError{
			Code:         4,
			Message:      "parsing_failure",
			ErrorMessage: "unknown statement " + req.Statement,
			Context:      &columnar.GenericErrorContext{LastDispatchedTo: "enginetest"},
		}
	}
	e := New(script)
	r.engines = append(r.engines, e)
	r.mu.Unlock()
	return e.SubmitQuery(ctx, req)
}

func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for _, e := range r.engines {
		_ = e.Close()
	}
	return nil
}
