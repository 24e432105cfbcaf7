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
)

// asyncEngineAdapter wraps an Engine to implement AsyncEngine.
type asyncEngineAdapter struct {
	engine Engine
}

// AsAsyncEngine wraps an Engine to implement AsyncEngine.
// This adapter allows using a blocking Engine implementation with the
// callback-based async executor. Each blocking call runs on its own
// goroutine and reports back through the callbacks, so callbacks arrive
// on goroutines the caller does not control.
//
// If the Engine already implements AsyncEngine it is returned as is.
func AsAsyncEngine(engine Engine) AsyncEngine {
	if engine == nil {
		return nil
	}
	if ae, ok := engine.(AsyncEngine); ok {
		return ae
	}
	return &asyncEngineAdapter{engine: engine}
}

func (a *asyncEngineAdapter) SubmitQueryAsync(req *QueryRequest, onReady func(error), onRow func([]byte, error)) (AsyncQueryHandle, error) {
	// The query outlives any caller context: it ends when the rows are
	// drained or the handle is canceled.
	ctx, cancel := context.WithCancel(context.Background())
	handle, err := a.engine.SubmitQuery(ctx, req)
	if err != nil {
		cancel()
		return nil, err
	}

	h := &asyncHandleAdapter{handle: handle, onRow: onRow, cancel: cancel}
	go func() {
		err := handle.WaitForResult(ctx)
		if err != nil {
			h.release()
		}
		onReady(err)
	}()
	return h, nil
}

func (a *asyncEngineAdapter) Close() error {
	return a.engine.Close()
}

// asyncHandleAdapter wraps a QueryHandle to implement AsyncQueryHandle.
type asyncHandleAdapter struct {
	handle QueryHandle
	onRow  func([]byte, error)

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (h *asyncHandleAdapter) RequestNext() {
	go func() {
		row, err := h.handle.Next()
		if row == nil && err == nil {
			h.release()
		}
		h.onRow(row, err)
	}()
}

func (h *asyncHandleAdapter) Metadata() (*Metadata, error) {
	return h.handle.Metadata()
}

func (h *asyncHandleAdapter) Cancel() {
	h.handle.Cancel()
	h.release()
}

func (h *asyncHandleAdapter) release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}
