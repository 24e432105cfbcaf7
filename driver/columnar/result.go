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
	"iter"

	sdk "github.com/columnar-sdk/columnar-go"
	"github.com/columnar-sdk/columnar-go/internal/streaming"
)

type (
	// RowIterator walks the rows of a BlockingQueryResult.
	RowIterator = streaming.RowIterator
	// AsyncRowIterator walks the rows of an AsyncQueryResult.
	AsyncRowIterator = streaming.AsyncRowIterator
)

// BlockingQueryResult is the result of a query. Its rows can be iterated
// once; Metadata becomes available after the last row.
type BlockingQueryResult struct {
	exec *streaming.Executor
}

// Rows returns an iterator over the rows, submitting the query first if
// needed. It fails with StatusAlreadyIterated once every row was read.
func (r *BlockingQueryResult) Rows(ctx context.Context) (*RowIterator, error) {
	return streaming.NewRowIterator(ctx, r.exec)
}

// All returns the rows as a sequence. A failure is yielded as the last
// element.
func (r *BlockingQueryResult) All(ctx context.Context) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		it, err := r.Rows(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		it.All()(yield)
	}
}

// GetAllRows reads every remaining row.
func (r *BlockingQueryResult) GetAllRows(ctx context.Context) ([]any, error) {
	return streaming.GetAllRows(ctx, r.exec)
}

// Metadata returns the query metadata, or sdk.ErrMetadataNotReady while
// rows remain.
func (r *BlockingQueryResult) Metadata() (*sdk.Metadata, error) {
	return r.exec.Metadata()
}

// Cancel aborts the query. It may be called from any goroutine.
func (r *BlockingQueryResult) Cancel() {
	r.exec.Cancel()
}

// State reports where the query is in its lifecycle.
func (r *BlockingQueryResult) State() sdk.StreamingState {
	return r.exec.State()
}

// AsyncQueryResult is the result of an async query.
type AsyncQueryResult struct {
	exec *streaming.AsyncExecutor
}

func (r *AsyncQueryResult) Rows() (*AsyncRowIterator, error) {
	return streaming.NewAsyncRowIterator(r.exec)
}

func (r *AsyncQueryResult) GetAllRows(ctx context.Context) ([]any, error) {
	return streaming.AsyncGetAllRows(ctx, r.exec)
}

func (r *AsyncQueryResult) Metadata() (*sdk.Metadata, error) {
	return r.exec.Metadata()
}

func (r *AsyncQueryResult) Cancel() {
	r.exec.Cancel()
}

func (r *AsyncQueryResult) State() sdk.StreamingState {
	return r.exec.State()
}
