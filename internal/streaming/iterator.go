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
	"errors"
	"io"
	"iter"

	"github.com/columnar-sdk/columnar-go"
)

var errAlreadyIterated = columnar.Error{
	Msg:  "Cannot iterate over query results more than once",
	Code: columnar.StatusAlreadyIterated,
}

// RowIterator walks the rows of a blocking query, in the manner of
// sql.Rows:
//
//	for it.Next() {
//		row := it.Row()
//	}
//	if err := it.Err(); err != nil { ... }
type RowIterator struct {
	exec *Executor
	row  any
	err  error
	done bool
}

// NewRowIterator returns an iterator over exec. It fails with
// StatusAlreadyIterated once exec has finished streaming, and submits the
// query first when it has not been submitted yet. A submission failure is
// returned as is, also to every later call. An iterator created
// while exec is streaming continues from exec's current row.
func NewRowIterator(ctx context.Context, exec *Executor) (*RowIterator, error) {
	if exec.DoneStreaming() {
		return nil, errAlreadyIterated
	}
	if !exec.StartedStreaming() {
		if err := exec.Submit(ctx); err != nil {
			return nil, err
		}
	} else if err := exec.dispatchFailure(); err != nil {
		return nil, err
	}
	return &RowIterator{exec: exec}, nil
}

// Next advances to the next row. It returns false at the end of the
// stream or on failure; Err tells them apart.
func (it *RowIterator) Next() bool {
	if it.done {
		return false
	}
	row, err := it.exec.NextRow()
	if err != nil {
		it.done, it.row = true, nil
		if err != io.EOF {
			it.err = wrapIterError(it.exec, err)
		}
		return false
	}
	it.row = row
	return true
}

// Row returns the current row.
func (it *RowIterator) Row() any { return it.row }

// Err returns the error that stopped the iteration, if any.
func (it *RowIterator) Err() error { return it.err }

// All returns the remaining rows as a sequence. A failure is yielded
// once, as the last element.
func (it *RowIterator) All() iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for it.Next() {
			if !yield(it.Row(), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// GetAllRows submits the query if needed and drains it.
func GetAllRows(ctx context.Context, exec *Executor) ([]any, error) {
	it, err := NewRowIterator(ctx, exec)
	if err != nil {
		return nil, err
	}
	rows := []any{}
	for it.Next() {
		rows = append(rows, it.Row())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// AsyncRowIterator walks the rows of an async query. Unlike RowIterator,
// creating it does not submit the query: the first call to Next does.
type AsyncRowIterator struct {
	exec *AsyncExecutor
	row  any
	err  error
	done bool
}

// NewAsyncRowIterator returns an iterator over exec. It fails with
// StatusAlreadyIterated once exec has finished streaming.
func NewAsyncRowIterator(exec *AsyncExecutor) (*AsyncRowIterator, error) {
	if exec.DoneStreaming() {
		return nil, errAlreadyIterated
	}
	return &AsyncRowIterator{exec: exec}, nil
}

// Next advances to the next row, submitting the query first if needed.
// It returns false at the end of the stream or on failure; Err tells
// them apart.
func (it *AsyncRowIterator) Next(ctx context.Context) bool {
	if it.done {
		return false
	}
	if !it.exec.StartedStreaming() {
		if err := it.exec.Submit(ctx); err != nil {
			it.done, it.err = true, err
			return false
		}
	} else if err := it.exec.dispatchFailure(); err != nil {
		it.done, it.err = true, err
		return false
	}

	row, err := it.exec.NextRow(ctx)
	if err == io.EOF {
		it.done, it.row = true, nil
		// the bundled engines report metadata with the sentinel, so it
		// is fetched here while the handle is still fresh
		if _, err := it.exec.Metadata(); err != nil && !errors.Is(err, columnar.ErrMetadataNotReady) {
			it.err = wrapIterError(it.exec, err)
		}
		return false
	} else if err != nil {
		it.fail(err)
		return false
	}
	it.row = row
	return true
}

func (it *AsyncRowIterator) fail(err error) {
	it.done, it.row = true, nil
	it.err = wrapIterError(it.exec, err)
}

// Row returns the current row.
func (it *AsyncRowIterator) Row() any { return it.row }

// Err returns the error that stopped the iteration, if any.
func (it *AsyncRowIterator) Err() error { return it.err }

// AsyncGetAllRows drains exec, submitting the query if needed.
func AsyncGetAllRows(ctx context.Context, exec *AsyncExecutor) ([]any, error) {
	it, err := NewAsyncRowIterator(exec)
	if err != nil {
		return nil, err
	}
	rows := []any{}
	for it.Next(ctx) {
		rows = append(rows, it.Row())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

type errorHandler interface {
	HandleError(error) error
}

func wrapIterError(h errorHandler, err error) error {
	return h.HandleError(err)
}
