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

package utils_test

import (
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/columnar-sdk/columnar-go"
	"github.com/columnar-sdk/columnar-go/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rows(raw ...string) [][]byte {
	out := make([][]byte, len(raw))
	for i, r := range raw {
		out[i] = []byte(r)
	}
	return out
}

func TestInferSchema(t *testing.T) {
	schema := utils.InferSchema(rows(
		`{"id":1,"name":"a","score":1,"tags":["x"],"ok":true,"mixed":1}`,
		`{"id":2,"name":null,"score":2.5,"ok":false,"mixed":"s","late":"z"}`,
	))

	want := []arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "score", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "tags", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "ok", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
		{Name: "mixed", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "late", Type: arrow.BinaryTypes.String, Nullable: true},
	}
	assert.True(t, arrow.NewSchema(want, nil).Equal(schema), "got %s", schema)

	scalar := utils.InferSchema(rows(`1`, `2`))
	require.Equal(t, 1, scalar.NumFields())
	assert.Equal(t, "$1", scalar.Field(0).Name)
}

func TestRecordFromRows(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	rec, err := utils.RecordFromRows(mem, nil, rows(
		`{"id":1,"name":"a","tags":["x"]}`,
		`{"id":2}`,
	))
	require.NoError(t, err)
	defer rec.Release()

	assert.EqualValues(t, 2, rec.NumRows())
	ids := rec.Column(0).(*array.Int64)
	assert.Equal(t, []int64{1, 2}, ids.Int64Values())
	names := rec.Column(1).(*array.String)
	assert.Equal(t, "a", names.Value(0))
	assert.True(t, names.IsNull(1))
	tags := rec.Column(2).(*array.String)
	assert.Equal(t, `["x"]`, tags.Value(0))
}

func TestRecordFromRowsSchema(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	md := arrow.NewMetadata([]string{"k"}, []string{"v"})
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true, Metadata: md},
	}, &md)

	rec, err := utils.RecordFromRows(mem, schema, rows(`{"id":7,"ignored":true}`))
	require.NoError(t, err)
	defer rec.Release()
	assert.False(t, rec.Schema().HasMetadata())
	assert.Equal(t, 0, rec.Schema().Field(0).Metadata.Len())

	_, err = utils.RecordFromRows(mem, schema, rows(`{"id":"seven"}`))
	assert.True(t, columnar.IsStatus(err, columnar.StatusInvalidArgument), "got %v", err)

	nested := arrow.NewSchema([]arrow.Field{
		{Name: "tags", Type: arrow.ListOf(arrow.BinaryTypes.String), Nullable: true},
	}, nil)
	_, err = utils.RecordFromRows(mem, nested, nil)
	assert.True(t, columnar.IsStatus(err, columnar.StatusInvalidArgument), "got %v", err)
	assert.ErrorContains(t, err, "tags")
}

func TestNewRowsReader(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	rdr, err := utils.NewRowsReader(mem, nil, rows(`{"$1":1}`))
	require.NoError(t, err)
	defer rdr.Release()

	require.True(t, rdr.Next())
	assert.EqualValues(t, 1, rdr.Record().NumRows())
	assert.False(t, rdr.Next())
	assert.NoError(t, rdr.Err())
}

func TestMetricsRecord(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	rec := utils.MetricsRecord(mem, &columnar.Metadata{
		RequestID: "req",
		Status:    columnar.QueryStatusSuccess,
		Metrics:   &columnar.Metrics{ElapsedTime: time.Second, ResultCount: 3},
	})
	defer rec.Release()

	assert.True(t, columnar.MetricsSchema.Equal(rec.Schema()))
	assert.Equal(t, "req", rec.Column(0).(*array.String).Value(0))
	assert.True(t, rec.Column(1).IsNull(0))
	assert.Equal(t, arrow.Duration(time.Second), rec.Column(3).(*array.Duration).Value(0))
	assert.EqualValues(t, 3, rec.Column(5).(*array.Uint64).Value(0))

	empty := utils.MetricsRecord(mem, &columnar.Metadata{RequestID: "req", Status: columnar.QueryStatusRunning})
	defer empty.Release()
	assert.True(t, empty.Column(3).IsNull(0))
}

func TestProblemsRecord(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	rec := utils.ProblemsRecord(mem, &columnar.Metadata{
		Warnings: []columnar.Problem{{Code: 24400, Message: "slow"}},
		Errors:   []columnar.Problem{{Code: 24045, Message: "bad"}},
	})
	defer rec.Release()

	require.EqualValues(t, 2, rec.NumRows())
	assert.Equal(t, "warning", rec.Column(0).(*array.String).Value(0))
	assert.Equal(t, "error", rec.Column(0).(*array.String).Value(1))
	assert.Equal(t, []int32{24400, 24045}, rec.Column(1).(*array.Int32).Int32Values())
}
