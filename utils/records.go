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

package utils

import (
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/columnar-sdk/columnar-go"
	"github.com/tidwall/gjson"
)

// InferSchema derives a schema from raw JSON rows. Each top-level field
// of the objects becomes a nullable column, in order of first
// appearance. Integers widen to float64 when a fractional number shows
// up in the same field, and fields holding values of different kinds, or
// nested values, become strings holding the raw JSON. Rows that are not
// objects are a single column named "$1".
func InferSchema(rows [][]byte) *arrow.Schema {
	var (
		names []string
		kinds = make(map[string]columnKind)
	)
	observe := func(name string, v gjson.Result) {
		k, seen := kinds[name]
		if !seen {
			names = append(names, name)
		}
		kinds[name] = k.merge(kindOf(v))
	}
	for _, raw := range rows {
		parsed := gjson.ParseBytes(raw)
		if !parsed.IsObject() {
			observe(scalarColumn, parsed)
			continue
		}
		parsed.ForEach(func(key, value gjson.Result) bool {
			observe(key.String(), value)
			return true
		})
	}

	fields := make([]arrow.Field, len(names))
	for i, name := range names {
		fields[i] = arrow.Field{Name: name, Type: kinds[name].dataType(), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

const scalarColumn = "$1"

type columnKind uint8

const (
	kindUnknown columnKind = iota
	kindBool
	kindInt
	kindFloat
	kindString
	kindRaw
)

func kindOf(v gjson.Result) columnKind {
	switch v.Type {
	case gjson.True, gjson.False:
		return kindBool
	case gjson.Number:
		if _, ok := asInt(v); ok {
			return kindInt
		}
		return kindFloat
	case gjson.String:
		return kindString
	case gjson.JSON:
		return kindRaw
	}
	return kindUnknown
}

func (k columnKind) merge(other columnKind) columnKind {
	switch {
	case k == other || other == kindUnknown:
		return k
	case k == kindUnknown:
		return other
	case (k == kindInt && other == kindFloat) || (k == kindFloat && other == kindInt):
		return kindFloat
	}
	return kindRaw
}

func (k columnKind) dataType() arrow.DataType {
	switch k {
	case kindBool:
		return arrow.FixedWidthTypes.Boolean
	case kindInt:
		return arrow.PrimitiveTypes.Int64
	case kindFloat:
		return arrow.PrimitiveTypes.Float64
	}
	return arrow.BinaryTypes.String
}

func asInt(v gjson.Result) (int64, bool) {
	n, err := strconv.ParseInt(v.Raw, 10, 64)
	return n, err == nil
}

// RecordFromRows builds a record from raw JSON rows. A nil schema is
// inferred with InferSchema; a given schema is used without its
// metadata. Fields missing from a row are null.
func RecordFromRows(alloc memory.Allocator, schema *arrow.Schema, rows [][]byte) (arrow.Record, error) {
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	if schema == nil {
		schema = InferSchema(rows)
	} else {
		var err error
		if schema, err = RowSchema(schema); err != nil {
			return nil, err
		}
	}

	bldr := array.NewRecordBuilder(alloc, schema)
	defer bldr.Release()

	index := make(map[string]int, schema.NumFields())
	for i, f := range schema.Fields() {
		index[f.Name] = i
	}
	for rowNum, raw := range rows {
		values := make([]gjson.Result, schema.NumFields())
		parsed := gjson.ParseBytes(raw)
		if parsed.IsObject() {
			parsed.ForEach(func(key, value gjson.Result) bool {
				if i, ok := index[key.String()]; ok {
					values[i] = value
				}
				return true
			})
		} else if i, ok := index[scalarColumn]; ok {
			values[i] = parsed
		}
		for i, v := range values {
			if err := appendValue(bldr.Field(i), v); err != nil {
				return nil, columnar.Error{
					Msg:  fmt.Sprintf("[Columnar] row %d, field %s: %s", rowNum, schema.Field(i).Name, err),
					Code: columnar.StatusInvalidArgument,
				}
			}
		}
	}
	return bldr.NewRecord(), nil
}

func appendValue(b array.Builder, v gjson.Result) error {
	if !v.Exists() || v.Type == gjson.Null {
		b.AppendNull()
		return nil
	}
	switch b := b.(type) {
	case *array.BooleanBuilder:
		if v.Type != gjson.True && v.Type != gjson.False {
			return fmt.Errorf("expected a boolean, got %s", v.Raw)
		}
		b.Append(v.Bool())
	case *array.Int64Builder:
		n, ok := asInt(v)
		if !ok || v.Type != gjson.Number {
			return fmt.Errorf("expected an integer, got %s", v.Raw)
		}
		b.Append(n)
	case *array.Float64Builder:
		if v.Type != gjson.Number {
			return fmt.Errorf("expected a number, got %s", v.Raw)
		}
		b.Append(v.Float())
	case *array.StringBuilder:
		if v.Type == gjson.String {
			b.Append(v.Str)
		} else {
			b.Append(v.Raw)
		}
	default:
		return fmt.Errorf("unsupported column type %s", b.Type())
	}
	return nil
}

// NewRowsReader returns a reader over a single record built from rows.
func NewRowsReader(alloc memory.Allocator, schema *arrow.Schema, rows [][]byte) (array.RecordReader, error) {
	rec, err := RecordFromRows(alloc, schema, rows)
	if err != nil {
		return nil, err
	}
	defer rec.Release()
	return array.NewRecordReader(rec.Schema(), []arrow.Record{rec})
}

// MetricsRecord renders query metadata as a single-row record of
// columnar.MetricsSchema.
func MetricsRecord(alloc memory.Allocator, md *columnar.Metadata) arrow.Record {
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	bldr := array.NewRecordBuilder(alloc, columnar.MetricsSchema)
	defer bldr.Release()

	bldr.Field(0).(*array.StringBuilder).Append(md.RequestID)
	if md.ClientContextID != "" {
		bldr.Field(1).(*array.StringBuilder).Append(md.ClientContextID)
	} else {
		bldr.Field(1).AppendNull()
	}
	bldr.Field(2).(*array.StringBuilder).Append(string(md.Status))
	if m := md.Metrics; m != nil {
		bldr.Field(3).(*array.DurationBuilder).Append(arrow.Duration(m.ElapsedTime))
		bldr.Field(4).(*array.DurationBuilder).Append(arrow.Duration(m.ExecutionTime))
		for i, v := range []uint64{m.ResultCount, m.ResultSize, m.ProcessedObjects, m.ErrorCount, m.WarningCount} {
			bldr.Field(5 + i).(*array.Uint64Builder).Append(v)
		}
	} else {
		for i := 3; i < columnar.MetricsSchema.NumFields(); i++ {
			bldr.Field(i).AppendNull()
		}
	}
	return bldr.NewRecord()
}

// ProblemsRecord renders the warnings and errors of query metadata as a
// record of columnar.ProblemsSchema, warnings first.
func ProblemsRecord(alloc memory.Allocator, md *columnar.Metadata) arrow.Record {
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	bldr := array.NewRecordBuilder(alloc, columnar.ProblemsSchema)
	defer bldr.Release()

	kinds := bldr.Field(0).(*array.StringBuilder)
	codes := bldr.Field(1).(*array.Int32Builder)
	messages := bldr.Field(2).(*array.StringBuilder)
	add := func(kind string, problems []columnar.Problem) {
		for _, p := range problems {
			kinds.Append(kind)
			codes.Append(int32(p.Code))
			messages.Append(p.Message)
		}
	}
	add("warning", md.Warnings)
	add("error", md.Errors)
	return bldr.NewRecord()
}
