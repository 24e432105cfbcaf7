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

import "github.com/apache/arrow-go/v18/arrow"

var (
	// MetricsSchema is the schema of a single-row record describing the
	// metrics of a query.
	MetricsSchema = arrow.NewSchema([]arrow.Field{
		{Name: "request_id", Type: arrow.BinaryTypes.String},
		{Name: "client_context_id", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "status", Type: arrow.BinaryTypes.String},
		{Name: "elapsed_time", Type: arrow.FixedWidthTypes.Duration_ns, Nullable: true},
		{Name: "execution_time", Type: arrow.FixedWidthTypes.Duration_ns, Nullable: true},
		{Name: "result_count", Type: arrow.PrimitiveTypes.Uint64, Nullable: true},
		{Name: "result_size", Type: arrow.PrimitiveTypes.Uint64, Nullable: true},
		{Name: "processed_objects", Type: arrow.PrimitiveTypes.Uint64, Nullable: true},
		{Name: "error_count", Type: arrow.PrimitiveTypes.Uint64, Nullable: true},
		{Name: "warning_count", Type: arrow.PrimitiveTypes.Uint64, Nullable: true},
	}, nil)

	// ProblemsSchema is the schema of the warnings and errors reported
	// in query metadata, one row per problem.
	ProblemsSchema = arrow.NewSchema([]arrow.Field{
		{Name: "kind", Type: arrow.BinaryTypes.String},
		{Name: "code", Type: arrow.PrimitiveTypes.Int32},
		{Name: "message", Type: arrow.BinaryTypes.String},
	}, nil)
)
