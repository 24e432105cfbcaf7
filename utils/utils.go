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

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/columnar-sdk/columnar-go"
)

// RowSchema checks that schema can hold JSON rows and returns a copy of
// it without schema or field metadata. Only flat boolean, int64, float64
// and string columns are supported.
func RowSchema(schema *arrow.Schema) (*arrow.Schema, error) {
	fields := make([]arrow.Field, schema.NumFields())
	for i, field := range schema.Fields() {
		switch field.Type.ID() {
		case arrow.BOOL, arrow.INT64, arrow.FLOAT64, arrow.STRING:
		default:
			return nil, columnar.Error{
				Msg:  fmt.Sprintf("[Columnar] field %s: unsupported column type %s", field.Name, field.Type),
				Code: columnar.StatusInvalidArgument,
			}
		}
		fields[i] = arrow.Field{
			Name:     field.Name,
			Type:     field.Type,
			Nullable: field.Nullable,
		}
	}
	return arrow.NewSchema(fields, nil), nil
}
