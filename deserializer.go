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
	"github.com/goccy/go-json"
)

// Deserializer turns the raw bytes of a row into an application value.
type Deserializer interface {
	Deserialize(raw []byte) (any, error)
}

// DeserializerFunc adapts a function to the Deserializer interface.
type DeserializerFunc func(raw []byte) (any, error)

func (f DeserializerFunc) Deserialize(raw []byte) (any, error) { return f(raw) }

// JSONDeserializer parses each row as JSON. Objects become
// map[string]any, arrays []any, and numbers float64, following the
// encoding/json conventions.
type JSONDeserializer struct{}

func (JSONDeserializer) Deserialize(raw []byte) (any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// PassthroughDeserializer returns a copy of the raw row bytes.
type PassthroughDeserializer struct{}

func (PassthroughDeserializer) Deserialize(raw []byte) (any, error) {
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

// DefaultDeserializer is used when neither the cluster nor the query
// configures one.
var DefaultDeserializer Deserializer = JSONDeserializer{}

// DeserializerByName resolves the values accepted by
// OptionKeyQueryDeserializer.
func DeserializerByName(name string) (Deserializer, bool) {
	switch name {
	case "", OptionValueDeserializerJSON:
		return JSONDeserializer{}, true
	case OptionValueDeserializerPassthrough:
		return PassthroughDeserializer{}, true
	}
	return nil, false
}
