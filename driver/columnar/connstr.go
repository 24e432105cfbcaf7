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
	"fmt"
	"net/url"
	"strings"

	sdk "github.com/columnar-sdk/columnar-go"
	"github.com/spf13/cast"
)

// ConnSpec is a parsed connection string of the form
// scheme://host[:port][/path][?key=value&...].
type ConnSpec struct {
	Scheme string
	Host   string
	Path   string
	// Params holds the query string. Decimal integers and true/false in
	// any case are converted, and repeated keys keep every value as a
	// []string.
	Params map[string]any
}

// String renders the connection string without its parameters.
func (c ConnSpec) String() string {
	return c.Scheme + "://" + c.Host + c.Path
}

// ParseConnectionString parses connstr. The scheme selects the engine.
func ParseConnectionString(connstr string) (ConnSpec, error) {
	u, err := url.Parse(connstr)
	if err != nil {
		return ConnSpec{}, sdk.Error{
			Msg:        fmt.Sprintf("[Columnar] invalid connection string: %s", err),
			Code:       sdk.StatusInvalidArgument,
			InnerCause: err,
		}
	}
	if u.Scheme == "" || u.Opaque != "" {
		return ConnSpec{}, sdk.Error{
			Msg:  fmt.Sprintf("[Columnar] invalid connection string '%s': expected scheme://host", connstr),
			Code: sdk.StatusInvalidArgument,
		}
	}

	spec := ConnSpec{
		Scheme: strings.ToLower(u.Scheme),
		Host:   u.Host,
		Path:   u.Path,
		Params: make(map[string]any),
	}
	for key, values := range u.Query() {
		spec.Params[key] = parseQueryStringValue(values)
	}
	return spec, nil
}

func parseQueryStringValue(values []string) any {
	if len(values) > 1 {
		return values
	}
	v := values[0]
	// cast parses with base prefixes, so only canonical decimals convert
	if n, err := cast.ToIntE(v); err == nil && cast.ToString(n) == v {
		return n
	}
	// "t" and "f" stay strings
	if b, err := cast.ToBoolE(strings.ToLower(v)); err == nil && len(v) > 1 {
		return b
	}
	return v
}
