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
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// EngineConfig is what an EngineFactory receives to open an engine for
// one cluster.
type EngineConfig struct {
	// Scheme, Host and Path come from the connection string.
	Scheme string
	Host   string
	Path   string
	// Params are the connection string parameters the driver did not
	// consume, kept because AllowUnknownQueryStringOptions is set.
	Params     map[string]any
	Credential Credential
	Options    ClusterOptions
	Logger     *slog.Logger
}

// EngineFactory opens an Engine.
type EngineFactory func(ctx context.Context, cfg EngineConfig) (Engine, error)

var (
	enginesMu sync.RWMutex
	engines   = make(map[string]EngineFactory)
)

// RegisterEngine makes an engine available under a connection string
// scheme. It panics if factory is nil or the scheme is registered twice,
// in the manner of database/sql.Register.
func RegisterEngine(scheme string, factory EngineFactory) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	if factory == nil {
		panic("columnar: RegisterEngine factory is nil")
	}
	if _, dup := engines[scheme]; dup {
		panic("columnar: RegisterEngine called twice for scheme " + scheme)
	}
	engines[scheme] = factory
}

// LookupEngine returns the factory registered for scheme.
func LookupEngine(scheme string) (EngineFactory, error) {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	factory, ok := engines[scheme]
	if !ok {
		return nil, Error{
			Msg:  fmt.Sprintf("[Columnar] no engine registered for scheme '%s'", scheme),
			Code: StatusFeatureUnavailable,
		}
	}
	return factory, nil
}

// Engines returns the registered schemes in sorted order.
func Engines() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	schemes := make([]string, 0, len(engines))
	for s := range engines {
		schemes = append(schemes, s)
	}
	slices.Sort(schemes)
	return schemes
}
