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

// Package driverbase holds the plumbing shared by the Columnar drivers:
// error formatting, driver info, logging defaults and OpenTelemetry
// tracing setup.
package driverbase

import (
	"runtime/debug"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/extensions"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

const modulePath = "github.com/columnar-sdk/columnar-go"

var (
	infoDriverVersion      string
	infoDriverArrowVersion string
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	readBuildInfo(info)
}

func readBuildInfo(info *debug.BuildInfo) {
	if info.Main.Path == modulePath && info.Main.Version != "(devel)" {
		infoDriverVersion = info.Main.Version
	}
	for _, dep := range info.Deps {
		switch {
		case dep.Path == modulePath:
			infoDriverVersion = dep.Version
		case strings.HasPrefix(dep.Path, "github.com/apache/arrow-go/"):
			infoDriverArrowVersion = dep.Version
		}
	}
	if infoDriverVersion == "" {
		return
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.modified" && s.Value == "true" {
			infoDriverVersion += "-dev"
		}
	}
}

// DriverImplBase holds what every cluster of one driver shares.
type DriverImplBase struct {
	Alloc       memory.Allocator
	ErrorHelper ErrorHelper
	DriverInfo  *DriverInfo
}

// NewDriverImplBase instantiates DriverImplBase.
//
//   - info contains build and vendor info, as well as the name to construct error messages.
//   - alloc is the Arrow allocator used when results are exported as records.
func NewDriverImplBase(info *DriverInfo, alloc memory.Allocator) DriverImplBase {
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}

	if infoDriverVersion != "" {
		if err := info.RegisterInfoCode(InfoDriverVersion, infoDriverVersion); err != nil {
			panic(err)
		}
	}
	if infoDriverArrowVersion != "" {
		if err := info.RegisterInfoCode(InfoDriverArrowVersion, infoDriverArrowVersion); err != nil {
			panic(err)
		}
	}
	registerExtensionTypes()
	return DriverImplBase{
		Alloc:       alloc,
		ErrorHelper: ErrorHelper{DriverName: info.GetName()},
		DriverInfo:  info,
	}
}

func (base *DriverImplBase) Base() *DriverImplBase {
	return base
}

// registerExtensionTypes makes sure the canonical extension types used by
// exported records are known to arrow. Registering a type twice fails
// harmlessly.
var registerExtensionTypes = sync.OnceFunc(func() {
	for _, extType := range []arrow.ExtensionType{
		extensions.NewUUIDType(),
		&extensions.JSONType{},
	} {
		_ = arrow.RegisterExtensionType(extType)
	}
})
