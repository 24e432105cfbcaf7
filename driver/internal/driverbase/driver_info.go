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

package driverbase

import (
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// InfoCode identifies one piece of driver or service information.
type InfoCode uint32

const (
	InfoVendorName InfoCode = iota
	InfoVendorVersion
	InfoDriverName
	InfoDriverVersion
	InfoDriverArrowVersion
	InfoEngineName
	InfoVendorSql
)

func (c InfoCode) String() string {
	switch c {
	case InfoVendorName:
		return "VendorName"
	case InfoVendorVersion:
		return "VendorVersion"
	case InfoDriverName:
		return "DriverName"
	case InfoDriverVersion:
		return "DriverVersion"
	case InfoDriverArrowVersion:
		return "DriverArrowVersion"
	case InfoEngineName:
		return "EngineName"
	case InfoVendorSql:
		return "VendorSql"
	}
	return fmt.Sprintf("InfoCode(%d)", uint32(c))
}

const UnknownVersion = "(unknown or development build)"

type infoValueKind int

const (
	infoValueString infoValueKind = iota
	infoValueBool
)

var infoValueKindForInfoCode = map[InfoCode]infoValueKind{
	InfoVendorName:         infoValueString,
	InfoVendorVersion:      infoValueString,
	InfoDriverName:         infoValueString,
	InfoDriverVersion:      infoValueString,
	InfoDriverArrowVersion: infoValueString,
	InfoEngineName:         infoValueString,
	InfoVendorSql:          infoValueBool,
}

const (
	// namespace prefix
	otelInfoSemConv attribute.Key = "columnar.info."

	otelSemConvInfoVendorName         attribute.Key = otelInfoSemConv + "vendor.name"
	otelSemConvInfoVendorVersion      attribute.Key = otelInfoSemConv + "vendor.version"
	otelSemConvInfoVendorSql          attribute.Key = otelInfoSemConv + "vendor.sql"
	otelSemConvInfoDriverName         attribute.Key = otelInfoSemConv + "driver.name"
	otelSemConvInfoDriverVersion      attribute.Key = otelInfoSemConv + "driver.version"
	otelSemConvInfoDriverArrowVersion attribute.Key = otelInfoSemConv + "driver.arrow.version"
	// The name of the engine queries are dispatched to (type: utf8)
	otelSemConvInfoEngineName attribute.Key = otelInfoSemConv + "engine.name"
)

var otelAttrForInfoCode = map[InfoCode]attribute.Key{
	InfoVendorName:         otelSemConvInfoVendorName,
	InfoVendorVersion:      otelSemConvInfoVendorVersion,
	InfoDriverName:         otelSemConvInfoDriverName,
	InfoDriverVersion:      otelSemConvInfoDriverVersion,
	InfoDriverArrowVersion: otelSemConvInfoDriverArrowVersion,
	InfoEngineName:         otelSemConvInfoEngineName,
	InfoVendorSql:          otelSemConvInfoVendorSql,
}

func DefaultDriverInfo(name string) *DriverInfo {
	return &DriverInfo{
		name: name,
		info: map[InfoCode]any{
			InfoVendorName:         name,
			InfoDriverName:         fmt.Sprintf("%s Go SDK", name),
			InfoDriverVersion:      UnknownVersion,
			InfoDriverArrowVersion: UnknownVersion,
			InfoVendorVersion:      UnknownVersion,
			InfoVendorSql:          true,
		},
	}
}

// DriverInfo holds the build and vendor information reported in spans
// and by the CLI.
type DriverInfo struct {
	name string
	info map[InfoCode]any
}

func (di *DriverInfo) GetName() string { return di.name }

// Clone returns a copy that can be registered to independently.
func (di *DriverInfo) Clone() *DriverInfo {
	info := make(map[InfoCode]any, len(di.info))
	for code, v := range di.info {
		info[code] = v
	}
	return &DriverInfo{name: di.name, info: info}
}

func (di *DriverInfo) InfoSupportedCodes() []InfoCode {
	codes := make([]InfoCode, 0, len(di.info))
	for code := range di.info {
		codes = append(codes, code)
	}

	// The ordering is in no way part of the API contract and should not be relied upon.
	sort.SliceStable(codes, func(i, j int) bool {
		return codes[i] < codes[j]
	})
	return codes
}

func (di *DriverInfo) RegisterInfoCode(code InfoCode, value any) error {
	kind, isStandardInfoCode := infoValueKindForInfoCode[code]
	if !isStandardInfoCode {
		di.info[code] = value
		return nil
	}

	var err error
	switch kind {
	case infoValueString:
		if val, ok := value.(string); !ok {
			err = fmt.Errorf("%s: expected info_value %v to be of type %T but found %T", code, value, val, value)
		}
	case infoValueBool:
		if val, ok := value.(bool); !ok {
			err = fmt.Errorf("%s: expected info_value %v to be of type %T but found %T", code, value, val, value)
		}
	}

	if err == nil {
		di.info[code] = value
	}
	return err
}

func (di *DriverInfo) GetInfoForInfoCode(code InfoCode) (any, bool) {
	val, ok := di.info[code]
	return val, ok
}

// SetOTelDriverInfoAttributes adds the known info values to span.
func SetOTelDriverInfoAttributes(driverInfo *DriverInfo, span trace.Span) {
	span.SetAttributes(getInitialSpanAttributes(driverInfo)...)
}
