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

package driverbase_test

import (
	"testing"

	"github.com/columnar-sdk/columnar-go/driver/internal/driverbase"
	"github.com/stretchr/testify/require"
)

func TestDriverInfo(t *testing.T) {
	driverInfo := driverbase.DefaultDriverInfo("test")

	// The provided name is used for ErrorHelper, certain info code values, etc
	require.Equal(t, "test", driverInfo.GetName())

	expectedDefaultInfoCodes := []driverbase.InfoCode{
		driverbase.InfoVendorName,
		driverbase.InfoVendorVersion,
		driverbase.InfoDriverName,
		driverbase.InfoDriverVersion,
		driverbase.InfoDriverArrowVersion,
		driverbase.InfoVendorSql,
	}
	require.ElementsMatch(t, expectedDefaultInfoCodes, driverInfo.InfoSupportedCodes())

	vendorName, ok := driverInfo.GetInfoForInfoCode(driverbase.InfoVendorName)
	require.True(t, ok)
	require.Equal(t, "test", vendorName)

	driverName, ok := driverInfo.GetInfoForInfoCode(driverbase.InfoDriverName)
	require.True(t, ok)
	require.Equal(t, "test Go SDK", driverName)

	require.NoError(t, driverInfo.RegisterInfoCode(driverbase.InfoDriverVersion, "string_value"))

	err := driverInfo.RegisterInfoCode(driverbase.InfoDriverVersion, 123)
	require.Error(t, err)
	require.Equal(t, "DriverVersion: expected info_value 123 to be of type string but found int", err.Error())

	err = driverInfo.RegisterInfoCode(driverbase.InfoVendorSql, "yes")
	require.Error(t, err)

	// the engine name is only known once a cluster is connected
	_, ok = driverInfo.GetInfoForInfoCode(driverbase.InfoEngineName)
	require.False(t, ok)
	require.NoError(t, driverInfo.RegisterInfoCode(driverbase.InfoEngineName, "sqlite"))

	// vendor-specific info codes are not type checked
	require.NoError(t, driverInfo.RegisterInfoCode(driverbase.InfoCode(10_001), "string_value"))
	require.NoError(t, driverInfo.RegisterInfoCode(driverbase.InfoCode(10_001), 123))
	require.Contains(t, driverInfo.InfoSupportedCodes(), driverbase.InfoCode(10_001))

	codes := driverInfo.InfoSupportedCodes()
	for i := 1; i < len(codes); i++ {
		require.Less(t, codes[i-1], codes[i])
	}

	clone := driverInfo.Clone()
	require.NoError(t, clone.RegisterInfoCode(driverbase.InfoCode(10_002), "clone only"))
	require.Equal(t, "test", clone.GetName())

	_, ok = driverInfo.GetInfoForInfoCode(driverbase.InfoCode(10_002))
	require.False(t, ok)
	require.Equal(t, "InfoCode(10002)", driverbase.InfoCode(10_002).String())
}
