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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/columnar-sdk/columnar-go/driver/internal/driverbase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatingFileWriterDefaults(t *testing.T) {
	dir := t.TempDir()
	fw, err := driverbase.NewRotatingFileWriter(
		driverbase.WithTracingFolderPath(dir),
		driverbase.WithLogNamePrefix(" "),
		driverbase.WithFileSizeMaxKb(1),
		driverbase.WithFileCountMax(1),
	)
	require.NoError(t, err)
	assert.Equal(t, "columnar.go", fw.LogNamePrefix)
	assert.EqualValues(t, 1024, fw.FileSizeMaxKb)
	assert.Equal(t, 100, fw.FileCountMax)

	// the writability test file is removed
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = fw.Stat()
	assert.Error(t, err)
}

func TestRotatingFileWriterRotates(t *testing.T) {
	dir := t.TempDir()
	fw, err := driverbase.NewRotatingFileWriter(
		driverbase.WithTracingFolderPath(dir),
		driverbase.WithLogNamePrefix("rotate"),
	)
	require.NoError(t, err)

	chunk := bytes.Repeat([]byte("x"), 100*1024)
	for range 12 {
		n, err := fw.Write(chunk)
		require.NoError(t, err)
		require.Equal(t, len(chunk), n)
	}
	require.NoError(t, fw.Close())

	files, err := filepath.Glob(filepath.Join(dir, "rotate-*.jsonl"))
	require.NoError(t, err)
	assert.Len(t, files, 2)

	require.NoError(t, fw.Clear())
	files, err = filepath.Glob(filepath.Join(dir, "rotate-*.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestRotatingFileWriterReusesFile(t *testing.T) {
	dir := t.TempDir()
	const value = "my string\n"

	names := make([]string, 2)
	for i := range names {
		fw, err := driverbase.NewRotatingFileWriter(driverbase.WithTracingFolderPath(dir))
		require.NoError(t, err)
		for range 10 {
			n, err := fw.Write([]byte(value))
			require.NoError(t, err)
			require.Equal(t, len(value), n)
		}
		info, err := fw.Stat()
		require.NoError(t, err)
		names[i] = info.Name()
		require.NoError(t, fw.Close())
	}
	assert.Equal(t, names[0], names[1])
	assert.True(t, strings.HasSuffix(names[0], ".jsonl"))

	data, err := os.ReadFile(filepath.Join(dir, names[0]))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat(value, 20), string(data))
}

func TestRotatingFileWriterConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	fw, err := driverbase.NewRotatingFileWriter(driverbase.WithTracingFolderPath(dir))
	require.NoError(t, err)
	defer func() { require.NoError(t, fw.Clear()) }()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_, err := fw.Write([]byte("{}\n"))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	info, err := fw.Stat()
	require.NoError(t, err)
	assert.EqualValues(t, 8*100*3, info.Size())
}
