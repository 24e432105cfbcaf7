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
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	defaultLogNamePrefix = "columnar.go"
	defaultFileSizeMaxKb = int64(1024)
	defaultFileCountMax  = 100
	defaultTraceFileExt  = ".jsonl"
)

type rotatingFileConfig struct {
	TracingFolderPath string
	LogNamePrefix     string
	FileSizeMaxKb     int64
	FileCountMax      int
}

// An option for the RotatingFileWriter
type rotatingFileWriterOption func(*rotatingFileConfig)

// WithTracingFolderPath sets the folder trace files are written to. It
// defaults to <user config dir>/.columnar/traces.
func WithTracingFolderPath(tracingFolderPath string) rotatingFileWriterOption {
	return func(cfg *rotatingFileConfig) {
		cfg.TracingFolderPath = tracingFolderPath
	}
}

func WithLogNamePrefix(logNamePrefix string) rotatingFileWriterOption {
	return func(cfg *rotatingFileConfig) {
		cfg.LogNamePrefix = logNamePrefix
	}
}

// WithFileSizeMaxKb sets the size at which a trace file is rotated.
// Values below the default are raised to it.
func WithFileSizeMaxKb(fileSizeMaxKb int64) rotatingFileWriterOption {
	return func(cfg *rotatingFileConfig) {
		cfg.FileSizeMaxKb = fileSizeMaxKb
	}
}

// WithFileCountMax sets how many trace files are kept. Values below the
// default are raised to it.
func WithFileCountMax(fileCountMax int) rotatingFileWriterOption {
	return func(cfg *rotatingFileConfig) {
		cfg.FileCountMax = fileCountMax
	}
}

func newRotatingFileConfig(options ...rotatingFileWriterOption) (cfg rotatingFileConfig, err error) {
	cfg = rotatingFileConfig{
		LogNamePrefix: defaultLogNamePrefix,
		FileSizeMaxKb: defaultFileSizeMaxKb,
		FileCountMax:  defaultFileCountMax,
	}
	for _, opt := range options {
		opt(&cfg)
	}
	if strings.TrimSpace(cfg.TracingFolderPath) == "" {
		if cfg.TracingFolderPath, err = defaultTracingFolderPath(); err != nil {
			return
		}
	}
	if strings.TrimSpace(cfg.LogNamePrefix) == "" {
		cfg.LogNamePrefix = defaultLogNamePrefix
	}

	const folderPermissions = 0755
	if err = os.MkdirAll(cfg.TracingFolderPath, folderPermissions); err != nil {
		return
	}
	// fail early when the folder is not writable
	testFile, err := os.CreateTemp(cfg.TracingFolderPath, cfg.LogNamePrefix)
	if err != nil {
		return
	}
	defer func() {
		_ = testFile.Close()
		_ = os.Remove(testFile.Name())
	}()
	if _, err = testFile.WriteString("file started"); err != nil {
		return
	}

	cfg.FileSizeMaxKb = max(defaultFileSizeMaxKb, cfg.FileSizeMaxKb)
	cfg.FileCountMax = max(defaultFileCountMax, cfg.FileCountMax)
	return
}

func defaultTracingFolderPath() (string, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userConfigDir, ".columnar", "traces"), nil
}

// RotatingFileWriter appends to trace files named
// "<LogNamePrefix>-<UTC timestamp>.jsonl" in TracingFolderPath. Once the
// current file reaches FileSizeMaxKb a new one is started, and the oldest
// files beyond FileCountMax are removed. It is safe for concurrent use.
type RotatingFileWriter struct {
	TracingFolderPath string
	LogNamePrefix     string
	FileSizeMaxKb     int64
	FileCountMax      int

	mu      sync.Mutex
	current *os.File
}

// NewRotatingFileWriter creates the trace folder if needed and checks it
// is writable. No file is opened until the first Write.
func NewRotatingFileWriter(options ...rotatingFileWriterOption) (*RotatingFileWriter, error) {
	cfg, err := newRotatingFileConfig(options...)
	if err != nil {
		return nil, err
	}
	return &RotatingFileWriter{
		TracingFolderPath: cfg.TracingFolderPath,
		LogNamePrefix:     cfg.LogNamePrefix,
		FileSizeMaxKb:     cfg.FileSizeMaxKb,
		FileCountMax:      cfg.FileCountMax,
	}, nil
}

func (w *RotatingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeCurrent()
}

func (w *RotatingFileWriter) closeCurrent() error {
	if w.current == nil {
		return nil
	}
	err := w.current.Close()
	w.current = nil
	return err
}

// Clear closes the current file and removes every trace file of this
// writer.
func (w *RotatingFileWriter) Clear() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.closeCurrent(); err != nil {
		return err
	}
	files, err := w.traceFiles()
	if err != nil {
		return err
	}
	for _, path := range files {
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	return nil
}

// Stat describes the file currently written to.
func (w *RotatingFileWriter) Stat() (fs.FileInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return nil, errors.New("no trace file is open")
	}
	return w.current.Stat()
}

func (w *RotatingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.rotateIfFull(); err != nil {
		return 0, err
	}
	if err := w.ensureCurrent(); err != nil {
		return 0, err
	}
	return w.current.Write(p)
}

func (w *RotatingFileWriter) maxBytes() int64 { return w.FileSizeMaxKb * 1024 }

func (w *RotatingFileWriter) rotateIfFull() error {
	if w.current == nil {
		return nil
	}
	info, err := w.current.Stat()
	if err != nil {
		return err
	}
	if info.Size() < w.maxBytes() {
		return nil
	}
	if err := w.closeCurrent(); err != nil {
		return err
	}
	return w.removeOldFiles()
}

func (w *RotatingFileWriter) ensureCurrent() error {
	const (
		// writable by everyone so the file can be reopened on Windows
		permissions = 0666
		createFlags = os.O_APPEND | os.O_CREATE | os.O_WRONLY
		appendFlags = os.O_APPEND | os.O_WRONLY
	)
	if w.current != nil {
		return nil
	}
	if path, ok := w.candidateFile(); ok {
		if f, err := os.OpenFile(path, appendFlags, permissions); err == nil {
			w.current = f
			return nil
		}
	}
	f, err := os.OpenFile(w.newFileName(), createFlags, permissions)
	if err != nil {
		return err
	}
	w.current = f
	return nil
}

func (w *RotatingFileWriter) newFileName() string {
	timeStamp := time.Now().UTC().Format("2006-01-02-15-04-05.000000000")
	return filepath.Join(w.TracingFolderPath, w.LogNamePrefix+"-"+timeStamp+defaultTraceFileExt)
}

// candidateFile returns the newest trace file if it still has room.
func (w *RotatingFileWriter) candidateFile() (string, bool) {
	files, err := w.traceFiles()
	if err != nil || len(files) == 0 {
		return "", false
	}
	// filepath.Glob sorts lexically, and the timestamps sort the same way
	newest := files[len(files)-1]
	info, err := os.Stat(newest)
	if err != nil || info.Size() >= w.maxBytes() {
		return "", false
	}
	return newest, true
}

func (w *RotatingFileWriter) removeOldFiles() error {
	files, err := w.traceFiles()
	if err != nil {
		return nil
	}
	if excess := len(files) - w.FileCountMax; excess > 0 {
		for _, path := range files[:excess] {
			if err := os.Remove(path); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *RotatingFileWriter) traceFiles() ([]string, error) {
	return filepath.Glob(filepath.Join(w.TracingFolderPath, w.LogNamePrefix+"*"+defaultTraceFileExt))
}
