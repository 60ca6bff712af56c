// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fdr

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// File is a writable handle on the log artifact.
type File interface {
	io.Writer
	Sync() error
	Close() error
}

// Storage is the persistent medium holding the log. Open must return an
// error matching fs.ErrNotExist when the artifact is missing.
type Storage interface {
	// Mount makes the medium usable. It is retried on every access until it
	// succeeds once.
	Mount() error
	// Create truncates (or creates) name for writing.
	Create(name string) (File, error)
	// Append opens name for appending, creating it if needed.
	Append(name string) (File, error)
	// Open returns a reader over name and its current size.
	Open(name string) (io.ReadCloser, int64, error)
	Remove(name string) error
}

// DirStorage keeps the log under a local directory.
type DirStorage struct {
	Root string
}

func (d DirStorage) path(name string) string { return filepath.Join(d.Root, name) }

func (d DirStorage) Mount() error {
	if err := os.MkdirAll(d.Root, 0o755); err != nil {
		return fmt.Errorf("mount %s: %w", d.Root, err)
	}
	return nil
}

func (d DirStorage) Create(name string) (File, error) {
	return os.OpenFile(d.path(name), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
}

func (d DirStorage) Append(name string) (File, error) {
	return os.OpenFile(d.path(name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func (d DirStorage) Open(name string) (io.ReadCloser, int64, error) {
	f, err := os.Open(d.path(name))
	if err != nil {
		return nil, 0, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, st.Size(), nil
}

func (d DirStorage) Remove(name string) error {
	return os.Remove(d.path(name))
}
