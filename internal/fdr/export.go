// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fdr

import (
	"fmt"
	"io"
)

// ExportName is the file name offered to clients downloading the log.
const ExportName = "fdrecord.csv"

// Export is an open, size-bounded view of the log.
type Export struct {
	io.ReadCloser
	Size int64
	Name string
}

// OpenExport flushes pending rows and opens the log for reading. It returns
// ErrNoData when nothing has been recorded.
func OpenExport(s *Store) (*Export, error) {
	rc, size, err := s.OpenForRead()
	if err != nil {
		return nil, err
	}
	return &Export{ReadCloser: rc, Size: size, Name: ExportName}, nil
}

// StreamExport copies the complete log to w.
func StreamExport(s *Store, w io.Writer) (int64, error) {
	exp, err := OpenExport(s)
	if err != nil {
		return 0, err
	}
	defer exp.Close()
	n, err := io.Copy(w, exp)
	if err != nil {
		return n, fmt.Errorf("stream %s: %w", exp.Name, err)
	}
	return n, nil
}
