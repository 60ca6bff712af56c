// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fdr

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"go.uber.org/zap"
)

const (
	// Header is the first line of every log.
	Header = "timestamp_s,pressure_hpa\n"

	// DefaultLogName is the single log artifact.
	DefaultLogName = "fdr.csv"

	// FlushThreshold buffered bytes trigger a flush.
	FlushThreshold = 1024

	// FlushInterval since the last flush triggers a flush.
	FlushInterval = 250 * time.Millisecond
)

var (
	// ErrStorageUnavailable means the medium could not be mounted, opened
	// or written.
	ErrStorageUnavailable = errors.New("fdr: storage unavailable")

	// ErrNoData means no log has been recorded (or it was reset).
	ErrNoData = errors.New("fdr: no data")

	// ErrLogFull means appending would exceed the storage budget.
	ErrLogFull = errors.New("fdr: log size limit reached")

	// ErrNoSession means a sample was appended outside a session.
	ErrNoSession = errors.New("fdr: no session")
)

// Store owns the log artifact and its RAM write buffer. Samples are only
// formatted into the buffer; I/O happens at flush points so the sampling
// cadence never waits on storage. Not safe for concurrent use.
type Store struct {
	storage  Storage
	name     string
	maxBytes int64
	clock    func() time.Time
	log      *zap.Logger

	mounted   bool
	session   bool
	file      File
	buf       []byte
	line      []byte
	persisted int64
	lastFlush time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogName overrides DefaultLogName.
func WithLogName(name string) StoreOption {
	return func(s *Store) { s.name = name }
}

// WithMaxBytes caps the artifact size; 0 means unlimited.
func WithMaxBytes(n int64) StoreOption {
	return func(s *Store) { s.maxBytes = n }
}

// WithStoreClock sets the clock used for the flush interval.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.clock = now }
}

// WithStoreLogger sets the store logger.
func WithStoreLogger(l *zap.Logger) StoreOption {
	return func(s *Store) { s.log = l }
}

// NewStore returns a Store over st. The medium is mounted lazily.
func NewStore(st Storage, opts ...StoreOption) *Store {
	s := &Store{
		storage: st,
		name:    DefaultLogName,
		clock:   time.Now,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) ensureMounted() error {
	if s.mounted {
		return nil
	}
	if err := s.storage.Mount(); err != nil {
		s.log.Warn("storage mount failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	s.mounted = true
	s.log.Info("storage mounted")
	return nil
}

// BeginSession truncates the log, writes the header and keeps the artifact
// open for appends. Anything still buffered from a previous session is
// discarded.
func (s *Store) BeginSession() error {
	if err := s.ensureMounted(); err != nil {
		return err
	}
	s.closeFile()
	s.session = false
	s.buf = s.buf[:0]

	f, err := s.storage.Create(s.name)
	if err != nil {
		s.log.Warn("cannot create log", zap.String("name", s.name), zap.Error(err))
		return fmt.Errorf("%w: create %s: %v", ErrStorageUnavailable, s.name, err)
	}
	if _, err := io.WriteString(f, Header); err != nil {
		f.Close()
		return fmt.Errorf("%w: write header: %v", ErrStorageUnavailable, err)
	}
	if err := f.Sync(); err != nil {
		s.log.Warn("header sync failed", zap.Error(err))
	}

	s.file = f
	s.session = true
	s.persisted = int64(len(Header))
	s.lastFlush = s.clock()
	return nil
}

// AppendSample formats one row into the write buffer. No I/O happens here.
func (s *Store) AppendSample(elapsedSeconds, pressureHPa float64) error {
	if !s.session {
		return ErrNoSession
	}
	s.line = fmt.Appendf(s.line[:0], "%.3f,%.2f\n", elapsedSeconds, pressureHPa)
	if s.maxBytes > 0 && s.persisted+int64(len(s.buf))+int64(len(s.line)) > s.maxBytes {
		return ErrLogFull
	}
	s.buf = append(s.buf, s.line...)
	return nil
}

// Due reports whether the buffer has reached the size or age threshold.
func (s *Store) Due() bool {
	if len(s.buf) == 0 {
		return false
	}
	return len(s.buf) >= FlushThreshold || s.clock().Sub(s.lastFlush) >= FlushInterval
}

// Flush writes the buffer with a single write call. Unless force is set it
// only does so when Due. Bytes the medium accepted are dropped from the
// buffer; the unwritten suffix is kept for the next attempt. Failures are
// logged and returned, the buffer is never discarded on error.
func (s *Store) Flush(force bool) error {
	if len(s.buf) == 0 || (!force && !s.Due()) {
		return nil
	}
	if s.file == nil {
		if err := s.ensureMounted(); err != nil {
			s.log.Warn("storage lost, cannot flush buffer", zap.Int("buffered", len(s.buf)))
			return err
		}
		f, err := s.storage.Append(s.name)
		if err != nil {
			s.log.Warn("cannot open log to flush buffer", zap.Error(err))
			return fmt.Errorf("%w: append %s: %v", ErrStorageUnavailable, s.name, err)
		}
		s.file = f
	}

	n, err := s.file.Write(s.buf)
	if n > 0 {
		s.buf = append(s.buf[:0], s.buf[n:]...)
		s.persisted += int64(n)
	}
	s.lastFlush = s.clock()
	if err != nil {
		s.log.Warn("flush incomplete",
			zap.Int("written", n),
			zap.Int("pending", len(s.buf)),
			zap.Error(err),
		)
		// Reopen on the next attempt.
		s.closeFile()
		return fmt.Errorf("%w: write: %v", ErrStorageUnavailable, err)
	}
	if err := s.file.Sync(); err != nil {
		s.log.Warn("log sync failed", zap.Error(err))
	}
	return nil
}

// EndSession forces a final flush and releases the write handle.
func (s *Store) EndSession() error {
	err := s.Flush(true)
	s.closeFile()
	s.session = false
	return err
}

// Reset releases the write handle, drops the buffer and deletes the log.
// It is safe to call without a session.
func (s *Store) Reset() error {
	s.closeFile()
	s.session = false
	s.buf = s.buf[:0]
	s.persisted = 0
	if err := s.ensureMounted(); err != nil {
		return err
	}
	if err := s.storage.Remove(s.name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove %s: %v", ErrStorageUnavailable, s.name, err)
	}
	s.log.Info("log removed", zap.String("name", s.name))
	return nil
}

// OpenForRead returns a reader over the whole persisted log. Buffered rows
// are flushed first so the reader sees everything appended so far. The
// reader is bounded to the size at open time.
func (s *Store) OpenForRead() (io.ReadCloser, int64, error) {
	if err := s.ensureMounted(); err != nil {
		return nil, 0, err
	}
	if len(s.buf) > 0 {
		if err := s.Flush(true); err != nil {
			s.log.Warn("export without pending rows", zap.Int("pending", len(s.buf)))
		}
		if !s.session {
			s.closeFile()
		}
	}
	rc, size, err := s.storage.Open(s.name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, ErrNoData
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: open %s: %v", ErrStorageUnavailable, s.name, err)
	}
	return limitedReadCloser{Reader: io.LimitReader(rc, size), Closer: rc}, size, nil
}

type limitedReadCloser struct {
	io.Reader
	io.Closer
}

// Active reports whether a session is open.
func (s *Store) Active() bool { return s.session }

// Buffered returns the number of bytes waiting to be flushed.
func (s *Store) Buffered() int { return len(s.buf) }

// Persisted returns the bytes written to the artifact this session,
// header included.
func (s *Store) Persisted() int64 { return s.persisted }

func (s *Store) closeFile() {
	if s.file == nil {
		return
	}
	if err := s.file.Close(); err != nil {
		s.log.Debug("close failed", zap.Error(err))
	}
	s.file = nil
}
