package fdr

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"time"
)

type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// memStorage keeps files in memory. writeLimits, when non-empty, caps how
// many bytes each successive Write accepts; a short write returns
// io.ErrShortWrite.
type memStorage struct {
	files       map[string]*bytes.Buffer
	mountErr    error
	createErr   error
	appendErr   error
	writeLimits []int
	writes      int
	openHandles int
}

func newMemStorage() *memStorage {
	return &memStorage{files: make(map[string]*bytes.Buffer)}
}

func (m *memStorage) Mount() error { return m.mountErr }

func (m *memStorage) Create(name string) (File, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.files[name] = &bytes.Buffer{}
	m.openHandles++
	return &memFile{st: m, name: name}, nil
}

func (m *memStorage) Append(name string) (File, error) {
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	if m.files[name] == nil {
		m.files[name] = &bytes.Buffer{}
	}
	m.openHandles++
	return &memFile{st: m, name: name}, nil
}

func (m *memStorage) Open(name string) (io.ReadCloser, int64, error) {
	b, ok := m.files[name]
	if !ok {
		return nil, 0, fmt.Errorf("open %s: %w", name, fs.ErrNotExist)
	}
	data := append([]byte(nil), b.Bytes()...)
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (m *memStorage) Remove(name string) error {
	if _, ok := m.files[name]; !ok {
		return fmt.Errorf("remove %s: %w", name, fs.ErrNotExist)
	}
	delete(m.files, name)
	return nil
}

func (m *memStorage) content(name string) string {
	if b := m.files[name]; b != nil {
		return b.String()
	}
	return ""
}

type memFile struct {
	st     *memStorage
	name   string
	closed bool
}

func (f *memFile) Write(p []byte) (int, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	f.st.writes++
	n := len(p)
	short := false
	if len(f.st.writeLimits) > 0 {
		limit := f.st.writeLimits[0]
		f.st.writeLimits = f.st.writeLimits[1:]
		if limit < n {
			n, short = limit, true
		}
	}
	f.st.files[f.name].Write(p[:n])
	if short {
		return n, io.ErrShortWrite
	}
	return n, nil
}

func (f *memFile) Sync() error { return nil }

func (f *memFile) Close() error {
	if !f.closed {
		f.closed = true
		f.st.openHandles--
	}
	return nil
}

// fakeSensor returns a constant pressure while ready.
type fakeSensor struct {
	ready    bool
	pressure float64
	fast     []bool
}

func (s *fakeSensor) Ready() bool           { return s.ready }
func (s *fakeSensor) Pressure() float64     { return s.pressure }
func (s *fakeSensor) SetFastMode(fast bool) { s.fast = append(s.fast, fast) }

type countingIndicator struct {
	recording, idle int
}

func (c *countingIndicator) Recording() { c.recording++ }
func (c *countingIndicator) Idle()      { c.idle++ }
