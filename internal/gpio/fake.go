package gpio

import (
	"errors"
	"sync"
)

// FakeReader is a test double that returns scripted button states.
type FakeReader struct {
	mu sync.Mutex

	// Samples are returned one per Read. Once exhausted the last sample
	// repeats.
	Samples []bool

	// ReadError, if set, is returned by Read.
	ReadError error

	index  int
	closed bool
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples ...bool) *FakeReader {
	return &FakeReader{Samples: samples}
}

func (f *FakeReader) Read() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return false, f.ReadError
	}
	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}

	pressed := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return pressed, nil
}

func (f *FakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *FakeReader) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Reset rewinds to the first sample.
func (f *FakeReader) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = 0
	f.closed = false
}
