package camera

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Mock implements Source for testing.
type Mock struct {
	// OpenFunc is called when Open is invoked. The default returns a
	// MockFrames producing blank 640x480 frames.
	OpenFunc func(ctx context.Context) (FrameSource, error)

	mu      sync.Mutex
	opened  []*MockFrames
	openErr int
}

// NewMock creates a mock source with sensible defaults.
func NewMock() *Mock {
	return &Mock{}
}

// Open calls OpenFunc and records the session.
func (m *Mock) Open(ctx context.Context) (FrameSource, error) {
	openFunc := m.OpenFunc
	if openFunc == nil {
		openFunc = func(ctx context.Context) (FrameSource, error) {
			return NewMockFrames(640, 480), nil
		}
	}

	fs, err := openFunc(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.openErr++
		return nil, err
	}
	if mf, ok := fs.(*MockFrames); ok {
		m.opened = append(m.opened, mf)
	}
	return fs, nil
}

// Sessions returns every MockFrames handed out so far.
func (m *Mock) Sessions() []*MockFrames {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MockFrames, len(m.opened))
	copy(out, m.opened)
	return out
}

// OpenCount returns the number of successful opens.
func (m *Mock) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.opened)
}

// ActiveCount returns the number of opened sessions not yet closed.
func (m *Mock) ActiveCount() int {
	n := 0
	for _, s := range m.Sessions() {
		if !s.Closed() {
			n++
		}
	}
	return n
}

// MockFrames implements FrameSource for testing.
type MockFrames struct {
	// NextFunc overrides frame production when set.
	NextFunc func(ctx context.Context, seq uint64) (Frame, error)

	width, height int
	seq           atomic.Uint64
	closes        atomic.Int32
}

// NewMockFrames creates a frame source producing blank frames of the given size.
func NewMockFrames(width, height int) *MockFrames {
	return &MockFrames{width: width, height: height}
}

// NextFrame returns a blank frame, or the result of NextFunc.
func (f *MockFrames) NextFrame(ctx context.Context) (Frame, error) {
	if f.Closed() {
		return Frame{}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	seq := f.seq.Add(1)
	if f.NextFunc != nil {
		return f.NextFunc(ctx, seq)
	}
	return Frame{
		Pixels:     make([]byte, f.width*f.height*3),
		Width:      f.width,
		Height:     f.height,
		Seq:        seq,
		CapturedAt: time.Now(),
	}, nil
}

// Close marks the source closed.
func (f *MockFrames) Close() error {
	f.closes.Add(1)
	return nil
}

// Closed reports whether Close has been called.
func (f *MockFrames) Closed() bool {
	return f.closes.Load() > 0
}

// FramesServed returns how many frames were requested.
func (f *MockFrames) FramesServed() uint64 {
	return f.seq.Load()
}
