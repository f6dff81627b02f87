package camera

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for capture sessions.
var (
	// ErrPermissionDenied indicates the OS refused camera access.
	ErrPermissionDenied = errors.New("camera: permission denied")

	// ErrNoDevice indicates no usable capture device was found.
	ErrNoDevice = errors.New("camera: no device")

	// ErrDeviceLost indicates the device stopped producing frames mid-session.
	ErrDeviceLost = errors.New("camera: device lost")

	// ErrClosed indicates the frame source was already closed.
	ErrClosed = errors.New("camera: closed")
)

// Frame is one captured image as packed 8-bit BGR pixels, row-major.
type Frame struct {
	Pixels     []byte
	Width      int
	Height     int
	Seq        uint64
	CapturedAt time.Time
}

// Empty reports whether the frame carries no image.
func (f Frame) Empty() bool {
	return f.Width <= 0 || f.Height <= 0 || len(f.Pixels) < f.Width*f.Height*3
}

// Source opens capture sessions.
type Source interface {
	// Open acquires the device and blocks until the first frame is ready.
	Open(ctx context.Context) (FrameSource, error)
}

// FrameSource is an open capture session. Only one FrameSource is held
// per tracking session.
type FrameSource interface {
	// NextFrame returns the next captured frame.
	NextFrame(ctx context.Context) (Frame, error)

	// Close releases the device. Safe to call more than once.
	Close() error
}
