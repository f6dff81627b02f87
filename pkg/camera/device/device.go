// Package device provides an OpenCV webcam implementation of camera.Source.
package device

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-movenet/pkg/camera"
	"github.com/teslashibe/go-movenet/pkg/debug"
	"gocv.io/x/gocv"
)

const (
	// firstFramePoll is how often Open retries while the sensor warms up.
	firstFramePoll = 20 * time.Millisecond

	// maxEmptyReads is how many consecutive failed reads mean the device is gone.
	maxEmptyReads = 30
)

// ConfigProvider supplies the capture config at Open time.
// *camera.Manager satisfies it.
type ConfigProvider interface {
	GetConfig() camera.Config
}

// Source opens OpenCV capture devices.
type Source struct {
	configs ConfigProvider
}

// New creates a webcam source that reads its settings from configs.
func New(configs ConfigProvider) *Source {
	return &Source{configs: configs}
}

// Open opens the configured device and waits for its first frame.
func (s *Source) Open(ctx context.Context) (camera.FrameSource, error) {
	cfg := s.configs.GetConfig()
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("camera config: %v", errs)
	}

	vc, err := gocv.VideoCaptureDevice(cfg.DeviceID)
	if err != nil {
		return nil, classifyOpenError(cfg.DeviceID, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: device %d did not open", camera.ErrNoDevice, cfg.DeviceID)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	w := &webcam{
		vc:  vc,
		mat: gocv.NewMat(),
	}

	first, err := w.waitFirstFrame(ctx, cfg.OpenTimeout)
	if err != nil {
		w.Close()
		return nil, err
	}
	w.pending = &first

	debug.TrackLog("camera opened", "device", cfg.DeviceID, "width", first.Width, "height", first.Height)
	return w, nil
}

func classifyOpenError(id int, err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "not authorized") || strings.Contains(msg, "denied") {
		return fmt.Errorf("%w: device %d: %v", camera.ErrPermissionDenied, id, err)
	}
	return fmt.Errorf("%w: device %d: %v", camera.ErrNoDevice, id, err)
}

// webcam is an open OpenCV capture session.
type webcam struct {
	mu      sync.Mutex // Protects vc and mat
	vc      *gocv.VideoCapture
	mat     gocv.Mat
	pending *camera.Frame
	seq     uint64
	closed  atomic.Bool
}

func (w *webcam) waitFirstFrame(ctx context.Context, timeout time.Duration) (camera.Frame, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(firstFramePoll)
	defer ticker.Stop()

	for {
		if f, ok := w.read(); ok {
			return f, nil
		}
		select {
		case <-ctx.Done():
			return camera.Frame{}, fmt.Errorf("%w: no frame before open deadline: %v", camera.ErrNoDevice, ctx.Err())
		case <-ticker.C:
		}
	}
}

// read grabs one frame. Returns false if the device produced nothing.
func (w *webcam) read() (camera.Frame, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed.Load() {
		return camera.Frame{}, false
	}
	if ok := w.vc.Read(&w.mat); !ok || w.mat.Empty() {
		return camera.Frame{}, false
	}

	src := w.mat
	if src.Channels() == 1 {
		bgr := gocv.NewMat()
		defer bgr.Close()
		gocv.CvtColor(src, &bgr, gocv.ColorGrayToBGR)
		src = bgr
	}

	w.seq++
	return camera.Frame{
		Pixels:     src.ToBytes(),
		Width:      src.Cols(),
		Height:     src.Rows(),
		Seq:        w.seq,
		CapturedAt: time.Now(),
	}, true
}

// NextFrame returns the next frame from the device.
func (w *webcam) NextFrame(ctx context.Context) (camera.Frame, error) {
	if w.closed.Load() {
		return camera.Frame{}, camera.ErrClosed
	}

	w.mu.Lock()
	if p := w.pending; p != nil {
		w.pending = nil
		w.mu.Unlock()
		return *p, nil
	}
	w.mu.Unlock()

	for misses := 0; misses < maxEmptyReads; misses++ {
		if err := ctx.Err(); err != nil {
			return camera.Frame{}, err
		}
		if f, ok := w.read(); ok {
			return f, nil
		}
		if w.closed.Load() {
			return camera.Frame{}, camera.ErrClosed
		}
	}
	return camera.Frame{}, fmt.Errorf("%w: %d consecutive empty reads", camera.ErrDeviceLost, maxEmptyReads)
}

// Close releases the device. Safe to call more than once.
// The capture handle cannot be released mid-read, so a read stuck in the
// driver delays Close until it returns. NextFrame fails fast once closed.
func (w *webcam) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.mat.Close()
	return w.vc.Close()
}
