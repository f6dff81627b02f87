// Package movenet runs MoveNet SinglePose (Lightning or Thunder) through
// OpenCV's DNN module.
//
// Models are ONNX exports of the TF Hub MoveNet models with NCHW float
// input (tf2onnx --inputs-as-nchw). Frames are letterboxed to the square
// model input; keypoints come back in frame pixels, optionally mirrored.
package movenet

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/teslashibe/go-movenet/internal/httpc"
	"github.com/teslashibe/go-movenet/internal/log"
	"github.com/teslashibe/go-movenet/pkg/camera"
	"github.com/teslashibe/go-movenet/pkg/debug"
	"github.com/teslashibe/go-movenet/pkg/estimator"
	"github.com/teslashibe/go-movenet/pkg/pose"
	"gocv.io/x/gocv"
)

// Config holds MoveNet backend configuration
type Config struct {
	ModelDir      string // Directory holding the ONNX files
	LightningFile string // Lightning model file name
	ThunderFile   string // Thunder model file name
	Mirror        bool   // Flip x so left/right match a front camera preview
	Backend       string // OpenCV DNN backend: default, opencv, cuda, openvino
	Target        string // OpenCV DNN target: cpu, cuda, opencl
	WarmupRuns    int    // Forward passes run during Initialize

	// LightningURL and ThunderURL, when set, are fetched into ModelDir the
	// first time a missing model is initialized.
	LightningURL string
	ThunderURL   string

	// Mirrored, when set, is consulted on every Initialize so a facing
	// change applies to the next session. Mirror must also be true.
	Mirrored func() bool
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		ModelDir:      "models",
		LightningFile: "movenet_singlepose_lightning.onnx",
		ThunderFile:   "movenet_singlepose_thunder.onnx",
		Mirror:        true,
		Backend:       "default",
		Target:        "cpu",
		WarmupRuns:    1,
	}
}

// mirror reports whether sessions initialized now should flip x.
func (c Config) mirror() bool {
	if !c.Mirror {
		return false
	}
	return c.Mirrored == nil || c.Mirrored()
}

// ModelPath returns the file for variant v.
func (c Config) ModelPath(v pose.Variant) string {
	name := c.LightningFile
	if v == pose.Thunder {
		name = c.ThunderFile
	}
	return filepath.Join(c.ModelDir, name)
}

// ModelURL returns the download location for variant v, or "".
func (c Config) ModelURL(v pose.Variant) string {
	if v == pose.Thunder {
		return c.ThunderURL
	}
	return c.LightningURL
}

// Provider loads MoveNet models.
type Provider struct {
	config Config
	fetch  sync.Mutex // Serializes downloads
}

// New creates a MoveNet provider.
func New(cfg Config) *Provider {
	return &Provider{config: cfg}
}

// Initialize loads the model for v and runs the warm-up passes.
func (p *Provider) Initialize(ctx context.Context, v pose.Variant) (estimator.Model, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("%w: %v", pose.ErrUnknownVariant, v)
	}

	path, err := p.ensureModel(ctx, v)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, fmt.Errorf("%w: %s", estimator.ErrModelLoad, path)
	}
	net.SetPreferableBackend(gocv.ParseNetBackend(p.config.Backend))
	net.SetPreferableTarget(gocv.ParseNetTarget(p.config.Target))

	m := &model{
		net:     net,
		variant: v,
		size:    v.InputSize(),
		mirror:  p.config.mirror(),
	}

	start := time.Now()
	for i := 0; i < p.config.WarmupRuns; i++ {
		if err := ctx.Err(); err != nil {
			m.Dispose()
			return nil, err
		}
		if err := m.warmup(); err != nil {
			m.Dispose()
			return nil, fmt.Errorf("%w: warm-up: %v", estimator.ErrModelLoad, err)
		}
	}

	debug.Log("movenet model ready", "variant", v, "path", path, "warmup", time.Since(start))
	return m, nil
}

// ensureModel returns the model path for v, downloading it first when it
// is missing and a URL is configured.
func (p *Provider) ensureModel(ctx context.Context, v pose.Variant) (string, error) {
	path := p.config.ModelPath(v)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %v", estimator.ErrModelLoad, err)
	}

	url := p.config.ModelURL(v)
	if url == "" {
		return "", fmt.Errorf("%w: %s", estimator.ErrModelNotFound, path)
	}

	p.fetch.Lock()
	defer p.fetch.Unlock()
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	log.Info("downloading movenet model", "variant", v, "url", url)
	start := time.Now()
	n, err := httpc.Download(ctx, nil, url, path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", estimator.ErrModelNotFound, path, err)
	}
	log.Info("movenet model downloaded", "variant", v, "bytes", n, "took", time.Since(start))
	return path, nil
}

// model is a loaded MoveNet network.
type model struct {
	mu       sync.Mutex // Protects inference
	net      gocv.Net
	variant  pose.Variant
	size     int
	mirror   bool
	disposed bool
}

func (m *model) warmup() error {
	blank := gocv.NewMatWithSize(m.size, m.size, gocv.MatTypeCV8UC3)
	defer blank.Close()

	m.mu.Lock()
	defer m.mu.Unlock()
	_, _, err := m.forward(blank)
	return err
}

// Estimate runs one inference on f.
func (m *model) Estimate(ctx context.Context, f camera.Frame) (*pose.Pose, error) {
	if f.Empty() {
		return nil, estimator.ErrEmptyFrame
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Pixels)
	if err != nil {
		return nil, fmt.Errorf("movenet: frame to mat: %w", err)
	}
	defer img.Close()

	lb := newLetterbox(f.Width, f.Height)
	padded := gocv.NewMat()
	defer padded.Close()
	gocv.CopyMakeBorder(img, &padded, lb.top, lb.down, lb.left, lb.right, gocv.BorderConstant, color.RGBA{})

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return nil, estimator.ErrNotInitialized
	}

	data, lastDim, err := m.forward(padded)
	if err != nil {
		return nil, err
	}
	return decode(data, lastDim, lb, f.Width, m.mirror)
}

// forward runs the network on a BGR image. Caller holds m.mu.
func (m *model) forward(img gocv.Mat) ([]float32, int, error) {
	if m.disposed {
		return nil, 0, estimator.ErrNotInitialized
	}

	// BGR -> RGB, resized to the model edge, raw 0-255 values
	blob := gocv.BlobFromImage(img, 1.0, image.Pt(m.size, m.size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	m.net.SetInput(blob, "")
	output := m.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return nil, 0, fmt.Errorf("movenet: empty output")
	}

	raw, err := output.DataPtrFloat32()
	if err != nil {
		return nil, 0, fmt.Errorf("movenet: read output: %w", err)
	}
	// Copy out before the output Mat is released
	data := make([]float32, len(raw))
	copy(data, raw)

	dims := output.Size()
	lastDim := 0
	if len(dims) > 0 {
		lastDim = dims[len(dims)-1]
	}
	return data, lastDim, nil
}

// Dispose releases the network. Safe to call more than once.
func (m *model) Dispose() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return nil
	}
	m.disposed = true
	return m.net.Close()
}
