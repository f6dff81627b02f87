// Package smooth wraps an estimator.Provider and filters keypoint
// positions with one constant-velocity Kalman filter per part.
package smooth

import (
	"context"
	"sync"

	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/pkg/errors"
	"github.com/teslashibe/go-movenet/pkg/camera"
	"github.com/teslashibe/go-movenet/pkg/estimator"
	"github.com/teslashibe/go-movenet/pkg/pose"
)

// Config holds the filter parameters.
type Config struct {
	// MinScore is the score a keypoint needs to feed its filter. Weaker
	// keypoints pass through unfiltered and reset the filter.
	MinScore float64

	Dt       float64 // Time step per frame
	StdDevA  float64 // Process noise (acceleration)
	StdDevMx float64 // Measurement noise, x
	StdDevMy float64 // Measurement noise, y
}

// DefaultConfig returns parameters tuned for 30-60 fps webcam input.
func DefaultConfig() Config {
	return Config{
		MinScore: 0.2,
		Dt:       1.0,
		StdDevA:  2.0,
		StdDevMx: 0.1,
		StdDevMy: 0.1,
	}
}

// Provider decorates another provider. Each model it returns keeps its
// own filters, so sessions never share state.
type Provider struct {
	next   estimator.Provider
	config Config
}

// Wrap returns a smoothing provider over next.
func Wrap(next estimator.Provider, cfg Config) *Provider {
	return &Provider{next: next, config: cfg}
}

// Initialize initializes the wrapped model and attaches fresh filters.
func (p *Provider) Initialize(ctx context.Context, v pose.Variant) (estimator.Model, error) {
	m, err := p.next.Initialize(ctx, v)
	if err != nil {
		return nil, err
	}
	return &model{next: m, config: p.config}, nil
}

type model struct {
	next   estimator.Model
	config Config

	mu      sync.Mutex // Protects filters
	filters [pose.NumKeypoints]*kalman_filter.Kalman2D
}

// Estimate runs the wrapped model and filters the result. A frame with
// no person resets every filter.
func (m *model) Estimate(ctx context.Context, f camera.Frame) (*pose.Pose, error) {
	p, err := m.next.Estimate(ctx, f)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if p == nil {
		m.filters = [pose.NumKeypoints]*kalman_filter.Kalman2D{}
		return nil, nil
	}

	// The wrapped model may hand out shared poses; never write through them
	out := *p
	for i := range out.Keypoints {
		kp := &out.Keypoints[i]
		if kp.Score < m.config.MinScore {
			m.filters[i] = nil
			continue
		}

		kf := m.filters[i]
		if kf == nil {
			m.filters[i] = m.newFilter(kp.X, kp.Y)
			continue
		}

		kf.Predict()
		if err := kf.Update(kp.X, kp.Y); err != nil {
			m.filters[i] = nil
			return nil, errors.Wrapf(err, "smooth %s", pose.Part(i))
		}
		kp.X, kp.Y = kf.GetState()
	}
	return &out, nil
}

func (m *model) newFilter(x, y float64) *kalman_filter.Kalman2D {
	c := m.config
	return kalman_filter.NewKalman2D(c.Dt, 1.0, 1.0, c.StdDevA, c.StdDevMx, c.StdDevMy,
		kalman_filter.WithState2D(x, y))
}

// Dispose releases the wrapped model.
func (m *model) Dispose() error {
	m.mu.Lock()
	m.filters = [pose.NumKeypoints]*kalman_filter.Kalman2D{}
	m.mu.Unlock()
	return m.next.Dispose()
}
