package estimator

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-movenet/pkg/camera"
	"github.com/teslashibe/go-movenet/pkg/pose"
)

// Mock implements Provider for testing.
type Mock struct {
	// InitializeFunc is called when Initialize is invoked. The default
	// returns a MockModel that never finds anyone.
	InitializeFunc func(ctx context.Context, v pose.Variant) (Model, error)

	// EstimateFunc is installed on every default MockModel.
	EstimateFunc func(ctx context.Context, f camera.Frame) (*pose.Pose, error)

	mu     sync.Mutex
	models []*MockModel
	inits  int
}

// NewMock creates a new mock provider with sensible defaults.
func NewMock() *Mock {
	return &Mock{}
}

// Initialize calls InitializeFunc and records the model.
func (m *Mock) Initialize(ctx context.Context, v pose.Variant) (Model, error) {
	m.mu.Lock()
	m.inits++
	initFunc := m.InitializeFunc
	estimate := m.EstimateFunc
	m.mu.Unlock()

	var (
		model Model
		err   error
	)
	if initFunc != nil {
		model, err = initFunc(ctx, v)
	} else {
		model = &MockModel{Variant: v, EstimateFunc: estimate}
	}
	if err != nil {
		return nil, err
	}

	if mm, ok := model.(*MockModel); ok {
		m.mu.Lock()
		m.models = append(m.models, mm)
		m.mu.Unlock()
	}
	return model, nil
}

// InitCount returns how many times Initialize was called.
func (m *Mock) InitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inits
}

// Models returns every MockModel handed out so far.
func (m *Mock) Models() []*MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MockModel, len(m.models))
	copy(out, m.models)
	return out
}

// LiveCount returns the number of models not yet disposed.
func (m *Mock) LiveCount() int {
	n := 0
	for _, mm := range m.Models() {
		if !mm.Disposed() {
			n++
		}
	}
	return n
}

// MockModel implements Model for testing.
type MockModel struct {
	Variant pose.Variant

	// EstimateFunc is called when Estimate is invoked.
	EstimateFunc func(ctx context.Context, f camera.Frame) (*pose.Pose, error)

	estimates atomic.Int64
	disposes  atomic.Int32
}

// Estimate calls EstimateFunc, or returns no pose.
func (m *MockModel) Estimate(ctx context.Context, f camera.Frame) (*pose.Pose, error) {
	if m.Disposed() {
		return nil, ErrNotInitialized
	}
	m.estimates.Add(1)
	if m.EstimateFunc != nil {
		return m.EstimateFunc(ctx, f)
	}
	return nil, nil
}

// Dispose marks the model disposed.
func (m *MockModel) Dispose() error {
	m.disposes.Add(1)
	return nil
}

// Disposed reports whether Dispose has been called.
func (m *MockModel) Disposed() bool {
	return m.disposes.Load() > 0
}

// EstimateCount returns how many estimates ran.
func (m *MockModel) EstimateCount() int64 {
	return m.estimates.Load()
}

// StaticPose returns an EstimateFunc that always reports p.
func StaticPose(p *pose.Pose) func(ctx context.Context, f camera.Frame) (*pose.Pose, error) {
	return func(ctx context.Context, f camera.Frame) (*pose.Pose, error) {
		return p, nil
	}
}
