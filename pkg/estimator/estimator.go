// Package estimator defines the pose-estimation backend contract used by
// the tracker, plus helpers shared by backends.
package estimator

import (
	"context"
	"errors"

	"github.com/teslashibe/go-movenet/pkg/camera"
	"github.com/teslashibe/go-movenet/pkg/pose"
)

// Sentinel errors for the estimator package.
var (
	// ErrModelNotFound indicates the model file for a variant is missing.
	ErrModelNotFound = errors.New("estimator: model not found")

	// ErrModelLoad indicates the backend could not load or warm the model.
	ErrModelLoad = errors.New("estimator: model load failed")

	// ErrNotInitialized indicates Estimate was called on a disposed model.
	ErrNotInitialized = errors.New("estimator: model not initialized")

	// ErrEmptyFrame indicates the frame carried no image.
	ErrEmptyFrame = errors.New("estimator: empty frame")
)

// Provider creates models. A Provider is chosen once when the program is
// wired together and may initialize many models over its lifetime.
type Provider interface {
	// Initialize loads and warms the model for v. It returns only when the
	// model is ready to estimate.
	Initialize(ctx context.Context, v pose.Variant) (Model, error)
}

// Model is an initialized pose estimator.
type Model interface {
	// Estimate returns the pose of the primary person in f, or nil if
	// nobody was found. Coordinates are frame pixels, mirrored horizontally.
	Estimate(ctx context.Context, f camera.Frame) (*pose.Pose, error)

	// Dispose releases backend resources. Safe to call more than once.
	Dispose() error
}

// SelectPrimary picks the single tracked person from several candidates.
// The candidate with the highest mean keypoint score wins; ties keep the
// earlier candidate.
func SelectPrimary(candidates []*pose.Pose) *pose.Pose {
	var best *pose.Pose
	bestScore := -1.0
	for _, p := range candidates {
		if p == nil {
			continue
		}
		if s := p.MeanScore(); s > bestScore {
			bestScore = s
			best = p
		}
	}
	return best
}

// Mirror flips an x coordinate across a frame of the given width.
func Mirror(x float64, width int) float64 {
	return float64(width) - x
}
