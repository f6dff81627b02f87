package movenet

import (
	"fmt"
	"math"

	"github.com/teslashibe/go-movenet/pkg/estimator"
	"github.com/teslashibe/go-movenet/pkg/pose"
)

// Output layouts. SinglePose emits [1,1,17,3]; MultiPose emits [1,6,56]
// where the first 51 values of each row are keypoints and the rest a box.
const (
	valuesPerKeypoint = 3 // y, x, score
	singlePoseStride  = pose.NumKeypoints * valuesPerKeypoint
	multiPoseStride   = 56
)

// letterbox describes how a frame was padded to the square model input.
type letterbox struct {
	side        int // edge of the padded square, in frame pixels
	left, top   int
	right, down int
}

func newLetterbox(width, height int) letterbox {
	side := width
	if height > side {
		side = height
	}
	left := (side - width) / 2
	top := (side - height) / 2
	return letterbox{
		side:  side,
		left:  left,
		top:   top,
		right: side - width - left,
		down:  side - height - top,
	}
}

// toFrame maps normalized model coordinates back to frame pixels.
func (l letterbox) toFrame(nx, ny float64) (x, y float64) {
	return nx*float64(l.side) - float64(l.left), ny*float64(l.side) - float64(l.top)
}

// decode turns a raw output tensor into the primary pose.
// lastDim is the size of the tensor's innermost dimension.
func decode(data []float32, lastDim int, lb letterbox, width int, mirror bool) (*pose.Pose, error) {
	stride := singlePoseStride
	if lastDim == multiPoseStride {
		stride = multiPoseStride
	}
	if len(data) < singlePoseStride {
		return nil, fmt.Errorf("movenet: output has %d values, need %d", len(data), singlePoseStride)
	}

	var candidates []*pose.Pose
	for off := 0; off+singlePoseStride <= len(data); off += stride {
		candidates = append(candidates, decodeOne(data[off:off+singlePoseStride], lb, width, mirror))
	}
	return estimator.SelectPrimary(candidates), nil
}

func decodeOne(data []float32, lb letterbox, width int, mirror bool) *pose.Pose {
	p := &pose.Pose{}
	for i := 0; i < pose.NumKeypoints; i++ {
		ny := float64(data[i*valuesPerKeypoint])
		nx := float64(data[i*valuesPerKeypoint+1])
		score := float64(data[i*valuesPerKeypoint+2])

		x, y := lb.toFrame(nx, ny)
		if mirror {
			x = estimator.Mirror(x, width)
		}
		p.Keypoints[i] = pose.Keypoint{Part: pose.Part(i), X: x, Y: y, Score: clampScore(score)}
	}
	return p
}

func clampScore(s float64) float64 {
	if s < 0 || math.IsNaN(s) {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
