// Package pose defines the single-person body model: the 17 keypoint slots,
// their canonical order, and the Pose produced by each estimation cycle.
package pose

import "fmt"

// NumKeypoints is the number of keypoints in every Pose.
const NumKeypoints = 17

// Part identifies one keypoint slot. The value is the slot's index in a Pose.
type Part int

// Keypoint slots in canonical (COCO) order.
const (
	Nose Part = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
)

// Names lists the part names in canonical order.
var Names = [NumKeypoints]string{
	"nose", "left_eye", "right_eye", "left_ear", "right_ear",
	"left_shoulder", "right_shoulder", "left_elbow", "right_elbow",
	"left_wrist", "right_wrist", "left_hip", "right_hip",
	"left_knee", "right_knee", "left_ankle", "right_ankle",
}

var partIndex = func() map[string]Part {
	m := make(map[string]Part, NumKeypoints)
	for i, name := range Names {
		m[name] = Part(i)
	}
	return m
}()

// Lookup resolves a part name. Unknown names return false.
func Lookup(name string) (Part, bool) {
	p, ok := partIndex[name]
	return p, ok
}

// Valid reports whether p is one of the 17 slots.
func (p Part) Valid() bool {
	return p >= 0 && p < NumKeypoints
}

func (p Part) String() string {
	if !p.Valid() {
		return fmt.Sprintf("part(%d)", int(p))
	}
	return Names[p]
}

// Keypoint is one body landmark in frame pixel coordinates.
type Keypoint struct {
	Part  Part    `json:"-"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score"`
}

// Pose is the full keypoint set for one person in one frame.
// A Pose is never mutated after it is handed to the tracker.
type Pose struct {
	Keypoints [NumKeypoints]Keypoint
}

// NewPose builds a Pose from keypoints in canonical order.
// Part fields are overwritten with the slot index.
func NewPose(kps []Keypoint) (*Pose, error) {
	if len(kps) != NumKeypoints {
		return nil, fmt.Errorf("pose: expected %d keypoints, got %d", NumKeypoints, len(kps))
	}
	p := &Pose{}
	for i, kp := range kps {
		kp.Part = Part(i)
		p.Keypoints[i] = kp
	}
	return p, nil
}

// Keypoint returns the keypoint for a slot.
func (p *Pose) Keypoint(part Part) (Keypoint, bool) {
	if p == nil || !part.Valid() {
		return Keypoint{}, false
	}
	return p.Keypoints[part], true
}

// MeanScore returns the average keypoint score.
func (p *Pose) MeanScore() float64 {
	if p == nil {
		return 0
	}
	var sum float64
	for _, kp := range p.Keypoints {
		sum += kp.Score
	}
	return sum / NumKeypoints
}

// Best returns the highest-scoring keypoint. Ties go to the earlier slot.
// A nil pose returns the zero Keypoint.
func (p *Pose) Best() Keypoint {
	if p == nil {
		return Keypoint{}
	}
	best := p.Keypoints[0]
	for _, kp := range p.Keypoints[1:] {
		if kp.Score > best.Score {
			best = kp
		}
	}
	return best
}

// AnyAbove reports whether at least one keypoint scores >= minScore.
func (p *Pose) AnyAbove(minScore float64) bool {
	if p == nil {
		return false
	}
	for _, kp := range p.Keypoints {
		if kp.Score >= minScore {
			return true
		}
	}
	return false
}
