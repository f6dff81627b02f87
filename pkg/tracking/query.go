package tracking

import (
	"math"
	"time"

	"github.com/teslashibe/go-movenet/pkg/pose"
)

// current returns the latest pose if the controller is running.
func (c *Controller) current() *pose.Pose {
	if c.State() != Running {
		return nil
	}
	return c.latest.Load()
}

// detected returns the keypoint for name if it clears the threshold.
func detected(p *pose.Pose, name string, minScore float64) (pose.Keypoint, bool) {
	part, ok := pose.Lookup(name)
	if !ok {
		return pose.Keypoint{}, false
	}
	kp, ok := p.Keypoint(part)
	if !ok || kp.Score < minScore {
		return pose.Keypoint{}, false
	}
	return kp, true
}

// PartPosition returns the rounded pixel position of a part. ok is false
// when not running, no pose is available, the name is unknown, or the
// part scores below the threshold.
func (c *Controller) PartPosition(name string) (x, y int, ok bool) {
	kp, ok := detected(c.current(), name, c.ConfidenceThreshold())
	if !ok {
		return 0, 0, false
	}
	return roundHalfUp(kp.X), roundHalfUp(kp.Y), true
}

// PartConfidence returns a part's score rounded to 3 decimals, or 0 when
// the part is not detected.
func (c *Controller) PartConfidence(name string) float64 {
	kp, ok := detected(c.current(), name, c.ConfidenceThreshold())
	if !ok {
		return 0
	}
	return round3(kp.Score)
}

// HasDetection reports whether any keypoint of the latest pose clears the
// threshold.
func (c *Controller) HasDetection() bool {
	return c.current().AnyAbove(c.ConfidenceThreshold())
}

// PartReading is one part as seen through the threshold.
type PartReading struct {
	Part     string  `json:"part"`
	Detected bool    `json:"detected"`
	X        int     `json:"x"`
	Y        int     `json:"y"`
	Score    float64 `json:"score"`
}

// Snapshot is a consistent view of every part from a single pose.
type Snapshot struct {
	Running  bool          `json:"running"`
	Detected bool          `json:"detected"`
	MinScore float64       `json:"min_score"`
	Parts    []PartReading `json:"parts"`
	Time     time.Time     `json:"time"`
}

// Snapshot reads all 17 parts from the same pose.
func (c *Controller) Snapshot() Snapshot {
	p := c.current()
	minScore := c.ConfidenceThreshold()

	snap := Snapshot{
		Running:  c.State() == Running,
		Detected: p.AnyAbove(minScore),
		MinScore: minScore,
		Parts:    make([]PartReading, 0, pose.NumKeypoints),
		Time:     time.Now(),
	}
	for _, name := range pose.Names {
		r := PartReading{Part: name}
		if kp, ok := detected(p, name, minScore); ok {
			r.Detected = true
			r.X = roundHalfUp(kp.X)
			r.Y = roundHalfUp(kp.Y)
			r.Score = round3(kp.Score)
		}
		snap.Parts = append(snap.Parts, r)
	}
	return snap
}

// roundHalfUp rounds .5 toward +Inf, like the host's Math.round.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
