package tracking

import "time"

// Stats are loop counters for the active session.
type Stats struct {
	Cycles           uint64        `json:"cycles"`
	EstimateFailures uint64        `json:"estimate_failures"`
	LastCycle        time.Duration `json:"last_cycle_ns"`
}

// Status describes the controller for dashboards.
type Status struct {
	State     string     `json:"state"`
	Session   string     `json:"session,omitempty"`
	Variant   string     `json:"variant,omitempty"`
	MinScore  float64    `json:"min_score"`
	HasPose   bool       `json:"has_pose"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Stats     Stats      `json:"stats"`
}

// Status returns the current controller status.
func (c *Controller) Status() Status {
	st := Status{
		State:    c.State().String(),
		MinScore: c.ConfidenceThreshold(),
		HasPose:  c.HasDetection(),
		Stats: Stats{
			Cycles:           c.cycles.Load(),
			EstimateFailures: c.estimateFailures.Load(),
			LastCycle:        time.Duration(c.lastCycle.Load()),
		},
	}

	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s != nil {
		st.Session = s.id
		st.Variant = s.variant.String()
		started := s.startedAt
		st.StartedAt = &started
	}
	return st
}
