package session

import "time"

// DefaultReportInterval is how often a live score is appended to the focus log.
const DefaultReportInterval = time.Second

// Sampler throttles reports by frame time. Every frame still goes to the
// estimator; only the reporting is rate limited.
type Sampler struct {
	interval time.Duration
	last     time.Time
	started  bool
}

// NewSampler creates a sampler. A non-positive interval reports every frame.
func NewSampler(interval time.Duration) *Sampler {
	return &Sampler{interval: interval}
}

// Due reports whether a frame captured at t should be reported, and if so
// records it. The first frame is always due. A timestamp earlier than the
// last report restarts the clock, so a provider that resets its clock
// keeps reporting.
func (s *Sampler) Due(t time.Time) bool {
	if !s.started || t.Before(s.last) || t.Sub(s.last) >= s.interval {
		s.last = t
		s.started = true
		return true
	}
	return false
}

