package focus

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Baseline is the neutral, attentive posture captured during calibration.
type Baseline struct {
	EAR     float64 `json:"ear"`
	Yaw     float64 `json:"yaw"`
	Pitch   float64 `json:"pitch"`
	Roll    float64 `json:"roll"`
	Gaze    float64 `json:"gaze"`
	HasGaze bool    `json:"has_gaze"`
}

// calibrator collects consecutive valid measurements until it has enough
// to fix the baseline.
type calibrator struct {
	needed  int
	samples []measurement
}

func newCalibrator(needed int) *calibrator {
	return &calibrator{
		needed:  needed,
		samples: make([]measurement, 0, needed),
	}
}

// add records a sample and reports whether calibration is complete.
func (c *calibrator) add(m measurement) bool {
	c.samples = append(c.samples, m)
	return len(c.samples) >= c.needed
}

func (c *calibrator) reset() {
	c.samples = c.samples[:0]
}

func (c *calibrator) progress() float64 {
	return float64(len(c.samples)) / float64(c.needed)
}

// baseline takes the median of every cue. Medians keep blinks during
// calibration from dragging the open-eye reference down.
func (c *calibrator) baseline(minEAR float64) Baseline {
	field := func(get func(measurement) float64) float64 {
		values := make([]float64, 0, len(c.samples))
		for _, s := range c.samples {
			values = append(values, get(s))
		}
		sort.Float64s(values)
		return stat.Quantile(0.5, stat.Empirical, values, nil)
	}

	b := Baseline{
		EAR:   math.Max(field(func(m measurement) float64 { return m.EAR }), minEAR),
		Yaw:   field(func(m measurement) float64 { return m.Yaw }),
		Pitch: field(func(m measurement) float64 { return m.Pitch }),
		Roll:  field(func(m measurement) float64 { return m.Roll }),
	}

	// Layout never changes within a session, but guard against a mixed stream.
	withGaze := 0
	for _, s := range c.samples {
		if s.HasGaze {
			withGaze++
		}
	}
	if withGaze == len(c.samples) {
		b.Gaze = field(func(m measurement) float64 { return m.Gaze })
		b.HasGaze = true
	}
	return b
}
