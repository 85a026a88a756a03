package focus

import (
	"math"
	"testing"

	"github.com/teslashibe/go-focus/pkg/landmark"
)

func TestMeasure_Neutral(t *testing.T) {
	m, ok := measure(openEyes, landmark.MediaPipe478)
	if !ok {
		t.Fatal("neutral face should measure")
	}
	if math.Abs(m.EAR-0.30) > 0.005 {
		t.Errorf("EAR = %.4f, want ~0.30", m.EAR)
	}
	if math.Abs(m.Yaw) > 1e-9 {
		t.Errorf("yaw = %v, want 0", m.Yaw)
	}
	if math.Abs(m.Roll) > 1e-9 {
		t.Errorf("roll = %v, want 0", m.Roll)
	}
	if !m.HasGaze || math.Abs(m.Gaze-0.5) > 0.01 {
		t.Errorf("gaze = %v (has %v), want centered", m.Gaze, m.HasGaze)
	}
	if m.Pitch <= 0 || m.Pitch >= 1 {
		t.Errorf("pitch = %v, want nose between eyes and chin", m.Pitch)
	}
}

func TestMeasure_DirectionCues(t *testing.T) {
	neutral, _ := measure(openEyes, landmark.MediaPipe478)

	tests := []struct {
		name  string
		pose  landmark.Pose
		check func(m measurement) bool
	}{
		{"yaw moves nose along contour", landmark.Neutral().Turned(0.4), func(m measurement) bool {
			return math.Abs(m.Yaw-neutral.Yaw) > 0.1
		}},
		{"roll tilts eye line", landmark.Pose{RightOpen: 1, LeftOpen: 1, Roll: 0.3}, func(m measurement) bool {
			return math.Abs(m.Roll-0.3) < 0.01
		}},
		{"pitch moves nose vertically", landmark.Pose{RightOpen: 1, LeftOpen: 1, Pitch: 0.4}, func(m measurement) bool {
			return math.Abs(m.Pitch-neutral.Pitch) > 0.05
		}},
		{"gaze shifts iris", landmark.Pose{RightOpen: 1, LeftOpen: 1, Gaze: 1}, func(m measurement) bool {
			return math.Abs(m.Gaze-neutral.Gaze) > 0.1
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := measure(landmark.Synthesize(tt.pose), landmark.MediaPipe478)
			if !ok {
				t.Fatal("pose should measure")
			}
			if !tt.check(m) {
				t.Errorf("unexpected measurement %+v (neutral %+v)", m, neutral)
			}
		})
	}
}

func TestMeasure_EARIgnoresYaw(t *testing.T) {
	neutral, _ := measure(openEyes, landmark.MediaPipe478)
	turned, _ := measure(turnedAway, landmark.MediaPipe478)
	if math.Abs(neutral.EAR-turned.EAR) > 0.01 {
		t.Errorf("EAR changed with head turn: %.4f vs %.4f", neutral.EAR, turned.EAR)
	}
}

func TestMeasure_Degenerate(t *testing.T) {
	if _, ok := measure(degenerateSet(), landmark.MediaPipe478); ok {
		t.Error("coincident points should be degenerate")
	}
}

func TestDirectionScore(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		dev  float64
		want float64
	}{
		{0, 1},
		{0.15, 1},
		{0.375, 0.5},
		{0.6, 0},
		{5, 0},
	}
	for _, tt := range tests {
		if got := cfg.directionScore(tt.dev); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("directionScore(%v) = %v, want %v", tt.dev, got, tt.want)
		}
	}
}

func TestOpenness(t *testing.T) {
	cfg := DefaultConfig()
	base := Baseline{EAR: 0.30}
	tests := []struct {
		ear    float64
		want   float64
		closed bool
	}{
		{0.30, 1, false},
		{0.27, 1, false},
		{0.2175, 0.5, false},
		{0.19, 2.0 / 15, false},
		{0.05, 0, true},
	}
	for _, tt := range tests {
		if got := cfg.openness(tt.ear, base); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("openness(%v) = %v, want %v", tt.ear, got, tt.want)
		}
		if got := cfg.closed(tt.ear, base); got != tt.closed {
			t.Errorf("closed(%v) = %v, want %v", tt.ear, got, tt.closed)
		}
	}
}

func TestAngleDiff(t *testing.T) {
	tests := []struct {
		a, b, want float64
	}{
		{0.1, 0, 0.1},
		{0, 0.1, -0.1},
		{math.Pi - 0.1, -math.Pi + 0.1, -0.2},
	}
	for _, tt := range tests {
		if got := angleDiff(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("angleDiff(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCalibratorBaselineUsesMedian(t *testing.T) {
	c := newCalibrator(5)
	for _, ear := range []float64{0.30, 0.31, 0.05, 0.29, 0.30} {
		c.add(measurement{EAR: ear})
	}
	b := c.baseline(0.15)
	if b.EAR != 0.30 {
		t.Errorf("baseline EAR = %v, want median 0.30", b.EAR)
	}
	if b.HasGaze {
		t.Error("samples without gaze should not set a gaze baseline")
	}

	c.reset()
	for i := 0; i < 5; i++ {
		c.add(measurement{EAR: 0.05})
	}
	if b := c.baseline(0.15); b.EAR != 0.15 {
		t.Errorf("baseline EAR = %v, want floor 0.15", b.EAR)
	}
}

func TestRing(t *testing.T) {
	r := newRing[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}
	got := r.Values()
	want := []int{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("Values() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Values()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	r.Reset()
	if r.Len() != 0 || r.Cap() != 3 {
		t.Errorf("after reset: len %d cap %d", r.Len(), r.Cap())
	}
}
