package focus

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/teslashibe/go-focus/pkg/landmark"
)

// minSpan is the smallest eye or face span treated as non-degenerate.
const minSpan = 1e-6

// measurement holds the raw geometric cues of one frame.
type measurement struct {
	EAR   float64 // mean eye aspect ratio of both eyes
	Yaw   float64 // nose offset along the face contour axis, in face widths
	Pitch float64 // nose position between eye line and chin (0 = eyes, 1 = chin)
	Roll  float64 // eye line angle in radians
	Gaze  float64 // iris position across the eye (0.5 = centered)

	HasGaze bool
}

// measure extracts the cues of one frame. It returns false when the
// geometry is degenerate (coincident points, zero spans).
func measure(set *landmark.Set, layout landmark.Layout) (measurement, bool) {
	var m measurement

	right, ok := eyeAspectRatio(set, layout.RightEye)
	if !ok {
		return m, false
	}
	left, ok := eyeAspectRatio(set, layout.LeftEye)
	if !ok {
		return m, false
	}
	m.EAR = (right + left) / 2

	// Head direction uses image-plane geometry only; depth is not
	// comparable across providers.
	contourL := flat(set.At(layout.ContourLeft))
	contourR := flat(set.At(layout.ContourRight))
	nose := flat(set.At(layout.NoseTip))
	chin := flat(set.At(layout.Chin))

	axis := contourR.Sub(contourL)
	width2 := axis.Norm2()
	if width2 < minSpan*minSpan {
		return m, false
	}
	mid := flat(landmark.Midpoint(set.At(layout.ContourLeft), set.At(layout.ContourRight)))
	m.Yaw = nose.Sub(mid).Dot(axis) / width2

	rightCenter := eyeCenter(set, layout.RightEye)
	leftCenter := eyeCenter(set, layout.LeftEye)
	eyeLine := leftCenter.Sub(rightCenter)
	if eyeLine.Norm() < minSpan {
		return m, false
	}
	m.Roll = math.Atan2(eyeLine.Y, eyeLine.X)

	eyeMid := rightCenter.Add(eyeLine.Mul(0.5))
	vertical := chin.Sub(eyeMid)
	height2 := vertical.Norm2()
	if height2 < minSpan*minSpan {
		return m, false
	}
	m.Pitch = nose.Sub(eyeMid).Dot(vertical) / height2

	if layout.HasIris() {
		// Measure each iris from the image-left corner so both eyes agree on direction.
		r := irisRatio(set.At(layout.RightIris), set.At(layout.RightEye[0]), set.At(layout.RightEye[3]))
		l := irisRatio(set.At(layout.LeftIris), set.At(layout.LeftEye[3]), set.At(layout.LeftEye[0]))
		m.Gaze = (r + l) / 2
		m.HasGaze = true
	}

	if !finite(m.EAR, m.Yaw, m.Pitch, m.Roll, m.Gaze) {
		return m, false
	}
	return m, true
}

// eyeAspectRatio computes (|p2-p6| + |p3-p5|) / (2|p1-p4|). Distances are
// 3D so that turning the head does not shorten the eye.
func eyeAspectRatio(set *landmark.Set, eye landmark.Eye) (float64, bool) {
	horizontal := landmark.Distance(set.At(eye[0]), set.At(eye[3]))
	if horizontal < minSpan {
		return 0, false
	}
	vertical := landmark.Distance(set.At(eye[1]), set.At(eye[5])) +
		landmark.Distance(set.At(eye[2]), set.At(eye[4]))
	return vertical / (2 * horizontal), true
}

func eyeCenter(set *landmark.Set, eye landmark.Eye) r3.Vector {
	return flat(set.At(eye[0])).Add(flat(set.At(eye[3]))).Mul(0.5)
}

// irisRatio returns where the iris sits between the image-left and
// image-right eye corners. Spans are checked by eyeAspectRatio first.
func irisRatio(iris, leftCorner, rightCorner landmark.Point) float64 {
	axis := flat(rightCorner).Sub(flat(leftCorner))
	return flat(iris).Sub(flat(leftCorner)).Dot(axis) / axis.Norm2()
}

func flat(p landmark.Point) r3.Vector {
	return r3.Vector{X: p.X, Y: p.Y}
}

// deviation returns the normalized distance of a frame's head direction
// from the baseline posture.
func (c Config) deviation(m measurement, base Baseline) float64 {
	dy := (m.Yaw - base.Yaw) / c.YawScale
	dp := (m.Pitch - base.Pitch) / c.PitchScale
	dr := angleDiff(m.Roll, base.Roll) / c.RollScale
	sum := dy*dy + dp*dp + dr*dr
	if m.HasGaze && base.HasGaze {
		dg := (m.Gaze - base.Gaze) / c.GazeScale
		sum += dg * dg
	}
	return math.Sqrt(sum)
}

// directionScore maps a deviation to [0,1]; 1 inside the dead zone,
// 0 at or beyond saturation.
func (c Config) directionScore(dev float64) float64 {
	penalty := (dev - c.DirectionDeadZone) / (c.DirectionSaturation - c.DirectionDeadZone)
	return 1 - clamp(penalty, 0, 1)
}

// openness maps an EAR to [0,1] relative to the baseline.
func (c Config) openness(ear float64, base Baseline) float64 {
	ratio := ear / base.EAR
	return clamp((ratio-c.ClosedRatio)/(c.OpenRatio-c.ClosedRatio), 0, 1)
}

// closed reports whether an EAR counts as a closed eye.
func (c Config) closed(ear float64, base Baseline) bool {
	return ear/base.EAR < c.ClosedRatio
}

func angleDiff(a, b float64) float64 {
	d := math.Mod(a-b+math.Pi, 2*math.Pi)
	if d < 0 {
		d += 2 * math.Pi
	}
	return d - math.Pi
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// clamp limits a value to a range
func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
