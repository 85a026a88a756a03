package landmark

import (
	"math"
	"math/rand/v2"

	"github.com/golang/geo/r3"
)

// Pose describes a synthetic face for Synthesize.
type Pose struct {
	RightOpen float64 `json:"right_open"` // 0 = closed, 1 = fully open
	LeftOpen  float64 `json:"left_open"`

	Yaw   float64 `json:"yaw"`   // radians, positive turns toward image right
	Pitch float64 `json:"pitch"` // radians, positive tilts the chin down
	Roll  float64 `json:"roll"`  // radians

	Gaze float64 `json:"gaze"` // horizontal iris offset, -1 to 1

	Jitter float64 `json:"jitter"` // max per-coordinate noise in normalized units
	Seed   uint64  `json:"seed"`
}

// Neutral returns a centered, eyes-open pose.
func Neutral() Pose {
	return Pose{RightOpen: 1, LeftOpen: 1}
}

// EyesClosed returns the pose with both eyes shut.
func (p Pose) EyesClosed() Pose {
	p.RightOpen, p.LeftOpen = 0, 0
	return p
}

// Turned returns the pose with the given yaw.
func (p Pose) Turned(yaw float64) Pose {
	p.Yaw = yaw
	return p
}

// Face model in head units: origin at the head center, +y down, +z toward the camera.
const (
	faceCenterX = 0.5
	faceCenterY = 0.5
	faceScale   = 0.3

	eyeHalfWidth = 0.06
	lidOffset    = 0.02
	lidClosed    = 0.006 // residual lid gap, EAR ≈ 0.05
	lidTravel    = 0.03  // open lid gap adds this, EAR ≈ 0.30
	irisTravel   = 0.03
)

var (
	modelRightEye     = r3.Vector{X: -0.18, Y: -0.1, Z: 0.3}
	modelLeftEye      = r3.Vector{X: 0.18, Y: -0.1, Z: 0.3}
	modelNoseTip      = r3.Vector{X: 0, Y: 0.05, Z: 0.45}
	modelChin         = r3.Vector{X: 0, Y: 0.55, Z: 0.15}
	modelForehead     = r3.Vector{X: 0, Y: -0.45, Z: 0.2}
	modelContourLeft  = r3.Vector{X: -0.5, Y: 0, Z: 0}
	modelContourRight = r3.Vector{X: 0.5, Y: 0, Z: 0}
)

// Synthesize builds a MediaPipe 478-point set for the pose.
func Synthesize(p Pose) *Set {
	return SynthesizeLayout(MediaPipe478, p)
}

// SynthesizeLayout builds a set in the given layout. Points the layout
// does not name are placed at the face center.
func SynthesizeLayout(layout Layout, p Pose) *Set {
	points := make([]Point, layout.Size)
	center := project(r3.Vector{}, p)
	for i := range points {
		points[i] = center
	}

	named := map[int]r3.Vector{
		layout.NoseTip:      modelNoseTip,
		layout.Chin:         modelChin,
		layout.Forehead:     modelForehead,
		layout.ContourLeft:  modelContourLeft,
		layout.ContourRight: modelContourRight,
	}
	eyePoints(named, layout.RightEye, modelRightEye, -1, p.RightOpen)
	eyePoints(named, layout.LeftEye, modelLeftEye, 1, p.LeftOpen)
	if layout.HasIris() {
		named[layout.RightIris] = modelRightEye.Add(r3.Vector{X: p.Gaze * irisTravel, Z: 0.01})
		named[layout.LeftIris] = modelLeftEye.Add(r3.Vector{X: p.Gaze * irisTravel, Z: 0.01})
	}

	var rng *rand.Rand
	if p.Jitter > 0 {
		rng = rand.New(rand.NewPCG(p.Seed, 0x9e3779b97f4a7c15))
	}
	// Iterate in index order so jitter is deterministic for a seed.
	for _, idx := range layout.Indices() {
		pt := project(named[idx], p)
		if rng != nil {
			pt.X += (rng.Float64()*2 - 1) * p.Jitter
			pt.Y += (rng.Float64()*2 - 1) * p.Jitter
		}
		points[idx] = pt
	}
	return &Set{Points: points}
}

// eyePoints writes the six EAR points of one eye. dir is -1 for the
// subject's right eye (outer corner toward image left) and +1 for the left.
func eyePoints(named map[int]r3.Vector, eye Eye, center r3.Vector, dir, openness float64) {
	openness = math.Max(0, math.Min(1, openness))
	half := (lidClosed + lidTravel*openness) / 2

	at := func(dx, dy float64) r3.Vector {
		return center.Add(r3.Vector{X: dx, Y: dy})
	}
	named[eye[0]] = at(dir*eyeHalfWidth, 0)
	named[eye[1]] = at(dir*lidOffset, -half)
	named[eye[2]] = at(-dir*lidOffset, -half)
	named[eye[3]] = at(-dir*eyeHalfWidth, 0)
	named[eye[4]] = at(-dir*lidOffset, half)
	named[eye[5]] = at(dir*lidOffset, half)
}

// project rotates a model point by roll, pitch, then yaw and maps it
// orthographically into normalized frame coordinates.
func project(v r3.Vector, p Pose) Point {
	sr, cr := math.Sincos(p.Roll)
	v = r3.Vector{X: v.X*cr - v.Y*sr, Y: v.X*sr + v.Y*cr, Z: v.Z}

	sp, cp := math.Sincos(p.Pitch)
	v = r3.Vector{X: v.X, Y: v.Y*cp + v.Z*sp, Z: -v.Y*sp + v.Z*cp}

	sy, cy := math.Sincos(p.Yaw)
	v = r3.Vector{X: v.X*cy + v.Z*sy, Y: v.Y, Z: -v.X*sy + v.Z*cy}

	return Point{
		X: faceCenterX + faceScale*v.X,
		Y: faceCenterY + faceScale*v.Y,
		Z: -faceScale * v.Z,
	}
}
