package landmark

import "fmt"

// Eye holds the six eye-contour indices in EAR order:
// p1 outer corner, p2 and p3 upper lid, p4 inner corner, p5 and p6 lower lid.
// p2 faces p6 and p3 faces p5.
type Eye [6]int

// Layout maps the named points the estimator needs to indices in a set.
type Layout struct {
	Name string
	Size int

	RightEye Eye // subject's right eye (image left)
	LeftEye  Eye

	NoseTip      int
	Chin         int
	Forehead     int
	ContourLeft  int // image left
	ContourRight int

	// Iris centers, -1 when the layout has no iris points.
	RightIris int
	LeftIris  int
}

// HasIris reports whether the layout carries iris centers.
func (l Layout) HasIris() bool {
	return l.RightIris >= 0 && l.LeftIris >= 0
}

// Indices returns every index the layout names.
func (l Layout) Indices() []int {
	idx := make([]int, 0, 19)
	idx = append(idx, l.RightEye[:]...)
	idx = append(idx, l.LeftEye[:]...)
	idx = append(idx, l.NoseTip, l.Chin, l.Forehead, l.ContourLeft, l.ContourRight)
	if l.HasIris() {
		idx = append(idx, l.RightIris, l.LeftIris)
	}
	return idx
}

// MediaPipe face mesh indices.
// See: https://github.com/google-ai-edge/mediapipe/blob/master/mediapipe/modules/face_geometry/data/canonical_face_model_uv_visualization.png
var (
	MediaPipe468 = Layout{
		Name:         "mediapipe-468",
		Size:         468,
		RightEye:     Eye{33, 160, 158, 133, 153, 144},
		LeftEye:      Eye{263, 387, 385, 362, 380, 373},
		NoseTip:      1,
		Chin:         152,
		Forehead:     10,
		ContourLeft:  234,
		ContourRight: 454,
		RightIris:    -1,
		LeftIris:     -1,
	}

	// MediaPipe478 is the face landmarker output with refined irises.
	MediaPipe478 = withIris(MediaPipe468, "mediapipe-478", 478, 468, 473)
)

// IBUG68 is the 68-point iBUG 300-W / dlib layout (0-based). It has no
// forehead point, so the top of the nose bridge stands in for it.
var IBUG68 = Layout{
	Name:         "ibug-68",
	Size:         68,
	RightEye:     Eye{36, 37, 38, 39, 40, 41},
	LeftEye:      Eye{45, 44, 43, 42, 47, 46},
	NoseTip:      30,
	Chin:         8,
	Forehead:     27,
	ContourLeft:  0,
	ContourRight: 16,
	RightIris:    -1,
	LeftIris:     -1,
}

func withIris(base Layout, name string, size, right, left int) Layout {
	base.Name = name
	base.Size = size
	base.RightIris = right
	base.LeftIris = left
	return base
}

// ForSize returns the layout for a point count.
func ForSize(n int) (Layout, error) {
	switch n {
	case MediaPipe478.Size:
		return MediaPipe478, nil
	case MediaPipe468.Size:
		return MediaPipe468, nil
	case IBUG68.Size:
		return IBUG68, nil
	default:
		return Layout{}, fmt.Errorf("%w: %d points (want 68, 468 or 478)", ErrMalformed, n)
	}
}
