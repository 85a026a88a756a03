package landmark

// Segment is a run of frames sharing one pose in a synthetic recording.
type Segment struct {
	Name   string `json:"name"`
	Frames int    `json:"frames"`
	Pose   *Pose  `json:"pose,omitempty"` // nil means no face
}

// Scenario lengths for DemoScenario: calibrate looking at the screen,
// blink, look back, turn away with eyes shut, leave the frame.
const (
	DemoCalibrate = 40
	DemoBlink     = 5
	DemoRecover   = 5
	DemoAway      = 40
	DemoAbsent    = 30
)

// DemoScenario returns the 120-frame demo recording.
func DemoScenario() []Segment {
	return Scenario(DemoCalibrate, DemoBlink, DemoRecover, DemoAway, DemoAbsent)
}

// Scenario builds the demo recording with custom segment lengths. Segments
// with zero frames are omitted.
func Scenario(calibrate, blink, recover, away, absent int) []Segment {
	neutral := Neutral()
	blinking := neutral.EyesClosed()
	turned := neutral.Turned(0.5).EyesClosed()

	all := []Segment{
		{Name: "calibrate", Frames: calibrate, Pose: &neutral},
		{Name: "blink", Frames: blink, Pose: &blinking},
		{Name: "recover", Frames: recover, Pose: &neutral},
		{Name: "away", Frames: away, Pose: &turned},
		{Name: "absent", Frames: absent},
	}
	segments := all[:0]
	for _, s := range all {
		if s.Frames > 0 {
			segments = append(segments, s)
		}
	}
	return segments
}

// Frames expands segments into one set per frame; no-face frames are nil.
// Jittered poses get a distinct seed per frame.
func Frames(segments []Segment) []*Set {
	var out []*Set
	for _, s := range segments {
		for i := 0; i < s.Frames; i++ {
			if s.Pose == nil {
				out = append(out, nil)
				continue
			}
			p := *s.Pose
			if p.Jitter > 0 {
				p.Seed += uint64(len(out))
			}
			out = append(out, Synthesize(p))
		}
	}
	return out
}

// WithJitter returns copies of the segments with jitter and a base seed
// applied to every face pose.
func WithJitter(segments []Segment, jitter float64, seed uint64) []Segment {
	out := make([]Segment, len(segments))
	for i, s := range segments {
		out[i] = s
		if s.Pose != nil {
			p := *s.Pose
			p.Jitter = jitter
			p.Seed = seed
			out[i].Pose = &p
		}
	}
	return out
}
