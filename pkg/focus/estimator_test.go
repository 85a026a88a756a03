package focus

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/teslashibe/go-focus/pkg/landmark"
)

var (
	openEyes   = landmark.Synthesize(landmark.Neutral())
	closedEyes = landmark.Synthesize(landmark.Neutral().EyesClosed())
	turnedAway = landmark.Synthesize(landmark.Neutral().Turned(0.5))
	turnedShut = landmark.Synthesize(landmark.Neutral().Turned(0.5).EyesClosed())
)

// degenerateSet places every point on the same spot.
func degenerateSet() *landmark.Set {
	points := make([]landmark.Point, landmark.MediaPipe478.Size)
	for i := range points {
		points[i] = landmark.Point{X: 0.5, Y: 0.5}
	}
	return landmark.FromPoints(points)
}

func feed(t *testing.T, e *Estimator, set *landmark.Set, n int) []int {
	t.Helper()
	scores := make([]int, 0, n)
	for i := 0; i < n; i++ {
		score, err := e.Estimate(set)
		if err != nil {
			t.Fatalf("frame %d: unexpected error: %v", i, err)
		}
		scores = append(scores, score)
	}
	return scores
}

// calibrated returns a default estimator past calibration on open eyes.
func calibrated(t *testing.T) *Estimator {
	t.Helper()
	e := New(DefaultConfig())
	feed(t, e, openEyes, e.cfg.CalibrationFrames)
	if !e.Calibrated() {
		t.Fatal("estimator should be calibrated")
	}
	return e
}

func TestEstimate_CalibrationDefault(t *testing.T) {
	e := New(DefaultConfig())

	// Closed eyes during calibration are not scored yet.
	for i, set := range []*landmark.Set{openEyes, closedEyes, turnedAway} {
		if score, _ := e.Estimate(set); score != 100 {
			t.Errorf("frame %d: got %d, want provisional 100", i, score)
		}
	}
	for i, score := range feed(t, e, openEyes, 26) {
		if score != 100 {
			t.Errorf("frame %d: got %d, want provisional 100", i+3, score)
		}
	}
	if e.Calibrated() {
		t.Fatal("should not be calibrated after 29 frames")
	}

	feed(t, e, openEyes, 1)
	if !e.Calibrated() {
		t.Fatal("should be calibrated after 30 frames")
	}

	base := e.Snapshot().Baseline
	if base.EAR < 0.29 || base.EAR > 0.31 {
		t.Errorf("baseline EAR = %.3f, want ~0.30", base.EAR)
	}
	if !base.HasGaze {
		t.Error("478-point baseline should include gaze")
	}
}

func TestEstimate_NoFaceDuringCalibrationRestarts(t *testing.T) {
	e := New(DefaultConfig())
	feed(t, e, openEyes, 20)

	score, err := e.Estimate(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 90 {
		t.Errorf("first no-face frame: got %d, want 90", score)
	}

	for _, s := range feed(t, e, openEyes, 29) {
		if s != 90 {
			t.Fatalf("decayed provisional score should hold during calibration, got %d", s)
		}
	}
	if e.Calibrated() {
		t.Fatal("samples before the absence should have been discarded")
	}

	feed(t, e, openEyes, 1)
	if !e.Calibrated() {
		t.Fatal("should be calibrated after 30 consecutive frames")
	}
}

func TestEstimate_RangeInvariant(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	noise := func() *landmark.Set {
		points := make([]landmark.Point, landmark.MediaPipe478.Size)
		for i := range points {
			points[i] = landmark.Point{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64() - 0.5}
		}
		return landmark.FromPoints(points)
	}
	huge := func() *landmark.Set {
		set := landmark.Synthesize(landmark.Neutral())
		set.Points[landmark.MediaPipe478.RightEye[0]].X = 1e300
		set.Points[landmark.MediaPipe478.Chin].Y = -1e300
		return set
	}

	inputs := []func() *landmark.Set{
		func() *landmark.Set { return openEyes },
		func() *landmark.Set { return closedEyes },
		func() *landmark.Set { return turnedAway },
		func() *landmark.Set { return turnedShut },
		func() *landmark.Set { return nil },
		degenerateSet,
		noise,
		huge,
	}

	for _, cfg := range []Config{DefaultConfig(), StrictConfig(), LenientConfig()} {
		e := New(cfg)
		for i := 0; i < 5000; i++ {
			score, _ := e.Estimate(inputs[rng.IntN(len(inputs))]())
			if score < 0 || score > 100 {
				t.Fatalf("frame %d: score %d out of range", i, score)
			}
		}
	}

	// No-face only, from the very first frame.
	e := New(DefaultConfig())
	for i, score := range feed(t, e, nil, 50) {
		if score < 0 || score > 100 {
			t.Fatalf("frame %d: score %d out of range", i, score)
		}
	}
}

func TestEstimate_NoFaceDecay(t *testing.T) {
	e := calibrated(t)
	feed(t, e, openEyes, 20)
	if e.Score() != 100 {
		t.Fatalf("steady open eyes should hold 100, got %d", e.Score())
	}

	scores := feed(t, e, nil, 15)
	want := []int{90, 80, 70, 60, 50, 40, 30, 20, 10, 0, 0, 0, 0, 0, 0}
	for i := range want {
		if scores[i] != want[i] {
			t.Errorf("no-face frame %d: got %d, want %d", i+1, scores[i], want[i])
		}
	}
	if e.Snapshot().Status != StatusNoFace {
		t.Errorf("status = %s, want no_face", e.Snapshot().Status)
	}
}

func TestEstimate_NoFaceDecayRespectsFloor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NoFaceFloor = 10
	e := New(cfg)
	feed(t, e, openEyes, cfg.CalibrationFrames)

	prev := e.Score()
	for i, score := range feed(t, e, nil, 20) {
		if score > prev {
			t.Fatalf("frame %d: score rose from %d to %d", i, prev, score)
		}
		prev = score
	}
	if prev != 10 {
		t.Errorf("score should rest at the floor, got %d", prev)
	}
}

func TestEstimate_BlinkTolerance(t *testing.T) {
	for _, blink := range []int{2, 3, 4, 5} {
		e := calibrated(t)
		feed(t, e, openEyes, 20)
		before := e.Score()

		scores := feed(t, e, closedEyes, blink)
		scores = append(scores, feed(t, e, openEyes, 10)...)

		for i, score := range scores {
			if before-score > 5 {
				t.Errorf("blink of %d frames: frame %d dropped %d points", blink, i, before-score)
			}
		}
		if got := e.Snapshot().BlinksInWindow; got != 1 {
			t.Errorf("blink of %d frames: BlinksInWindow = %d, want 1", blink, got)
		}
	}
}

func TestEstimate_SustainedClosure(t *testing.T) {
	e := calibrated(t)
	feed(t, e, openEyes, 10)

	prev := e.Score()
	scores := feed(t, e, closedEyes, 30)
	for i, score := range scores {
		if score > prev {
			t.Fatalf("closed frame %d: score rose from %d to %d", i, prev, score)
		}
		prev = score
	}
	if final := scores[len(scores)-1]; Engaged(final) {
		t.Errorf("30 closed frames should drop below the engagement threshold, got %d", final)
	}
	if e.Snapshot().Status != StatusDistracted {
		t.Errorf("status = %s, want distracted", e.Snapshot().Status)
	}
	if got := e.Snapshot().BlinksInWindow; got != 0 {
		t.Errorf("a long closure is not a blink, BlinksInWindow = %d", got)
	}
}

func TestEstimate_SteadyInputConverges(t *testing.T) {
	slightlyTurned := landmark.Synthesize(landmark.Neutral().Turned(0.15))

	e := calibrated(t)
	scores := feed(t, e, slightlyTurned, 300)

	tail := scores[200:]
	for i, score := range tail {
		if score != tail[0] {
			t.Fatalf("score oscillates after convergence: %d at %d vs %d", score, i+200, tail[0])
		}
	}
	if tail[0] < 85 || tail[0] > 95 {
		t.Errorf("converged score = %d, want 85-95 for a slight head turn", tail[0])
	}

	// Exact neutral input stays pinned at the top.
	e = calibrated(t)
	for _, score := range feed(t, e, openEyes, 100) {
		if score != 100 {
			t.Fatalf("neutral input should hold 100, got %d", score)
		}
	}
}

func TestEstimate_HeadTurnAloneIsNotEngaged(t *testing.T) {
	e := calibrated(t)
	scores := feed(t, e, turnedAway, 200)

	final := scores[len(scores)-1]
	if final != 60 {
		t.Errorf("eyes open, head fully turned: got %d, want 60", final)
	}
	if e.Engaged() {
		t.Error("fully turned head should not count as engaged")
	}
}

func TestEstimate_RecoveryIsGradual(t *testing.T) {
	e := calibrated(t)
	feed(t, e, openEyes, 20)
	feed(t, e, nil, 12)
	if e.Score() != 0 {
		t.Fatalf("expected floor after absence, got %d", e.Score())
	}

	scores := feed(t, e, openEyes, 10)
	if scores[0] > 5 {
		t.Errorf("first frame back jumped to %d", scores[0])
	}
	for i := 1; i < len(scores); i++ {
		if scores[i] < scores[i-1] {
			t.Errorf("recovery should not fall back: %d then %d", scores[i-1], scores[i])
		}
	}
	if scores[len(scores)-1] >= 50 {
		t.Errorf("ten frames back should not restore the score, got %d", scores[len(scores)-1])
	}
}

func TestEstimate_DegenerateInput(t *testing.T) {
	e := New(DefaultConfig())

	score, err := e.Estimate(degenerateSet())
	if err != nil {
		t.Fatalf("degenerate geometry should not be an error: %v", err)
	}
	if score != 100 {
		t.Errorf("before calibration: got %d, want provisional 100", score)
	}
	if p := e.Snapshot().CalibrationProgress; p != 0 {
		t.Errorf("degenerate frame counted toward calibration: progress %v", p)
	}

	feed(t, e, openEyes, e.cfg.CalibrationFrames)
	feed(t, e, closedEyes, 20)
	before := e.Score()

	for _, score := range feed(t, e, degenerateSet(), 5) {
		if score != before {
			t.Errorf("degenerate frame changed the score: %d -> %d", before, score)
		}
	}
}

func TestEstimate_MalformedSet(t *testing.T) {
	e := calibrated(t)
	frame := e.Snapshot().Frame

	score, err := e.Estimate(landmark.FromPoints(make([]landmark.Point, 10)))
	if !errors.Is(err, landmark.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if score != 100 {
		t.Errorf("malformed input should return the current score, got %d", score)
	}
	if e.Snapshot().Frame != frame {
		t.Error("malformed input should not advance the frame counter")
	}
}

func TestEstimate_IBUG68Layout(t *testing.T) {
	open := landmark.SynthesizeLayout(landmark.IBUG68, landmark.Neutral())
	shut := landmark.SynthesizeLayout(landmark.IBUG68, landmark.Neutral().EyesClosed())

	e := New(DefaultConfig())
	feed(t, e, open, 30)
	if !e.Calibrated() {
		t.Fatal("should calibrate on 68-point sets")
	}
	if e.Snapshot().Baseline.HasGaze {
		t.Error("68-point baseline has no gaze")
	}

	scores := feed(t, e, shut, 40)
	if Engaged(scores[len(scores)-1]) {
		t.Errorf("closed eyes on 68-point sets should disengage, got %d", scores[len(scores)-1])
	}
}

func TestEstimate_DrowsyPenalty(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlinkWindowFrames = 60
	half := landmark.Synthesize(landmark.Pose{RightOpen: 0.45, LeftOpen: 0.45})

	e := New(cfg)
	feed(t, e, openEyes, cfg.CalibrationFrames)
	scores := feed(t, e, half, 200)

	// Droopy lids score 100*(0.6*openness + 0.4); past the window the
	// missing blinks add the drowsiness penalty.
	e2 := New(DefaultConfig())
	feed(t, e2, openEyes, cfg.CalibrationFrames)
	noPenalty := feed(t, e2, half, 200)

	got, want := scores[len(scores)-1], noPenalty[len(noPenalty)-1]-int(cfg.DrowsyPenalty)
	if got < want-1 || got > want+1 {
		t.Errorf("drowsy score = %d, want ~%d", got, want)
	}
}

func TestEstimate_FrequentBlinksPenalty(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlinkWindowFrames = 100
	cfg.MaxBlinksPerWindow = 5

	e := New(cfg)
	feed(t, e, openEyes, cfg.CalibrationFrames)
	for i := 0; i < 40; i++ {
		feed(t, e, closedEyes, 2)
		feed(t, e, openEyes, 3)
	}
	if e.Snapshot().BlinksInWindow <= cfg.MaxBlinksPerWindow {
		t.Fatalf("expected more than %d blinks in window, got %d", cfg.MaxBlinksPerWindow, e.Snapshot().BlinksInWindow)
	}
	if e.Score() > 95 {
		t.Errorf("rapid blinking should cost points, got %d", e.Score())
	}
}

func TestEngaged(t *testing.T) {
	tests := []struct {
		score int
		want  bool
	}{
		{0, false},
		{64, false},
		{65, true},
		{100, true},
	}
	for _, tt := range tests {
		if got := Engaged(tt.score); got != tt.want {
			t.Errorf("Engaged(%d) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestSnapshot_Status(t *testing.T) {
	e := New(DefaultConfig())
	if s := e.Snapshot(); s.Status != StatusCalibrating || s.Calibrated {
		t.Errorf("new estimator: %+v", s)
	}

	feed(t, e, openEyes, 30)
	feed(t, e, openEyes, 1)
	s := e.Snapshot()
	if s.Status != StatusFocused || !s.Engaged || s.CalibrationProgress != 1 {
		t.Errorf("calibrated on open eyes: %+v", s)
	}
	if s.RawScore != 100 {
		t.Errorf("raw score = %v, want 100", s.RawScore)
	}
	if s.LastFaceFrame != s.Frame {
		t.Errorf("last face frame %d, frame %d", s.LastFaceFrame, s.Frame)
	}
}

func TestEstimate_DemoScenario(t *testing.T) {
	e := New(DefaultConfig())
	frames := landmark.Frames(landmark.DemoScenario())

	scores := make([]int, len(frames))
	for i, set := range frames {
		score, err := e.Estimate(set)
		if err != nil {
			t.Fatalf("frame %d: unexpected error: %v", i+1, err)
		}
		scores[i] = score
	}
	// at returns the score after 1-based frame n.
	at := func(n int) int { return scores[n-1] }

	for n := 1; n <= 40; n++ {
		if at(n) < 95 {
			t.Errorf("calibration frame %d: got %d, want near 100", n, at(n))
		}
	}
	for n := 41; n <= 45; n++ {
		if at(n) < at(40)-5 {
			t.Errorf("blink frame %d: got %d, dip from %d exceeds 5", n, at(n), at(40))
		}
	}
	if at(50) < 97 {
		t.Errorf("frame 50: got %d, want recovered", at(50))
	}
	for n := 70; n <= 90; n++ {
		if at(n) >= 50 {
			t.Errorf("away frame %d: got %d, want below 50", n, at(n))
		}
	}
	for n := 91; n <= 120; n++ {
		if at(n) > at(n-1) {
			t.Errorf("absent frame %d: %d rose from %d", n, at(n), at(n-1))
		}
	}
	for n := 100; n <= 120; n++ {
		if at(n) != 0 {
			t.Errorf("absent frame %d: got %d, want floor 0", n, at(n))
		}
	}
}
