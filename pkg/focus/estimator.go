// Package focus estimates a smoothed 0-100 focus score from a stream of
// per-frame facial landmark sets.
//
// An Estimator is fed every frame through Estimate. It calibrates a
// neutral baseline from the first good frames, scores each later frame
// from eye openness and head direction, smooths the result with an
// exponential moving average, and decays the score while no face is
// visible. It has no timers or goroutines: frames are its only clock.
//
// An Estimator belongs to exactly one landmark stream and is not safe for
// concurrent use.
package focus

import (
	"math"

	"github.com/teslashibe/go-focus/pkg/landmark"
)

// Estimator turns landmark frames into a focus score.
type Estimator struct {
	cfg Config

	// Calibration
	calib        *calibrator
	calibrated   bool
	calibratedAt int
	baseline     Baseline

	// Rolling cue history
	history   *history
	closedRun int

	// Output
	score   float64
	lastRaw float64

	// Frame bookkeeping
	frame             int
	consecutiveNoFace int
	lastFaceFrame     int
}

// New creates an estimator. The config should pass Validate; the score
// stays within [0,100] regardless.
func New(cfg Config) *Estimator {
	return &Estimator{
		cfg:           cfg,
		calib:         newCalibrator(cfg.CalibrationFrames),
		history:       newHistory(cfg),
		score:         clamp(cfg.ProvisionalScore, 0, 100),
		lastRaw:       math.NaN(),
		lastFaceFrame: -1,
	}
}

// Estimate consumes one frame and returns the current focus score.
// A nil set means no face was detected in the frame.
//
// The only error is landmark.ErrMalformed for a set that cannot be
// indexed safely; the state is left untouched and the current score is
// returned alongside it. Degenerate geometry is not an error: the frame
// is skipped and the previous score returned.
func (e *Estimator) Estimate(set *landmark.Set) (int, error) {
	if set == nil {
		e.frame++
		e.noFace()
		return e.Score(), nil
	}

	layout, err := set.Validate()
	if err != nil {
		return e.Score(), err
	}
	e.frame++

	m, ok := measure(set, layout)
	if !ok {
		return e.Score(), nil
	}
	e.consecutiveNoFace = 0
	e.lastFaceFrame = e.frame

	if !e.calibrated {
		e.calibrate(m)
		return e.Score(), nil
	}

	raw := e.raw(m)
	e.lastRaw = raw
	e.smooth(raw)
	return e.Score(), nil
}

// Score returns the current score, rounded and clamped to [0,100].
func (e *Estimator) Score() int {
	return int(math.Round(clamp(e.score, 0, 100)))
}

// Engaged reports whether the current score is at or above the engagement threshold.
func (e *Estimator) Engaged() bool {
	return e.Score() >= e.cfg.EngagedThreshold
}

// Calibrated reports whether the baseline has been fixed.
func (e *Estimator) Calibrated() bool {
	return e.calibrated
}

// Config returns the estimator's configuration.
func (e *Estimator) Config() Config {
	return e.cfg
}

func (e *Estimator) calibrate(m measurement) {
	if !e.calib.add(m) {
		return
	}
	e.baseline = e.calib.baseline(e.cfg.MinBaselineEAR)
	e.calibrated = true
	e.calibratedAt = e.frame
}

// noFace applies absence decay. A break during calibration discards the
// samples so the baseline comes from one continuous posture.
func (e *Estimator) noFace() {
	e.consecutiveNoFace++
	e.closedRun = 0
	if !e.calibrated {
		e.calib.reset()
	}
	if e.score > e.cfg.NoFaceFloor {
		e.score = math.Max(e.cfg.NoFaceFloor, e.score-e.cfg.DecayPerFrame)
	}
}

// raw scores one calibrated frame in [0,100].
func (e *Estimator) raw(m measurement) float64 {
	cfg := e.cfg

	open := cfg.openness(m.EAR, e.baseline)
	if cfg.closed(m.EAR, e.baseline) {
		e.closedRun++
		if e.closedRun <= cfg.BlinkMaxFrames {
			open = math.Max(open, cfg.BlinkOpenness)
		}
	} else {
		if e.closedRun > 0 && e.closedRun <= cfg.BlinkMaxFrames {
			e.history.blinks.Push(e.frame)
		}
		e.closedRun = 0
	}

	dev := cfg.deviation(m, e.baseline)
	direction := cfg.directionScore(dev)
	e.history.push(m.EAR, open, dev)

	raw := 100 * (cfg.EyeWeight*open + cfg.DirectionWeight*direction)
	raw -= e.blinkRatePenalty()
	return clamp(raw, 0, 100)
}

// blinkRatePenalty applies once a full blink window has been observed
// since calibration.
func (e *Estimator) blinkRatePenalty() float64 {
	cfg := e.cfg
	if e.frame-e.calibratedAt < cfg.BlinkWindowFrames {
		return 0
	}
	blinks := e.history.blinksSince(e.frame - cfg.BlinkWindowFrames)
	switch {
	case blinks > cfg.MaxBlinksPerWindow:
		return cfg.BlinkRatePenalty
	case blinks < cfg.MinBlinksPerWindow && e.history.meanOpenness() < cfg.DrowsyOpenness:
		return cfg.DrowsyPenalty
	default:
		return 0
	}
}

func (e *Estimator) smooth(raw float64) {
	e.score += e.cfg.Alpha * (raw - e.score)
	if math.Abs(raw-e.score) < e.cfg.SnapEpsilon {
		e.score = raw
	}
}
