package focus

import "math"

// DefaultEngagedThreshold is the engagement cutoff of DefaultConfig.
const DefaultEngagedThreshold = 65

// Engaged classifies a score with the default threshold. It is a pure
// function of the score and can be recomputed by any consumer.
func Engaged(score int) bool {
	return score >= DefaultEngagedThreshold
}

// Status is a display label for the estimator's current condition.
type Status string

const (
	StatusCalibrating Status = "calibrating"
	StatusNoFace      Status = "no_face"
	StatusFocused     Status = "focused"
	StatusDistracted  Status = "distracted"
)

// State is a read-only snapshot of an estimator, for dashboards and logs.
type State struct {
	Frame               int      `json:"frame"`
	Score               int      `json:"score"`
	RawScore            float64  `json:"raw_score"`
	Engaged             bool     `json:"engaged"`
	Status              Status   `json:"status"`
	Calibrated          bool     `json:"calibrated"`
	CalibrationProgress float64  `json:"calibration_progress"`
	Baseline            Baseline `json:"baseline"`
	ConsecutiveNoFace   int      `json:"consecutive_no_face"`
	LastFaceFrame       int      `json:"last_face_frame"`
	ClosedRun           int      `json:"closed_run"`
	BlinksInWindow      int      `json:"blinks_in_window"`
	MeanOpenness        float64  `json:"mean_openness"`
	MeanDeviation       float64  `json:"mean_deviation"`
}

// Snapshot returns the estimator's current state.
func (e *Estimator) Snapshot() State {
	s := State{
		Frame:             e.frame,
		Score:             e.Score(),
		Engaged:           e.Engaged(),
		Status:            e.status(),
		Calibrated:        e.calibrated,
		Baseline:          e.baseline,
		ConsecutiveNoFace: e.consecutiveNoFace,
		LastFaceFrame:     e.lastFaceFrame,
		ClosedRun:         e.closedRun,
		BlinksInWindow:    e.history.blinksSince(e.frame - e.cfg.BlinkWindowFrames),
		MeanOpenness:      e.history.meanOpenness(),
		MeanDeviation:     e.history.meanDeviation(),
	}
	if e.calibrated {
		s.CalibrationProgress = 1
	} else {
		s.CalibrationProgress = e.calib.progress()
	}
	if !math.IsNaN(e.lastRaw) {
		s.RawScore = e.lastRaw
	}
	return s
}

func (e *Estimator) status() Status {
	switch {
	case e.consecutiveNoFace > 0:
		return StatusNoFace
	case !e.calibrated:
		return StatusCalibrating
	case e.Engaged():
		return StatusFocused
	default:
		return StatusDistracted
	}
}
