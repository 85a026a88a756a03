package focus

import (
	"errors"
	"fmt"
	"math"
)

// Config holds all tunable parameters for focus estimation.
// Frame counts assume a nominal 30 fps landmark stream; the estimator has
// no clock of its own, so every duration is expressed in frames.
type Config struct {
	// Calibration
	CalibrationFrames int     // Consecutive valid frames used to build the baseline
	ProvisionalScore  float64 // Score reported until calibration completes
	MinBaselineEAR    float64 // Floor for the calibrated eye aspect ratio

	// Smoothing
	Alpha       float64 // EMA weight of the newest raw score (0-1]
	SnapEpsilon float64 // Snap to the raw score when closer than this

	// Composite weights (must sum to 1)
	EyeWeight       float64
	DirectionWeight float64

	// Eye openness, as a fraction of the baseline EAR
	ClosedRatio    float64 // Below this the eye counts as closed
	OpenRatio      float64 // At or above this the eye counts as fully open
	BlinkMaxFrames int     // Closed runs up to this length are blinks
	BlinkOpenness  float64 // Openness credited while a closure is still blink-length

	// Head direction
	YawScale            float64 // Yaw ratio deviation that counts as one unit
	PitchScale          float64 // Pitch ratio deviation that counts as one unit
	RollScale           float64 // Roll deviation (radians) that counts as one unit
	GazeScale           float64 // Iris position deviation that counts as one unit
	DirectionDeadZone   float64 // Deviation below this costs nothing
	DirectionSaturation float64 // Deviation at or above this costs the full direction weight

	// History
	HistoryFrames      int     // Capacity of the rolling cue buffers
	BlinkWindowFrames  int     // Window for blink-rate checks
	MaxBlinksPerWindow int     // More blinks than this reads as distraction
	MinBlinksPerWindow int     // Fewer blinks than this, with low openness, reads as drowsiness
	BlinkRatePenalty   float64 // Raw-score points removed for distraction
	DrowsyPenalty      float64 // Raw-score points removed for drowsiness
	DrowsyOpenness     float64 // Mean openness below this counts as low

	// Absence
	DecayPerFrame float64 // Points lost per consecutive no-face frame
	NoFaceFloor   float64 // Decay stops here

	// Classification
	EngagedThreshold int // Scores at or above this are engaged
}

// DefaultConfig returns the recommended configuration.
func DefaultConfig() Config {
	return Config{
		// Calibration - one second of good frames
		CalibrationFrames: 30,
		ProvisionalScore:  100,
		MinBaselineEAR:    0.15,

		// Smoothing - half-life ≈ 13.5 frames
		Alpha:       0.05,
		SnapEpsilon: 0.05,

		// Closed eyes are a stronger signal than a brief head turn
		EyeWeight:       0.6,
		DirectionWeight: 0.4,

		// Eye openness
		ClosedRatio:    0.60,
		OpenRatio:      0.85,
		BlinkMaxFrames: 6, // ~200ms
		BlinkOpenness:  0.9,

		// Head direction
		YawScale:            0.25,
		PitchScale:          0.25,
		RollScale:           0.35,
		GazeScale:           0.25,
		DirectionDeadZone:   0.15,
		DirectionSaturation: 0.6,

		// History
		HistoryFrames:      90,   // 3 seconds
		BlinkWindowFrames:  1800, // 60 seconds
		MaxBlinksPerWindow: 40,
		MinBlinksPerWindow: 2,
		BlinkRatePenalty:   10,
		DrowsyPenalty:      15,
		DrowsyOpenness:     0.5,

		// Absence - 100 to 0 in 10 frames
		DecayPerFrame: 10,
		NoFaceFloor:   0,

		EngagedThreshold: DefaultEngagedThreshold,
	}
}

// StrictConfig returns a configuration that reacts faster to disengagement.
func StrictConfig() Config {
	cfg := DefaultConfig()
	cfg.Alpha = 0.08
	cfg.ClosedRatio = 0.65
	cfg.BlinkMaxFrames = 4
	cfg.DirectionSaturation = 0.5
	cfg.DecayPerFrame = 15
	return cfg
}

// LenientConfig returns a configuration for noisy cameras or low frame rates.
func LenientConfig() Config {
	cfg := DefaultConfig()
	cfg.Alpha = 0.03
	cfg.BlinkMaxFrames = 9
	cfg.DirectionDeadZone = 0.25
	cfg.DirectionSaturation = 0.8
	cfg.DecayPerFrame = 5
	return cfg
}

// Preset names accepted by ConfigByName.
const (
	PresetDefault = "default"
	PresetStrict  = "strict"
	PresetLenient = "lenient"
)

// ConfigByName returns a preset configuration.
func ConfigByName(name string) (Config, error) {
	switch name {
	case "", PresetDefault:
		return DefaultConfig(), nil
	case PresetStrict:
		return StrictConfig(), nil
	case PresetLenient:
		return LenientConfig(), nil
	default:
		return Config{}, fmt.Errorf("%w: unknown preset %q (want default, strict or lenient)", ErrInvalidConfig, name)
	}
}

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid focus config")

// Validate checks parameter ranges.
func (c Config) Validate() error {
	check := func(ok bool, format string, args ...any) error {
		if ok {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	return errors.Join(
		check(c.CalibrationFrames >= 1, "calibration frames must be positive, got %d", c.CalibrationFrames),
		check(inScore(c.ProvisionalScore), "provisional score %v outside [0,100]", c.ProvisionalScore),
		check(c.MinBaselineEAR > 0, "min baseline EAR must be positive"),
		check(c.Alpha > 0 && c.Alpha <= 1, "alpha %v outside (0,1]", c.Alpha),
		check(c.SnapEpsilon >= 0, "snap epsilon must not be negative"),
		check(c.EyeWeight >= 0 && c.DirectionWeight >= 0, "weights must not be negative"),
		check(math.Abs(c.EyeWeight+c.DirectionWeight-1) < 1e-9, "weights must sum to 1, got %v", c.EyeWeight+c.DirectionWeight),
		check(c.ClosedRatio > 0 && c.ClosedRatio < c.OpenRatio, "closed ratio %v must be positive and below open ratio %v", c.ClosedRatio, c.OpenRatio),
		check(c.BlinkMaxFrames >= 0, "blink max frames must not be negative"),
		check(c.BlinkOpenness >= 0 && c.BlinkOpenness <= 1, "blink openness %v outside [0,1]", c.BlinkOpenness),
		check(c.YawScale > 0 && c.PitchScale > 0 && c.RollScale > 0 && c.GazeScale > 0, "direction scales must be positive"),
		check(c.DirectionDeadZone >= 0 && c.DirectionDeadZone < c.DirectionSaturation, "dead zone must be below saturation"),
		check(c.HistoryFrames >= 1, "history frames must be positive"),
		check(c.BlinkWindowFrames >= 1, "blink window must be positive"),
		check(c.MinBlinksPerWindow >= 0 && c.MinBlinksPerWindow <= c.MaxBlinksPerWindow, "blink bounds out of order"),
		check(c.BlinkRatePenalty >= 0 && c.DrowsyPenalty >= 0, "penalties must not be negative"),
		check(c.DecayPerFrame > 0, "decay per frame must be positive"),
		check(inScore(c.NoFaceFloor), "no-face floor %v outside [0,100]", c.NoFaceFloor),
		check(c.EngagedThreshold >= 0 && c.EngagedThreshold <= 100, "engaged threshold %d outside [0,100]", c.EngagedThreshold),
	)
}

func inScore(v float64) bool {
	return v >= 0 && v <= 100
}
