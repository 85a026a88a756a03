package focus

import (
	"errors"
	"testing"
)

func TestPresetsValidate(t *testing.T) {
	for _, name := range []string{"", PresetDefault, PresetStrict, PresetLenient} {
		cfg, err := ConfigByName(name)
		if err != nil {
			t.Fatalf("ConfigByName(%q): %v", name, err)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("preset %q invalid: %v", name, err)
		}
	}

	if _, err := ConfigByName("sleepy"); err == nil {
		t.Error("unknown preset should fail")
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Alpha != 0.05 {
		t.Errorf("Alpha = %v, want 0.05", cfg.Alpha)
	}
	if cfg.DecayPerFrame != 10 || cfg.NoFaceFloor != 0 {
		t.Errorf("decay %v floor %v, want 10 and 0", cfg.DecayPerFrame, cfg.NoFaceFloor)
	}
	if cfg.EngagedThreshold != 65 {
		t.Errorf("EngagedThreshold = %d, want 65", cfg.EngagedThreshold)
	}
	if cfg.ProvisionalScore != 100 {
		t.Errorf("ProvisionalScore = %v, want 100", cfg.ProvisionalScore)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"zero alpha", func(c *Config) { c.Alpha = 0 }},
		{"alpha above one", func(c *Config) { c.Alpha = 1.5 }},
		{"weights off", func(c *Config) { c.EyeWeight = 0.7 }},
		{"ratios inverted", func(c *Config) { c.ClosedRatio = 0.9 }},
		{"no decay", func(c *Config) { c.DecayPerFrame = 0 }},
		{"floor above range", func(c *Config) { c.NoFaceFloor = 120 }},
		{"no calibration", func(c *Config) { c.CalibrationFrames = 0 }},
		{"dead zone past saturation", func(c *Config) { c.DirectionDeadZone = 0.7 }},
		{"threshold out of range", func(c *Config) { c.EngagedThreshold = 101 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
