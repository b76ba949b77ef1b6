package detector

import (
	"testing"
	"time"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateNoMotion, "no_motion"},
		{StateEntering, "entering"},
		{StatePresentMoving, "present_moving"},
		{StatePresentStable, "present_stable"},
		{StateLeaving, "leaving"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestStructuralChange(t *testing.T) {
	base := DefaultConfig()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   bool
	}{
		{"no change", func(c *Config) {}, false},
		{"history", func(c *Config) { c.History = 300 }, true},
		{"shadows", func(c *Config) { c.DetectShadows = false }, true},
		{"model variant", func(c *Config) { c.Model = ModelKNN }, true},
		{"var threshold on mog2", func(c *Config) { c.VarThreshold = 900 }, true},
		{"dist2 threshold on mog2 is inert", func(c *Config) { c.Dist2Threshold = 900 }, false},
		{"contour area", func(c *Config) { c.MinContourArea = 2500 }, false},
		{"blur kernel", func(c *Config) { c.BlurKernelSize = 7 }, false},
		{"morph kernel", func(c *Config) { c.MorphKernelSize = 3 }, false},
		{"cooldown", func(c *Config) { c.DetectionCooldown = 10 * time.Second }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := base
			tt.mutate(&next)
			if got := structuralChange(base, next); got != tt.want {
				t.Errorf("structuralChange = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStructuralChange_KNNThresholds(t *testing.T) {
	base := DefaultConfig()
	base.Model = ModelKNN

	next := base
	next.Dist2Threshold = 900
	if !structuralChange(base, next) {
		t.Error("dist2 threshold change on KNN should be structural")
	}

	next = base
	next.VarThreshold = 900
	if structuralChange(base, next) {
		t.Error("var threshold change on KNN should not be structural")
	}
}

func TestNormalizeModel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"knn", ModelKNN},
		{"KNN", ModelKNN},
		{"mog2", ModelMOG2},
		{"", ModelMOG2},
		{"anything-else", ModelMOG2},
	}

	for _, tt := range tests {
		if got := normalizeModel(tt.in); got != tt.want {
			t.Errorf("normalizeModel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
