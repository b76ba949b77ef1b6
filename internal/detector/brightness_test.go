package detector

import "testing"

func TestBrightnessMonitor_FirstSampleNeverSkips(t *testing.T) {
	var m brightnessMonitor

	if m.LightingChanged(200) {
		t.Error("first sample should never be classified as a lighting change")
	}
}

func TestBrightnessMonitor_JumpAfterStableHistory(t *testing.T) {
	var m brightnessMonitor

	// Stable scene at brightness 100.
	for i := 0; i < 5; i++ {
		if m.LightingChanged(100) {
			t.Fatal("stable brightness should not be a lighting change")
		}
	}

	// Lamp toggles: delta 30 > threshold, recent average (0+0+30)/3 = 10
	// also clears half the threshold.
	if !m.LightingChanged(130) {
		t.Error("sudden jump after stable history should be a lighting change")
	}
}

func TestBrightnessMonitor_SmallDeltaIgnored(t *testing.T) {
	var m brightnessMonitor

	for i := 0; i < 5; i++ {
		m.LightingChanged(100)
	}

	if m.LightingChanged(110) {
		t.Error("delta below threshold should not be a lighting change")
	}
}

func TestBrightnessMonitor_JumpWithQuietAverage(t *testing.T) {
	var m brightnessMonitor

	for i := 0; i < 5; i++ {
		m.LightingChanged(100)
	}

	// Delta 17 exceeds the threshold, but the recent average
	// (0+0+17)/3 ≈ 5.7 stays below half the threshold: not a lighting
	// change, just an object entering a dark zone.
	if m.LightingChanged(117) {
		t.Error("jump with quiet recent average should not be a lighting change")
	}
}

func TestBrightnessMonitor_WindowBounded(t *testing.T) {
	var m brightnessMonitor

	for i := 0; i < 50; i++ {
		m.LightingChanged(float64(100 + i%3))
	}

	if len(m.history) > maxBrightnessHistory {
		t.Errorf("history length = %d, want <= %d", len(m.history), maxBrightnessHistory)
	}
}

func TestBrightnessMonitor_Reset(t *testing.T) {
	var m brightnessMonitor

	for i := 0; i < 5; i++ {
		m.LightingChanged(100)
	}
	m.Reset()

	if m.hasLast || len(m.history) != 0 {
		t.Error("reset should clear the window")
	}
	if m.LightingChanged(250) {
		t.Error("first sample after reset should re-seed the baseline, not skip")
	}
}
