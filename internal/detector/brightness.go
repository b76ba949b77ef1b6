package detector

import "math"

// Illumination-change rejection constants. A frame whose mean brightness
// jumps by more than brightnessChangeThreshold, while the recent average
// delta also exceeds half the threshold, is treated as a lighting change
// (lamp toggled, cloud passing) rather than object motion.
const (
	brightnessChangeThreshold = 15.0
	maxBrightnessHistory      = 10
	recentDeltaWindow         = 3
)

// brightnessMonitor tracks a rolling window of frame mean brightness and
// classifies sudden global shifts as lighting changes. Pure arithmetic on
// frame means; each detector keeps its own independent monitor.
type brightnessMonitor struct {
	last    float64
	hasLast bool
	history []float64
}

// LightingChanged records the mean brightness of the current frame and
// reports whether the frame should be skipped as a lighting change.
// A skipped frame must not update the background model or the cooldown.
func (m *brightnessMonitor) LightingChanged(mean float64) bool {
	if !m.hasLast {
		m.last = mean
		m.hasLast = true
		m.history = append(m.history, mean)
		return false
	}

	change := math.Abs(mean - m.last)
	m.history = append(m.history, mean)
	if len(m.history) > maxBrightnessHistory {
		m.history = m.history[1:]
	}

	if len(m.history) >= recentDeltaWindow {
		avg := m.averageRecentDelta()
		if change > brightnessChangeThreshold && avg > brightnessChangeThreshold/2 {
			m.last = mean
			return true
		}
	}

	m.last = mean
	return false
}

// averageRecentDelta returns the mean of the last few consecutive-sample
// brightness deltas in the window.
func (m *brightnessMonitor) averageRecentDelta() float64 {
	var deltas []float64
	for i := 1; i < len(m.history); i++ {
		deltas = append(deltas, math.Abs(m.history[i]-m.history[i-1]))
	}
	if len(deltas) == 0 {
		return 0
	}
	if len(deltas) > recentDeltaWindow {
		deltas = deltas[len(deltas)-recentDeltaWindow:]
	}
	var sum float64
	for _, d := range deltas {
		sum += d
	}
	return sum / float64(len(deltas))
}

// Reset clears the window, so the next frame re-seeds the baseline.
func (m *brightnessMonitor) Reset() {
	m.last = 0
	m.hasLast = false
	m.history = m.history[:0]
}
