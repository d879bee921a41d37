package dsp

const (
	// floorWindow is the number of per-frame RMS values kept for floor
	// estimation (~3s at 100 frames/sec).
	floorWindow = 300

	// floorRecent is the number of most recent RMS values scanned for the
	// windowed minimum (~300ms).
	floorRecent = 30

	// floorWarmup is the minimum number of samples before the estimate
	// starts tracking the window.
	floorWarmup = 10

	// floorSilence marks RMS values treated as silence and excluded from
	// the minimum scan. Without this guard a muted mic drags the floor to
	// zero and makes the dynamic gate threshold hypersensitive.
	floorSilence = 0.0001
)

// NoiseFloorTracker maintains a rolling estimate of the ambient noise level
// from a stream of per-frame RMS values. The estimate feeds the dynamic gate
// threshold.
//
// Internally it keeps a fixed ring of recent RMS values, finds the minimum
// over the most recent ~300ms, and blends it into the running floor with a
// slow exponential so the estimate follows slowly changing room noise
// without chasing transients. The ring is a fixed array to keep the audio
// thread allocation-free.
type NoiseFloorTracker struct {
	window   [floorWindow]float32
	writeIdx int
	count    int
	floor    float32
}

// NewNoiseFloorTracker returns a tracker with a small nonzero initial floor
// so the gate is usable before the window fills.
func NewNoiseFloorTracker() *NoiseFloorTracker {
	return &NoiseFloorTracker{floor: 0.01}
}

// Update ingests one frame's RMS value.
func (t *NoiseFloorTracker) Update(rms float32) {
	t.window[t.writeIdx] = rms
	t.writeIdx = (t.writeIdx + 1) % floorWindow
	if t.count < floorWindow {
		t.count++
	}

	if t.count < floorWarmup {
		return
	}

	// Minimum over the most recent samples, skipping silence.
	recent := floorRecent
	if t.count < recent {
		recent = t.count
	}
	start := (t.writeIdx - recent + floorWindow) % floorWindow

	minVal := float32(0)
	found := false
	for i := 0; i < recent; i++ {
		v := t.window[(start+i)%floorWindow]
		if v <= floorSilence {
			continue
		}
		if !found || v < minVal {
			minVal = v
			found = true
		}
	}
	if found {
		t.floor = t.floor*0.95 + minVal*0.05
	}
}

// Floor returns the current noise floor estimate.
func (t *NoiseFloorTracker) Floor() float32 {
	return t.floor
}
