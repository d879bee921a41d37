package dsp

import (
	"math"
	"testing"
)

func TestNoiseFloorTracker_InitialFloor(t *testing.T) {
	tracker := NewNoiseFloorTracker()
	if got := tracker.Floor(); got != 0.01 {
		t.Errorf("initial floor = %f, want 0.01", got)
	}
}

func TestNoiseFloorTracker_ConvergesToConstantInput(t *testing.T) {
	tracker := NewNoiseFloorTracker()
	const target = 0.02

	for i := 0; i < 600; i++ {
		tracker.Update(target)
	}

	if diff := math.Abs(float64(tracker.Floor() - target)); diff > 0.002 {
		t.Errorf("floor after 600 constant frames = %f, want within 0.002 of %f",
			tracker.Floor(), target)
	}
}

func TestNoiseFloorTracker_ConvergenceIsBounded(t *testing.T) {
	tracker := NewNoiseFloorTracker()
	const target = 0.05

	prev := tracker.Floor()
	for i := 0; i < 600; i++ {
		tracker.Update(target)
		cur := tracker.Floor()
		// Rising toward a higher target the estimate must never overshoot.
		if cur > target+1e-6 {
			t.Fatalf("floor overshot target at frame %d: %f > %f", i, cur, target)
		}
		if cur+1e-6 < prev && prev <= target {
			t.Fatalf("floor regressed at frame %d: %f < %f", i, cur, prev)
		}
		prev = cur
	}
}

func TestNoiseFloorTracker_SilenceDoesNotDragFloorDown(t *testing.T) {
	tracker := NewNoiseFloorTracker()
	for i := 0; i < 600; i++ {
		tracker.Update(0.03)
	}
	settled := tracker.Floor()

	// A muted mic produces near-zero RMS; those values must be ignored.
	for i := 0; i < 300; i++ {
		tracker.Update(0.00005)
	}

	if got := tracker.Floor(); got < settled-1e-6 {
		t.Errorf("near-zero input dragged floor from %f to %f", settled, got)
	}
}

func TestNoiseFloorTracker_TracksRisingAmbientNoise(t *testing.T) {
	tracker := NewNoiseFloorTracker()
	for i := 0; i < 400; i++ {
		tracker.Update(0.01)
	}
	low := tracker.Floor()

	for i := 0; i < 400; i++ {
		tracker.Update(0.04)
	}

	if got := tracker.Floor(); got <= low {
		t.Errorf("floor did not rise with ambient noise: %f -> %f", low, got)
	}
}
