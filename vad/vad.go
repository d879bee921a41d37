// Package vad implements a voice activity detector for 16-bit PCM frames at
// 48kHz. Each frame is classified as speech or non-speech from its RMS
// energy and zero-crossing rate: voiced speech carries more energy than room
// noise and a zero-crossing rate well below broadband hiss.
//
// Four sensitivity variants are provided, from Quality (most permissive) to
// VeryAggressive (most likely to reject borderline frames). Detectors are
// cheap value objects with no per-call allocation; the processing pipeline
// pre-constructs one per variant and switches by index so a live sensitivity
// change never allocates on the audio thread.
package vad

import "math"

// Sensitivity selects how aggressively non-speech frames are rejected.
type Sensitivity int

const (
	// Quality passes anything that plausibly contains speech.
	Quality Sensitivity = iota
	// LowBitrate is slightly stricter than Quality.
	LowBitrate
	// Aggressive rejects most non-speech at some risk to quiet speech.
	Aggressive
	// VeryAggressive only passes clearly voiced frames.
	VeryAggressive

	// NumSensitivities is the number of detector variants.
	NumSensitivities = 4
)

// Clamp returns s forced into the valid sensitivity range.
func Clamp(s Sensitivity) Sensitivity {
	if s < Quality {
		return Quality
	}
	if s > VeryAggressive {
		return VeryAggressive
	}
	return s
}

// Detector classifies single frames. It is stateless across frames and safe
// to reuse, but not safe for concurrent use from multiple goroutines.
type Detector struct {
	energyThreshold float64 // RMS threshold on int16 scale
	maxZCRate       float64 // zero crossings per sample above which a frame is hiss
}

// detector tuning per sensitivity. Energy thresholds are on the int16 scale
// (32768 full scale); the zero-crossing ceiling shrinks as aggressiveness
// grows so broadband noise is rejected earlier.
var tunings = [NumSensitivities]Detector{
	Quality:        {energyThreshold: 90, maxZCRate: 0.45},
	LowBitrate:     {energyThreshold: 140, maxZCRate: 0.40},
	Aggressive:     {energyThreshold: 220, maxZCRate: 0.32},
	VeryAggressive: {energyThreshold: 330, maxZCRate: 0.25},
}

// NewDetector returns the detector variant for the given sensitivity.
// Out-of-range values are clamped.
func NewDetector(s Sensitivity) *Detector {
	d := tunings[Clamp(s)]
	return &d
}

// IsSpeech reports whether the frame plausibly contains speech. Empty frames
// are never speech.
func (d *Detector) IsSpeech(pcm []int16) bool {
	if len(pcm) == 0 {
		return false
	}

	var sumSq float64
	crossings := 0
	prevNeg := pcm[0] < 0
	for _, s := range pcm {
		f := float64(s)
		sumSq += f * f
		neg := s < 0
		if neg != prevNeg {
			crossings++
			prevNeg = neg
		}
	}
	rms := math.Sqrt(sumSq / float64(len(pcm)))
	zcRate := float64(crossings) / float64(len(pcm))

	return rms > d.energyThreshold && zcRate < d.maxZCRate
}
