package vad

import (
	"math"
	"testing"
)

// voicedFrame approximates voiced speech: a strong low-frequency tone whose
// zero-crossing rate is far below any hiss ceiling.
func voicedFrame(amplitude float64, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amplitude * math.Sin(2*math.Pi*200*float64(i)/48000))
	}
	return out
}

// hissFrame alternates sign every sample, the highest possible zero-crossing
// rate, at the given amplitude.
func hissFrame(amplitude int16, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = amplitude
		} else {
			out[i] = -amplitude
		}
	}
	return out
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name string
		in   Sensitivity
		want Sensitivity
	}{
		{name: "below range", in: -1, want: Quality},
		{name: "quality", in: Quality, want: Quality},
		{name: "very aggressive", in: VeryAggressive, want: VeryAggressive},
		{name: "above range", in: 99, want: VeryAggressive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clamp(tt.in); got != tt.want {
				t.Errorf("Clamp(%d) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestDetector_EmptyFrameIsNotSpeech(t *testing.T) {
	d := NewDetector(Quality)
	if d.IsSpeech(nil) {
		t.Error("IsSpeech(nil) = true, want false")
	}
	if d.IsSpeech([]int16{}) {
		t.Error("IsSpeech(empty) = true, want false")
	}
}

func TestDetector_VoicedFrameIsSpeech(t *testing.T) {
	frame := voicedFrame(4000, 480)
	for s := Quality; s <= VeryAggressive; s++ {
		if !NewDetector(s).IsSpeech(frame) {
			t.Errorf("sensitivity %d: loud voiced frame not detected as speech", s)
		}
	}
}

func TestDetector_SilenceIsNotSpeech(t *testing.T) {
	frame := make([]int16, 480)
	for s := Quality; s <= VeryAggressive; s++ {
		if NewDetector(s).IsSpeech(frame) {
			t.Errorf("sensitivity %d: all-zero frame detected as speech", s)
		}
	}
}

func TestDetector_BroadbandHissIsRejected(t *testing.T) {
	// Loud enough to pass every energy threshold, but its zero-crossing
	// rate (1.0) exceeds every ceiling.
	frame := hissFrame(5000, 480)
	for s := Quality; s <= VeryAggressive; s++ {
		if NewDetector(s).IsSpeech(frame) {
			t.Errorf("sensitivity %d: full-rate hiss detected as speech", s)
		}
	}
}

func TestDetector_SensitivityOrdering(t *testing.T) {
	// A quiet voiced frame sits between the Quality and VeryAggressive
	// energy thresholds, so the permissive detector accepts what the
	// strict one rejects.
	frame := voicedFrame(200, 480) // RMS ~141 on the int16 scale

	if !NewDetector(Quality).IsSpeech(frame) {
		t.Error("Quality rejected a quiet voiced frame it should accept")
	}
	if NewDetector(VeryAggressive).IsSpeech(frame) {
		t.Error("VeryAggressive accepted a quiet voiced frame it should reject")
	}
}

func TestNewDetector_ClampsOutOfRange(t *testing.T) {
	frame := voicedFrame(4000, 480)
	if got := NewDetector(-5).IsSpeech(frame); got != NewDetector(Quality).IsSpeech(frame) {
		t.Error("NewDetector(-5) does not behave like Quality")
	}
	if got := NewDetector(42).IsSpeech(frame); got != NewDetector(VeryAggressive).IsSpeech(frame) {
		t.Error("NewDetector(42) does not behave like VeryAggressive")
	}
}
