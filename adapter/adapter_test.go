package adapter

import (
	"math"
	"testing"

	"github.com/opd-ai/voidmic/dsp"
	"github.com/opd-ai/voidmic/processor"
)

func newStereoAdapter(t *testing.T) *FrameAdapter {
	t.Helper()
	proc, err := processor.New(processor.Config{Channels: 2, AGCTarget: 0.2})
	if err != nil {
		t.Fatalf("processor.New() error: %v", err)
	}
	// Neutral settings so queued audio round-trips unchanged: no blend with
	// the denoised arm, flat EQ, no AGC.
	proc.Controls().SetSuppressionStrength(0)

	a, err := New(proc)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return a
}

func sineBuf(freq, amplitude float64, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/dsp.SampleRate))
	}
	return out
}

func TestNew_RequiresStereoProcessor(t *testing.T) {
	mono, err := processor.New(processor.Config{Channels: 1})
	if err != nil {
		t.Fatalf("processor.New() error: %v", err)
	}
	if _, err := New(mono); err == nil {
		t.Error("New() with mono processor: expected error, got nil")
	}
}

func TestFrameAdapter_PartialFrameProducesNoOutput(t *testing.T) {
	a := newStereoAdapter(t)

	a.PushStereoInterleaved(sineBuf(300, 0.5, 100), sineBuf(300, 0.5, 100))
	a.ProcessAvailable()

	left := make([]float32, 100)
	right := make([]float32, 100)
	if got := a.PopStereo(left, right); got != 0 {
		t.Errorf("PopStereo after partial push = %d pairs, want 0", got)
	}
	for i := range left {
		if left[i] != 0 || right[i] != 0 {
			t.Fatalf("sample %d not zero-filled on underrun: L=%f R=%f",
				i, left[i], right[i])
		}
	}
}

func TestFrameAdapter_CompleteFrameRoundTrips(t *testing.T) {
	a := newStereoAdapter(t)

	in := sineBuf(300, 0.5, dsp.FrameSize)
	a.PushStereoInterleaved(in, in)
	a.ProcessAvailable()

	left := make([]float32, dsp.FrameSize)
	right := make([]float32, dsp.FrameSize)
	if got := a.PopStereo(left, right); got != dsp.FrameSize {
		t.Fatalf("PopStereo = %d pairs, want %d", got, dsp.FrameSize)
	}

	// Loud input opens the gate on its first frame, so with neutral
	// settings the audio passes through intact.
	for i := range in {
		if math.Abs(float64(left[i]-in[i])) > 1e-5 {
			t.Fatalf("left sample %d: got %f, want %f", i, left[i], in[i])
		}
		if math.Abs(float64(right[i]-in[i])) > 1e-5 {
			t.Fatalf("right sample %d: got %f, want %f", i, right[i], in[i])
		}
	}
}

func TestFrameAdapter_DrainsAllQueuedFrames(t *testing.T) {
	a := newStereoAdapter(t)

	const frames = 3
	in := sineBuf(300, 0.5, dsp.FrameSize*frames)
	a.PushStereoInterleaved(in, in)
	a.ProcessAvailable()

	left := make([]float32, dsp.FrameSize*frames)
	right := make([]float32, dsp.FrameSize*frames)
	if got := a.PopStereo(left, right); got != dsp.FrameSize*frames {
		t.Errorf("PopStereo = %d pairs, want %d", got, dsp.FrameSize*frames)
	}
}

func TestFrameAdapter_LeftoverSamplesStayQueued(t *testing.T) {
	a := newStereoAdapter(t)

	// One and a half frames: one processes, the remainder waits.
	in := sineBuf(300, 0.5, dsp.FrameSize+dsp.FrameSize/2)
	a.PushStereoInterleaved(in, in)
	a.ProcessAvailable()

	left := make([]float32, dsp.FrameSize*2)
	right := make([]float32, dsp.FrameSize*2)
	if got := a.PopStereo(left, right); got != dsp.FrameSize {
		t.Fatalf("PopStereo = %d pairs, want %d", got, dsp.FrameSize)
	}

	// Completing the second frame releases it.
	tail := sineBuf(300, 0.5, dsp.FrameSize/2)
	a.PushStereoInterleaved(tail, tail)
	a.ProcessAvailable()
	if got := a.PopStereo(left, right); got != dsp.FrameSize {
		t.Errorf("PopStereo after completing frame = %d pairs, want %d",
			got, dsp.FrameSize)
	}
}

func TestFrameAdapter_OverflowDropsOldest(t *testing.T) {
	a := newStereoAdapter(t)

	// The input queue holds four stereo frames; pushing five keeps only the
	// most recent four.
	in := sineBuf(300, 0.5, dsp.FrameSize*5)
	a.PushStereoInterleaved(in, in)
	a.ProcessAvailable()

	left := make([]float32, dsp.FrameSize*5)
	right := make([]float32, dsp.FrameSize*5)
	if got := a.PopStereo(left, right); got != dsp.FrameSize*4 {
		t.Errorf("PopStereo after overflow = %d pairs, want %d",
			got, dsp.FrameSize*4)
	}
}

func TestFrameAdapter_MonoInputDuplicatesChannels(t *testing.T) {
	a := newStereoAdapter(t)

	a.PushMono(sineBuf(300, 0.5, dsp.FrameSize))
	a.ProcessAvailable()

	left := make([]float32, dsp.FrameSize)
	right := make([]float32, dsp.FrameSize)
	if got := a.PopStereo(left, right); got != dsp.FrameSize {
		t.Fatalf("PopStereo = %d pairs, want %d", got, dsp.FrameSize)
	}
	for i := range left {
		if left[i] != right[i] {
			t.Fatalf("sample %d: channels diverged, L=%f R=%f", i, left[i], right[i])
		}
	}
}

func TestFrameAdapter_PopMonoAveragesChannels(t *testing.T) {
	a := newStereoAdapter(t)

	in := sineBuf(300, 0.5, dsp.FrameSize)
	a.PushStereoInterleaved(in, in)
	a.ProcessAvailable()

	out := make([]float32, dsp.FrameSize)
	if got := a.PopMono(out); got != dsp.FrameSize {
		t.Fatalf("PopMono = %d samples, want %d", got, dsp.FrameSize)
	}
	for i := range in {
		if math.Abs(float64(out[i]-in[i])) > 1e-5 {
			t.Fatalf("mono sample %d: got %f, want %f", i, out[i], in[i])
		}
	}
}
