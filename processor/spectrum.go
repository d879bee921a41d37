package processor

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/voidmic/dsp"
)

// SpectrumSnapshot carries one pair of frequency-domain magnitude vectors
// (pre-processing and post-processing mono mix) for a visualization
// consumer. Bins cover 20Hz–20kHz in 100Hz steps.
type SpectrumSnapshot struct {
	Input  []float32
	Output []float32
}

const (
	// spectrumInterval throttles emission to every 4th frame to bound the
	// FFT cost on the audio thread.
	spectrumInterval = 4

	// spectrumDropLimit is the number of consecutive failed sends after
	// which the receiver is presumed gone and the emitter disables itself
	// for the rest of the session.
	spectrumDropLimit = 100
)

// Frequency bins kept from the FFT: bin i maps to i*100Hz at 48kHz/480.
const (
	spectrumLowBin  = 1   // 100Hz, first bin at or above 20Hz
	spectrumHighBin = 200 // 20kHz
)

// spectrumEmitter windows the mono mixes, computes magnitude spectra, and
// pushes snapshot pairs through a bounded channel without ever blocking the
// audio thread.
type spectrumEmitter struct {
	ch          chan<- SpectrumSnapshot
	hann        []float64
	windowBuf   []float64
	frameCount  uint32
	droppedRuns int
	disabled    bool
}

func newSpectrumEmitter(ch chan<- SpectrumSnapshot) *spectrumEmitter {
	hann := make([]float64, dsp.FrameSize)
	for i := range hann {
		hann[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(dsp.FrameSize-1)))
	}
	return &spectrumEmitter{
		ch:        ch,
		hann:      hann,
		windowBuf: make([]float64, dsp.FrameSize),
	}
}

// emit sends one (input, output) magnitude pair if this frame is due and
// the emitter is still live. The send is non-blocking: a full channel drops
// the snapshot, and a receiver that never drains is eventually treated as
// gone, permanently disabling emission.
func (e *spectrumEmitter) emit(inputMono, outputMono []float32) {
	if e == nil || e.disabled {
		return
	}
	e.frameCount++
	if e.frameCount%spectrumInterval != 0 {
		return
	}

	// Snapshot slices are handed to another goroutine, so each emission
	// owns fresh buffers. This runs at most every 4th frame.
	snap := SpectrumSnapshot{
		Input:  e.magnitudes(inputMono),
		Output: e.magnitudes(outputMono),
	}

	select {
	case e.ch <- snap:
		e.droppedRuns = 0
	default:
		e.droppedRuns++
		if e.droppedRuns >= spectrumDropLimit {
			e.disabled = true
			logrus.WithFields(logrus.Fields{
				"function":          "spectrumEmitter.emit",
				"consecutive_drops": e.droppedRuns,
			}).Warn("Spectrum receiver not draining, disabling emission for this session")
		}
	}
}

// magnitudes Hann-windows the frame and returns |FFT| over 20Hz–20kHz,
// scaled by 1/sqrt(N).
func (e *spectrumEmitter) magnitudes(mono []float32) []float32 {
	for i, s := range mono {
		e.windowBuf[i] = float64(s) * e.hann[i]
	}
	spectrum := fft.FFTReal(e.windowBuf)

	scale := 1.0 / math.Sqrt(float64(dsp.FrameSize))
	out := make([]float32, spectrumHighBin-spectrumLowBin+1)
	for i := spectrumLowBin; i <= spectrumHighBin; i++ {
		re := real(spectrum[i])
		im := imag(spectrum[i])
		out[i-spectrumLowBin] = float32(math.Sqrt(re*re+im*im) * scale)
	}
	return out
}
