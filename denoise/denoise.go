// Package denoise implements the background-noise suppressor used by the
// VoidMic pipeline. It is a stateful per-channel frame transformer with a
// fixed contract: one 480-sample float32 frame in, one 480-sample frame out,
// frames supplied in arrival order.
//
// The algorithm is spectral subtraction: the magnitude spectrum of each
// frame is compared against a running noise-spectrum estimate learned from
// the first frames of the stream (and slowly re-adapted during quiet
// passages), and the estimated noise contribution is subtracted with an
// over-subtraction factor. A spectral floor keeps the subtraction from
// producing musical-noise artifacts.
package denoise

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/voidmic/dsp"
)

const (
	// learnFrames is the number of initial frames used to seed the noise
	// spectrum estimate (~100ms).
	learnFrames = 10

	// learnAlpha smooths the noise estimate while learning.
	learnAlpha = 0.8

	// adaptRetain controls the slow re-adaptation of the noise estimate
	// during quiet frames after learning.
	adaptRetain = 0.95

	// overSubtraction scales the subtracted noise spectrum. Values above 1
	// trade a little speech coloration for much deeper suppression.
	overSubtraction = 2.0

	// spectralFloor is the minimum fraction of the original magnitude kept
	// in every bin, preventing musical noise from over-deep subtraction.
	spectralFloor = 0.1
)

// Denoiser suppresses stationary background noise in a single channel.
// One instance per audio channel; not safe for concurrent use.
type Denoiser struct {
	level       float64 // suppression depth 0..1
	noise       []float64
	magBuf      []float64
	noiseEnergy float64
	frames      int
	timeBuf     []float64
}

// New creates a denoiser with the given suppression depth in [0, 1].
// Depth scales the subtracted noise estimate; 0 disables subtraction
// entirely and 1 applies the full over-subtracted estimate.
func New(level float32) *Denoiser {
	l := float64(level)
	if l < 0 {
		l = 0
	} else if l > 1 {
		l = 1
	}

	logrus.WithFields(logrus.Fields{
		"function": "denoise.New",
		"level":    l,
	}).Debug("Creating spectral subtraction denoiser")

	return &Denoiser{
		level:   l,
		noise:   make([]float64, dsp.FrameSize/2+1),
		magBuf:  make([]float64, dsp.FrameSize/2+1),
		timeBuf: make([]float64, dsp.FrameSize),
	}
}

// ProcessFrame writes the denoised version of in to out. Both slices must be
// FrameSize long; on a length mismatch the input is copied through unchanged
// (the denoiser is best-effort, never fatal).
func (d *Denoiser) ProcessFrame(out, in []float32) {
	if len(in) != dsp.FrameSize || len(out) != dsp.FrameSize {
		n := copy(out, in)
		for i := n; i < len(out); i++ {
			out[i] = 0
		}
		return
	}

	for i, s := range in {
		d.timeBuf[i] = float64(s)
	}
	spectrum := fft.FFTReal(d.timeBuf)

	half := dsp.FrameSize / 2
	var frameEnergy float64
	magnitude := d.magBuf
	for i := 0; i <= half; i++ {
		re := real(spectrum[i])
		im := imag(spectrum[i])
		magnitude[i] = math.Sqrt(re*re + im*im)
		frameEnergy += magnitude[i] * magnitude[i]
	}

	if d.frames < learnFrames {
		// Seed the noise estimate from the opening frames.
		for i := range d.noise {
			if d.frames == 0 {
				d.noise[i] = magnitude[i]
			} else {
				d.noise[i] = learnAlpha*d.noise[i] + (1-learnAlpha)*magnitude[i]
			}
		}
		d.frames++
		if d.frames == learnFrames {
			d.noiseEnergy = energyOf(d.noise)
			logrus.WithFields(logrus.Fields{
				"function": "Denoiser.ProcessFrame",
			}).Debug("Noise spectrum estimation completed")
		}
		copy(out, in)
		return
	}

	// Re-adapt slowly during frames that look like noise only, so the
	// estimate follows a changing room instead of staying frozen.
	if frameEnergy <= 2.0*d.noiseEnergy {
		for i := range d.noise {
			d.noise[i] = adaptRetain*d.noise[i] + (1-adaptRetain)*magnitude[i]
		}
		d.noiseEnergy = energyOf(d.noise)
	}

	for i := 0; i <= half; i++ {
		m := magnitude[i]
		if m <= 0 {
			continue
		}
		subtracted := m - overSubtraction*d.level*d.noise[i]
		if floor := spectralFloor * m; subtracted < floor {
			subtracted = floor
		}
		ratio := complex(subtracted/m, 0)
		spectrum[i] *= ratio
		if i > 0 && i < half {
			spectrum[dsp.FrameSize-i] *= ratio
		}
	}

	result := fft.IFFT(spectrum)
	for i := range out {
		out[i] = float32(real(result[i]))
	}
}

// Reset clears the learned noise estimate so the next frames re-seed it,
// for use after a stream discontinuity.
func (d *Denoiser) Reset() {
	for i := range d.noise {
		d.noise[i] = 0
	}
	d.noiseEnergy = 0
	d.frames = 0
}

func energyOf(mags []float64) float64 {
	var e float64
	for _, m := range mags {
		e += m * m
	}
	return e
}
