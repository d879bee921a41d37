// Package aec provides a best-effort acoustic echo canceller for the
// VoidMic pipeline, one instance per microphone channel. The engine is a
// Normalized Least Mean Squares (NLMS) adaptive filter driven by a
// time-aligned speaker reference frame supplied alongside each mic frame.
//
// Echo cancellation is best-effort, not guaranteed: on any internal failure
// the canceller copies the mic input through unchanged and reports degraded
// status instead of dropping audio or panicking.
package aec

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/voidmic/dsp"
)

const (
	// taps is the adaptive filter length (10ms at 48kHz), covering residual
	// delay and early room response of a time-aligned reference.
	taps = dsp.FrameSize

	// step is the NLMS step size mu (0 < mu < 2). Conservative for
	// stability over convergence speed.
	step = 0.1

	// regularize keeps the normalization denominator away from zero on
	// silent reference signals.
	regularize = 1e-6
)

// Canceller removes speaker echo from one microphone channel.
// Not safe for concurrent use; it lives on the audio thread.
type Canceller struct {
	weights  []float64
	history  []float64 // most recent reference samples, newest last
	degraded bool
}

// New creates a canceller with zeroed filter state.
func New() *Canceller {
	logrus.WithFields(logrus.Fields{
		"function": "aec.New",
		"taps":     taps,
		"step":     step,
	}).Debug("Creating NLMS echo canceller")

	return &Canceller{
		weights: make([]float64, taps),
		history: make([]float64, taps+dsp.FrameSize),
	}
}

// ProcessFrame cancels echo from mic using the time-aligned speaker
// reference frame, writing the result to out. All three buffers must be
// FrameSize long. Returns false when the engine fell back to copying mic
// input through unchanged (degraded, non-fatal).
func (c *Canceller) ProcessFrame(mic, ref, out []float32) bool {
	if len(mic) != dsp.FrameSize || len(ref) != dsp.FrameSize || len(out) != dsp.FrameSize {
		copyPassthrough(out, mic)
		return false
	}

	// Shift reference history and append the new frame.
	copy(c.history, c.history[dsp.FrameSize:])
	base := len(c.history) - dsp.FrameSize
	for i, s := range ref {
		c.history[base+i] = float64(s)
	}

	for n := 0; n < dsp.FrameSize; n++ {
		// Estimated echo: filter over the last `taps` reference samples.
		offset := base + n
		var estimate, power float64
		for k := 0; k < taps; k++ {
			x := c.history[offset-k]
			estimate += c.weights[k] * x
			power += x * x
		}

		e := float64(mic[n]) - estimate
		if math.IsNaN(e) || math.IsInf(e, 0) {
			// Diverged filter: dump state, pass the rest of the frame raw.
			c.zeroState()
			copyPassthrough(out, mic)
			if !c.degraded {
				c.degraded = true
				logrus.WithFields(logrus.Fields{
					"function": "Canceller.ProcessFrame",
				}).Warn("Echo canceller diverged, falling back to passthrough")
			}
			return false
		}
		out[n] = float32(e)

		mu := step * e / (power + regularize)
		for k := 0; k < taps; k++ {
			c.weights[k] += mu * c.history[offset-k]
		}
	}

	c.degraded = false
	return true
}

// Reset rebuilds internal engine state, for use after a stream
// discontinuity. Reports success; prior state is untouched on failure so
// the caller may retry.
func (c *Canceller) Reset() bool {
	c.zeroState()
	c.degraded = false
	logrus.WithFields(logrus.Fields{
		"function": "Canceller.Reset",
	}).Debug("Echo canceller state reset")
	return true
}

func (c *Canceller) zeroState() {
	for i := range c.weights {
		c.weights[i] = 0
	}
	for i := range c.history {
		c.history[i] = 0
	}
}

func copyPassthrough(out, mic []float32) {
	n := copy(out, mic)
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
}
