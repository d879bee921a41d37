package processor

import "github.com/opd-ai/voidmic/dsp"

// Gate timing, in samples at 48kHz.
const (
	// gateAttackSamples is the sustained excess needed before the gate
	// opens (5ms), debouncing brief transients.
	gateAttackSamples = dsp.SampleRate / 1000 * 5

	// gateReleaseSamples is the sustained quiet needed before an open gate
	// closes (200ms). The hysteresis keeps natural speech pauses from
	// chattering the gate.
	gateReleaseSamples = dsp.SampleRate / 1000 * 200

	// gateFadeSamples is the linear fade-to-zero applied while closing
	// (10ms) so the cut is never audible as a click.
	gateFadeSamples = dsp.SampleRate / 1000 * 10
)

// gate tracks the open/closed noise-gate state across frames. Attack and
// release progress accumulate in samples; the fade position is only
// meaningful while closed and resets whenever the gate reopens.
type gate struct {
	open              bool
	samplesSinceClose uint32 // accumulated above-threshold samples (attack)
	samplesSinceOpen  uint32 // accumulated below-threshold samples while open (release)
	fadePosition      uint32
}

// observe feeds one frame's activity decision (above threshold or speech
// detected) into the state machine. Returns true when the open/closed state
// flipped this frame.
func (g *gate) observe(active bool) bool {
	wasOpen := g.open
	if active {
		g.samplesSinceClose += dsp.FrameSize
		if g.samplesSinceClose >= gateAttackSamples {
			g.open = true
			g.samplesSinceOpen = 0
			g.fadePosition = 0
		}
	} else {
		g.samplesSinceClose = 0
		if g.open {
			g.samplesSinceOpen += dsp.FrameSize
			if g.samplesSinceOpen > gateReleaseSamples {
				g.open = false
			}
		}
	}
	return g.open != wasOpen
}

// apply mutes a closed gate's output in place, fading linearly over the
// first gateFadeSamples after closing. The stored fade position is not
// advanced here: every channel of a frame starts from the same position,
// and advance is called once per frame afterwards.
func (g *gate) apply(out []float32) {
	if g.open {
		return
	}
	fade := g.fadePosition
	for i := range out {
		if fade < gateFadeSamples {
			out[i] *= 1.0 - float32(fade)/float32(gateFadeSamples)
			fade++
		} else {
			out[i] = 0
		}
	}
}

// advance moves the closing fade forward by one frame, or rewinds it when
// the gate is open.
func (g *gate) advance() {
	if !g.open {
		if g.fadePosition < gateFadeSamples {
			g.fadePosition += dsp.FrameSize
		}
	} else {
		g.fadePosition = 0
	}
}
