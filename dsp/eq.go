package dsp

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Fixed EQ topology: low shelf, peaking band, high shelf.
const (
	eqLowShelfHz  = 200.0
	eqPeakingHz   = 1000.0
	eqHighShelfHz = 4000.0
	eqShelfQ      = 0.707
	eqPeakingQ    = 1.0
)

// biquad is a second-order IIR section in Direct Form II Transposed.
// Coefficients are normalized so a0 == 1. The two state variables survive
// coefficient updates so live gain changes do not click.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	z1, z2     float64
}

func (f *biquad) process(x float64) float64 {
	y := f.b0*x + f.z1
	f.z1 = f.b1*x - f.a1*y + f.z2
	f.z2 = f.b2*x - f.a2*y
	return y
}

// setCoefficients normalizes by a0 and installs the coefficients, keeping
// filter state. Returns an error when the derivation produced a degenerate
// or non-finite section.
func (f *biquad) setCoefficients(b0, b1, b2, a0, a1, a2 float64) error {
	if a0 == 0 {
		return fmt.Errorf("degenerate filter section: a0 is zero")
	}
	inv := 1.0 / a0
	c := [5]float64{b0 * inv, b1 * inv, b2 * inv, a1 * inv, a2 * inv}
	for _, v := range c {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite filter coefficient: %v", v)
		}
	}
	f.b0, f.b1, f.b2 = c[0], c[1], c[2]
	f.a1, f.a2 = c[3], c[4]
	return nil
}

// RBJ cookbook designs. All three share alpha = sin(w0)/(2Q).

func lowShelfCoefficients(gainDB, freq, q float64) (b0, b1, b2, a0, a1, a2 float64) {
	A := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / SampleRate
	cosW := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)
	sqA := math.Sqrt(A)

	b0 = A * ((A + 1) - (A-1)*cosW + 2*sqA*alpha)
	b1 = 2 * A * ((A - 1) - (A+1)*cosW)
	b2 = A * ((A + 1) - (A-1)*cosW - 2*sqA*alpha)
	a0 = (A + 1) + (A-1)*cosW + 2*sqA*alpha
	a1 = -2 * ((A - 1) + (A+1)*cosW)
	a2 = (A + 1) + (A-1)*cosW - 2*sqA*alpha
	return
}

func peakingCoefficients(gainDB, freq, q float64) (b0, b1, b2, a0, a1, a2 float64) {
	A := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / SampleRate
	cosW := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)

	b0 = 1 + alpha*A
	b1 = -2 * cosW
	b2 = 1 - alpha*A
	a0 = 1 + alpha/A
	a1 = -2 * cosW
	a2 = 1 - alpha/A
	return
}

func highShelfCoefficients(gainDB, freq, q float64) (b0, b1, b2, a0, a1, a2 float64) {
	A := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / SampleRate
	cosW := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)
	sqA := math.Sqrt(A)

	b0 = A * ((A + 1) + (A-1)*cosW + 2*sqA*alpha)
	b1 = -2 * A * ((A - 1) + (A+1)*cosW)
	b2 = A * ((A + 1) + (A-1)*cosW - 2*sqA*alpha)
	a0 = (A + 1) - (A-1)*cosW + 2*sqA*alpha
	a1 = 2 * ((A - 1) - (A+1)*cosW)
	a2 = (A + 1) - (A-1)*cosW - 2*sqA*alpha
	return
}

// ThreeBandEQ is a fixed-topology equalizer: a 200Hz low shelf, a 1kHz
// peaking band, and a 4kHz high shelf, each a second-order section run in
// series. Band gains are live-updatable; coefficient recomputation preserves
// filter state so a once-per-frame update does not produce audible clicks.
//
// The EQ is an optional stage: construction or update failure should be
// treated as "run without EQ", never as a fatal session error.
type ThreeBandEQ struct {
	lowShelf  biquad
	peaking   biquad
	highShelf biquad
}

// NewThreeBandEQ builds the filter chain for the given band gains in dB.
// Returns a descriptive error if any coefficient derivation is invalid.
func NewThreeBandEQ(lowDB, midDB, highDB float32) (*ThreeBandEQ, error) {
	eq := &ThreeBandEQ{}
	if err := eq.UpdateGains(lowDB, midDB, highDB); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewThreeBandEQ",
		"low_db":   lowDB,
		"mid_db":   midDB,
		"high_db":  highDB,
	}).Debug("Three-band EQ created")

	return eq, nil
}

// Process runs one sample serially through low shelf, peaking, and high
// shelf stages.
func (eq *ThreeBandEQ) Process(sample float32) float32 {
	l := eq.lowShelf.process(float64(sample))
	m := eq.peaking.process(l)
	return float32(eq.highShelf.process(m))
}

// ProcessBuffer applies the EQ in place to a frame.
func (eq *ThreeBandEQ) ProcessBuffer(buf []float32) {
	for i := range buf {
		buf[i] = eq.Process(buf[i])
	}
}

// UpdateGains recomputes all three sections in place for new band gains.
// Filter state is preserved. On error no section is modified beyond those
// already updated; callers should fall back to bypassing the EQ.
func (eq *ThreeBandEQ) UpdateGains(lowDB, midDB, highDB float32) error {
	b0, b1, b2, a0, a1, a2 := lowShelfCoefficients(float64(lowDB), eqLowShelfHz, eqShelfQ)
	if err := eq.lowShelf.setCoefficients(b0, b1, b2, a0, a1, a2); err != nil {
		return fmt.Errorf("low shelf update failed: %w", err)
	}

	b0, b1, b2, a0, a1, a2 = peakingCoefficients(float64(midDB), eqPeakingHz, eqPeakingQ)
	if err := eq.peaking.setCoefficients(b0, b1, b2, a0, a1, a2); err != nil {
		return fmt.Errorf("peaking update failed: %w", err)
	}

	b0, b1, b2, a0, a1, a2 = highShelfCoefficients(float64(highDB), eqHighShelfHz, eqShelfQ)
	if err := eq.highShelf.setCoefficients(b0, b1, b2, a0, a1, a2); err != nil {
		return fmt.Errorf("high shelf update failed: %w", err)
	}
	return nil
}
