package processor

import (
	"math"
	"sync/atomic"
)

// atomicFloat32 stores a float32 as its IEEE-754 bit pattern in a uint32 so
// it can be shared lock-free. The packing convention stays inside this type;
// call sites only ever see float32.
type atomicFloat32 struct {
	bits atomic.Uint32
}

func (f *atomicFloat32) Load() float32 {
	return math.Float32frombits(f.bits.Load())
}

func (f *atomicFloat32) Store(v float32) {
	f.bits.Store(math.Float32bits(v))
}

// Controls is the lock-free control block shared between the audio thread
// and a control surface (GUI, plugin parameter system, CLI). Every cell is
// an independent atomic scalar with single-writer-many-reader discipline:
//
//   - The audio thread is the sole writer of Volume, Jitter, and
//     CalibrationResult.
//   - The control surface is the sole writer of everything else.
//
// That discipline is a documented contract, not an enforced invariant; the
// underlying primitives cannot express it statically. Readers may observe a
// value up to one frame period (~10ms) stale, which is an accepted tradeoff
// for lock-freedom on the audio thread.
//
// A single Controls value is created with its Processor and shared by
// pointer; it stays valid for the life of the session.
type Controls struct {
	gateThreshold       atomicFloat32
	suppressionStrength atomicFloat32
	dynamicThreshold    atomic.Bool
	vadSensitivity      atomic.Uint32
	eqLowGain           atomicFloat32
	eqMidGain           atomicFloat32
	eqHighGain          atomicFloat32
	eqEnabled           atomic.Bool
	agcEnabled          atomic.Bool
	agcTarget           atomicFloat32
	bypassEnabled       atomic.Bool
	calibrationMode     atomic.Bool
	calibrationResult   atomicFloat32
	volume              atomicFloat32
	jitterMaxMicros     atomic.Uint32
}

// Control-surface written tunables.

func (c *Controls) GateThreshold() float32     { return c.gateThreshold.Load() }
func (c *Controls) SetGateThreshold(v float32) { c.gateThreshold.Store(v) }

func (c *Controls) SuppressionStrength() float32     { return c.suppressionStrength.Load() }
func (c *Controls) SetSuppressionStrength(v float32) { c.suppressionStrength.Store(v) }

func (c *Controls) DynamicThresholdEnabled() bool     { return c.dynamicThreshold.Load() }
func (c *Controls) SetDynamicThresholdEnabled(v bool) { c.dynamicThreshold.Store(v) }

func (c *Controls) VADSensitivity() int     { return int(c.vadSensitivity.Load()) }
func (c *Controls) SetVADSensitivity(s int) { c.vadSensitivity.Store(uint32(clampSensitivity(s))) }

func (c *Controls) EQGains() (low, mid, high float32) {
	return c.eqLowGain.Load(), c.eqMidGain.Load(), c.eqHighGain.Load()
}

func (c *Controls) SetEQGains(low, mid, high float32) {
	c.eqLowGain.Store(low)
	c.eqMidGain.Store(mid)
	c.eqHighGain.Store(high)
}

func (c *Controls) EQEnabled() bool     { return c.eqEnabled.Load() }
func (c *Controls) SetEQEnabled(v bool) { c.eqEnabled.Store(v) }

func (c *Controls) AGCEnabled() bool     { return c.agcEnabled.Load() }
func (c *Controls) SetAGCEnabled(v bool) { c.agcEnabled.Store(v) }

func (c *Controls) AGCTarget() float32     { return c.agcTarget.Load() }
func (c *Controls) SetAGCTarget(v float32) { c.agcTarget.Store(v) }

func (c *Controls) BypassEnabled() bool     { return c.bypassEnabled.Load() }
func (c *Controls) SetBypassEnabled(v bool) { c.bypassEnabled.Store(v) }

func (c *Controls) CalibrationMode() bool     { return c.calibrationMode.Load() }
func (c *Controls) SetCalibrationMode(v bool) { c.calibrationMode.Store(v) }

// Audio-thread written telemetry.

// Volume is the most recent frame RMS of the processed mono mix.
func (c *Controls) Volume() float32 { return c.volume.Load() }

// CalibrationResult is the suggested gate threshold published at the end of
// a calibration run. Write-once per run.
func (c *Controls) CalibrationResult() float32 { return c.calibrationResult.Load() }

// JitterMicros is the smoothed audio-loop scheduling jitter in microseconds.
func (c *Controls) JitterMicros() uint32 { return c.jitterMaxMicros.Load() }

func (c *Controls) setVolume(v float32)            { c.volume.Store(v) }
func (c *Controls) setCalibrationResult(v float32) { c.calibrationResult.Store(v) }
func (c *Controls) setJitterMicros(v uint32)       { c.jitterMaxMicros.Store(v) }

func clampSensitivity(s int) int {
	if s < 0 {
		return 0
	}
	if s > 3 {
		return 3
	}
	return s
}
