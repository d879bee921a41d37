// Package processor implements the VoidMic frame-processing engine: a
// multi-stage, failure-tolerant conditioning pipeline for 480-sample
// (10ms @ 48kHz) float32 frames with a lock-free live control surface.
//
// Stage order within one frame is fixed and load-bearing:
//
//	echo cancel → denoise → suppression blend → gate analysis →
//	gate apply → EQ → AGC → bypass crossfade → spectrum emission
//
// A Processor is built once per capture session and driven from exactly one
// real-time audio thread. ProcessUpdates must be called once per frame
// cycle, before ProcessFrame, to reconcile live control changes. The
// Processor may be moved to the audio thread but must never be called
// concurrently; the Controls block is the only cross-thread surface.
package processor

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/voidmic/aec"
	"github.com/opd-ai/voidmic/denoise"
	"github.com/opd-ai/voidmic/dsp"
	"github.com/opd-ai/voidmic/vad"
)

const (
	// crossfadeSamples is the bypass transition window (10ms).
	crossfadeSamples = dsp.FrameSize

	// calibrationFrames is the length of a calibration run (~3s).
	calibrationFrames = dsp.SampleRate * 3 / dsp.FrameSize

	// calibrationHeadroom scales the loudest observed ambient RMS into a
	// suggested gate threshold.
	calibrationHeadroom = 1.2

	// calibrationMinThreshold floors the suggestion for very quiet rooms.
	calibrationMinThreshold = 0.005

	// Dynamic threshold derivation from the noise floor estimate.
	dynamicFloorScale  = 1.5
	dynamicFloorOffset = 0.003
	dynamicClampLow    = 0.005
	dynamicClampHigh   = 0.08

	// eqUpdateEpsilon is the minimum gain change (dB) that triggers a
	// coefficient recomputation.
	eqUpdateEpsilon = 0.01

	// jitterReportInterval is how many jitter observations accumulate in
	// the EWMA between publishes to the control block.
	jitterReportInterval = 50
)

// Config describes a processing session. One Processor serves one capture
// pipeline instance with a fixed channel count.
type Config struct {
	// Channels is the number of audio channels (1 = mono, 2 = stereo).
	Channels int
	// VADSensitivity selects the initial detector variant (0..3).
	VADSensitivity int
	// EQLowDB, EQMidDB, EQHighDB are the initial band gains in dB.
	EQLowDB  float32
	EQMidDB  float32
	EQHighDB float32
	// AGCTarget is the RMS level the limiter normalizes toward.
	AGCTarget float32
	// EchoCancel enables the per-channel acoustic echo canceller.
	EchoCancel bool
}

// Processor is the frame-processing orchestrator. See the package
// documentation for the threading contract.
type Processor struct {
	channels int
	controls *Controls

	denoisers  []*denoise.Denoiser
	cancellers []*aec.Canceller // nil when echo cancellation is disabled
	eqs        []*dsp.ThreeBandEQ
	limiter    *dsp.LookaheadLimiter
	floor      *dsp.NoiseFloorTracker
	detectors  [vad.NumSensitivities]*vad.Detector

	// State carried across frames.
	vadIndex     int
	gate         gate
	bypass       BypassState
	crossfadePos uint32
	calibration  []float32

	// Locally cached control values, refreshed by ProcessUpdates so the
	// hot path avoids an atomic load per use.
	eqLow, eqMid, eqHigh float32
	eqEnabled            bool
	agcEnabled           bool

	// Pre-allocated scratch buffers.
	monoMix   []float32
	inputMono []float32
	stageBuf  []float32
	vadBuf    []int16

	spectrum *spectrumEmitter

	jitterEWMA        float32
	jitterSinceReport uint32
}

// New creates a Processor and its control block for the given session
// configuration. An EQ derivation failure is logged and the EQ stage is
// omitted rather than failing the session.
func New(cfg Config) (*Processor, error) {
	if cfg.Channels < 1 {
		return nil, fmt.Errorf("invalid channel count %d: need at least one channel", cfg.Channels)
	}

	logrus.WithFields(logrus.Fields{
		"function":        "processor.New",
		"channels":        cfg.Channels,
		"vad_sensitivity": cfg.VADSensitivity,
		"agc_target":      cfg.AGCTarget,
		"echo_cancel":     cfg.EchoCancel,
	}).Info("Creating frame processor")

	p := &Processor{
		channels:    cfg.Channels,
		controls:    &Controls{},
		limiter:     dsp.NewLookaheadLimiter(cfg.AGCTarget),
		floor:       dsp.NewNoiseFloorTracker(),
		vadIndex:    clampSensitivity(cfg.VADSensitivity),
		bypass:      BypassActive,
		calibration: make([]float32, 0, calibrationFrames),
		eqLow:       cfg.EQLowDB,
		eqMid:       cfg.EQMidDB,
		eqHigh:      cfg.EQHighDB,
		monoMix:     make([]float32, dsp.FrameSize),
		inputMono:   make([]float32, dsp.FrameSize),
		stageBuf:    make([]float32, dsp.FrameSize),
		vadBuf:      make([]int16, dsp.FrameSize),
	}

	for s := vad.Quality; s <= vad.VeryAggressive; s++ {
		p.detectors[s] = vad.NewDetector(s)
	}

	p.denoisers = make([]*denoise.Denoiser, cfg.Channels)
	for i := range p.denoisers {
		p.denoisers[i] = denoise.New(1.0)
	}

	if cfg.EchoCancel {
		p.cancellers = make([]*aec.Canceller, cfg.Channels)
		for i := range p.cancellers {
			p.cancellers[i] = aec.New()
		}
	}

	p.eqs = make([]*dsp.ThreeBandEQ, 0, cfg.Channels)
	for i := 0; i < cfg.Channels; i++ {
		eq, err := dsp.NewThreeBandEQ(cfg.EQLowDB, cfg.EQMidDB, cfg.EQHighDB)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "processor.New",
				"error":    err.Error(),
			}).Warn("EQ construction failed, running without equalizer")
			p.eqs = nil
			break
		}
		p.eqs = append(p.eqs, eq)
	}

	c := p.controls
	c.SetGateThreshold(0.015)
	c.SetSuppressionStrength(1.0)
	c.SetVADSensitivity(cfg.VADSensitivity)
	c.SetEQGains(cfg.EQLowDB, cfg.EQMidDB, cfg.EQHighDB)
	c.SetEQEnabled(true)
	c.SetAGCTarget(cfg.AGCTarget)
	p.eqEnabled = true

	return p, nil
}

// Controls returns the shared control block. The returned pointer remains
// valid for the life of the session and is the only part of the Processor
// that other threads may touch.
func (p *Processor) Controls() *Controls {
	return p.controls
}

// Channels returns the configured channel count.
func (p *Processor) Channels() int {
	return p.channels
}

// GateOpen reports whether the noise gate is currently open.
func (p *Processor) GateOpen() bool {
	return p.gate.open
}

// Bypass returns the current bypass routing state.
func (p *Processor) Bypass() BypassState {
	return p.bypass
}

// SetSpectrumChannel attaches a bounded channel for spectrum snapshot
// emission. Must be called before the audio thread starts. Passing nil
// disables emission.
func (p *Processor) SetSpectrumChannel(ch chan<- SpectrumSnapshot) {
	if ch == nil {
		p.spectrum = nil
		return
	}
	p.spectrum = newSpectrumEmitter(ch)
}

// ProcessUpdates reconciles locally cached control values against the
// shared control block. Call once per frame cycle, before ProcessFrame.
// Calling it repeatedly with unchanged controls is a no-op.
func (p *Processor) ProcessUpdates() {
	c := p.controls

	if newVAD := clampSensitivity(c.VADSensitivity()); newVAD != p.vadIndex {
		logrus.WithFields(logrus.Fields{
			"function":        "Processor.ProcessUpdates",
			"old_sensitivity": p.vadIndex,
			"new_sensitivity": newVAD,
		}).Debug("VAD sensitivity changed")
		p.vadIndex = newVAD
	}

	if p.eqs != nil {
		low, mid, high := c.EQGains()
		if abs32(low-p.eqLow) > eqUpdateEpsilon ||
			abs32(mid-p.eqMid) > eqUpdateEpsilon ||
			abs32(high-p.eqHigh) > eqUpdateEpsilon {
			p.eqLow, p.eqMid, p.eqHigh = low, mid, high
			for _, eq := range p.eqs {
				if err := eq.UpdateGains(low, mid, high); err != nil {
					logrus.WithFields(logrus.Fields{
						"function": "Processor.ProcessUpdates",
						"error":    err.Error(),
					}).Warn("EQ gain update failed, disabling equalizer stage")
					p.eqs = nil
					break
				}
			}
		}
	}

	p.eqEnabled = c.EQEnabled()
	p.agcEnabled = c.AGCEnabled()

	if target := c.AGCTarget(); abs32(target-p.limiter.TargetLevel()) > 0.01 {
		p.limiter.SetTargetLevel(target)
	}

	next, started := p.bypass.applyRequest(c.BypassEnabled())
	if started {
		p.crossfadePos = 0
		logrus.WithFields(logrus.Fields{
			"function":  "Processor.ProcessUpdates",
			"old_state": p.bypass.String(),
			"new_state": next.String(),
		}).Debug("Bypass transition started")
	}
	p.bypass = next
}

// ProcessFrame runs one frame through the conditioning pipeline. inputs and
// outputs must each hold exactly the configured channel count of
// FrameSize-length buffers; on a shape mismatch all outputs are silenced
// and the call returns without touching pipeline state. refs carries
// time-aligned speaker reference frames for echo cancellation and may be
// nil or have fewer channels than the signal (channel 0 is reused).
func (p *Processor) ProcessFrame(
	inputs, outputs, refs [][]float32,
	suppression, gateThreshold float32,
	dynamicThreshold bool,
) {
	if !p.validShape(inputs, outputs) {
		silence(outputs)
		logrus.WithFields(logrus.Fields{
			"function":       "Processor.ProcessFrame",
			"configured":     p.channels,
			"input_buffers":  len(inputs),
			"output_buffers": len(outputs),
		}).Warn("Frame shape mismatch, emitting silence")
		return
	}

	for i := range p.monoMix {
		p.monoMix[i] = 0
	}

	// Per-channel stage: echo cancel, denoise, suppression blend. The
	// blend always takes the post-AEC signal as its raw arm, whether or
	// not the canceller degraded to passthrough.
	for ch := 0; ch < p.channels; ch++ {
		in := inputs[ch]
		out := outputs[ch]

		// Work from a copy so callers may alias input and output buffers.
		raw := p.stageBuf
		if p.cancellers != nil && len(refs) > 0 {
			ref := refs[0]
			if ch < len(refs) {
				ref = refs[ch]
			}
			p.cancellers[ch].ProcessFrame(in, ref, raw)
		} else {
			copy(raw, in)
		}

		p.denoisers[ch].ProcessFrame(out, raw)

		for j := 0; j < dsp.FrameSize; j++ {
			out[j] = raw[j]*(1-suppression) + out[j]*suppression
			p.monoMix[j] += out[j]
		}
	}

	norm := 1.0 / float32(p.channels)
	for j := range p.monoMix {
		p.monoMix[j] *= norm
	}

	if p.bypass == Bypassed {
		// Raw passthrough: zero analysis cost, no telemetry updates.
		for ch := 0; ch < p.channels; ch++ {
			copy(outputs[ch], inputs[ch])
		}
	} else {
		rms := frameRMS(p.monoMix)
		p.controls.setVolume(rms)

		p.runCalibration(rms)

		effective := gateThreshold
		if dynamicThreshold {
			p.floor.Update(rms)
			effective = clamp32(
				p.floor.Floor()*dynamicFloorScale+dynamicFloorOffset,
				dynamicClampLow, dynamicClampHigh,
			)
		}

		for j, s := range p.monoMix {
			p.vadBuf[j] = int16(clamp32(s*32767.0, -32768.0, 32767.0))
		}
		isSpeech := p.detectors[p.vadIndex].IsSpeech(p.vadBuf)

		if p.gate.observe(rms > effective || isSpeech) {
			logrus.WithFields(logrus.Fields{
				"function":  "Processor.ProcessFrame",
				"gate_open": p.gate.open,
				"rms":       rms,
				"threshold": effective,
				"speech":    isSpeech,
			}).Debug("Gate state changed")
		}

		for ch := 0; ch < p.channels; ch++ {
			p.gate.apply(outputs[ch])
			if p.eqEnabled && p.eqs != nil {
				p.eqs[ch].ProcessBuffer(outputs[ch])
			}
		}
		p.gate.advance()

		if p.agcEnabled {
			p.limiter.ProcessFrame(outputs)
		}
	}

	p.applyCrossfade(inputs, outputs)

	if p.spectrum != nil {
		for j := 0; j < dsp.FrameSize; j++ {
			var sum float32
			for ch := 0; ch < p.channels; ch++ {
				sum += inputs[ch][j]
			}
			p.inputMono[j] = sum * norm
		}
		p.spectrum.emit(p.inputMono, p.monoMix)
	}
}

// RecordJitter feeds one audio-loop scheduling jitter observation in
// microseconds. The smoothed value is published to the control block every
// jitterReportInterval observations.
func (p *Processor) RecordJitter(micros uint32) {
	p.jitterEWMA = p.jitterEWMA*0.9 + float32(micros)*0.1
	p.jitterSinceReport++
	if p.jitterSinceReport >= jitterReportInterval {
		p.jitterSinceReport = 0
		p.controls.setJitterMicros(uint32(p.jitterEWMA))
	}
}

// runCalibration accumulates RMS samples while calibration mode is active
// and, after ~3s, publishes the suggested threshold and exits the mode.
// This is a one-shot, time-bounded measurement. Clearing the mode flag is
// the single engine-side write to a surface-owned cell, so the run can
// self-terminate.
func (p *Processor) runCalibration(rms float32) {
	if !p.controls.CalibrationMode() {
		return
	}
	p.calibration = append(p.calibration, rms)
	if len(p.calibration) < calibrationFrames {
		return
	}

	var maxRMS float32
	for _, v := range p.calibration {
		if v > maxRMS {
			maxRMS = v
		}
	}
	suggested := maxRMS * calibrationHeadroom
	if suggested < calibrationMinThreshold {
		suggested = calibrationMinThreshold
	}
	p.controls.setCalibrationResult(suggested)
	p.controls.SetCalibrationMode(false)
	p.calibration = p.calibration[:0]

	logrus.WithFields(logrus.Fields{
		"function":            "Processor.runCalibration",
		"max_rms":             maxRMS,
		"suggested_threshold": suggested,
	}).Info("Calibration completed")
}

// applyCrossfade blends processed and raw signal during bypass transitions
// using equal-power sine/cosine curves over a fixed 480-sample window, then
// advances the state machine once the window is exhausted.
func (p *Processor) applyCrossfade(inputs, outputs [][]float32) {
	if p.bypass != FadingOut && p.bypass != FadingIn {
		return
	}

	pos := p.crossfadePos
	for j := 0; j < dsp.FrameSize; j++ {
		t := float64(pos) / float64(crossfadeSamples)
		var wet, dry float32
		if p.bypass == FadingOut {
			wet = float32(math.Cos(t * math.Pi / 2))
			dry = float32(math.Sin(t * math.Pi / 2))
		} else {
			dry = float32(math.Cos(t * math.Pi / 2))
			wet = float32(math.Sin(t * math.Pi / 2))
		}
		for ch := 0; ch < p.channels; ch++ {
			outputs[ch][j] = outputs[ch][j]*wet + inputs[ch][j]*dry
		}
		if pos < crossfadeSamples {
			pos++
		}
	}
	p.crossfadePos = pos

	if p.crossfadePos >= crossfadeSamples {
		next := p.bypass.completeFade()
		logrus.WithFields(logrus.Fields{
			"function":  "Processor.applyCrossfade",
			"old_state": p.bypass.String(),
			"new_state": next.String(),
		}).Debug("Bypass crossfade completed")
		p.bypass = next
	}
}

func (p *Processor) validShape(inputs, outputs [][]float32) bool {
	if len(inputs) != p.channels || len(outputs) != p.channels {
		return false
	}
	for i := 0; i < p.channels; i++ {
		if len(inputs[i]) != dsp.FrameSize || len(outputs[i]) != dsp.FrameSize {
			return false
		}
	}
	return true
}

func silence(outputs [][]float32) {
	for _, ch := range outputs {
		for i := range ch {
			ch[i] = 0
		}
	}
}

func frameRMS(frame []float32) float32 {
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(frame))))
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
