// Package voidmic is a real-time microphone-signal conditioning engine.
//
// Given a stream of 480-sample (10ms @ 48kHz) float32 frames from a capture
// device, it removes background noise, optionally cancels acoustic echo,
// gates residual noise during silence, reshapes frequency content with a
// three-band equalizer, normalizes loudness toward a target level, and can
// be bypassed with a click-free crossfade. Every parameter is live-tunable
// from another thread through a lock-free atomic control block.
//
// # Architecture Overview
//
// The per-frame pipeline, in fixed order:
//
//	Mic Input → Echo Cancel → Denoise → Suppression Blend →
//	Gate (VAD + RMS) → EQ → AGC/Limiter → Bypass Crossfade → Output
//
// # Core Components
//
// ## Engine
//
// The session facade. One Engine per capture pipeline instance:
//
//	engine, err := voidmic.New(voidmic.Config{Channels: 2, AGCTarget: 0.25})
//	controls := engine.Controls()
//
//	// On the audio thread, once per frame:
//	engine.ProcessFrame(inputs, outputs, nil)
//
//	// From the UI thread, any time:
//	controls.SetSuppressionStrength(0.8)
//	controls.SetBypassEnabled(true)
//
// ## FrameAdapter
//
// Plugin hosts that deliver arbitrary buffer sizes go through
// adapter.FrameAdapter, which accumulates samples into complete frames and
// drains processed output without ever blocking.
//
// # Threading Contract
//
// An Engine is created on (or moved to) a single dedicated audio thread and
// must only be called from that thread. The Controls block returned by
// Controls() is the one cross-thread surface; every cell in it is an
// independent atomic with single-writer-per-direction discipline.
package voidmic

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/voidmic/dsp"
	"github.com/opd-ai/voidmic/processor"
)

// SampleRate is the sample rate used throughout VoidMic (48kHz).
const SampleRate = dsp.SampleRate

// FrameSize is the processing frame length in samples (10ms at 48kHz).
const FrameSize = dsp.FrameSize

// Config describes one conditioning session.
type Config = processor.Config

// Engine owns one conditioning session: the frame processor plus its shared
// control block. It is a single-owner handle — construct it where the audio
// thread will run it and never call it from anywhere else. Ownership of the
// Engine never crosses threads; only the Controls block does.
type Engine struct {
	proc *processor.Processor
}

// New creates a conditioning session for the given configuration.
func New(cfg Config) (*Engine, error) {
	proc, err := processor.New(cfg)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "voidmic.New",
		"channels": cfg.Channels,
	}).Info("Conditioning session created")

	return &Engine{proc: proc}, nil
}

// Controls returns the shared control block for UI or host-parameter
// threads. The pointer stays valid for the life of the session.
func (e *Engine) Controls() *processor.Controls {
	return e.proc.Controls()
}

// Processor exposes the underlying frame processor, for collaborators like
// the frame adapter that drive it directly.
func (e *Engine) Processor() *processor.Processor {
	return e.proc
}

// SetSpectrumChannel attaches a bounded channel for spectrum snapshots.
// Call before the audio thread starts.
func (e *Engine) SetSpectrumChannel(ch chan<- processor.SpectrumSnapshot) {
	e.proc.SetSpectrumChannel(ch)
}

// ProcessFrame reconciles pending control updates and runs one frame
// through the pipeline, reading suppression strength, gate threshold, and
// the dynamic-threshold flag live from the control block. refs may be nil
// when echo cancellation is unused.
func (e *Engine) ProcessFrame(inputs, outputs, refs [][]float32) {
	c := e.proc.Controls()
	e.proc.ProcessUpdates()
	e.proc.ProcessFrame(
		inputs, outputs, refs,
		c.SuppressionStrength(),
		c.GateThreshold(),
		c.DynamicThresholdEnabled(),
	)
}

// RecordJitter feeds one audio-loop scheduling jitter observation in
// microseconds; the smoothed value surfaces in the control block.
func (e *Engine) RecordJitter(micros uint32) {
	e.proc.RecordJitter(micros)
}
