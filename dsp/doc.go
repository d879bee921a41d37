// Package dsp provides the signal-processing building blocks used by the
// VoidMic conditioning pipeline.
//
// This package holds the stateless-contract, stateful-implementation DSP
// primitives: noise floor estimation, the three-band equalizer, and the
// linked lookahead limiter used for automatic gain control. All components
// operate on 480-sample frames (10ms at 48kHz) of float32 PCM and are
// designed for a single audio thread: no locking, no allocation after
// construction.
//
// The processing pipeline built on top of this package:
//
//	Mic Input → Echo Cancel → Denoise → Gate → EQ → AGC/Limiter → Output
package dsp

// SampleRate is the sample rate used throughout VoidMic (48kHz).
const SampleRate = 48000

// FrameSize is the processing frame length in samples (10ms at 48kHz).
const FrameSize = 480
