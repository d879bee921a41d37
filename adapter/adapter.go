// Package adapter bridges variable-size host audio buffers to the fixed
// 480-sample frames the processor expects. Plugin hosts deliver buffers of
// arbitrary, possibly varying length that rarely align to the internal
// frame size; the adapter accumulates input into complete frames and drains
// processed output back out at whatever granularity the host asks for.
//
// Underruns yield silence and overruns drop the oldest queued samples
// (bounded drop-oldest policy); the adapter never blocks and never errors,
// because it sits on the host's real-time audio callback.
package adapter

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/voidmic/dsp"
	"github.com/opd-ai/voidmic/processor"
)

// queueFrames is the per-side queue capacity in stereo frames. Four frames
// (40ms) absorbs host buffer sizes up to 2048 samples comfortably.
const queueFrames = 4

// sampleQueue is a fixed-capacity float32 ring. When full, pushing evicts
// the oldest sample so the queue always holds the most recent audio.
type sampleQueue struct {
	buf  []float32
	head int
	size int
}

func newSampleQueue(capacity int) *sampleQueue {
	return &sampleQueue{buf: make([]float32, capacity)}
}

func (q *sampleQueue) push(v float32) {
	if q.size == len(q.buf) {
		// Drop oldest.
		q.head = (q.head + 1) % len(q.buf)
		q.size--
	}
	q.buf[(q.head+q.size)%len(q.buf)] = v
	q.size++
}

// pop returns the oldest sample, or 0 when empty.
func (q *sampleQueue) pop() float32 {
	if q.size == 0 {
		return 0
	}
	v := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return v
}

func (q *sampleQueue) len() int {
	return q.size
}

// FrameAdapter accumulates interleaved stereo samples into complete frames,
// runs them through a two-channel Processor, and buffers the results for
// draining at host-chosen sizes. It lives on the audio thread next to its
// Processor and is not safe for concurrent use.
type FrameAdapter struct {
	proc  *processor.Processor
	in    *sampleQueue
	out   *sampleQueue
	left  []float32
	right []float32
	outL  []float32
	outR  []float32
}

// New creates an adapter wrapping the given processor, which must be
// configured for exactly two channels.
func New(proc *processor.Processor) (*FrameAdapter, error) {
	if proc.Channels() != 2 {
		return nil, fmt.Errorf("frame adapter requires a stereo processor, got %d channels", proc.Channels())
	}

	logrus.WithFields(logrus.Fields{
		"function":     "adapter.New",
		"queue_frames": queueFrames,
	}).Debug("Creating frame adapter")

	capacity := dsp.FrameSize * 2 * queueFrames
	return &FrameAdapter{
		proc:  proc,
		in:    newSampleQueue(capacity),
		out:   newSampleQueue(capacity),
		left:  make([]float32, dsp.FrameSize),
		right: make([]float32, dsp.FrameSize),
		outL:  make([]float32, dsp.FrameSize),
		outR:  make([]float32, dsp.FrameSize),
	}, nil
}

// PushStereoInterleaved enqueues matching left/right sample pairs. Slices
// of unequal length are truncated to the shorter one.
func (a *FrameAdapter) PushStereoInterleaved(left, right []float32) {
	n := len(left)
	if len(right) < n {
		n = len(right)
	}
	for i := 0; i < n; i++ {
		a.in.push(left[i])
		a.in.push(right[i])
	}
}

// PushMono enqueues mono samples, duplicating each to both channels.
func (a *FrameAdapter) PushMono(mono []float32) {
	for _, s := range mono {
		a.in.push(s)
		a.in.push(s)
	}
}

// ProcessAvailable drains every complete stereo frame currently queued
// through the processor, reading the live suppression, threshold, and
// dynamic-threshold values from the control block. Partial frames stay
// queued until completed by a later push.
func (a *FrameAdapter) ProcessAvailable() {
	c := a.proc.Controls()
	for a.in.len() >= dsp.FrameSize*2 {
		for j := 0; j < dsp.FrameSize; j++ {
			a.left[j] = a.in.pop()
			a.right[j] = a.in.pop()
		}

		a.proc.ProcessUpdates()
		a.proc.ProcessFrame(
			[][]float32{a.left, a.right},
			[][]float32{a.outL, a.outR},
			nil,
			c.SuppressionStrength(),
			c.GateThreshold(),
			c.DynamicThresholdEnabled(),
		)

		for j := 0; j < dsp.FrameSize; j++ {
			a.out.push(a.outL[j])
			a.out.push(a.outR[j])
		}
	}
}

// PopStereo drains processed samples into left/right, zero-filling when
// fewer are ready than requested. Returns the number of pairs written from
// the queue.
func (a *FrameAdapter) PopStereo(left, right []float32) int {
	n := len(left)
	if len(right) < n {
		n = len(right)
	}
	count := 0
	for i := 0; i < n; i++ {
		if a.out.len() >= 2 {
			left[i] = a.out.pop()
			right[i] = a.out.pop()
			count++
		} else {
			left[i] = 0
			right[i] = 0
		}
	}
	return count
}

// PopMono drains processed output as mono (averaging left and right),
// zero-filling on underrun. Returns the number of samples written from the
// queue.
func (a *FrameAdapter) PopMono(out []float32) int {
	count := 0
	for i := range out {
		if a.out.len() >= 2 {
			l := a.out.pop()
			r := a.out.pop()
			out[i] = (l + r) * 0.5
			count++
		} else {
			out[i] = 0
		}
	}
	return count
}
