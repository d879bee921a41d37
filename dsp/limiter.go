package dsp

import "math"

const (
	// limiterAttack is the gain smoothing coefficient when gain must drop
	// (sudden loud input).
	limiterAttack = 0.1

	// limiterRelease is the gain smoothing coefficient when gain may rise.
	// Much slower than attack to avoid audible pumping.
	limiterRelease = 0.005

	// limiterMaxBoost caps upward gain so near-silence is never amplified
	// into audible noise.
	limiterMaxBoost = 3.0

	// limiterCeiling is the hard output clamp applied after gain.
	limiterCeiling = 0.99
)

// LookaheadLimiter is a linked multi-channel gain normalizer: it pushes the
// frame RMS of the loudest per-sample channel envelope toward a target level
// without hard clipping. Linking means a peak on any channel moves the gain
// for all channels equally, preserving the stereo image.
type LookaheadLimiter struct {
	targetLevel float32
	currentGain float32
}

// NewLookaheadLimiter creates a limiter aiming for the given RMS target.
func NewLookaheadLimiter(targetLevel float32) *LookaheadLimiter {
	return &LookaheadLimiter{
		targetLevel: targetLevel,
		currentGain: 1.0,
	}
}

// SetTargetLevel updates the RMS target.
func (l *LookaheadLimiter) SetTargetLevel(target float32) {
	l.targetLevel = target
}

// TargetLevel returns the current RMS target.
func (l *LookaheadLimiter) TargetLevel() float32 {
	return l.targetLevel
}

// CurrentGain returns the gain currently being applied.
func (l *LookaheadLimiter) CurrentGain() float32 {
	return l.currentGain
}

// ProcessFrame applies linked AGC to one frame of same-length per-channel
// buffers, in place. An empty channel set is a no-op.
func (l *LookaheadLimiter) ProcessFrame(channels [][]float32) {
	if len(channels) == 0 {
		return
	}

	// RMS of the per-sample maximum magnitude across channels.
	frameLen := len(channels[0])
	if frameLen == 0 {
		return
	}
	var sumSq float64
	for k := 0; k < frameLen; k++ {
		var sampleMax float32
		for _, ch := range channels {
			if v := float32(math.Abs(float64(ch[k]))); v > sampleMax {
				sampleMax = v
			}
		}
		sumSq += float64(sampleMax) * float64(sampleMax)
	}
	maxRMS := float32(math.Sqrt(sumSq / float64(frameLen)))

	if maxRMS > 0.0001 {
		targetGain := l.targetLevel / maxRMS
		if targetGain > limiterMaxBoost {
			targetGain = limiterMaxBoost
		}
		if targetGain < l.currentGain {
			l.currentGain += (targetGain - l.currentGain) * limiterAttack
		} else {
			l.currentGain += (targetGain - l.currentGain) * limiterRelease
		}
	} else if l.currentGain > 1.0 {
		// Near-silence: let accumulated boost drain back toward unity.
		l.currentGain -= 0.001
	}

	for _, ch := range channels {
		for i, s := range ch {
			v := s * l.currentGain
			if v > limiterCeiling {
				v = limiterCeiling
			} else if v < -limiterCeiling {
				v = -limiterCeiling
			}
			ch[i] = v
		}
	}
}
