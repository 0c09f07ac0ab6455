package main

import "math"

// AGC is a peak-tracking gain control, per spec.md §4.4 step 7.
// It holds a ring buffer of |sample| values sized to ~100ms of audio,
// tracks the rolling peak, derives a target gain, and smooths it toward
// the target with attack/release time constants. The peak covers the
// most recent ~100ms up to and including the current sample; output is
// not delayed, so the gain does not anticipate samples that come later.
type AGC struct {
	ring      []float32
	head      int
	filled    int
	peak      float32
	gain      float64
	maxGain   float64
	sampleRate int

	attackCoef  float64
	releaseCoef float64
	bypass      bool
}

const agcMaxGain = 10.0
const agcEpsilon = 1e-6

// NewAGC builds an AGC for the given sample rate with a ~100ms peak
// window and the attack/release preset named by speed.
func NewAGC(sampleRate int, speed AGCSpeed) *AGC {
	a := &AGC{
		ring:       make([]float32, int(math.Ceil(float64(sampleRate)*0.1))),
		gain:       1.0,
		maxGain:    agcMaxGain,
		sampleRate: sampleRate,
	}
	a.SetSpeed(speed)
	return a
}

// SetSpeed reconfigures the attack/release coefficients; speed="off"
// bypasses gain control entirely per spec.md §4.4 step 7.
func (a *AGC) SetSpeed(speed AGCSpeed) {
	if speed == AGCOff {
		a.bypass = true
		a.gain = 1.0
		return
	}
	a.bypass = false
	attackMs, releaseMs := agcTiming(speed)
	a.attackCoef = timeConstantCoef(attackMs, a.sampleRate)
	a.releaseCoef = timeConstantCoef(releaseMs, a.sampleRate)
}

// SetTiming overrides the attack/release time constants directly with
// explicit millisecond values, bypassing the speed-preset table. Used
// when a client requests custom attack/release alongside a speed, per
// spec.md §6's `agc` command.
func (a *AGC) SetTiming(attackMs, releaseMs float64) {
	a.bypass = false
	a.attackCoef = timeConstantCoef(attackMs, a.sampleRate)
	a.releaseCoef = timeConstantCoef(releaseMs, a.sampleRate)
}

func timeConstantCoef(ms float64, sampleRate int) float64 {
	if ms <= 0 {
		return 1.0
	}
	tau := ms / 1000.0
	return 1.0 - math.Exp(-1.0/(tau*float64(sampleRate)))
}

// Process applies trailing-peak AGC to in, writing the gain-adjusted
// result into out (which may alias in) without delaying it. When
// bypassed, it copies in to out unchanged.
func (a *AGC) Process(out, in []float32) {
	if a.bypass {
		copy(out, in)
		return
	}
	for i, s := range in {
		mag := float32(math.Abs(float64(s)))

		if a.filled < len(a.ring) {
			a.ring[a.head] = mag
			a.filled++
		} else {
			evicted := a.ring[a.head]
			a.ring[a.head] = mag
			if evicted == a.peak {
				a.peak = a.recomputePeak()
			}
		}
		if mag > a.peak {
			a.peak = mag
		}
		a.head = (a.head + 1) % len(a.ring)

		target := a.maxGain
		if p := math.Max(float64(a.peak), agcEpsilon); 1.0/p < a.maxGain {
			target = 1.0 / p
		}

		coef := a.releaseCoef
		if target < a.gain {
			coef = a.attackCoef
		}
		a.gain += (target - a.gain) * coef

		out[i] = s * float32(a.gain)
	}
}

func (a *AGC) recomputePeak() float32 {
	var max float32
	for _, v := range a.ring {
		if v > max {
			max = v
		}
	}
	return max
}
