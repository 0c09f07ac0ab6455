package main

import "math"

// Demodulator holds the small amount of state that persists across audio
// frames for modes whose demodulation isn't memoryless (SAM's carrier PLL,
// FM/WBFM's previous-sample phase reference).
type Demodulator struct {
	mode DemodMode

	// SAM carrier tracking loop (first-order PLL on the carrier phase).
	samPhase float64

	// FM/FMC/WBFM phase discriminator reference.
	fmPrev complex64

	audioSPS int
	maxDeviationHz float64
}

// NewDemodulator builds a demodulator for the given mode. maxDeviationHz
// scales the FM/WBFM discriminator output, per spec.md §4.4 step 5.
func NewDemodulator(mode DemodMode, audioSPS int) *Demodulator {
	dev := 5000.0
	if mode == ModeWBFM {
		dev = 75000.0
	}
	return &Demodulator{
		mode:           normalizeMode(mode),
		audioSPS:       audioSPS,
		maxDeviationHz: dev,
	}
}

func (d *Demodulator) SetMode(mode DemodMode) {
	d.mode = normalizeMode(mode)
	if d.mode == ModeWBFM {
		d.maxDeviationHz = 75000.0
	} else {
		d.maxDeviationHz = 5000.0
	}
}

// Demodulate converts a time-domain complex block (post-IFFT,
// post-overlap-add) into real-valued audio samples per spec.md §4.4 step 5.
func (d *Demodulator) Demodulate(out []float32, in []complex64) error {
	switch d.mode {
	case ModeUSB, ModeLSB:
		for i, z := range in {
			out[i] = real(z)
		}
	case ModeAM:
		for i, z := range in {
			out[i] = float32(math.Hypot(float64(real(z)), float64(imag(z))))
		}
	case ModeSAM:
		d.demodSAM(out, in)
	case ModeFM:
		d.demodFM(out, in)
	case ModeWBFM:
		d.demodFM(out, in)
	default:
		return errUnsupportedMode
	}
	return nil
}

// demodSAM implements coherent AM via a first-order carrier-tracking PLL
// on the DC bin's phase, per spec.md §4.4 step 5.
func (d *Demodulator) demodSAM(out []float32, in []complex64) {
	const loopGain = 0.01
	for i, z := range in {
		phaseErr := math.Atan2(float64(imag(z)), float64(real(z))) - d.samPhase
		for phaseErr > math.Pi {
			phaseErr -= 2 * math.Pi
		}
		for phaseErr < -math.Pi {
			phaseErr += 2 * math.Pi
		}
		d.samPhase += loopGain * phaseErr

		c, s := math.Cos(-d.samPhase), math.Sin(-d.samPhase)
		re := float64(real(z))*c - float64(imag(z))*s
		out[i] = float32(re)
	}
}

// demodFM implements the phase discriminator atan2(Im(z*conj(zPrev)), Re(...)),
// scaled by audio_sps / (2*pi*maxDeviationHz), per spec.md §4.4 step 5.
func (d *Demodulator) demodFM(out []float32, in []complex64) {
	scale := float64(d.audioSPS) / (2 * math.Pi * d.maxDeviationHz)
	prev := d.fmPrev
	for i, z := range in {
		conjPrev := complex(real(prev), -imag(prev))
		prod := z * conjPrev
		phase := math.Atan2(float64(imag(prod)), float64(real(prod)))
		out[i] = float32(phase * scale)
		prev = z
	}
	d.fmPrev = prev
}
