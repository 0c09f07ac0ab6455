package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDemodulateUSBPassesRealPart(t *testing.T) {
	d := NewDemodulator(ModeUSB, 12000)
	in := []complex64{complex(0.5, 0.25), complex(-0.3, 0.9)}
	out := make([]float32, 2)
	require := assert.New(t)
	require.NoError(d.Demodulate(out, in))
	assert.Equal(t, float32(0.5), out[0])
	assert.Equal(t, float32(-0.3), out[1])
}

func TestDemodulateAMTakesMagnitude(t *testing.T) {
	d := NewDemodulator(ModeAM, 12000)
	in := []complex64{complex(3, 4)}
	out := make([]float32, 1)
	assert.NoError(t, d.Demodulate(out, in))
	assert.InDelta(t, 5.0, out[0], 1e-5)
}

func TestDemodulateFMZeroForConstantPhase(t *testing.T) {
	d := NewDemodulator(ModeFM, 12000)
	in := make([]complex64, 8)
	for i := range in {
		in[i] = complex(1, 0) // no phase rotation between samples
	}
	out := make([]float32, 8)
	assert.NoError(t, d.Demodulate(out, in))
	for i := 1; i < len(out); i++ {
		assert.InDelta(t, 0, out[i], 1e-6)
	}
}

func TestDemodulateFMTracksConstantFrequencyOffset(t *testing.T) {
	d := NewDemodulator(ModeFM, 12000)
	const deltaPhase = 0.01
	n := 16
	in := make([]complex64, n)
	for i := 0; i < n; i++ {
		theta := deltaPhase * float64(i)
		in[i] = complex(float32(math.Cos(theta)), float32(math.Sin(theta)))
	}
	out := make([]float32, n)
	assert.NoError(t, d.Demodulate(out, in))
	scale := float64(12000) / (2 * math.Pi * 5000)
	expected := float32(deltaPhase * scale)
	for i := 1; i < n; i++ {
		assert.InDelta(t, expected, out[i], 1e-3)
	}
}

func TestDemodulateUnsupportedMode(t *testing.T) {
	d := NewDemodulator(DemodMode("bogus"), 12000)
	err := d.Demodulate(make([]float32, 1), make([]complex64, 1))
	assert.ErrorIs(t, err, errUnsupportedMode)
}

func TestDemodulatorWBFMUsesWiderDeviation(t *testing.T) {
	d := NewDemodulator(ModeWBFM, 12000)
	assert.Equal(t, 75000.0, d.maxDeviationHz)
	d.SetMode(ModeUSB)
	assert.Equal(t, 5000.0, d.maxDeviationHz)
}
