package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAudioMaxFFTSizeWorkedExample(t *testing.T) {
	// RTL-SDR-class example from the specification: audio_sps=12000,
	// fft_size=131072, sps=2048000 -> 768.
	assert.Equal(t, int32(768), audioMaxFFTSize(12000, 131072, 2048000))
}

func TestAudioMaxFFTSizeRoundsUpToMultipleOfFour(t *testing.T) {
	got := audioMaxFFTSize(8000, 4096, 2000000)
	assert.Zero(t, got%4, "result must be a multiple of 4")
}

func TestValidateWindowRejectsOutOfRange(t *testing.T) {
	assert.NoError(t, validateWindow(0, 10, 100, 1000, false))
	assert.ErrorIs(t, validateWindow(-1, 10, 100, 1000, false), errInvalidWindow)
	assert.ErrorIs(t, validateWindow(10, 10, 100, 1000, false), errInvalidWindow)
	assert.ErrorIs(t, validateWindow(0, 101, 100, 1000, false), errInvalidWindow)
}

func TestValidateWindowRejectsOversizeAudioSpan(t *testing.T) {
	assert.NoError(t, validateWindow(0, 100, 200, 100, true))
	assert.ErrorIs(t, validateWindow(0, 101, 200, 100, true), errInvalidWindow)
	// Same span is fine for a non-audio (waterfall) client.
	assert.NoError(t, validateWindow(0, 101, 200, 100, false))
}

func TestNormalizeModeAliasesFMC(t *testing.T) {
	assert.Equal(t, ModeFM, normalizeMode(ModeFMC))
	assert.Equal(t, ModeUSB, normalizeMode(ModeUSB))
}

func TestClientWindowStateRoundTrip(t *testing.T) {
	var s clientWindowState
	s.store(12, 34, 5.5, 2)
	got := s.load()
	assert.Equal(t, ClientWindow{L: 12, R: 34, M: 5.5, Level: 2}, got)
}
