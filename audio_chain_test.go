package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineBins(n int, freq float64) []complex64 {
	bins := make([]complex64, n)
	for i := range bins {
		theta := 2 * math.Pi * freq * float64(i) / float64(n)
		bins[i] = complex(float32(math.Cos(theta)), float32(math.Sin(theta)))
	}
	return bins
}

func TestAudioChainProcessEmitsWhenSquelchDisabled(t *testing.T) {
	codec, err := NewAudioCodec(CodecADPCM, 12000)
	require.NoError(t, err)
	chain := NewAudioChain(12000, ModeUSB, codec)

	frame := NewSpectrumFrame(sineBins(64, 4), 1, 100000000, 2048000)
	result, err := chain.Process(frame, 0, 64, 4, false, false)
	require.NoError(t, err)
	assert.True(t, result.Emit)
	assert.NotEmpty(t, result.Payload)
}

func TestAudioChainProcessMutedNeverEmits(t *testing.T) {
	codec, err := NewAudioCodec(CodecADPCM, 12000)
	require.NoError(t, err)
	chain := NewAudioChain(12000, ModeUSB, codec)

	frame := NewSpectrumFrame(sineBins(64, 4), 1, 100000000, 2048000)
	result, err := chain.Process(frame, 0, 64, 4, true, false)
	require.NoError(t, err)
	assert.False(t, result.Emit)
	assert.Empty(t, result.Payload)
}

func TestAudioChainProcessRejectsInvalidWindow(t *testing.T) {
	codec, err := NewAudioCodec(CodecADPCM, 12000)
	require.NoError(t, err)
	chain := NewAudioChain(12000, ModeUSB, codec)

	frame := NewSpectrumFrame(sineBins(64, 4), 1, 0, 2048000)
	_, err = chain.Process(frame, 10, 10, 0, false, false)
	assert.ErrorIs(t, err, errInvalidWindow)

	_, err = chain.Process(frame, 0, 65, 0, false, false)
	assert.ErrorIs(t, err, errInvalidWindow)
}

func TestAudioChainProcessRunsFilterStagesWhileSquelchClosed(t *testing.T) {
	codec, err := NewAudioCodec(CodecADPCM, 12000)
	require.NoError(t, err)
	chain := NewAudioChain(12000, ModeUSB, codec)

	// A flat-power spectrum keeps the squelch closed (variance/mean^2 is
	// zero, well under the open threshold) on every call.
	frame := NewSpectrumFrame(sineBins(64, 4), 1, 100000000, 2048000)
	for i := 0; i < 5; i++ {
		result, err := chain.Process(frame, 0, 64, 4, false, true)
		require.NoError(t, err)
		assert.False(t, result.Emit)
		assert.False(t, result.SquelchOpen)
	}

	// Demod/DC-block/AGC must still have run on every call despite the
	// gate staying closed, so their internal state isn't frozen: the DC
	// blocker's one-pole memory is nonzero and the AGC's peak ring
	// buffer has samples in it.
	assert.NotZero(t, chain.dc.prevIn)
	assert.NotZero(t, chain.agc.filled)
}

func TestAudioChainCodecByteMatchesConfiguredCodec(t *testing.T) {
	codec, err := NewAudioCodec(CodecADPCM, 12000)
	require.NoError(t, err)
	chain := NewAudioChain(12000, ModeUSB, codec)
	assert.EqualValues(t, CodecADPCM, chain.CodecByte())
}
