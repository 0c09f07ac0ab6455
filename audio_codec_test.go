package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAudioCodecADPCM(t *testing.T) {
	codec, err := NewAudioCodec(CodecADPCM, 12000)
	require.NoError(t, err)
	assert.Equal(t, CodecADPCM, codec.CodecByte())

	payload, err := codec.Encode(sineSamples(240, 1000, 12000))
	require.NoError(t, err)
	assert.NotEmpty(t, payload)
}

func TestNewAudioCodecRejectsUnknownByte(t *testing.T) {
	_, err := NewAudioCodec(99, 12000)
	assert.Error(t, err)
}
