package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpusCodecEncodesPaddedShortFrame(t *testing.T) {
	codec, err := NewOpusCodec(12000)
	require.NoError(t, err)
	assert.Equal(t, CodecOpus, codec.CodecByte())

	// Shorter than one 20ms frame: Encode must pad rather than error.
	payload, err := codec.Encode(sineSamples(50, 1000, 12000))
	require.NoError(t, err)
	assert.NotEmpty(t, payload)
}

func TestOpusCodecEncodesOversizeFrame(t *testing.T) {
	codec, err := NewOpusCodec(12000)
	require.NoError(t, err)

	// Longer than one 20ms frame: Encode must truncate rather than error.
	payload, err := codec.Encode(sineSamples(2000, 1000, 12000))
	require.NoError(t, err)
	assert.NotEmpty(t, payload)
}
