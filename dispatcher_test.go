package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchWaterfallDropsWithoutBlockingOnFullQueue(t *testing.T) {
	reg := NewClientRegistry(Limits{Waterfall: 10, PerIP: 10})
	sess, err := reg.RegisterWaterfall("1.1.1.1", 1, 64)
	require.NoError(t, err)
	sess.SetWindow(ClientWindow{L: 0, R: 0})

	d := NewDispatcher(reg, NewWaterfallBuilder(0, 0, 0), nil)
	frame := NewSpectrumFrame(sineBins(256, 5), 1, 0, 2048000)

	// First dispatch fills the depth-1 queue.
	d.Dispatch(frame, 128)
	assert.EqualValues(t, 0, sess.Queue.Dropped.load())

	// Second dispatch must drop rather than block, since nothing is
	// draining the queue.
	d.Dispatch(frame, 128)
	assert.EqualValues(t, 1, sess.Queue.Dropped.load())
}

func TestDispatchAudioSkipsSessionsWithoutAnAttachedChain(t *testing.T) {
	reg := NewClientRegistry(Limits{Audio: 10, PerIP: 10})
	sess, err := reg.RegisterAudio("2.2.2.2", 4)
	require.NoError(t, err)
	sess.SetWindow(0, 64, 4, -1)

	d := NewDispatcher(reg, NewWaterfallBuilder(0, 0, 0), nil)
	frame := NewSpectrumFrame(sineBins(256, 5), 1, 0, 2048000)

	// No AudioChain attached yet (as happens before a client's first
	// receiver selection): Dispatch must not panic and must not enqueue.
	assert.NotPanics(t, func() { d.Dispatch(frame, 128) })
	select {
	case <-sess.Queue.Out():
		t.Fatal("expected no packet without an attached chain")
	default:
	}
}

func TestDispatchAudioEnqueuesEnvelopeOnceChainAttached(t *testing.T) {
	reg := NewClientRegistry(Limits{Audio: 10, PerIP: 10})
	sess, err := reg.RegisterAudio("3.3.3.3", 4)
	require.NoError(t, err)
	sess.SetWindow(0, 64, 4, -1)
	sess.SetSquelch(false)

	codec, err := NewAudioCodec(CodecADPCM, 12000)
	require.NoError(t, err)
	sess.Chain = NewAudioChain(12000, ModeUSB, codec)

	d := NewDispatcher(reg, NewWaterfallBuilder(0, 0, 0), nil)
	frame := NewSpectrumFrame(sineBins(256, 5), 7, 0, 2048000)
	d.Dispatch(frame, 128)

	pkt := <-sess.Queue.Out()
	assert.Equal(t, FrameAudio, pkt.Kind)
	version, codecByte, frameNum, _, _, _, _, _, err := ParseAudioEnvelope(pkt.Bytes)
	require.NoError(t, err)
	assert.EqualValues(t, protocolVersion, version)
	assert.EqualValues(t, CodecADPCM, codecByte)
	assert.EqualValues(t, 7, frameNum)
}
