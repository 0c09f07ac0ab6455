package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientQueueTryPushDropsOnFull(t *testing.T) {
	q := NewClientQueue(2)
	assert.True(t, q.TryPush(FramePacket{Kind: FrameAudio}))
	assert.True(t, q.TryPush(FramePacket{Kind: FrameAudio}))
	assert.False(t, q.TryPush(FramePacket{Kind: FrameAudio}), "third push must drop, never block")
	assert.EqualValues(t, 1, q.Dropped.load())
}

func TestClientQueueDrainFreesCapacity(t *testing.T) {
	q := NewClientQueue(1)
	assert.True(t, q.TryPush(FramePacket{Kind: FrameWaterfall}))
	<-q.Out()
	assert.True(t, q.TryPush(FramePacket{Kind: FrameWaterfall}))
	assert.Zero(t, q.Dropped.load())
}
