package main

// FrameKind distinguishes the two binary packet shapes the Dispatcher
// produces, per spec.md §3.
type FrameKind int

const (
	FrameWaterfall FrameKind = iota
	FrameAudio
	FrameEvent
	FrameChat
)

// FramePacket is an outbound packet produced by the Dispatcher and
// consumed by a transport task (WebSocket writer).
type FramePacket struct {
	Kind  FrameKind
	Bytes []byte
}
