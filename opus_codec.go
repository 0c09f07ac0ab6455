package main

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// OpusCodec is the supplemental alternate AudioCodec (codec=2) exercising
// the envelope's reserved codec byte, per SPEC_FULL.md's "alternate audio
// codec" addition. One Opus encoder is kept for the codec's lifetime, so
// encoder state carries from one Encode call to the next. Each call
// encodes exactly one 20ms frame: shorter blocks are padded with silence
// and longer blocks are truncated to the frame size. The original block
// length is not recorded in the payload.
type OpusCodec struct {
	enc        *opus.Encoder
	sampleRate int
	frameSize  int // samples per Opus frame at 20ms
}

func NewOpusCodec(sampleRate int) (*OpusCodec, error) {
	enc, err := opus.NewEncoder(sampleRate, 1, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("opus codec: new encoder: %w", err)
	}
	return &OpusCodec{
		enc:        enc,
		sampleRate: sampleRate,
		frameSize:  sampleRate / 50, // 20ms frame, matching the ~20ms ADPCM batching cadence
	}, nil
}

func (c *OpusCodec) CodecByte() uint8 { return CodecOpus }

func (c *OpusCodec) Encode(pcm []int16) ([]byte, error) {
	frame := pcm
	if len(frame) < c.frameSize {
		padded := make([]int16, c.frameSize)
		copy(padded, frame)
		frame = padded
	} else if len(frame) > c.frameSize {
		frame = frame[:c.frameSize]
	}
	buf := make([]byte, 4000)
	n, err := c.enc.Encode(frame, buf)
	if err != nil {
		return nil, fmt.Errorf("opus codec: encode: %w", err)
	}
	return buf[:n], nil
}
