package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// Audio envelope constants, per spec.md §4.6.
const (
	audioMagic       = "NSDA"
	audioEnvelopeLen = 36
	protocolVersion  = 1
)

// waterfallPayload is the CBOR map shape spec.md §4.6 specifies for the
// waterfall packet payload.
type waterfallPayload struct {
	FrameNum uint64 `cbor:"frame_num"`
	L        int32  `cbor:"l"`
	R        int32  `cbor:"r"`
	Data     []byte `cbor:"data"`
}

// zstdSessionEncoder wraps one client's long-lived Zstd stream: the
// encoder is flushed (not closed) at every packet boundary so the
// browser-side streaming decoder sees one complete frame per flush,
// per spec.md §4.6.
type zstdSessionEncoder struct {
	mu  sync.Mutex
	buf bytes.Buffer
	enc *zstd.Encoder
}

func newZstdSessionEncoder() (*zstdSessionEncoder, error) {
	s := &zstdSessionEncoder{}
	enc, err := zstd.NewWriter(&s.buf, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("frame protocol: new zstd stream: %w", err)
	}
	s.enc = enc
	return s, nil
}

// EncodeWaterfallPacket CBOR-encodes the payload, writes it into the
// session's Zstd stream, flushes, and returns the accumulated compressed
// bytes produced by this call.
func (s *zstdSessionEncoder) EncodeWaterfallPacket(frameNum uint64, l, r int32, data []int8) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw := make([]byte, len(data))
	for i, v := range data {
		raw[i] = byte(v)
	}
	payload := waterfallPayload{FrameNum: frameNum, L: l, R: r, Data: raw}
	encoded, err := cbor.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("frame protocol: cbor marshal: %w", err)
	}

	s.buf.Reset()
	if _, err := s.enc.Write(encoded); err != nil {
		return nil, fmt.Errorf("frame protocol: zstd write: %w", err)
	}
	if err := s.enc.Flush(); err != nil {
		return nil, fmt.Errorf("frame protocol: zstd flush: %w", err)
	}

	out := make([]byte, s.buf.Len())
	copy(out, s.buf.Bytes())
	return out, nil
}

func (s *zstdSessionEncoder) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Close()
}

// DecodeWaterfallPacket reverses EncodeWaterfallPacket: zstd-decompress,
// then CBOR-decode. Used by tests to assert the round-trip invariant in
// spec.md §8.
func DecodeWaterfallPacket(compressed []byte) (frameNum uint64, l, r int32, data []int8, err error) {
	dec, err := zstd.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return 0, 0, 0, nil, fmt.Errorf("frame protocol: new zstd reader: %w", err)
	}
	defer dec.Close()

	var raw bytes.Buffer
	if _, err := raw.ReadFrom(dec); err != nil {
		return 0, 0, 0, nil, fmt.Errorf("frame protocol: zstd decompress: %w", err)
	}

	var payload waterfallPayload
	if err := cbor.Unmarshal(raw.Bytes(), &payload); err != nil {
		return 0, 0, 0, nil, fmt.Errorf("frame protocol: cbor unmarshal: %w", err)
	}
	out := make([]int8, len(payload.Data))
	for i, b := range payload.Data {
		out[i] = int8(b)
	}
	return payload.FrameNum, payload.L, payload.R, out, nil
}

// EncodeAudioEnvelope builds the fixed 36-byte little-endian envelope
// described in spec.md §4.6, followed by the codec payload.
func EncodeAudioEnvelope(codecByte uint8, frameNum uint64, l int32, m float64, r int32, pwr float32, payload []byte) []byte {
	out := make([]byte, audioEnvelopeLen+len(payload))
	copy(out[0:4], audioMagic)
	out[4] = protocolVersion
	out[5] = codecByte
	binary.LittleEndian.PutUint16(out[6:8], 0) // reserved
	binary.LittleEndian.PutUint64(out[8:16], frameNum)
	binary.LittleEndian.PutUint32(out[16:20], uint32(l))
	binary.LittleEndian.PutUint64(out[20:28], math.Float64bits(m))
	binary.LittleEndian.PutUint32(out[28:32], uint32(r))
	binary.LittleEndian.PutUint32(out[32:36], math.Float32bits(pwr))
	copy(out[36:], payload)
	return out
}

// ParseAudioEnvelope reverses EncodeAudioEnvelope's header for tests and
// any debugging tooling.
func ParseAudioEnvelope(b []byte) (version, codec uint8, frameNum uint64, l int32, m float64, r int32, pwr float32, payload []byte, err error) {
	if len(b) < audioEnvelopeLen {
		return 0, 0, 0, 0, 0, 0, 0, nil, fmt.Errorf("frame protocol: envelope too short: %d bytes", len(b))
	}
	if string(b[0:4]) != audioMagic {
		return 0, 0, 0, 0, 0, 0, 0, nil, fmt.Errorf("frame protocol: bad magic %q", b[0:4])
	}
	version = b[4]
	codec = b[5]
	frameNum = binary.LittleEndian.Uint64(b[8:16])
	l = int32(binary.LittleEndian.Uint32(b[16:20]))
	m = math.Float64frombits(binary.LittleEndian.Uint64(b[20:28]))
	r = int32(binary.LittleEndian.Uint32(b[28:32]))
	pwr = math.Float32frombits(binary.LittleEndian.Uint32(b[32:36]))
	payload = b[36:]
	return version, codec, frameNum, l, m, r, pwr, payload, nil
}
