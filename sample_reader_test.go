package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSampleSource feeds fixed chunks one at a time, then reports
// ErrSourceClosed, modelling a finite recorded capture.
type fakeSampleSource struct {
	chunks [][]byte
	pos    int
	closed bool
}

func (f *fakeSampleSource) Read(ctx context.Context, buf []byte) (int, error) {
	if f.pos >= len(f.chunks) {
		return 0, ErrSourceClosed
	}
	n := copy(buf, f.chunks[f.pos])
	f.pos++
	return n, nil
}

func (f *fakeSampleSource) Close() error {
	f.closed = true
	return nil
}

func s16Chunk(samples ...int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func TestSampleReaderDecodesAndEmitsFixedSizeBlocks(t *testing.T) {
	src := &fakeSampleSource{chunks: [][]byte{
		s16Chunk(1000, 2000, 3000, 4000),
		s16Chunk(5000, 6000),
	}}
	r, err := NewSampleReader(src, FormatS16, 4, 4)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err = r.Run(ctx)
	assert.NoError(t, err)

	block := <-r.Blocks
	assert.EqualValues(t, 0, block.Seq)
	require.Len(t, block.Samples, 4)
	assert.InDelta(t, 1000.0/32768.0, real(block.Samples[0]), 1e-6)

	select {
	case <-r.Blocks:
		t.Fatal("expected only one full block to be emitted; the trailing 2 samples stay buffered")
	default:
	}
}

func TestSampleReaderRejectsInvalidFormat(t *testing.T) {
	_, err := NewSampleReader(&fakeSampleSource{}, SampleFormat("bogus"), 4, 4)
	assert.Error(t, err)
}

func TestSampleReaderRejectsNonPositiveBlockSize(t *testing.T) {
	_, err := NewSampleReader(&fakeSampleSource{}, FormatS16, 0, 4)
	assert.Error(t, err)
}

func TestSampleReaderCountsUnderrunsWhenBlocksChannelFull(t *testing.T) {
	src := &fakeSampleSource{chunks: [][]byte{
		s16Chunk(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12),
	}}
	r, err := NewSampleReader(src, FormatS16, 4, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Run(ctx))

	// Three blocks decoded from 12 samples, only one fits the depth-1 channel.
	assert.EqualValues(t, 2, r.Underruns)
}

func TestSampleReaderCloseClosesUnderlyingSource(t *testing.T) {
	src := &fakeSampleSource{}
	r, err := NewSampleReader(src, FormatS16, 4, 4)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.True(t, src.closed)
}

func TestStdinSourceMapsEOFToSourceClosed(t *testing.T) {
	s := NewStdinSource(io.NopCloser(bytes.NewReader([]byte{1, 2, 3})))
	buf := make([]byte, 8)
	n, err := s.Read(context.Background(), buf)
	assert.Equal(t, 3, n)
	assert.NoError(t, err)

	n, err = s.Read(context.Background(), buf)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, ErrSourceClosed)
}
