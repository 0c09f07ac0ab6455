package main

import (
	"context"
	"fmt"
	"log"
)

// SampleBlock is a fixed-length span of complex baseband samples handed
// from SampleReader to FftEngine. Seq increases by exactly one per block
// produced by a given reader and never wraps within a process lifetime
// (it is a uint64).
type SampleBlock struct {
	Seq     uint64
	Samples []complex64
}

// SampleReader pulls raw bytes from a SampleSource, decodes them according
// to a fixed SampleFormat, and emits fixed-size SampleBlock values on Blocks.
// One SampleReader belongs to exactly one receiver and one SampleSource;
// receiver.go runs it on its own goroutine, separate from the receiver's
// locked DSP thread, and it never blocks anything but that goroutine.
type SampleReader struct {
	src       SampleSource
	format    SampleFormat
	blockSize int // samples per block, i.e. fft_size/2 per spec.md §4.1

	raw    []byte
	carry  []complex64 // decoded samples not yet emitted as a full block
	Blocks chan SampleBlock

	seq uint64

	Underruns uint64 // blocks dropped because Blocks was full (slow consumer)
}

// NewSampleReader constructs a reader that emits complex64 blocks of
// exactly blockSize samples. queueDepth bounds Blocks; when full, new
// blocks are dropped rather than blocking the producer thread, matching
// spec.md §4.1's requirement that the sample path never stalls.
func NewSampleReader(src SampleSource, format SampleFormat, blockSize, queueDepth int) (*SampleReader, error) {
	if !format.valid() {
		return nil, fmt.Errorf("sample reader: invalid format %q", format)
	}
	if blockSize <= 0 {
		return nil, fmt.Errorf("sample reader: blockSize must be positive, got %d", blockSize)
	}
	rawChunk := blockSize * format.BytesPerSample() * 4
	return &SampleReader{
		src:       src,
		format:    format,
		blockSize: blockSize,
		raw:       make([]byte, rawChunk),
		carry:     make([]complex64, 0, blockSize*2),
		Blocks:    make(chan SampleBlock, queueDepth),
	}, nil
}

// Run decodes and emits blocks until ctx is cancelled or the source closes.
// It does not lock its goroutine to an OS thread.
func (r *SampleReader) Run(ctx context.Context) error {
	decoded := make([]complex64, r.blockSize*4)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := r.src.Read(ctx, r.raw)
		if n > 0 {
			dn, derr := decodeInto(r.format, r.raw[:n], decoded)
			if derr != nil {
				log.Printf("sample reader: decode error: %v", derr)
			} else {
				r.carry = append(r.carry, decoded[:dn]...)
				r.drainBlocks()
			}
		}
		if err != nil {
			if err == ErrSourceClosed {
				return nil
			}
			return fmt.Errorf("sample reader: source read: %w", err)
		}
	}
}

func (r *SampleReader) drainBlocks() {
	for len(r.carry) >= r.blockSize {
		block := make([]complex64, r.blockSize)
		copy(block, r.carry[:r.blockSize])
		r.carry = append(r.carry[:0], r.carry[r.blockSize:]...)

		b := SampleBlock{Seq: r.seq, Samples: block}
		r.seq++

		select {
		case r.Blocks <- b:
		default:
			r.Underruns++
		}
	}
}

func (r *SampleReader) Close() error {
	return r.src.Close()
}
