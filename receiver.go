package main

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"time"
)

// Receiver wires SampleReader -> FftEngine -> Dispatcher for one
// configured ReceiverConfig, driven from a dedicated OS thread per
// spec.md §5's scheduling model: the DSP thread never suspends on I/O.
type Receiver struct {
	cfg        ReceiverConfig
	source     SampleSource
	reader     *SampleReader
	engine     FftEngine
	dispatcher *Dispatcher
	pool       *framePool
	metrics    *Metrics

	frameNum uint64

	overlapTail []complex64 // previous half-block, for 50% overlap
}

// NewReceiver constructs a Receiver from its config and an already-opened
// SampleSource (stdin pipe or RTP multicast), ready to Run.
func NewReceiver(cfg ReceiverConfig, source SampleSource, dispatcher *Dispatcher, metrics *Metrics) (*Receiver, error) {
	half := cfg.FFTSize / 2
	reader, err := NewSampleReader(source, cfg.SourceFormat, half, 64)
	if err != nil {
		return nil, fmt.Errorf("receiver %s: %w", cfg.ID, err)
	}
	engine, err := NewFftEngine(cfg.Signal, cfg.Accelerator, cfg.FFTSize)
	if err != nil {
		return nil, fmt.Errorf("receiver %s: %w", cfg.ID, err)
	}
	return &Receiver{
		cfg:         cfg,
		source:      source,
		reader:      reader,
		engine:      engine,
		dispatcher:  dispatcher,
		pool:        newFramePool(engine.ResultSize(), 4),
		metrics:     metrics,
		overlapTail: make([]complex64, half),
	}, nil
}

// Run drives the receiver until ctx is cancelled or the sample source
// closes. It locks the calling goroutine to its OS thread for the
// duration, matching spec.md §5's "dedicated, OS-thread-backed DSP
// producer" requirement, and stops after finishing any in-flight frame
// on cancellation.
func (rv *Receiver) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	readerCtx, cancelReader := context.WithCancel(ctx)
	defer cancelReader()

	readerErr := make(chan error, 1)
	go func() {
		readerErr <- rv.reader.Run(readerCtx)
	}()

	fftBuf := make([]complex64, rv.cfg.FFTSize)
	var lastFrameAt time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case block, ok := <-rv.reader.Blocks:
			if !ok {
				return nil
			}
			half := len(block.Samples)
			copy(fftBuf[:half], rv.overlapTail)
			copy(fftBuf[half:], block.Samples)
			copy(rv.overlapTail, block.Samples)

			frame := rv.pool.newFrame(rv.frameNum, rv.cfg.BaseFreq(), rv.cfg.SPS)
			if err := rv.engine.Transform(frame.Bins, fftBuf); err != nil {
				log.Printf("receiver %s: fft transform failed, skipping frame: %v", rv.cfg.ID, err)
				if rv.metrics != nil {
					rv.metrics.GPUFailures.WithLabelValues(string(rv.cfg.Accelerator)).Inc()
				}
				frame.Release()
				continue
			}
			rv.frameNum++

			now := time.Now()
			if rv.metrics != nil {
				rv.metrics.FramesProduced.WithLabelValues(rv.cfg.ID).Inc()
				if !lastFrameAt.IsZero() {
					rv.metrics.FramePeriodMs.Observe(float64(now.Sub(lastFrameAt).Microseconds()) / 1000.0)
				}
			}
			lastFrameAt = now

			rv.dispatcher.Dispatch(frame, rv.engine.ResultSize())
			frame.Release()

		case err := <-readerErr:
			return err
		}
	}
}

func (rv *Receiver) Close() error {
	_ = rv.reader.Close()
	return rv.engine.Close()
}
