package main

import (
	"fmt"
	"math"
	"sync"

	algofft "github.com/cwbudde/algo-fft"
)

// FftEngine is the narrow capability interface the receiver's DSP thread
// drives once per overlapped input window. Concrete backends (CPU here;
// OpenCL/Vulkan in fft_engine_gpu.go) are interchangeable behind it. At
// most one Transform call is ever in flight per engine instance — the
// receiver loop enforces this by construction (it is single-threaded).
type FftEngine interface {
	// Transform runs the windowed forward FFT over in (length FFTSize)
	// and writes the result frame into out, whose length must equal
	// ResultSize(). Returns an error only on a backend submission
	// failure; per spec.md §4.2 such a failure means the caller should
	// skip the frame and continue, not abort the receiver.
	Transform(out, in []complex64) error
	FFTSize() int
	ResultSize() int
	Close() error
}

// hannWindow returns a Hann window of length n, pre-multiplied into the
// FFT input per spec.md §4.2.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < n; i++ {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// CPUComplexEngine is the accelerator=none backend for signal=iq receivers:
// a full-length complex FFT built on github.com/cwbudde/algo-fft, the
// generic FFT plan library already in play for the per-client inverse FFT.
type CPUComplexEngine struct {
	mu     sync.Mutex
	fftLen int
	plan   *algofft.Plan[complex128]
	window []float64
	scratch []complex128
}

func NewCPUComplexEngine(fftSize int) (*CPUComplexEngine, error) {
	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("fft engine: build plan: %w", err)
	}
	return &CPUComplexEngine{
		fftLen:  fftSize,
		plan:    plan,
		window:  hannWindow(fftSize),
		scratch: make([]complex128, fftSize),
	}, nil
}

func (e *CPUComplexEngine) FFTSize() int    { return e.fftLen }
func (e *CPUComplexEngine) ResultSize() int { return e.fftLen }

func (e *CPUComplexEngine) Transform(out, in []complex64) error {
	if len(in) != e.fftLen {
		return fmt.Errorf("fft engine: input length %d != fft_size %d", len(in), e.fftLen)
	}
	if len(out) != e.fftLen {
		return fmt.Errorf("fft engine: output length %d != result_size %d", len(out), e.fftLen)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, s := range in {
		w := e.window[i]
		e.scratch[i] = complex(float64(real(s))*w, float64(imag(s))*w)
	}
	if err := e.plan.Forward(e.scratch, e.scratch); err != nil {
		return fmt.Errorf("fft engine: forward transform: %w", err)
	}
	for i, v := range e.scratch {
		out[i] = complex64(v)
	}
	return nil
}

func (e *CPUComplexEngine) Close() error { return nil }
