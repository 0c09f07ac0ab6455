package main

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// CPURealEngine is the accelerator=none backend for signal=real receivers:
// it returns the positive-half spectrum only (fft_result_size = fft_size/2),
// built on gonum's real-input FFT rather than the complex algo-fft plan,
// grounded on the half-spectrum usage in the teacher's morse spectrum
// analyzer.
type CPURealEngine struct {
	mu      sync.Mutex
	fftLen  int
	result  int
	fft     *fourier.FFT
	window  []float64
	scratch []float64
}

func NewCPURealEngine(fftSize int) (*CPURealEngine, error) {
	if fftSize <= 0 || fftSize%2 != 0 {
		return nil, fmt.Errorf("fft engine: real backend requires an even fft_size, got %d", fftSize)
	}
	return &CPURealEngine{
		fftLen:  fftSize,
		result:  fftSize/2 + 1,
		fft:     fourier.NewFFT(fftSize),
		window:  hannWindow(fftSize),
		scratch: make([]float64, fftSize),
	}, nil
}

func (e *CPURealEngine) FFTSize() int    { return e.fftLen }
func (e *CPURealEngine) ResultSize() int { return e.fftLen / 2 }

func (e *CPURealEngine) Transform(out, in []complex64) error {
	if len(in) != e.fftLen {
		return fmt.Errorf("fft engine: input length %d != fft_size %d", len(in), e.fftLen)
	}
	if len(out) != e.fftLen/2 {
		return fmt.Errorf("fft engine: output length %d != result_size %d", len(out), e.fftLen/2)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, s := range in {
		e.scratch[i] = float64(real(s)) * e.window[i]
	}
	coeffs := e.fft.Coefficients(nil, e.scratch)
	// coeffs has length fftLen/2+1; drop the Nyquist bin to match
	// fft_result_size = fft_size/2 per the data model's invariant.
	for i := 0; i < e.fftLen/2; i++ {
		out[i] = complex64(coeffs[i])
	}
	return nil
}

func (e *CPURealEngine) Close() error { return nil }
