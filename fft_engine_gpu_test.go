package main

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGPUComplexEngineRejectsUnknownAccelerator(t *testing.T) {
	_, err := NewGPUComplexEngine(AcceleratorNone, 64)
	assert.Error(t, err)
}

func TestGPUComplexEngineTransformMatchesCPUBackend(t *testing.T) {
	e, err := NewGPUComplexEngine(AcceleratorCLFFT, 64)
	require.NoError(t, err)
	assert.Equal(t, 64, e.FFTSize())
	assert.Equal(t, 64, e.ResultSize())

	in := make([]complex64, 64)
	for i := range in {
		in[i] = complex(float32(i%5)-2, 0)
	}
	out := make([]complex64, 64)
	require.NoError(t, e.Transform(out, in))
	assert.NotZero(t, out[0])
}

func TestGPUQueueRejectsConcurrentSubmission(t *testing.T) {
	var q gpuQueue
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = q.submit(func() error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	err := q.submit(func() error { return nil })
	assert.Error(t, err)

	close(release)
	wg.Wait()
}

func TestNewFftEngineSelectsRealBackendRegardlessOfAccelerator(t *testing.T) {
	e, err := NewFftEngine("real", AcceleratorCLFFT, 64)
	require.NoError(t, err)
	defer e.Close()
	_, ok := e.(*CPURealEngine)
	assert.True(t, ok)
}

func TestNewFftEngineSelectsCPUComplexForNoneAccelerator(t *testing.T) {
	e, err := NewFftEngine("iq", AcceleratorNone, 64)
	require.NoError(t, err)
	defer e.Close()
	_, ok := e.(*CPUComplexEngine)
	assert.True(t, ok)
}

func TestNewFftEngineSelectsGPUComplexForVKFFT(t *testing.T) {
	e, err := NewFftEngine("iq", AcceleratorVKFFT, 64)
	require.NoError(t, err)
	defer e.Close()
	_, ok := e.(*GPUComplexEngine)
	assert.True(t, ok)
}

func TestNewFftEngineRejectsUnknownAccelerator(t *testing.T) {
	_, err := NewFftEngine("iq", Accelerator("bogus"), 64)
	assert.Error(t, err)
}
