package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHannWindowIsSymmetricAndBounded(t *testing.T) {
	w := hannWindow(8)
	require := assert.New(t)
	require.Len(w, 8)
	for i, v := range w {
		require.GreaterOrEqual(v, 0.0)
		require.LessOrEqual(v, 1.0)
		mirrored := w[len(w)-1-i]
		require.InDelta(v, mirrored, 1e-9)
	}
	// Endpoints of a symmetric Hann window (n-1 denominator) taper to zero.
	assert.InDelta(t, 0, w[0], 1e-9)
}

func TestHannWindowSingleSample(t *testing.T) {
	w := hannWindow(1)
	assert.Equal(t, []float64{1}, w)
}
