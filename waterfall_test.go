package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBestLevelTieBreaksToFinerLevel(t *testing.T) {
	// span=100 at level 0 gives width 100 (diff 0), level 1 gives width 50
	// (diff 50) -- no tie here, but span=16 target=4: level 1 -> 8 (diff 4),
	// level 2 -> 4 (diff 0). Exact match at level 2 wins outright.
	assert.Equal(t, 2, bestLevel(16, 4))

	// Construct an exact tie: span=12, target=... level 1 width=6, level 0
	// width=12; distances from target=9 are 3 and 3. Tie goes to the
	// finer (smaller) level, i.e. level 0.
	assert.Equal(t, 0, bestLevel(12, 9))
}

func TestBestLevelZeroTarget(t *testing.T) {
	assert.Equal(t, 0, bestLevel(1024, 0))
}

func TestQuantiseClampsToSignedByteRange(t *testing.T) {
	w := NewWaterfallBuilder(0, 0, 0)
	assert.Equal(t, int8(-128), w.quantise(0))
	assert.Equal(t, int8(127), w.quantise(1e30))
}

func TestBuildProducesBytesInRange(t *testing.T) {
	w := NewWaterfallBuilder(10, -5, 0)
	bins := make([]complex64, 256)
	for i := range bins {
		bins[i] = complex(float32(i%17)-8, float32(i%11)-5)
	}
	frame := NewSpectrumFrame(bins, 1, 100900000, 2048000)

	level, err := w.Build(frame, 0, 256, 32)
	require.NoError(t, err)
	assert.Equal(t, bestLevel(256, 32), func() int {
		for l := 0; l <= 20; l++ {
			if (1 << uint(l)) == level.Stride {
				return l
			}
		}
		return -1
	}())
	for _, v := range level.Quantised {
		assert.GreaterOrEqual(t, int(v), -128)
		assert.LessOrEqual(t, int(v), 127)
	}
}

func TestBuildRejectsInvalidWindow(t *testing.T) {
	w := NewWaterfallBuilder(0, 0, 0)
	frame := NewSpectrumFrame(make([]complex64, 10), 1, 0, 0)
	_, err := w.Build(frame, 5, 5, 4)
	assert.ErrorIs(t, err, errInvalidWindow)
	_, err = w.Build(frame, 0, 11, 4)
	assert.ErrorIs(t, err, errInvalidWindow)
}
