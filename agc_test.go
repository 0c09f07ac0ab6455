package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAGCOffBypassesGain(t *testing.T) {
	a := NewAGC(12000, AGCOff)
	in := []float32{0.1, 0.2, -0.3}
	out := make([]float32, 3)
	a.Process(out, in)
	assert.Equal(t, in, out)
}

func TestAGCAttacksDownWhenSignalGetsLoud(t *testing.T) {
	a := NewAGC(12000, AGCFast)

	// Ramp the gain up against a quiet signal first.
	quiet := make([]float32, 3000)
	for i := range quiet {
		quiet[i] = 0.001
	}
	quietOut := make([]float32, len(quiet))
	a.Process(quietOut, quiet)
	boosted := quietOut[len(quietOut)-1] / quiet[len(quiet)-1]
	assert.Greater(t, boosted, float32(1.0), "gain must have risen above unity on a quiet signal")

	// Now a loud signal arrives; the fast attack path must bring the
	// ratio back down well below the boosted level within a short run.
	loud := make([]float32, 200)
	for i := range loud {
		loud[i] = 0.9
	}
	loudOut := make([]float32, len(loud))
	a.Process(loudOut, loud)
	endRatio := loudOut[len(loudOut)-1] / loud[len(loud)-1]
	assert.Less(t, endRatio, boosted, "gain must come down once the signal gets loud")
}

func TestAGCNeverExceedsMaxGainOnQuietSignal(t *testing.T) {
	a := NewAGC(12000, AGCFast)
	n := 2000
	in := make([]float32, n)
	for i := range in {
		in[i] = 0.0001
	}
	out := make([]float32, n)
	a.Process(out, in)

	for i, v := range out {
		ratio := float64(v) / float64(in[i])
		assert.LessOrEqual(t, ratio, agcMaxGain+1e-6)
	}
}

func TestTimeConstantCoefMonotonic(t *testing.T) {
	fast := timeConstantCoef(100, 12000)
	slow := timeConstantCoef(2000, 12000)
	assert.Greater(t, fast, slow, "a shorter time constant reacts faster, i.e. larger coefficient")
}
