package main

import "math"

// dB conversion constants transcribed from the teacher's GPU shader path
// (natural-log-to-dB and power-offset doubling), per spec.md §4.3.
const (
	lnToDbScale    = 8.685889638 // 10/ln(10)
	offsetDbPerBit = 6.020599913
	minPower       = 1e-30
)

// WaterfallLevel is one layer of the downsample pyramid for a single
// dispatch: a quantised run of signed-8-bit intensity bytes.
type WaterfallLevel struct {
	Stride    int
	Width     int
	Quantised []int8
}

// WaterfallBuilder computes per-bin power, quantises to intensity bytes,
// and serves pyramid levels on demand for a client's requested window and
// target width.
type WaterfallBuilder struct {
	smeterOffset    float64
	brightnessOffset float64
	powerOffsetBits float64
}

func NewWaterfallBuilder(smeterOffset, brightnessOffset, powerOffsetBits float64) *WaterfallBuilder {
	return &WaterfallBuilder{
		smeterOffset:     smeterOffset,
		brightnessOffset: brightnessOffset,
		powerOffsetBits:  powerOffsetBits,
	}
}

func clampI8(v float64) int8 {
	if v < -128 {
		return -128
	}
	if v > 127 {
		return 127
	}
	return int8(math.Round(v))
}

// quantise converts one bin's power to a signed-8-bit intensity value
// per spec.md §4.3's formula.
func (w *WaterfallBuilder) quantise(p float64) int8 {
	if p < minPower {
		p = minPower
	}
	db := lnToDbScale*math.Log(p) + w.smeterOffset + w.brightnessOffset + w.powerOffsetBits*offsetDbPerBit
	return clampI8(db)
}

// bestLevel chooses the pyramid level ℓ minimising |(r-l)/2^ℓ - target|,
// ties breaking toward the finer (smaller) level, per spec.md §8.
func bestLevel(span, target int) int {
	if target <= 0 {
		return 0
	}
	bestL := 0
	bestDiff := math.MaxFloat64
	for l := 0; l <= 20; l++ {
		width := span >> uint(l)
		if width == 0 {
			break
		}
		diff := math.Abs(float64(width) - float64(target))
		if diff < bestDiff-1e-9 {
			bestDiff = diff
			bestL = l
		}
	}
	return bestL
}

// Build computes the intensity bytes for the slice frame.Bins[l:r], at the
// pyramid level that best matches targetWidth, using peak-hold (maximum
// power within a group) downsampling per spec.md §4.3.
func (w *WaterfallBuilder) Build(frame *SpectrumFrame, l, r, targetWidth int) (WaterfallLevel, error) {
	if l < 0 || r > len(frame.Bins) || l >= r {
		return WaterfallLevel{}, errInvalidWindow
	}
	span := r - l
	level := bestLevel(span, targetWidth)
	stride := 1 << uint(level)

	width := (span + stride - 1) / stride
	out := make([]int8, width)
	for i := 0; i < width; i++ {
		start := l + i*stride
		end := start + stride
		if end > r {
			end = r
		}
		maxP := 0.0
		for j := start; j < end; j++ {
			b := frame.Bins[j]
			p := float64(real(b))*float64(real(b)) + float64(imag(b))*float64(imag(b))
			if p > maxP {
				maxP = p
			}
		}
		out[i] = w.quantise(maxP)
	}
	return WaterfallLevel{Stride: stride, Width: width, Quantised: out}, nil
}
