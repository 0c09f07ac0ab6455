package main

import (
	"fmt"
	"math"
	"sync"

	algofft "github.com/cwbudde/algo-fft"
)

// AudioChain is the per-audio-client DSP pipeline described in
// spec.md §4.4: slice, recentre, inverse FFT, overlap-add, demodulate,
// DC-remove, AGC, squelch, quantise, codec-encode. It is exclusively
// owned by its session; Process and the setters serialise on the chain's
// own mu.
type AudioChain struct {
	audioSPS int

	window  int // current IFFT length (r-l), rebuilt when it changes
	plan    *algofft.Plan[complex128]
	tail    []complex64 // overlap-add tail of length window/2
	scratch []complex128

	demod    *Demodulator
	dc       *DCBlocker
	agc      *AGC
	squelch  SquelchState
	codec    AudioCodec

	mu sync.Mutex
}

// NewAudioChain builds a chain for the given audio sample rate, initial
// demodulation mode, and codec.
func NewAudioChain(audioSPS int, mode DemodMode, codec AudioCodec) *AudioChain {
	return &AudioChain{
		audioSPS: audioSPS,
		demod:    NewDemodulator(mode, audioSPS),
		dc:       NewDCBlocker(audioSPS, defaultDCTimeConstant),
		agc:      NewAGC(audioSPS, AGCMedium),
		codec:    codec,
	}
}

func (c *AudioChain) SetMode(mode DemodMode) {
	c.mu.Lock()
	c.demod.SetMode(mode)
	c.mu.Unlock()
}

func (c *AudioChain) SetAGCSpeed(speed AGCSpeed) {
	c.mu.Lock()
	c.agc.SetSpeed(speed)
	c.mu.Unlock()
}

// SetAGCTiming overrides the chain's AGC attack/release with explicit
// millisecond values, per spec.md §6's `agc` command optional
// attack/release fields.
func (c *AudioChain) SetAGCTiming(attackMs, releaseMs float64) {
	c.mu.Lock()
	c.agc.SetTiming(attackMs, releaseMs)
	c.mu.Unlock()
}

func (c *AudioChain) CodecByte() uint8 { return c.codec.CodecByte() }

func (c *AudioChain) ensurePlan(window int) error {
	if c.plan != nil && c.window == window {
		return nil
	}
	plan, err := algofft.NewPlan64(window)
	if err != nil {
		return fmt.Errorf("audio chain: build ifft plan: %w", err)
	}
	c.plan = plan
	c.window = window
	c.tail = make([]complex64, window/2)
	c.scratch = make([]complex128, window)
	return nil
}

// AudioFrameResult carries the encoded emission and its envelope metadata
// for one client, one SpectrumFrame.
type AudioFrameResult struct {
	Emit        bool // false when muted or squelch-closed, per spec.md §4.4
	SquelchOpen bool // current squelch gate state, reported regardless of Emit
	Payload     []byte
	Pwr         float32
}

// Process runs one full pass of the chain over frame's bins[l:r], with
// tuned centre m, for the window's current mode/mute/squelch settings.
func (c *AudioChain) Process(frame *SpectrumFrame, l, r int32, m float64, muted, squelchEnabled bool) (AudioFrameResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if l < 0 || r > int32(len(frame.Bins)) || l >= r {
		return AudioFrameResult{}, errInvalidWindow
	}
	slice := frame.Bins[l:r]
	window := len(slice)
	if window < 2 {
		return AudioFrameResult{}, errInvalidWindow
	}

	pwr := meanPower(slice)

	if err := c.ensurePlan(window); err != nil {
		return AudioFrameResult{}, err
	}

	// Recentre: rotate so the bin nearest m becomes DC.
	centerBin := int(math.Round(m)) - int(l)
	for i := range slice {
		srcIdx := (i + centerBin) % window
		if srcIdx < 0 {
			srcIdx += window
		}
		c.scratch[i] = complex128(slice[srcIdx])
	}

	if err := c.plan.Inverse(c.scratch, c.scratch); err != nil {
		return AudioFrameResult{}, fmt.Errorf("audio chain: inverse transform: %w", err)
	}

	timeDomain := make([]complex64, window)
	for i, v := range c.scratch {
		timeDomain[i] = complex64(v)
	}

	half := window / 2
	added := make([]complex64, half)
	for i := 0; i < half; i++ {
		added[i] = timeDomain[i] + c.tail[i]
	}
	copy(c.tail, timeDomain[half:])

	if muted {
		return AudioFrameResult{Emit: false, SquelchOpen: c.squelch.Open, Pwr: float32(pwr)}, nil
	}

	if squelchEnabled {
		scaled := squelchScoreFromComplex(slice)
		c.squelch.Update(scaled)
	} else {
		c.squelch.Open = true
	}

	// Steps 5-9 (demod, DC removal, AGC, quantise) always run, squelch
	// state notwithstanding, so the DC blocker's accumulator and the
	// AGC's ring buffer/smoothed gain never go stale while squelch is
	// closed: only step 10 (codec encode) and emission are gated below.
	demodOut := make([]float32, half)
	if err := c.demod.Demodulate(demodOut, added); err != nil {
		return AudioFrameResult{}, err
	}

	dcOut := make([]float32, half)
	c.dc.Process(dcOut, demodOut)

	agcOut := make([]float32, half)
	c.agc.Process(agcOut, dcOut)

	pcm := make([]int16, half)
	for i, s := range agcOut {
		v := s * 32767.0
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		pcm[i] = int16(v)
	}

	if !c.squelch.Open {
		return AudioFrameResult{Emit: false, SquelchOpen: false, Pwr: float32(pwr)}, nil
	}

	payload, err := c.codec.Encode(pcm)
	if err != nil {
		return AudioFrameResult{}, fmt.Errorf("audio chain: codec encode: %w", err)
	}

	return AudioFrameResult{Emit: true, SquelchOpen: true, Payload: payload, Pwr: float32(pwr)}, nil
}

func meanPower(bins []complex64) float64 {
	if len(bins) == 0 {
		return 0
	}
	var sum float64
	for _, b := range bins {
		sum += float64(real(b))*float64(real(b)) + float64(imag(b))*float64(imag(b))
	}
	return sum / float64(len(bins))
}

func squelchScoreFromComplex(bins []complex64) float64 {
	p := make([]float64, len(bins))
	for i, b := range bins {
		p[i] = float64(real(b))*float64(real(b)) + float64(imag(b))*float64(imag(b))
	}
	return squelchScore(p)
}
