package main

import (
	"math"
	"sync/atomic"
)

// DemodMode is the set of demodulation modes a WebSocket /audio client
// may select, per spec.md §6's `demodulation` command.
type DemodMode string

const (
	ModeUSB  DemodMode = "USB"
	ModeLSB  DemodMode = "LSB"
	ModeAM   DemodMode = "AM"
	ModeSAM  DemodMode = "SAM"
	ModeFM   DemodMode = "FM"
	ModeFMC  DemodMode = "FMC" // aliased to FM on the backend
	ModeWBFM DemodMode = "WBFM"
)

// normalizeMode aliases FMC to FM per spec.md §6.
func normalizeMode(m DemodMode) DemodMode {
	if m == ModeFMC {
		return ModeFM
	}
	return m
}

func validMode(m DemodMode) bool {
	switch m {
	case ModeUSB, ModeLSB, ModeAM, ModeSAM, ModeFM, ModeFMC, ModeWBFM:
		return true
	default:
		return false
	}
}

// AGCSpeed names the AGC attack/release preset, per spec.md §4.4 step 7.
type AGCSpeed string

const (
	AGCOff    AGCSpeed = "off"
	AGCSlow   AGCSpeed = "slow"
	AGCMedium AGCSpeed = "medium"
	AGCFast   AGCSpeed = "fast"
)

// agcTiming maps a speed preset to attack/release milliseconds. The exact
// numeric mapping is not pinned by source; these defaults match
// spec.md §4.4's stated approximations.
func agcTiming(speed AGCSpeed) (attackMs, releaseMs float64) {
	switch speed {
	case AGCSlow:
		return 5, 2000
	case AGCMedium:
		return 2, 500
	case AGCFast:
		return 1, 100
	default:
		return 0, 0
	}
}

// clientWindowState packs (l, r, m, level) into atomics so the DSP thread
// can read a client's tuning window without acquiring a lock per frame,
// per spec.md §4.5. l/r/level are stored directly; m (a float64 bin
// centre) is stored via its IEEE-754 bit pattern.
type clientWindowState struct {
	l     atomic.Int32
	r     atomic.Int32
	m     atomic.Uint64
	level atomic.Int32
}

func (s *clientWindowState) store(l, r int32, m float64, level int32) {
	s.l.Store(l)
	s.r.Store(r)
	s.m.Store(math.Float64bits(m))
	s.level.Store(level)
}

// ClientWindow is a snapshot of a client's requested frequency window,
// read without locking by the Dispatcher per frame.
type ClientWindow struct {
	L, R  int32
	M     float64
	Level int32 // -1 when unset; not read by WaterfallBuilder.Build, which always picks the best-fit level
}

func (s *clientWindowState) load() ClientWindow {
	return ClientWindow{
		L:     s.l.Load(),
		R:     s.r.Load(),
		M:     math.Float64frombits(s.m.Load()),
		Level: s.level.Load(),
	}
}

// validateWindow enforces spec.md §3's ClientWindow invariant:
// 0 ≤ l < r ≤ fftResultSize, and for audio clients r-l ≤ audioMaxFFTSize.
func validateWindow(l, r, fftResultSize int32, audioMaxFFTSize int32, isAudio bool) error {
	if l < 0 || l >= r || r > fftResultSize {
		return errInvalidWindow
	}
	if isAudio && r-l > audioMaxFFTSize {
		return errInvalidWindow
	}
	return nil
}

// audioMaxFFTSize implements spec.md §3's formula:
// ceil(audio_sps*fft_size/sps/4)*4.
func audioMaxFFTSize(audioSPS, fftSize, sps int) int32 {
	raw := float64(audioSPS) * float64(fftSize) / float64(sps) / 4.0
	return int32(math.Ceil(raw)) * 4
}
