package main

import "sync/atomic"

// SpectrumFrame is a reference-counted, read-only view over one post-FFT
// frame. It is created once per tick by the receiver's DSP thread and
// shared across every consumer (waterfall sessions, audio sessions) of
// that tick without copying; the underlying Bins slice must never be
// mutated by a consumer.
type SpectrumFrame struct {
	Bins     []complex64
	FrameNum uint64
	BaseFreq float64 // Hz, per ReceiverConfig basefreq at capture time
	SPS      int

	refs *int32
	pool *framePool
}

// NewSpectrumFrame wraps bins (which the caller must not reuse) in a frame
// with an initial reference count of one.
func NewSpectrumFrame(bins []complex64, frameNum uint64, baseFreq float64, sps int) *SpectrumFrame {
	refs := int32(1)
	return &SpectrumFrame{
		Bins:     bins,
		FrameNum: frameNum,
		BaseFreq: baseFreq,
		SPS:      sps,
		refs:     &refs,
	}
}

// Acquire increments the reference count and returns the same frame,
// making it safe to hand to an additional independent consumer (e.g. the
// Dispatcher holding its own reference for the length of one pass).
func (f *SpectrumFrame) Acquire() *SpectrumFrame {
	atomic.AddInt32(f.refs, 1)
	return f
}

// Release decrements the reference count; when it reaches zero the
// frame's backing storage is returned to its pool, if any.
func (f *SpectrumFrame) Release() {
	if atomic.AddInt32(f.refs, -1) == 0 && f.pool != nil {
		f.pool.put(f.Bins)
	}
}

// framePool recycles []complex64 backing arrays of a fixed length across
// frames to avoid an allocation on every FFT tick.
type framePool struct {
	length int
	free   chan []complex64
}

func newFramePool(length, depth int) *framePool {
	return &framePool{length: length, free: make(chan []complex64, depth)}
}

func (p *framePool) get() []complex64 {
	select {
	case b := <-p.free:
		return b
	default:
		return make([]complex64, p.length)
	}
}

func (p *framePool) put(b []complex64) {
	if len(b) != p.length {
		return
	}
	select {
	case p.free <- b:
	default:
	}
}

// newFrame allocates (or recycles) a bins buffer of the pool's
// length and returns a frame bound to that pool for recycling on Release.
func (p *framePool) newFrame(frameNum uint64, baseFreq float64, sps int) *SpectrumFrame {
	f := NewSpectrumFrame(p.get(), frameNum, baseFreq, sps)
	f.pool = p
	return f
}
