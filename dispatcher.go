package main

import (
	"log"
	"time"
)

// Dispatcher is the single per-frame fan-out loop described in
// spec.md §4.5: for each registered client it computes and enqueues the
// client-tailored packet, and never blocks on a full queue.
type Dispatcher struct {
	registry  *ClientRegistry
	waterfall *WaterfallBuilder
	metrics   *Metrics
}

func NewDispatcher(registry *ClientRegistry, waterfall *WaterfallBuilder, metrics *Metrics) *Dispatcher {
	return &Dispatcher{registry: registry, waterfall: waterfall, metrics: metrics}
}

// Dispatch runs one pass over every registered client for frame. The
// caller owns frame's initial reference; Dispatch acquires its own
// reference for the duration of the pass and releases it on return,
// it does not retain frame.
func (d *Dispatcher) Dispatch(frame *SpectrumFrame, fftResultSize int) {
	frame.Acquire()
	defer frame.Release()
	start := time.Now()
	d.registry.ForEachWaterfall(func(s *WaterfallSession) {
		d.dispatchWaterfall(frame, s)
	})
	d.registry.ForEachAudio(func(s *AudioSession) {
		d.dispatchAudio(frame, s)
	})
	if d.metrics != nil {
		d.metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	}
}

func (d *Dispatcher) dispatchWaterfall(frame *SpectrumFrame, s *WaterfallSession) {
	win := s.Window()
	l, r := win.L, win.R
	if l == 0 && r == 0 {
		r = int32(len(frame.Bins))
	}
	level, err := d.waterfall.Build(frame, int(l), int(r), s.TargetWidth())
	if err != nil {
		return
	}
	if s.Stream == nil {
		enc, err := newZstdSessionEncoder()
		if err != nil {
			log.Printf("dispatcher: waterfall session %s: %v", s.ID, err)
			return
		}
		s.Stream = enc
	}
	packetBytes, err := s.Stream.EncodeWaterfallPacket(frame.FrameNum, l, r, level.Quantised)
	if err != nil {
		log.Printf("dispatcher: waterfall session %s: encode: %v", s.ID, err)
		return
	}
	if !s.Queue.TryPush(FramePacket{Kind: FrameWaterfall, Bytes: packetBytes}) {
		if d.metrics != nil {
			d.metrics.ClientDropped.WithLabelValues("waterfall").Inc()
		}
	}
}

func (d *Dispatcher) dispatchAudio(frame *SpectrumFrame, s *AudioSession) {
	win := s.Window()
	if win.R <= win.L {
		return
	}

	s.mu.Lock()
	chain := s.Chain
	s.mu.Unlock()
	if chain == nil {
		return
	}

	result, err := chain.Process(frame, win.L, win.R, win.M, s.Muted(), s.SquelchEnabled())
	if err != nil {
		log.Printf("dispatcher: audio session %s: %v", s.ID, err)
		return
	}
	if d.metrics != nil {
		open := 0.0
		if result.SquelchOpen {
			open = 1.0
		}
		d.metrics.SquelchOpen.WithLabelValues(s.ID).Set(open)
	}
	if !result.Emit {
		return
	}

	env := EncodeAudioEnvelope(chain.CodecByte(), frame.FrameNum, win.L, win.M, win.R, result.Pwr, result.Payload)
	if !s.Queue.TryPush(FramePacket{Kind: FrameAudio, Bytes: env}) {
		if d.metrics != nil {
			d.metrics.ClientDropped.WithLabelValues("audio").Inc()
		}
	}
}
