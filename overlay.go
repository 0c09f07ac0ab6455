package main

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// overlayData is the immutable snapshot swapped atomically by Overlay's
// reload ticker.
type overlayData struct {
	markers []Marker
	bands   []Band
}

// Overlay serves markers.yaml/bands.yaml to sessions, hot-reloading both
// files on a ticker per SPEC_FULL.md's "overlay hot-reload" addition and
// spec.md §5's read-only-to-the-DSP-path policy: the atomic pointer swap
// never blocks a reader.
type Overlay struct {
	markersPath string
	bandsPath   string
	data        atomic.Pointer[overlayData]
}

func NewOverlay(markersPath, bandsPath string) *Overlay {
	o := &Overlay{markersPath: markersPath, bandsPath: bandsPath}
	o.reload()
	return o
}

func (o *Overlay) reload() {
	var markers []Marker
	var bands []Band
	if err := loadOverlay(o.markersPath, &markers); err != nil {
		log.Printf("overlay: reload markers: %v", err)
	}
	if err := loadOverlay(o.bandsPath, &bands); err != nil {
		log.Printf("overlay: reload bands: %v", err)
	}
	o.data.Store(&overlayData{markers: markers, bands: bands})
}

func (o *Overlay) Markers() []Marker {
	if d := o.data.Load(); d != nil {
		return d.markers
	}
	return nil
}

func (o *Overlay) Bands() []Band {
	if d := o.data.Load(); d != nil {
		return d.bands
	}
	return nil
}

// Run reloads both overlay files roughly every minute until ctx is
// cancelled, per spec.md §5.
func (o *Overlay) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.reload()
		}
	}
}
