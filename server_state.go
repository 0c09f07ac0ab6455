package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Server holds every shared, read-mostly piece of process state: the
// loaded configuration, the client registry, the overlay data, metrics,
// and the set of running receivers. HTTP and WebSocket handlers are
// methods on *Server.
type Server struct {
	cfg        ServerConfig
	registry   *ClientRegistry
	overlay    *Overlay
	metrics    *Metrics
	ipLimiter  *IPConnectionRateLimiter
	cmdLimiter *CommandRateLimiter

	mu        sync.RWMutex
	receivers map[string]ReceiverConfig
	running   map[string]*Receiver
}

// NewServer wires a Server from loaded configuration. Receivers are
// constructed but not started; call StartReceivers to launch their DSP
// loops.
func NewServer(cfg ServerConfig, receivers map[string]ReceiverConfig, reg prometheus.Registerer) *Server {
	return &Server{
		cfg:        cfg,
		registry:   NewClientRegistry(cfg.Limits.toLimits()),
		overlay:    NewOverlay(cfg.OverlayDir+"/markers.yaml", cfg.OverlayDir+"/bands.yaml"),
		metrics:    NewMetrics(reg),
		ipLimiter:  NewIPConnectionRateLimiter(cfg.Limits.ConnRateLimit),
		cmdLimiter: NewCommandRateLimiter(cfg.Limits.CmdRateLimit),
		receivers:  receivers,
		running:    make(map[string]*Receiver),
	}
}

func (srv *Server) receiverConfig(id string) (ReceiverConfig, bool) {
	if id == "" {
		id = srv.cfg.ActiveReceiverID
	}
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	cfg, ok := srv.receivers[id]
	return cfg, ok
}

// StartReceivers opens each configured receiver's SampleSource and
// launches its DSP loop on a dedicated goroutine (itself OS-thread-locked
// inside Receiver.Run), per spec.md §5.
func (srv *Server) StartReceivers(ctx context.Context) error {
	waterfall := NewWaterfallBuilder(0, 0, 0)
	dispatcher := NewDispatcher(srv.registry, waterfall, srv.metrics)

	for id, cfg := range srv.receivers {
		source, err := openSampleSource(cfg)
		if err != nil {
			return fmt.Errorf("server: open source for receiver %q: %w", id, err)
		}
		rv, err := NewReceiver(cfg, source, dispatcher, srv.metrics)
		if err != nil {
			return fmt.Errorf("server: build receiver %q: %w", id, err)
		}
		srv.mu.Lock()
		srv.running[id] = rv
		srv.mu.Unlock()

		go func(id string, rv *Receiver) {
			if err := rv.Run(ctx); err != nil {
				log.Printf("server: receiver %q stopped: %v", id, err)
			}
		}(id, rv)
	}
	return nil
}

func openSampleSource(cfg ReceiverConfig) (SampleSource, error) {
	switch cfg.SourceKind {
	case "", "stdin":
		r, err := openCommandStdout(cfg.SourceCommand)
		if err != nil {
			return nil, err
		}
		return NewStdinSource(r), nil
	case "rtp":
		return NewRTPMulticastSource(cfg.MulticastGroup, nil)
	default:
		return nil, fmt.Errorf("sample source: unknown source_kind %q", cfg.SourceKind)
	}
}

// RunMetricsReporter publishes ClientRegistry session counts to
// Prometheus on a ticker until ctx is cancelled, mirroring Overlay.Run's
// ticker-reload shape.
func (srv *Server) RunMetricsReporter(ctx context.Context) {
	if srv.metrics == nil {
		return
	}
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			srv.metrics.ReportSessionCounts(srv.registry)
		}
	}
}

// Shutdown stops every running receiver's DSP loop by cancelling ctx at
// the call site (the caller owns the context passed to StartReceivers)
// and closes each receiver's underlying source.
func (srv *Server) Shutdown() {
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	for id, rv := range srv.running {
		if err := rv.Close(); err != nil {
			log.Printf("server: closing receiver %q: %v", id, err)
		}
	}
}
