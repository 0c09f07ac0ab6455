package main

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// serverInfo is the shape of GET /server-info.json, per spec.md §6.
type serverInfo struct {
	Name        string `json:"name"`
	Operator    string `json:"operator"`
	Antenna     string `json:"antenna"`
	Grid        string `json:"grid"`
	Audio       int    `json:"audio_users"`
	Waterfall   int    `json:"waterfall_users"`
	CenterFreq  uint64 `json:"center_frequency"`
	Bandwidth   int    `json:"bandwidth"`
}

type receiverInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Routes registers every HTTP and WebSocket endpoint spec.md §6 names.
func (srv *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/server-info.json", srv.handleServerInfo)
	mux.HandleFunc("/receivers.json", srv.handleReceiversList)
	mux.HandleFunc("/audio", srv.rateLimitUpgrade(srv.handleAudioWS))
	mux.HandleFunc("/waterfall", srv.rateLimitUpgrade(srv.handleWaterfallWS))
	mux.HandleFunc("/events", srv.rateLimitUpgrade(srv.handleEventsWS))
	mux.HandleFunc("/chat", srv.rateLimitUpgrade(srv.handleChatWS))

	if srv.cfg.Prometheus.Enabled {
		mux.Handle("/metrics", srv.allowMetricsHost(promhttp.Handler()))
	}

	fs := http.FileServer(http.Dir(srv.cfg.HTMLRoot))
	mux.Handle("/", fs)
}

// rateLimitUpgrade wraps a WebSocket handler with a per-IP connection-rate
// check, answering HTTP 429 when an IP opens connections too fast. The
// per-endpoint session caps are enforced separately by the handlers
// through the ClientRegistry.
func (srv *Server) rateLimitUpgrade(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !srv.ipLimiter.AllowConnection(ip) {
			http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
			return
		}
		h(w, r)
	}
}

// allowMetricsHost gates /metrics by PrometheusConfig.AllowedHosts, per
// the teacher's own Prometheus AllowedHosts allowlist.
func (srv *Server) allowMetricsHost(h http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !srv.cfg.Prometheus.allows(clientIP(r)) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		h.ServeHTTP(w, r)
	}
}

func (srv *Server) handleServerInfo(w http.ResponseWriter, r *http.Request) {
	active, ok := srv.receiverConfig("")
	var center uint64
	var bw int
	if ok {
		center = active.FrequencyHz
		bw = active.SPS
	}
	audio, waterfall, _, _ := srv.registry.Counts()
	info := serverInfo{
		Name:       srv.cfg.Name,
		Operator:   srv.cfg.Operator,
		Antenna:    srv.cfg.Antenna,
		Grid:       srv.cfg.Grid,
		Audio:      audio,
		Waterfall:  waterfall,
		CenterFreq: center,
		Bandwidth:  bw,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}

func (srv *Server) handleReceiversList(w http.ResponseWriter, r *http.Request) {
	srv.mu.RLock()
	list := make([]receiverInfo, 0, len(srv.receivers))
	for id, cfg := range srv.receivers {
		list = append(list, receiverInfo{ID: id, DisplayName: cfg.DisplayName})
	}
	srv.mu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}
