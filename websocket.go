package main

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// upgrader matches the teacher's large buffer sizing (binary waterfall/audio
// frames are bigger than the gorilla defaults) but enables CheckOrigin
// permissively, same as the teacher, since CORS policy lives in front of
// this process in production deployments.
var upgrader = websocket.Upgrader{
	ReadBufferSize:    8192,
	WriteBufferSize:   65536,
	EnableCompression: false,
	CheckOrigin:       func(r *http.Request) bool { return true },
}

// wsConn wraps a *websocket.Conn with a write mutex (gorilla forbids
// concurrent writers) and owns a dedicated writer goroutine draining a
// ClientQueue, so a slow client never blocks the Dispatcher.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (wc *wsConn) writeJSON(v interface{}) error {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	wc.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return wc.conn.WriteJSON(v)
}

func (wc *wsConn) writeBinary(b []byte) error {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	wc.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return wc.conn.WriteMessage(websocket.BinaryMessage, b)
}

// runQueueWriter drains queue into the connection until stop is closed or
// a write fails, draining remaining buffered frames with a bounded
// timeout on shutdown per spec.md §5's cancellation policy. Callers
// signal shutdown by closing stop and must wait for runQueueWriter to
// return (e.g. via a separate "finished" channel) before tearing down wc.
func runQueueWriter(wc *wsConn, queue *ClientQueue, stop <-chan struct{}) {
	for {
		select {
		case pkt := <-queue.Out():
			if err := wc.writeBinary(pkt.Bytes); err != nil {
				return
			}
		case <-stop:
			drainTimeout := time.After(2 * time.Second)
			for {
				select {
				case pkt := <-queue.Out():
					_ = wc.writeBinary(pkt.Bytes)
				case <-drainTimeout:
					return
				default:
					return
				}
			}
		}
	}
}

// clientIP extracts the remote IP, honoring X-Real-IP/X-Forwarded-For the
// way the teacher's HTTP layer does for sessions behind a reverse proxy.
func clientIP(r *http.Request) string {
	if xr := r.Header.Get("X-Real-IP"); xr != "" {
		return xr
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		return xf
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// wsCommand is the generic shape of a client->server JSON message, per
// spec.md §6's command table: every message carries a `cmd` field plus
// command-specific fields.
type wsCommand struct {
	Cmd string `json:"cmd"`

	ReceiverID string `json:"receiver_id"`

	L *int32 `json:"l"`
	R *int32 `json:"r"`
	M *float64 `json:"m"`
	Level *int `json:"level"`

	Demodulation string `json:"demodulation"`

	Mute *bool `json:"mute"`

	Enabled *bool `json:"enabled"`

	Speed   string `json:"speed"`
	Attack  *int   `json:"attack"`
	Release *int   `json:"release"`

	Username       string `json:"username"`
	Message        string `json:"message"`
	ReplyToID      string `json:"reply_to_id"`
	ReplyToUser    string `json:"reply_to_username"`
}

// settingsMessage is the initial JSON text frame spec.md §4.6 specifies,
// sent once per session and re-sent on receiver switch.
type settingsMessage struct {
	SPS               int      `json:"sps"`
	FFTSize           int      `json:"fft_size"`
	FFTResultSize     int      `json:"fft_result_size"`
	BaseFreq          float64  `json:"basefreq"`
	TotalBandwidth    int      `json:"total_bandwidth"`
	Defaults          ReceiverDefaults `json:"defaults"`
	WaterfallCompression string `json:"waterfall_compression"`
	AudioCompression  string   `json:"audio_compression"`
	Overlap           int      `json:"overlap"`
	FFTOverlap        int      `json:"fft_overlap"`
	Markers           []Marker `json:"markers"`
	Bands             []Band   `json:"bands"`
}

func buildSettingsMessage(cfg ReceiverConfig, overlay *Overlay) settingsMessage {
	return settingsMessage{
		SPS:                   cfg.SPS,
		FFTSize:               cfg.FFTSize,
		FFTResultSize:         cfg.FFTResultSize(),
		BaseFreq:              cfg.BaseFreq(),
		TotalBandwidth:        cfg.SPS,
		Defaults:              cfg.Defaults,
		WaterfallCompression:  "zstd",
		AudioCompression:      "adpcm",
		Overlap:               cfg.FFTSize / 2,
		FFTOverlap:            cfg.FFTSize / 2,
		Markers:               overlay.Markers(),
		Bands:                 overlay.Bands(),
	}
}

// handleAudioWS upgrades and services one /audio session end to end.
func (srv *Server) handleAudioWS(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	sess, err := srv.registry.RegisterAudio(ip, 64)
	if err != nil {
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.registry.RemoveAudio(sess.ID)
		return
	}
	wc := &wsConn{conn: conn}
	defer func() {
		srv.registry.RemoveAudio(sess.ID)
		if srv.metrics != nil {
			srv.metrics.SquelchOpen.DeleteLabelValues(sess.ID)
		}
		conn.Close()
	}()

	receiverID := r.URL.Query().Get("receiver")
	cfg, ok := srv.receiverConfig(receiverID)
	if !ok {
		return
	}
	sess.ReceiverID.Store(cfg.ID)
	if err := srv.attachAudioChain(sess, cfg); err != nil {
		log.Printf("websocket: audio session %s: %v", sess.ID, err)
		return
	}
	sess.SetWindow(0, int32(cfg.FFTResultSize()), float64(cfg.FFTResultSize())/2, -1)

	if err := wc.writeJSON(buildSettingsMessage(cfg, srv.overlay)); err != nil {
		return
	}

	stop := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		runQueueWriter(wc, sess.Queue, stop)
	}()

	for {
		var cmd wsCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			break
		}
		if !srv.cmdLimiter.AllowAudio(sess.ID) {
			continue
		}
		srv.handleAudioCommand(sess, cfg, wc, cmd)
	}
	close(stop)
	<-finished
	srv.cmdLimiter.RemoveSession(sess.ID)
}

func (srv *Server) handleAudioCommand(sess *AudioSession, cfg ReceiverConfig, wc *wsConn, cmd wsCommand) {
	switch cmd.Cmd {
	case "receiver":
		newCfg, ok := srv.receiverConfig(cmd.ReceiverID)
		if !ok {
			return
		}
		sess.ReceiverID.Store(newCfg.ID)
		if err := srv.attachAudioChain(sess, newCfg); err != nil {
			log.Printf("websocket: audio session %s: receiver switch: %v", sess.ID, err)
			return
		}
		sess.SetWindow(0, int32(newCfg.FFTResultSize()), float64(newCfg.FFTResultSize())/2, -1)
		_ = wc.writeJSON(buildSettingsMessage(newCfg, srv.overlay))
	case "window":
		if cmd.L == nil || cmd.R == nil {
			return
		}
		m := sess.Window().M
		if cmd.M != nil {
			m = *cmd.M
		}
		level := int32(-1)
		if cmd.Level != nil {
			level = int32(*cmd.Level)
		}
		if err := validateWindow(*cmd.L, *cmd.R, int32(cfg.FFTResultSize()), cfg.AudioMaxFFTSize(), true); err != nil {
			return
		}
		sess.SetWindow(*cmd.L, *cmd.R, m, level)
	case "demodulation":
		mode := DemodMode(cmd.Demodulation)
		if !validMode(mode) {
			return
		}
		sess.SetMode(mode)
		sess.mu.Lock()
		if sess.Chain != nil {
			sess.Chain.SetMode(mode)
		}
		sess.mu.Unlock()
	case "mute":
		if cmd.Mute != nil {
			sess.SetMute(*cmd.Mute)
		}
	case "squelch":
		if cmd.Enabled != nil {
			sess.SetSquelch(*cmd.Enabled)
		}
	case "agc":
		speed := AGCSpeed(cmd.Speed)
		switch speed {
		case AGCOff, AGCSlow, AGCMedium, AGCFast:
			sess.SetAGCSpeed(speed)
			sess.mu.Lock()
			if sess.Chain != nil {
				sess.Chain.SetAGCSpeed(speed)
			}
			sess.mu.Unlock()
		}
		if cmd.Attack != nil && cmd.Release != nil {
			attackMs, releaseMs := float64(*cmd.Attack), float64(*cmd.Release)
			sess.mu.Lock()
			if sess.Chain != nil {
				sess.Chain.SetAGCTiming(attackMs, releaseMs)
			}
			sess.mu.Unlock()
		}
	}
}

func (srv *Server) attachAudioChain(sess *AudioSession, cfg ReceiverConfig) error {
	codec, err := NewAudioCodec(cfg.AudioCodec, cfg.AudioSPS)
	if err != nil {
		return err
	}
	chain := NewAudioChain(cfg.AudioSPS, cfg.Defaults.Mode, codec)
	sess.SetMode(cfg.Defaults.Mode)
	sess.SetSquelch(cfg.Defaults.Squelch)
	sess.mu.Lock()
	sess.Chain = chain
	sess.mu.Unlock()
	return nil
}

// handleWaterfallWS upgrades and services one /waterfall session.
func (srv *Server) handleWaterfallWS(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	targetWidth := 1024
	sess, err := srv.registry.RegisterWaterfall(ip, 8, targetWidth)
	if err != nil {
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.registry.RemoveWaterfall(sess.ID)
		return
	}
	wc := &wsConn{conn: conn}
	defer func() {
		if sess.Stream != nil {
			sess.Stream.Close()
		}
		srv.registry.RemoveWaterfall(sess.ID)
		conn.Close()
	}()

	receiverID := r.URL.Query().Get("receiver")
	cfg, ok := srv.receiverConfig(receiverID)
	if !ok {
		return
	}
	sess.ReceiverID.Store(cfg.ID)
	sess.SetWindow(ClientWindow{L: 0, R: int32(cfg.FFTResultSize())})

	if err := wc.writeJSON(buildSettingsMessage(cfg, srv.overlay)); err != nil {
		return
	}

	stop := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		runQueueWriter(wc, sess.Queue, stop)
	}()

	for {
		var cmd wsCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			break
		}
		if !srv.cmdLimiter.AllowWaterfall(sess.ID) {
			continue
		}
		srv.handleWaterfallCommand(sess, cfg, wc, cmd)
	}
	close(stop)
	<-finished
	srv.cmdLimiter.RemoveSession(sess.ID)
}

func (srv *Server) handleWaterfallCommand(sess *WaterfallSession, cfg ReceiverConfig, wc *wsConn, cmd wsCommand) {
	switch cmd.Cmd {
	case "receiver":
		newCfg, ok := srv.receiverConfig(cmd.ReceiverID)
		if !ok {
			return
		}
		sess.ReceiverID.Store(newCfg.ID)
		sess.SetWindow(ClientWindow{L: 0, R: int32(newCfg.FFTResultSize())})
		_ = wc.writeJSON(buildSettingsMessage(newCfg, srv.overlay))
	case "window":
		if cmd.L == nil || cmd.R == nil {
			return
		}
		if err := validateWindow(*cmd.L, *cmd.R, int32(cfg.FFTResultSize()), 0, false); err != nil {
			return
		}
		win := ClientWindow{L: *cmd.L, R: *cmd.R}
		if cmd.M != nil {
			win.M = *cmd.M
		}
		sess.SetWindow(win)
	}
}

// handleEventsWS services a /events heartbeat subscriber.
func (srv *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	sess, err := srv.registry.RegisterEvents(ip, 16)
	if err != nil {
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.registry.RemoveEvents(sess.ID)
		return
	}
	wc := &wsConn{conn: conn}
	defer func() {
		srv.registry.RemoveEvents(sess.ID)
		conn.Close()
	}()

	stop := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		runQueueWriter(wc, sess.Queue, stop)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(stop)
	<-finished
}

// handleChatWS services a /chat participant: inbound chat commands are
// broadcast to every chat session, the sender included, via their queues.
func (srv *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	sess, err := srv.registry.RegisterChat(ip, 32)
	if err != nil {
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.registry.RemoveChat(sess.ID)
		return
	}
	wc := &wsConn{conn: conn}
	defer func() {
		srv.registry.RemoveChat(sess.ID)
		conn.Close()
	}()

	stop := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			select {
			case pkt := <-sess.Queue.Out():
				if err := wc.writeJSON(json.RawMessage(pkt.Bytes)); err != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()

	for {
		var cmd wsCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			break
		}
		if cmd.Cmd != "chat" {
			continue
		}
		sess.Username.Store(cmd.Username)
		payload, err := json.Marshal(map[string]string{
			"cmd":                "chat",
			"username":           cmd.Username,
			"message":            cmd.Message,
			"reply_to_id":        cmd.ReplyToID,
			"reply_to_username":  cmd.ReplyToUser,
		})
		if err != nil {
			continue
		}
		srv.registry.ForEachChat(func(other *ChatSession) {
			other.Queue.TryPush(FramePacket{Kind: FrameChat, Bytes: payload})
		})
	}
	close(stop)
	<-finished
}
