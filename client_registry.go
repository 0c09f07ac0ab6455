package main

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ClientKind partitions the registry per spec.md §4.5.
type ClientKind string

const (
	KindAudio     ClientKind = "audio"
	KindWaterfall ClientKind = "waterfall"
	KindEvents    ClientKind = "events"
	KindChat      ClientKind = "chat"
)

// Limits bounds admission per client kind and per source IP, per
// spec.md §6's `limits.audio|waterfall|events|ws_per_ip`.
type Limits struct {
	Audio     int
	Waterfall int
	Events    int
	Chat      int
	PerIP     int
}

// AudioSession is one /audio client's registry entry. Tuning parameters
// are split: the window/mode/mute/squelch fields are atomics the DSP
// thread reads lock-free every frame; the Chain pointer sits behind mu,
// and the AudioChain itself (FFT plan, overlap tail, codec state)
// serialises its own mutation with its own lock.
type AudioSession struct {
	ID         string
	IP         string
	ReceiverID atomic.Value // string
	CreatedAt  time.Time

	window clientWindowState
	mode   atomic.Value // DemodMode
	mute   atomic.Bool
	squelchEnabled atomic.Bool
	agcSpeed atomic.Value // AGCSpeed

	mu    sync.Mutex
	Chain *AudioChain

	Queue *ClientQueue
}

func newAudioSession(id, ip string, queueDepth int) *AudioSession {
	s := &AudioSession{
		ID:        id,
		IP:        ip,
		CreatedAt: time.Now(),
		Queue:     NewClientQueue(queueDepth),
	}
	s.mode.Store(ModeUSB)
	s.agcSpeed.Store(AGCMedium)
	s.squelchEnabled.Store(true)
	return s
}

func (s *AudioSession) SetWindow(l, r int32, m float64, level int32) {
	s.window.store(l, r, m, level)
}

func (s *AudioSession) Window() ClientWindow { return s.window.load() }

func (s *AudioSession) SetMode(m DemodMode)   { s.mode.Store(normalizeMode(m)) }
func (s *AudioSession) Mode() DemodMode       { return s.mode.Load().(DemodMode) }
func (s *AudioSession) SetMute(b bool)        { s.mute.Store(b) }
func (s *AudioSession) Muted() bool           { return s.mute.Load() }
func (s *AudioSession) SetSquelch(b bool)     { s.squelchEnabled.Store(b) }
func (s *AudioSession) SquelchEnabled() bool  { return s.squelchEnabled.Load() }
func (s *AudioSession) SetAGCSpeed(sp AGCSpeed) { s.agcSpeed.Store(sp) }
func (s *AudioSession) AGCSpeed() AGCSpeed    { return s.agcSpeed.Load().(AGCSpeed) }

// WaterfallSession is one /waterfall client. Its tuning parameters change
// rarely (window resize, receiver switch) so a plain mutex suffices per
// spec.md §4.5.
type WaterfallSession struct {
	ID         string
	IP         string
	ReceiverID atomic.Value // string
	CreatedAt  time.Time

	mu          sync.Mutex
	window      ClientWindow
	targetWidth int

	Queue  *ClientQueue
	Stream *zstdSessionEncoder
}

func newWaterfallSession(id, ip string, queueDepth, targetWidth int) *WaterfallSession {
	return &WaterfallSession{
		ID:          id,
		IP:          ip,
		CreatedAt:   time.Now(),
		targetWidth: targetWidth,
		Queue:       NewClientQueue(queueDepth),
	}
}

func (s *WaterfallSession) SetWindow(w ClientWindow) {
	s.mu.Lock()
	s.window = w
	s.mu.Unlock()
}

func (s *WaterfallSession) Window() ClientWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

func (s *WaterfallSession) TargetWidth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetWidth
}

// EventsSession is a /events heartbeat/status subscriber; it carries no
// DSP-tuning state, only a delivery queue for server-pushed JSON events.
type EventsSession struct {
	ID        string
	IP        string
	CreatedAt time.Time
	Queue     *ClientQueue
}

// ChatSession is a /chat participant.
type ChatSession struct {
	ID        string
	IP        string
	Username  atomic.Value // string
	CreatedAt time.Time
	Queue     *ClientQueue
}

// ClientRegistry is the concurrent registry of all session kinds,
// partitioned as spec.md §4.5 describes, with per-kind and per-IP
// admission limits.
type ClientRegistry struct {
	limits Limits

	mu         sync.RWMutex
	audio      map[string]*AudioSession
	waterfall  map[string]*WaterfallSession
	events     map[string]*EventsSession
	chat       map[string]*ChatSession

	ipMu     sync.Mutex
	ipCounts map[string]int
}

func NewClientRegistry(limits Limits) *ClientRegistry {
	return &ClientRegistry{
		limits:    limits,
		audio:     make(map[string]*AudioSession),
		waterfall: make(map[string]*WaterfallSession),
		events:    make(map[string]*EventsSession),
		chat:      make(map[string]*ChatSession),
		ipCounts:  make(map[string]int),
	}
}

func (r *ClientRegistry) admit(ip string) bool {
	r.ipMu.Lock()
	defer r.ipMu.Unlock()
	if r.limits.PerIP > 0 && r.ipCounts[ip] >= r.limits.PerIP {
		return false
	}
	r.ipCounts[ip]++
	return true
}

func (r *ClientRegistry) release(ip string) {
	r.ipMu.Lock()
	defer r.ipMu.Unlock()
	if r.ipCounts[ip] > 0 {
		r.ipCounts[ip]--
		if r.ipCounts[ip] == 0 {
			delete(r.ipCounts, ip)
		}
	}
}

// RegisterAudio admits a new /audio session, rejecting with
// errAdmissionLimit if the per-kind or per-IP cap is exceeded.
func (r *ClientRegistry) RegisterAudio(ip string, queueDepth int) (*AudioSession, error) {
	if !r.admit(ip) {
		return nil, errAdmissionLimit
	}
	r.mu.Lock()
	if r.limits.Audio > 0 && len(r.audio) >= r.limits.Audio {
		r.mu.Unlock()
		r.release(ip)
		return nil, errAdmissionLimit
	}
	s := newAudioSession(uuid.NewString(), ip, queueDepth)
	r.audio[s.ID] = s
	r.mu.Unlock()
	return s, nil
}

func (r *ClientRegistry) RegisterWaterfall(ip string, queueDepth, targetWidth int) (*WaterfallSession, error) {
	if !r.admit(ip) {
		return nil, errAdmissionLimit
	}
	r.mu.Lock()
	if r.limits.Waterfall > 0 && len(r.waterfall) >= r.limits.Waterfall {
		r.mu.Unlock()
		r.release(ip)
		return nil, errAdmissionLimit
	}
	s := newWaterfallSession(uuid.NewString(), ip, queueDepth, targetWidth)
	r.waterfall[s.ID] = s
	r.mu.Unlock()
	return s, nil
}

func (r *ClientRegistry) RegisterEvents(ip string, queueDepth int) (*EventsSession, error) {
	if !r.admit(ip) {
		return nil, errAdmissionLimit
	}
	r.mu.Lock()
	if r.limits.Events > 0 && len(r.events) >= r.limits.Events {
		r.mu.Unlock()
		r.release(ip)
		return nil, errAdmissionLimit
	}
	s := &EventsSession{ID: uuid.NewString(), IP: ip, CreatedAt: time.Now(), Queue: NewClientQueue(queueDepth)}
	r.events[s.ID] = s
	r.mu.Unlock()
	return s, nil
}

func (r *ClientRegistry) RegisterChat(ip string, queueDepth int) (*ChatSession, error) {
	if !r.admit(ip) {
		return nil, errAdmissionLimit
	}
	r.mu.Lock()
	if r.limits.Chat > 0 && len(r.chat) >= r.limits.Chat {
		r.mu.Unlock()
		r.release(ip)
		return nil, errAdmissionLimit
	}
	s := &ChatSession{ID: uuid.NewString(), IP: ip, CreatedAt: time.Now(), Queue: NewClientQueue(queueDepth)}
	s.Username.Store("")
	r.chat[s.ID] = s
	r.mu.Unlock()
	return s, nil
}

func (r *ClientRegistry) RemoveAudio(id string) {
	r.mu.Lock()
	s, ok := r.audio[id]
	if ok {
		delete(r.audio, id)
	}
	r.mu.Unlock()
	if ok {
		r.release(s.IP)
	}
}

func (r *ClientRegistry) RemoveWaterfall(id string) {
	r.mu.Lock()
	s, ok := r.waterfall[id]
	if ok {
		delete(r.waterfall, id)
	}
	r.mu.Unlock()
	if ok {
		r.release(s.IP)
	}
}

func (r *ClientRegistry) RemoveEvents(id string) {
	r.mu.Lock()
	s, ok := r.events[id]
	if ok {
		delete(r.events, id)
	}
	r.mu.Unlock()
	if ok {
		r.release(s.IP)
	}
}

func (r *ClientRegistry) RemoveChat(id string) {
	r.mu.Lock()
	s, ok := r.chat[id]
	if ok {
		delete(r.chat, id)
	}
	r.mu.Unlock()
	if ok {
		r.release(s.IP)
	}
}

// ForEachAudio and ForEachWaterfall are the Dispatcher's per-frame
// iteration hooks. The registry's read lock is held for the duration of
// the snapshot copy only, not for the fn call, so a slow client callback
// cannot stall registrations/removals.
func (r *ClientRegistry) ForEachAudio(fn func(*AudioSession)) {
	r.mu.RLock()
	snapshot := make([]*AudioSession, 0, len(r.audio))
	for _, s := range r.audio {
		snapshot = append(snapshot, s)
	}
	r.mu.RUnlock()
	for _, s := range snapshot {
		fn(s)
	}
}

func (r *ClientRegistry) ForEachWaterfall(fn func(*WaterfallSession)) {
	r.mu.RLock()
	snapshot := make([]*WaterfallSession, 0, len(r.waterfall))
	for _, s := range r.waterfall {
		snapshot = append(snapshot, s)
	}
	r.mu.RUnlock()
	for _, s := range snapshot {
		fn(s)
	}
}

func (r *ClientRegistry) ForEachChat(fn func(*ChatSession)) {
	r.mu.RLock()
	snapshot := make([]*ChatSession, 0, len(r.chat))
	for _, s := range r.chat {
		snapshot = append(snapshot, s)
	}
	r.mu.RUnlock()
	for _, s := range snapshot {
		fn(s)
	}
}

// Counts reports current session counts per kind, for server-info and
// metrics reporting.
func (r *ClientRegistry) Counts() (audio, waterfall, events, chat int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.audio), len(r.waterfall), len(r.events), len(r.chat)
}
