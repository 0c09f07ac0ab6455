package main

import (
	"fmt"
	"net"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerConfig is the top-level server configuration loaded from the
// file named by the -c flag, per spec.md §6.
type ServerConfig struct {
	Listen            string          `yaml:"listen"`
	Name              string          `yaml:"name"`
	Operator          string          `yaml:"operator"`
	Antenna           string          `yaml:"antenna"`
	Grid              string          `yaml:"grid"`
	ActiveReceiverID  string          `yaml:"active_receiver"`
	RegistryURL       string          `yaml:"registry_url"`
	HTMLRoot          string          `yaml:"html_root"`
	Limits            LimitsConfig    `yaml:"limits"`
	Prometheus        PrometheusConfig `yaml:"prometheus"`
	OverlayDir        string          `yaml:"overlay_dir"`
	LogFile           string          `yaml:"logfile"`
}

// LimitsConfig mirrors spec.md §6's admission caps:
// `limits.audio|waterfall|events|ws_per_ip`.
type LimitsConfig struct {
	Audio     int `yaml:"audio"`
	Waterfall int `yaml:"waterfall"`
	Events    int `yaml:"events"`
	Chat      int `yaml:"chat"`
	WSPerIP   int `yaml:"ws_per_ip"`
	CmdRateLimit  int `yaml:"cmd_rate_limit"`
	ConnRateLimit int `yaml:"conn_rate_limit"`
}

func (l LimitsConfig) toLimits() Limits {
	return Limits{
		Audio:     l.Audio,
		Waterfall: l.Waterfall,
		Events:    l.Events,
		Chat:      l.Chat,
		PerIP:     l.WSPerIP,
	}
}

// PrometheusConfig controls the optional metrics HTTP endpoint, including
// an IP/CIDR allowlist mirroring the teacher's own Prometheus
// AllowedHosts config surface (empty means allow all).
type PrometheusConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Listen       string   `yaml:"listen"`
	AllowedHosts []string `yaml:"allowed_hosts"`

	allowedNets []*net.IPNet
}

// resolveAllowedNets parses AllowedHosts once at startup, matching the
// teacher's parse-on-load pattern for its own allowlist config fields.
func (p *PrometheusConfig) resolveAllowedNets() error {
	nets, err := parseAllowedCIDRs(p.AllowedHosts)
	if err != nil {
		return fmt.Errorf("config: prometheus.allowed_hosts: %w", err)
	}
	p.allowedNets = nets
	return nil
}

// allows reports whether ip may reach the metrics endpoint: an empty
// allowlist permits everyone, otherwise ip must fall inside one of the
// parsed networks.
func (p *PrometheusConfig) allows(ip string) bool {
	if len(p.allowedNets) == 0 {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range p.allowedNets {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

// ReceiverDefaults seeds a freshly connected audio session, per
// spec.md §3's ReceiverConfig.defaults field.
type ReceiverDefaults struct {
	Mode       DemodMode `yaml:"mod"`
	FrequencyHz  uint64  `yaml:"freq"`
	SSBLowcutHz  int     `yaml:"ssb_low"`
	SSBHighcutHz int     `yaml:"ssb_high"`
	Squelch      bool    `yaml:"squelch"`
}

// ReceiverConfig is one entry of the receivers config file (-r flag),
// per spec.md §3's data model table.
type ReceiverConfig struct {
	ID             string            `yaml:"id"`
	DisplayName    string            `yaml:"display_name"`
	SPS            int               `yaml:"sps"`
	FrequencyHz    uint64            `yaml:"frequency"`
	Signal         string            `yaml:"signal"` // "iq" or "real"
	FFTSize        int               `yaml:"fft_size"`
	AudioSPS       int               `yaml:"audio_sps"`
	WaterfallSize  int               `yaml:"waterfall_size"`
	Accelerator    Accelerator       `yaml:"accelerator"`
	Defaults       ReceiverDefaults  `yaml:"defaults"`
	SourceKind     string            `yaml:"source_kind"` // "stdin" or "rtp"
	SourceCommand  string            `yaml:"source_command"`
	SourceFormat   SampleFormat      `yaml:"source_format"`
	MulticastGroup string            `yaml:"multicast_group"`
	AudioCodec     uint8             `yaml:"audio_codec"`
}

// BaseFreq implements spec.md §3's invariant:
// basefreq = frequency - sps/2 for iq, else frequency.
func (c ReceiverConfig) BaseFreq() float64 {
	if c.Signal == "real" {
		return float64(c.FrequencyHz)
	}
	return float64(c.FrequencyHz) - float64(c.SPS)/2
}

// FFTResultSize implements spec.md §3's invariant:
// fft_result_size = fft_size for iq, fft_size/2 for real.
func (c ReceiverConfig) FFTResultSize() int {
	if c.Signal == "real" {
		return c.FFTSize / 2
	}
	return c.FFTSize
}

// AudioMaxFFTSize implements spec.md §3's formula.
func (c ReceiverConfig) AudioMaxFFTSize() int32 {
	return audioMaxFFTSize(c.AudioSPS, c.FFTSize, c.SPS)
}

func (c ReceiverConfig) validate() error {
	if c.ID == "" {
		return fmt.Errorf("config: receiver missing id")
	}
	if c.SPS <= 0 {
		return fmt.Errorf("config: receiver %q: sps must be positive", c.ID)
	}
	if c.FFTSize <= 0 || (c.FFTSize&(c.FFTSize-1)) != 0 {
		return fmt.Errorf("config: receiver %q: fft_size must be a power of two", c.ID)
	}
	if c.Signal != "iq" && c.Signal != "real" {
		return fmt.Errorf("config: receiver %q: signal must be iq or real, got %q", c.ID, c.Signal)
	}
	if c.AudioSPS <= 0 || c.AudioSPS > 48000 {
		return fmt.Errorf("config: receiver %q: audio_sps must be in (0, 48000]", c.ID)
	}
	if c.WaterfallSize <= 0 {
		return fmt.Errorf("config: receiver %q: waterfall_size must be positive", c.ID)
	}
	if !c.SourceFormat.valid() {
		return fmt.Errorf("config: receiver %q: unknown source_format %q", c.ID, c.SourceFormat)
	}
	return nil
}

// ReceiversConfig is the top-level shape of the receivers config file:
// a map of receiver id to its ReceiverConfig.
type ReceiversConfig struct {
	Receivers map[string]ReceiverConfig `yaml:"receivers"`
}

// Marker is one entry of the optional markers.yaml overlay.
type Marker struct {
	Label       string  `yaml:"label" json:"label"`
	FrequencyHz uint64  `yaml:"frequency" json:"frequency"`
	Comment     string  `yaml:"comment,omitempty" json:"comment,omitempty"`
}

// Band is one entry of the optional bands.yaml overlay.
type Band struct {
	Label string `yaml:"label" json:"label"`
	Start uint64 `yaml:"start" json:"start"`
	End   uint64 `yaml:"end" json:"end"`
	Mode  string `yaml:"mode,omitempty" json:"mode,omitempty"`
}

// LoadServerConfig reads and parses the -c server config file.
func LoadServerConfig(filename string) (*ServerConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", filename, err)
	}
	var cfg ServerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", filename, err)
	}
	if cfg.Listen == "" {
		cfg.Listen = ":8073"
	}
	if cfg.HTMLRoot == "" {
		cfg.HTMLRoot = "html"
	}
	if err := cfg.Prometheus.resolveAllowedNets(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadReceiversConfig reads and parses the -r receivers config file,
// validating every entry.
func LoadReceiversConfig(filename string) (map[string]ReceiverConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", filename, err)
	}
	var rc ReceiversConfig
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", filename, err)
	}
	for id, r := range rc.Receivers {
		r.ID = id
		if r.AudioCodec == 0 {
			r.AudioCodec = CodecADPCM
		}
		if err := r.validate(); err != nil {
			return nil, err
		}
		rc.Receivers[id] = r
	}
	if len(rc.Receivers) == 0 {
		return nil, fmt.Errorf("config: %s declares no receivers", filename)
	}
	return rc.Receivers, nil
}

// loadOverlay reads an optional YAML file (markers.yaml or bands.yaml)
// into dst. When the file is absent it returns no error and leaves dst
// unchanged; no default entries are synthesised.
func loadOverlay(filename string, dst interface{}) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read overlay %s: %w", filename, err)
	}
	return yaml.Unmarshal(data, dst)
}

// parseAllowedCIDRs parses a list of bare IPs or CIDR blocks into
// *net.IPNet, defaulting a bare IP to a /32 (or /128 for IPv6) host
// route, matching the pattern the teacher uses for its own allowlists.
func parseAllowedCIDRs(cidrs []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			ip := net.ParseIP(c)
			if ip == nil {
				return nil, fmt.Errorf("config: invalid IP/CIDR %q", c)
			}
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			_, n, _ = net.ParseCIDR(fmt.Sprintf("%s/%d", c, bits))
		}
		nets = append(nets, n)
	}
	return nets, nil
}
