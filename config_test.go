package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiverConfigBaseFreqIQ(t *testing.T) {
	c := ReceiverConfig{Signal: "iq", FrequencyHz: 100900000, SPS: 2048000}
	assert.Equal(t, 100900000.0-1024000.0, c.BaseFreq())
}

func TestReceiverConfigBaseFreqReal(t *testing.T) {
	c := ReceiverConfig{Signal: "real", FrequencyHz: 7100000, SPS: 96000}
	assert.Equal(t, 7100000.0, c.BaseFreq())
}

func TestReceiverConfigFFTResultSize(t *testing.T) {
	iq := ReceiverConfig{Signal: "iq", FFTSize: 131072}
	assert.Equal(t, 131072, iq.FFTResultSize())

	real := ReceiverConfig{Signal: "real", FFTSize: 131072}
	assert.Equal(t, 65536, real.FFTResultSize())
}

func TestReceiverConfigValidateRejectsNonPowerOfTwoFFT(t *testing.T) {
	c := ReceiverConfig{ID: "rx1", SPS: 2048000, FFTSize: 1000, Signal: "iq", AudioSPS: 12000, WaterfallSize: 1024, SourceFormat: FormatCS16}
	assert.Error(t, c.validate())
}

func TestReceiverConfigValidateRejectsBadSignal(t *testing.T) {
	c := ReceiverConfig{ID: "rx1", SPS: 2048000, FFTSize: 1024, Signal: "bogus", AudioSPS: 12000, WaterfallSize: 1024, SourceFormat: FormatCS16}
	assert.Error(t, c.validate())
}

func TestReceiverConfigValidateAccepts(t *testing.T) {
	c := ReceiverConfig{ID: "rx1", SPS: 2048000, FFTSize: 1024, Signal: "iq", AudioSPS: 12000, WaterfallSize: 1024, SourceFormat: FormatCS16}
	assert.NoError(t, c.validate())
}

func TestLoadReceiversConfigRejectsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "receivers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("receivers: {}\n"), 0644))

	_, err := LoadReceiversConfig(path)
	assert.Error(t, err)
}

func TestLoadReceiversConfigParsesAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "receivers.yaml")
	yamlDoc := "receivers:\n  rx1:\n    sps: 2048000\n    frequency: 100900000\n    signal: iq\n    fft_size: 1024\n    audio_sps: 12000\n    waterfall_size: 1024\n    source_format: cs16\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0644))

	receivers, err := LoadReceiversConfig(path)
	require.NoError(t, err)
	require.Contains(t, receivers, "rx1")
	assert.Equal(t, "rx1", receivers["rx1"].ID)
}

func TestLoadOverlayToleratesAbsentFile(t *testing.T) {
	var markers []Marker
	err := loadOverlay(filepath.Join(t.TempDir(), "missing.yaml"), &markers)
	assert.NoError(t, err)
	assert.Empty(t, markers)
}

func TestPrometheusConfigEmptyAllowlistAllowsAll(t *testing.T) {
	var p PrometheusConfig
	require.NoError(t, p.resolveAllowedNets())
	assert.True(t, p.allows("203.0.113.5"))
}

func TestPrometheusConfigAllowlistRestricts(t *testing.T) {
	p := PrometheusConfig{AllowedHosts: []string{"10.0.0.0/8"}}
	require.NoError(t, p.resolveAllowedNets())
	assert.True(t, p.allows("10.1.2.3"))
	assert.False(t, p.allows("203.0.113.5"))
}

func TestPrometheusConfigAllowlistAcceptsBareIP(t *testing.T) {
	p := PrometheusConfig{AllowedHosts: []string{"192.168.1.50"}}
	require.NoError(t, p.resolveAllowedNets())
	assert.True(t, p.allows("192.168.1.50"))
	assert.False(t, p.allows("192.168.1.51"))
}
