package main

import "errors"

// Sentinel errors shared across DSP components, callers branch on these
// rather than matching error strings.
var (
	errInvalidWindow    = errors.New("client window: out of range")
	errQueueFull        = errors.New("client queue: full, frame dropped")
	errSquelchClosed    = errors.New("audio chain: squelch closed, no emission")
	errUnsupportedCodec = errors.New("audio codec: unsupported codec")
	errUnsupportedMode  = errors.New("audio chain: unsupported demodulation mode")
	errAdmissionLimit   = errors.New("client registry: admission limit reached")
)
