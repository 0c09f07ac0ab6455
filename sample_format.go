package main

import (
	"encoding/binary"
	"fmt"
	"math"
)

// SampleFormat identifies the on-wire encoding of the raw byte stream a
// SampleSource hands to the SampleReader.
type SampleFormat string

const (
	FormatU8   SampleFormat = "u8"
	FormatS8   SampleFormat = "s8"
	FormatU16  SampleFormat = "u16"
	FormatS16  SampleFormat = "s16"
	FormatF32  SampleFormat = "f32"
	FormatF64  SampleFormat = "f64"
	FormatCS16 SampleFormat = "cs16"
	FormatCF32 SampleFormat = "cf32"
)

// BytesPerSample returns the number of input bytes that decode to one
// complex64 output sample (one I/Q pair for the interleaved formats, one
// real value promoted to complex for the rest).
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case FormatU8, FormatS8:
		return 1
	case FormatU16, FormatS16:
		return 2
	case FormatF32:
		return 4
	case FormatF64:
		return 8
	case FormatCS16:
		return 4
	case FormatCF32:
		return 8
	default:
		return 0
	}
}

func (f SampleFormat) valid() bool {
	return f.BytesPerSample() > 0
}

// decodeInto converts n raw samples (n*BytesPerSample bytes) from buf into
// dst[:n] as complex64. Unsigned formats are recentred to zero and scaled
// to [-1, 1]; signed formats are scaled to [-1, 1); float formats pass
// through unchanged. Real-valued formats are promoted to complex with a
// zero imaginary part.
func decodeInto(f SampleFormat, buf []byte, dst []complex64) (int, error) {
	bps := f.BytesPerSample()
	if bps == 0 {
		return 0, fmt.Errorf("sample format: unknown format %q", f)
	}
	n := len(buf) / bps
	if n > len(dst) {
		n = len(dst)
	}
	switch f {
	case FormatU8:
		for i := 0; i < n; i++ {
			v := (float32(buf[i]) - 127.5) / 127.5
			dst[i] = complex(v, 0)
		}
	case FormatS8:
		for i := 0; i < n; i++ {
			v := float32(int8(buf[i])) / 128.0
			dst[i] = complex(v, 0)
		}
	case FormatU16:
		for i := 0; i < n; i++ {
			u := binary.LittleEndian.Uint16(buf[i*2:])
			v := (float32(u) - 32767.5) / 32767.5
			dst[i] = complex(v, 0)
		}
	case FormatS16:
		for i := 0; i < n; i++ {
			s := int16(binary.LittleEndian.Uint16(buf[i*2:]))
			v := float32(s) / 32768.0
			dst[i] = complex(v, 0)
		}
	case FormatF32:
		for i := 0; i < n; i++ {
			bits := binary.LittleEndian.Uint32(buf[i*4:])
			dst[i] = complex(math.Float32frombits(bits), 0)
		}
	case FormatF64:
		for i := 0; i < n; i++ {
			bits := binary.LittleEndian.Uint64(buf[i*8:])
			dst[i] = complex(float32(math.Float64frombits(bits)), 0)
		}
	case FormatCS16:
		for i := 0; i < n; i++ {
			is := int16(binary.LittleEndian.Uint16(buf[i*4:]))
			qs := int16(binary.LittleEndian.Uint16(buf[i*4+2:]))
			dst[i] = complex(float32(is)/32768.0, float32(qs)/32768.0)
		}
	case FormatCF32:
		for i := 0; i < n; i++ {
			ibits := binary.LittleEndian.Uint32(buf[i*8:])
			qbits := binary.LittleEndian.Uint32(buf[i*8+4:])
			dst[i] = complex(math.Float32frombits(ibits), math.Float32frombits(qbits))
		}
	default:
		return 0, fmt.Errorf("sample format: unsupported format %q", f)
	}
	return n, nil
}
