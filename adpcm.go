package main

import (
	"encoding/binary"
	"fmt"
)

// IMA ADPCM step tables, adapted from the teacher's kiwi_adpcm.go encoder
// (itself ported from a Python KiwiSDR bridge) to the self-contained block
// format spec.md §4.4 step 10 specifies: each emission re-initialises the
// codec state rather than carrying it across WebSocket frames.
var admStepSizeTable = []int{
	7, 8, 9, 10, 11, 12, 13, 14, 16, 17, 19, 21, 23, 25, 28, 31, 34,
	37, 41, 45, 50, 55, 60, 66, 73, 80, 88, 97, 107, 118, 130, 143,
	157, 173, 190, 209, 230, 253, 279, 307, 337, 371, 408, 449, 494,
	544, 598, 658, 724, 796, 876, 963, 1060, 1166, 1282, 1411, 1552,
	1707, 1878, 2066, 2272, 2499, 2749, 3024, 3327, 3660, 4026,
	4428, 4871, 5358, 5894, 6484, 7132, 7845, 8630, 9493, 10442,
	11487, 12635, 13899, 15289, 16818, 18500, 20350, 22385, 24623,
	27086, 29794, 32767,
}

var admIndexAdjustTable = []int{
	-1, -1, -1, -1,
	2, 4, 6, 8,
	-1, -1, -1, -1,
	2, 4, 6, 8,
}

func admClamp(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// adpcmBlockHeaderLen is predictor(2) + index(1) + reserved(1) + sample_count(2).
const adpcmBlockHeaderLen = 6

// EncodeADPCMBlock encodes pcm (signed 16-bit samples) into one
// self-contained IMA-ADPCM block per spec.md §4.4 step 10's layout:
// predictor:i16, index:u8, reserved:u8, sample_count:u16, then 4-bit
// nibble codes (low nibble first). The first sample is stored verbatim
// as the predictor; remaining samples are nibble-coded starting from a
// fresh index of 0, so the block decodes independently of any other.
func EncodeADPCMBlock(pcm []int16) []byte {
	n := len(pcm)
	out := make([]byte, adpcmBlockHeaderLen, adpcmBlockHeaderLen+(n+1)/2)
	if n == 0 {
		binary.LittleEndian.PutUint16(out[4:6], 0)
		return out
	}

	predictor := int(pcm[0])
	index := 0
	binary.LittleEndian.PutUint16(out[0:2], uint16(int16(predictor)))
	out[2] = 0 // index stored at block start is always 0; see decode
	out[3] = 0
	binary.LittleEndian.PutUint16(out[4:6], uint16(n))

	var nibbles []byte
	var pendingHigh byte
	havePending := false
	for i := 1; i < n; i++ {
		sample := int(pcm[i])
		step := admStepSizeTable[index]
		diff := sample - predictor

		code := byte(0)
		if diff < 0 {
			code = 8
			diff = -diff
		}
		if diff >= step {
			code |= 4
			diff -= step
		}
		if diff >= step/2 {
			code |= 2
			diff -= step / 2
		}
		if diff >= step/4 {
			code |= 1
		}

		delta := step >> 3
		if code&1 != 0 {
			delta += step >> 2
		}
		if code&2 != 0 {
			delta += step >> 1
		}
		if code&4 != 0 {
			delta += step
		}
		if code&8 != 0 {
			delta = -delta
		}
		predictor = admClamp(predictor+delta, -32768, 32767)
		index = admClamp(index+admIndexAdjustTable[code], 0, len(admStepSizeTable)-1)

		if !havePending {
			pendingHigh = code
			havePending = true
		} else {
			nibbles = append(nibbles, (code<<4)|pendingHigh)
			havePending = false
		}
	}
	if havePending {
		nibbles = append(nibbles, pendingHigh)
	}
	out = append(out, nibbles...)
	return out
}

// DecodeADPCMBlock reverses EncodeADPCMBlock, returning exactly
// sample_count PCM samples.
func DecodeADPCMBlock(block []byte) ([]int16, error) {
	if len(block) < adpcmBlockHeaderLen {
		return nil, fmt.Errorf("adpcm: block too short: %d bytes", len(block))
	}
	predictor := int(int16(binary.LittleEndian.Uint16(block[0:2])))
	index := int(block[2])
	sampleCount := int(binary.LittleEndian.Uint16(block[4:6]))
	if sampleCount == 0 {
		return nil, nil
	}

	out := make([]int16, sampleCount)
	out[0] = int16(predictor)

	nibbles := block[adpcmBlockHeaderLen:]
	bitPos := 0
	for i := 1; i < sampleCount; i++ {
		byteIdx := bitPos / 2
		if byteIdx >= len(nibbles) {
			return nil, fmt.Errorf("adpcm: truncated block, expected %d samples", sampleCount)
		}
		var code byte
		if bitPos%2 == 0 {
			code = nibbles[byteIdx] & 0x0f
		} else {
			code = (nibbles[byteIdx] >> 4) & 0x0f
		}
		bitPos++

		step := admStepSizeTable[index]
		delta := step >> 3
		if code&1 != 0 {
			delta += step >> 2
		}
		if code&2 != 0 {
			delta += step >> 1
		}
		if code&4 != 0 {
			delta += step
		}
		if code&8 != 0 {
			delta = -delta
		}
		predictor = admClamp(predictor+delta, -32768, 32767)
		index = admClamp(index+admIndexAdjustTable[code], 0, len(admStepSizeTable)-1)
		out[i] = int16(predictor)
	}
	return out, nil
}
