package h5j

import (
	"encoding/binary"
	"fmt"

	"github.com/JaneliaSciComp/web-h5j-loader/ffmpeg"
)

// SampleWidth selects the decoded sample representation.
type SampleWidth int

const (
	// Width8 requests 8-bit samples. The codec quantizes the encoded
	// (typically 12-bit) range down to 8 bits with its own rounding rule;
	// the loader passes that mapping through untouched.
	Width8 SampleWidth = 8

	// Width16 requests 16-bit samples holding the original little-endian
	// 12-bit values. The dynamic range is preserved, not stretched.
	Width16 SampleWidth = 16
)

// PixelFormat returns the engine pixel format this width maps to.
func (w SampleWidth) PixelFormat() ffmpeg.PixelFormat {
	if w == Width16 {
		return ffmpeg.Gray12LE
	}
	return ffmpeg.Gray
}

func (w SampleWidth) String() string {
	return fmt.Sprintf("%d-bit", int(w))
}

// SampleArray is the decoded output for one channel: a tagged union over
// sample width. Exactly one of U8/U16 is populated, selected by Width.
// Its length may exceed the container's nominal voxel count because the
// codec pads to block-aligned dimensions.
type SampleArray struct {
	Width SampleWidth
	U8    []uint8
	U16   []uint16
}

// Len returns the number of samples.
func (s *SampleArray) Len() int {
	if s.Width == Width16 {
		return len(s.U16)
	}
	return len(s.U8)
}

// newSampleArray reinterprets a raw decoded buffer as samples of the given
// width and verifies it covers at least minVoxels samples.
func newSampleArray(raw []byte, width SampleWidth, minVoxels uint64) (*SampleArray, error) {
	switch width {
	case Width16:
		if len(raw)%2 != 0 {
			return nil, fmt.Errorf("decoded buffer length %d is odd, cannot hold 16-bit samples", len(raw))
		}
		u16 := make([]uint16, len(raw)/2)
		for i := range u16 {
			u16[i] = binary.LittleEndian.Uint16(raw[2*i:])
		}
		if uint64(len(u16)) < minVoxels {
			return nil, fmt.Errorf("decoded %d samples, need at least %d", len(u16), minVoxels)
		}
		return &SampleArray{Width: Width16, U16: u16}, nil

	case Width8:
		if uint64(len(raw)) < minVoxels {
			return nil, fmt.Errorf("decoded %d samples, need at least %d", len(raw), minVoxels)
		}
		return &SampleArray{Width: Width8, U8: raw}, nil

	default:
		return nil, fmt.Errorf("unsupported sample width: %d", width)
	}
}
