package h5j

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/JaneliaSciComp/web-h5j-loader/ffmpeg"
)

// openGradient opens the synthetic gradient fixture: 64x64 slices, 4096 deep,
// slice d holds the constant 12-bit value d.
func openGradient(t *testing.T) *File {
	t.Helper()
	skipIfNoFFmpeg(t)
	path := skipIfNoTestdata(t, "gradient.h5j")

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

// openBroken opens the fixture whose Channel_0 decodes cleanly while
// Channel_1 holds bytes that are not an H.265 stream.
func openBroken(t *testing.T) *File {
	t.Helper()
	skipIfNoFFmpeg(t)
	path := skipIfNoTestdata(t, "broken.h5j")

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func openShapes(t *testing.T) *File {
	t.Helper()
	skipIfNoFFmpeg(t)
	path := skipIfNoTestdata(t, "shapes.h5j")

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

// sliceGeometry returns the encoded (padded) slice dimensions and the
// nominal dimensions from the container attributes.
func sliceGeometry(t *testing.T, f *File) (pw, ph, w, h, d int) {
	t.Helper()
	attrs, err := f.Attributes()
	if err != nil {
		t.Fatalf("Attributes failed: %v", err)
	}
	if len(attrs.ImageSize) != 3 || attrs.Channels == nil {
		t.Fatalf("unexpected fixture attributes: %+v", attrs)
	}
	w = int(attrs.ImageSize[0])
	h = int(attrs.ImageSize[1])
	d = int(attrs.ImageSize[2])
	pw, ph = attrs.Channels.Width, attrs.Channels.Height
	if pw == 0 {
		pw = w
	}
	if ph == 0 {
		ph = h
	}
	return pw, ph, w, h, d
}

func TestDecodeChannelNotFound(t *testing.T) {
	f := openShapes(t)

	_, err := f.Decode8(context.Background(), "NoSuchChannel")
	var nf *ChannelNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected *ChannelNotFoundError, got %v", err)
	}
	if nf.Name != "NoSuchChannel" {
		t.Errorf("Name = %q", nf.Name)
	}

	// Distinct from both format and codec failures.
	var fe *FormatError
	if errors.As(err, &fe) {
		t.Error("ChannelNotFound also matches *FormatError")
	}
	var ce *ffmpeg.Error
	if errors.As(err, &ce) {
		t.Error("ChannelNotFound also matches *ffmpeg.Error")
	}
}

func TestDecodeMinimumSize(t *testing.T) {
	f := openShapes(t)
	_, _, w, h, d := sliceGeometry(t, f)
	minVoxels := w * h * d

	u8, err := f.Decode8(context.Background(), "Channel_0")
	if err != nil {
		t.Fatalf("Decode8 failed: %v", err)
	}
	if len(u8) < minVoxels {
		t.Errorf("Decode8 returned %d samples, want >= %d", len(u8), minVoxels)
	}

	u16, err := f.Decode16(context.Background(), "Channel_0")
	if err != nil {
		t.Fatalf("Decode16 failed: %v", err)
	}
	if len(u16) < minVoxels {
		t.Errorf("Decode16 returned %d samples, want >= %d", len(u16), minVoxels)
	}
}

func TestDecodeIdempotent(t *testing.T) {
	f := openShapes(t)

	// Fresh engine handles, same payload, same pixel format.
	e1, err := ffmpeg.New()
	if err != nil {
		t.Fatal(err)
	}
	defer e1.Close()
	e2, err := ffmpeg.New()
	if err != nil {
		t.Fatal(err)
	}
	defer e2.Close()

	a, err := f.Decode8(context.Background(), "Channel_0", WithEngine(e1))
	if err != nil {
		t.Fatalf("first decode failed: %v", err)
	}
	b, err := f.Decode8(context.Background(), "Channel_0", WithEngine(e2))
	if err != nil {
		t.Fatalf("second decode failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("repeated decode is not byte-identical")
	}
}

func TestDecodeSharedEngine(t *testing.T) {
	f := openShapes(t)

	eng, err := ffmpeg.New()
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	// Two different channels through one handle; the engine's critical
	// section keeps their staging names and state apart.
	for _, name := range []string{"Channel_0", "Channel_1"} {
		if _, err := f.Decode8(context.Background(), name, WithEngine(eng)); err != nil {
			t.Errorf("decode %s via shared engine: %v", name, err)
		}
	}
}

func TestDecodeProgress(t *testing.T) {
	f := openShapes(t)

	var fractions []float64
	_, err := f.Decode8(context.Background(), "Channel_0", WithProgress(func(frac float64) {
		fractions = append(fractions, frac)
	}))
	if err != nil {
		t.Fatalf("Decode8 failed: %v", err)
	}

	if len(fractions) == 0 {
		t.Fatal("progress callback never fired")
	}
	for _, frac := range fractions {
		if frac < 0 || frac > 1 {
			t.Errorf("progress fraction %v out of [0, 1]", frac)
		}
	}
	if last := fractions[len(fractions)-1]; last != 1 {
		t.Errorf("final progress = %v, want 1", last)
	}
}

func TestDecodeAll(t *testing.T) {
	f := openShapes(t)

	results, err := f.DecodeAll(context.Background(), Width8)
	if err != nil {
		t.Fatalf("DecodeAll failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for i, want := range []string{"Channel_0", "Channel_1"} {
		if results[i].Name != want {
			t.Errorf("results[%d].Name = %q, want %q", i, results[i].Name, want)
		}
		if results[i].Err != nil {
			t.Errorf("channel %s failed: %v", want, results[i].Err)
		}
		if results[i].Samples == nil || results[i].Samples.Len() == 0 {
			t.Errorf("channel %s produced no samples", want)
		}
	}
}

func TestDecodeAllPartialFailure(t *testing.T) {
	f := openBroken(t)
	_, _, w, h, d := sliceGeometry(t, f)

	results, err := f.DecodeAll(context.Background(), Width8)
	if err != nil {
		t.Fatalf("DecodeAll failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	// The undecodable channel reports a codec error in its own result.
	var ce *ffmpeg.Error
	if !errors.As(results[1].Err, &ce) {
		t.Fatalf("Channel_1 error = %v, want *ffmpeg.Error", results[1].Err)
	}
	if results[1].Samples != nil {
		t.Error("Channel_1 produced samples despite failing")
	}

	// Its sibling still decodes in full.
	if results[0].Err != nil {
		t.Fatalf("Channel_0 failed alongside the broken channel: %v", results[0].Err)
	}
	if results[0].Samples == nil {
		t.Fatal("Channel_0 produced no samples")
	}
	if got := results[0].Samples.Len(); got < w*h*d {
		t.Errorf("Channel_0 produced %d samples, want >= %d", got, w*h*d)
	}
}

// expected8 is the nominal 12-to-8-bit mapping: floor(d/16 + 0.5), clamped
// to the 8-bit range.
func expected8(d int) int {
	v := (d + 8) / 16
	if v > 255 {
		v = 255
	}
	return v
}

func TestDecode8Gradient(t *testing.T) {
	f := openGradient(t)
	pw, ph, w, h, depth := sliceGeometry(t, f)

	u8, err := f.Decode8(context.Background(), "Channel_0")
	if err != nil {
		t.Fatalf("Decode8 failed: %v", err)
	}
	if len(u8) < pw*ph*depth {
		t.Fatalf("decoded %d samples, want >= %d", len(u8), pw*ph*depth)
	}

	for d := 0; d < depth; d++ {
		exp := expected8(d)
		var counts [256]int
		base := d * pw * ph
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := int(u8[base+y*pw+x])
				if v < exp-1 || v > exp+1 {
					t.Fatalf("slice %d: sample %d outside [%d, %d]", d, v, exp-1, exp+1)
				}
				counts[v]++
			}
		}

		mode := 0
		for v, n := range counts {
			if n > counts[mode] {
				mode = v
			}
		}

		// The codec's internal quantization filter shifts the mode up by one
		// at d mod 16 == 8, and leaves it ambiguous at d mod 16 == 9.
		switch d % 16 {
		case 8:
			want := exp + 1
			if want > 255 {
				want = 255
			}
			if mode != want {
				t.Errorf("slice %d: mode = %d, want %d", d, mode, want)
			}
		case 9:
			if mode != exp && mode != exp+1 {
				t.Errorf("slice %d: mode = %d, want %d or %d", d, mode, exp, exp+1)
			}
		default:
			if mode != exp {
				t.Errorf("slice %d: mode = %d, want %d", d, mode, exp)
			}
		}
	}
}

func TestDecode16Gradient(t *testing.T) {
	f := openGradient(t)
	pw, ph, w, h, depth := sliceGeometry(t, f)

	u16, err := f.Decode16(context.Background(), "Channel_0")
	if err != nil {
		t.Fatalf("Decode16 failed: %v", err)
	}
	if len(u16) < pw*ph*depth {
		t.Fatalf("decoded %d samples, want >= %d", len(u16), pw*ph*depth)
	}

	for d := 0; d < depth; d++ {
		lo, hi := d-3, d+2
		if lo < 0 {
			lo = 0
		}
		counts := make(map[int]int)
		base := d * pw * ph
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := int(u16[base+y*pw+x])
				if v < lo || v > hi {
					t.Fatalf("slice %d: sample %d outside [%d, %d]", d, v, lo, hi)
				}
				counts[v]++
			}
		}

		mode, best := 0, -1
		for v, n := range counts {
			if n > best {
				mode, best = v, n
			}
		}
		if mode < d-1 || mode > d+1 {
			t.Errorf("slice %d: mode = %d, want within [%d, %d]", d, mode, d-1, d+1)
		}
	}
}

// Probe voxels inside each synthetic shape's shell. Coordinates follow the
// generator's geometry for a 128^3 volume: sphere r=42.67, cones along x/y,
// cylinder r=7.11 along z, shell thickness 3, no fade.
var shapeProbes = []struct {
	shape   string
	x, y, z int
	value   int // 8-bit region value
}{
	{"sphere", 107, 64, 64, 64},
	{"cone1", 100, 97, 64, 96},
	{"cone2", 81, 100, 64, 128},
	{"cylinder", 71, 64, 32, 160},
}

func TestDecodeShapes(t *testing.T) {
	f := openShapes(t)
	pw, ph, _, _, _ := sliceGeometry(t, f)

	u8, err := f.Decode8(context.Background(), "Channel_0")
	if err != nil {
		t.Fatalf("Decode8 failed: %v", err)
	}
	u16, err := f.Decode16(context.Background(), "Channel_0")
	if err != nil {
		t.Fatalf("Decode16 failed: %v", err)
	}

	for _, p := range shapeProbes {
		idx := p.z*pw*ph + p.y*pw + p.x
		if got := int(u8[idx]); got < p.value-1 || got > p.value+1 {
			t.Errorf("%s: 8-bit sample at (%d,%d,%d) = %d, want %d +-1",
				p.shape, p.x, p.y, p.z, got, p.value)
		}
		v16 := p.value * 16
		if got := int(u16[idx]); got < v16-3 || got > v16+2 {
			t.Errorf("%s: 16-bit sample at (%d,%d,%d) = %d, want within [%d, %d]",
				p.shape, p.x, p.y, p.z, got, v16-3, v16+2)
		}
	}
}
