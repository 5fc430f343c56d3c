package h5j

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-hdf5/hdf5"
)

// Attributes is the flattened, typed view of a container's metadata.
// Recognized root attributes are validated into fields at extraction time;
// anything else lands in Unknown untouched.
type Attributes struct {
	// ImageSize is the nominal voxel count per axis: [width, height, depth].
	ImageSize []float64

	// VoxelSize is the physical voxel extent per axis.
	VoxelSize []float64

	// ChannelSpec is the container's channel layout tag (e.g. "r").
	ChannelSpec string

	// Channels is nil when the container has no "Channels" group.
	Channels *ChannelSet

	Unknown map[string]any
}

// ChannelSet describes the "Channels" group. Names and ContentTypes are
// parallel slices in the container's native child enumeration order; that
// order is the canonical channel index.
type ChannelSet struct {
	Names        []string
	ContentTypes []string

	// Encoded frame geometry and padding hints. The encoded height/width may
	// exceed ImageSize due to codec block alignment.
	Frames    int
	Height    int
	Width     int
	PadBottom int
	PadRight  int

	Unknown map[string]any
}

// VoxelCount returns the product of ImageSize, the minimum sample count any
// decoded channel must provide. Decoded buffers may be larger than this due
// to codec padding, never smaller.
func (a *Attributes) VoxelCount() uint64 {
	if len(a.ImageSize) == 0 {
		return 0
	}
	n := 1.0
	for _, d := range a.ImageSize {
		n *= d
	}
	return uint64(n)
}

// Attributes extracts the container's attribute record. It is derived fresh
// on every call; nothing is cached on the File. A well-formed container
// without a "Channels" group yields Channels == nil and no error. A nil
// receiver yields a nil record.
func (f *File) Attributes() (*Attributes, error) {
	if f == nil {
		return nil, nil
	}
	if f.closed {
		return nil, ErrClosed
	}

	root := f.hf.Root()
	attrs := &Attributes{Unknown: make(map[string]any)}

	for _, name := range root.Attrs() {
		v, err := root.Attr(name).Value()
		if err != nil {
			return nil, &FormatError{Path: "/@" + name, Err: err}
		}
		switch name {
		case "image_size":
			if attrs.ImageSize, err = asFloats(v); err != nil {
				return nil, &FormatError{Path: "/@" + name, Err: err}
			}
		case "voxel_size":
			if attrs.VoxelSize, err = asFloats(v); err != nil {
				return nil, &FormatError{Path: "/@" + name, Err: err}
			}
		case "channel_spec":
			if attrs.ChannelSpec, err = asString(v); err != nil {
				return nil, &FormatError{Path: "/@" + name, Err: err}
			}
		default:
			attrs.Unknown[name] = v
		}
	}

	g, err := f.hf.OpenGroup("Channels")
	if err != nil {
		if errors.Is(err, hdf5.ErrNotFound) {
			return attrs, nil
		}
		return nil, &FormatError{Path: "/Channels", Err: err}
	}

	cs := &ChannelSet{Unknown: make(map[string]any)}
	for _, name := range g.Attrs() {
		v, err := g.Attr(name).Value()
		if err != nil {
			return nil, &FormatError{Path: "/Channels@" + name, Err: err}
		}
		var dst *int
		switch name {
		case "frames":
			dst = &cs.Frames
		case "height":
			dst = &cs.Height
		case "width":
			dst = &cs.Width
		case "pad_bottom":
			dst = &cs.PadBottom
		case "pad_right":
			dst = &cs.PadRight
		default:
			cs.Unknown[name] = v
			continue
		}
		if *dst, err = asInt(v); err != nil {
			return nil, &FormatError{Path: "/Channels@" + name, Err: err}
		}
	}

	members, err := g.Members()
	if err != nil {
		return nil, &FormatError{Path: "/Channels", Err: err}
	}
	for _, name := range members {
		ds, err := g.OpenDataset(name)
		if err != nil {
			return nil, &FormatError{Path: "/Channels/" + name, Err: err}
		}
		contentType := ""
		if a := ds.Attr("content_type"); a != nil {
			if contentType, err = a.ReadScalarString(); err != nil {
				return nil, &FormatError{Path: "/Channels/" + name + "@content_type", Err: err}
			}
		}
		cs.Names = append(cs.Names, name)
		cs.ContentTypes = append(cs.ContentTypes, contentType)
	}

	attrs.Channels = cs
	return attrs, nil
}

// asFloats coerces an auto-typed attribute value to a float slice. The
// container reader hands back int64/uint64/float64 scalars or slices
// depending on the stored datatype.
func asFloats(v any) ([]float64, error) {
	switch x := v.(type) {
	case []float64:
		return x, nil
	case float64:
		return []float64{x}, nil
	case []int64:
		out := make([]float64, len(x))
		for i, n := range x {
			out[i] = float64(n)
		}
		return out, nil
	case []uint64:
		out := make([]float64, len(x))
		for i, n := range x {
			out[i] = float64(n)
		}
		return out, nil
	case int64:
		return []float64{float64(x)}, nil
	case uint64:
		return []float64{float64(x)}, nil
	default:
		return nil, fmt.Errorf("expected numeric attribute, got %T", v)
	}
}

// asInt coerces an auto-typed attribute value to a scalar int.
func asInt(v any) (int, error) {
	switch x := v.(type) {
	case int64:
		return int(x), nil
	case uint64:
		return int(x), nil
	case float64:
		return int(x), nil
	case []int64:
		if len(x) == 1 {
			return int(x[0]), nil
		}
	case []uint64:
		if len(x) == 1 {
			return int(x[0]), nil
		}
	case []float64:
		if len(x) == 1 {
			return int(x[0]), nil
		}
	}
	return 0, fmt.Errorf("expected scalar integer attribute, got %T", v)
}

// asString coerces an auto-typed attribute value to a scalar string.
func asString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []string:
		if len(x) == 1 {
			return x[0], nil
		}
	}
	return "", fmt.Errorf("expected string attribute, got %T", v)
}
