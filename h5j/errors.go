// Package h5j reads H5J volumetric image files: HDF5 containers embedding
// per-channel H.265 bitstreams, decoded to 8-bit or 16-bit grayscale voxels
// through an external ffmpeg engine.
package h5j

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrClosed = errors.New("file is closed")
)

// FormatError reports a byte buffer that is not a valid container or lacks
// an expected structural element.
type FormatError struct {
	Path string // container path of the offending element, "" for the whole file
	Err  error
}

func (e *FormatError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid H5J container: %v", e.Err)
	}
	return fmt.Sprintf("invalid H5J container at %s: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ChannelNotFoundError reports a channel name with no corresponding node
// under the "Channels" group. It is distinct from FormatError and from
// codec failures so callers can tell a bad name from a broken file or a
// broken decode.
type ChannelNotFoundError struct {
	Name string
}

func (e *ChannelNotFoundError) Error() string {
	return fmt.Sprintf("channel not found: %q", e.Name)
}
