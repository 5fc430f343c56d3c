package h5j

import (
	"errors"

	"github.com/robert-malhotra/go-hdf5/hdf5"
)

// channel resolves a channel name to its compressed-payload dataset at
// "Channels/<name>". The container reader's not-found sentinel is translated
// to ChannelNotFoundError at this boundary so callers can distinguish a bad
// channel name from a malformed container or a codec failure.
func (f *File) channel(name string) (*hdf5.Dataset, error) {
	if f.closed {
		return nil, ErrClosed
	}

	ds, err := f.hf.OpenDataset("Channels/" + name)
	if err != nil {
		if errors.Is(err, hdf5.ErrNotFound) {
			return nil, &ChannelNotFoundError{Name: name}
		}
		return nil, &FormatError{Path: "/Channels/" + name, Err: err}
	}
	return ds, nil
}
