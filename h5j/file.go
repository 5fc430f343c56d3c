package h5j

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"strings"
	"sync/atomic"

	"github.com/robert-malhotra/go-hdf5/hdf5"

	"github.com/JaneliaSciComp/web-h5j-loader/source"
)

// File is an opened, read-only H5J container.
type File struct {
	hf     *hdf5.File
	origin string
	id     string
	tmp    string // temp materialization for OpenBytes/OpenSource, removed on Close
	closed bool
}

// fileSeq disambiguates staging names across concurrently open files with
// the same origin.
var fileSeq atomic.Uint64

// Open opens an H5J file from a local path.
func Open(path string) (*File, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &source.Error{Op: "open", Origin: path, Err: err}
	}

	hf, err := hdf5.Open(path)
	if err != nil {
		return nil, &FormatError{Err: err}
	}

	return &File{
		hf:     hf,
		origin: path,
		id:     newFileID(path),
	}, nil
}

// OpenBytes opens an H5J container held in memory. Gzip-compressed buffers
// are transparently decompressed. The bytes are materialized to a temporary
// file for the container reader; Close removes it.
func OpenBytes(b []byte) (*File, error) {
	if source.IsGzip(b) {
		var err error
		if b, err = source.Gunzip(b); err != nil {
			return nil, &FormatError{Err: err}
		}
	}

	tmp, err := os.CreateTemp("", "h5j-*.h5j")
	if err != nil {
		return nil, &source.Error{Op: "materialize", Origin: "(bytes)", Err: err}
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, &source.Error{Op: "materialize", Origin: "(bytes)", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, &source.Error{Op: "materialize", Origin: "(bytes)", Err: err}
	}

	hf, err := hdf5.Open(tmp.Name())
	if err != nil {
		os.Remove(tmp.Name())
		return nil, &FormatError{Err: err}
	}

	return &File{
		hf:     hf,
		origin: "(bytes)",
		id:     newFileID("bytes"),
		tmp:    tmp.Name(),
	}, nil
}

// OpenSource fetches a container through f and opens it. Fetch failures
// surface as *source.Error before any container parsing is attempted.
func OpenSource(ctx context.Context, f source.Fetcher) (*File, error) {
	b, err := f.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	file, err := OpenBytes(b)
	if err != nil {
		return nil, err
	}
	file.origin = f.Name()
	file.id = newFileID(f.Name())
	return file, nil
}

// Close releases the underlying container and any temporary materialization.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	err := f.hf.Close()
	if f.tmp != "" {
		if rmErr := os.Remove(f.tmp); err == nil {
			err = rmErr
		}
	}
	return err
}

// Origin returns the path, URL, or other identifier the file was opened from.
func (f *File) Origin() string {
	return f.origin
}

// newFileID derives a short container identity used in staging names.
func newFileID(origin string) string {
	h := fnv.New64a()
	h.Write([]byte(origin))
	return fmt.Sprintf("%x-%d", h.Sum64(), fileSeq.Add(1))
}

// sanitizeName makes a channel name safe for use as a staged filename.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
