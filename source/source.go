// Package source fetches H5J container bytes from local and remote origins.
package source

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Fetcher retrieves the complete byte content of one container.
type Fetcher interface {
	// Name identifies the origin (path, URL, or bucket/key) for error
	// reporting and container identity.
	Name() string

	// Fetch retrieves the container bytes. Failures are reported as *Error.
	Fetch(ctx context.Context) ([]byte, error)
}

// Error reports a failed fetch or read. Status is the HTTP status code when
// the origin is an HTTP server, 0 otherwise.
type Error struct {
	Op     string
	Origin string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("source %s %s: status %d", e.Op, e.Origin, e.Status)
	}
	return fmt.Sprintf("source %s %s: %v", e.Op, e.Origin, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsGzip reports whether b starts with the gzip magic number (RFC 1952).
func IsGzip(b []byte) bool {
	return len(b) >= 2 && b[0] == 0x1f && b[1] == 0x8b
}

// Gunzip decompresses a gzip-compressed byte buffer.
func Gunzip(b []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	return out, nil
}
