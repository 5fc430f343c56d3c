package source

import (
	"context"
	"os"
)

// FileFetcher reads a container from the local filesystem.
type FileFetcher struct {
	Path string
}

// File creates a fetcher for a local file path.
func File(path string) *FileFetcher {
	return &FileFetcher{Path: path}
}

func (f *FileFetcher) Name() string { return f.Path }

func (f *FileFetcher) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "read", Origin: f.Path, Err: err}
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, &Error{Op: "read", Origin: f.Path, Err: err}
	}
	return b, nil
}
