package source

import (
	"context"
	"errors"
	"io"
	"net/http"
)

// HTTPFetcher reads a container over HTTP(S).
type HTTPFetcher struct {
	URL string

	// Client overrides http.DefaultClient when set.
	Client *http.Client
}

// HTTP creates a fetcher for a URL.
func HTTP(url string) *HTTPFetcher {
	return &HTTPFetcher{URL: url}
}

func (f *HTTPFetcher) Name() string { return f.URL }

func (f *HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, &Error{Op: "request", Origin: f.URL, Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{Op: "get", Origin: f.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Op: "get", Origin: f.URL, Status: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: "read", Origin: f.URL, Err: err}
	}
	return b, nil
}
