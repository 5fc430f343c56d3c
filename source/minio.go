package source

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
)

// MinIOFetcher reads a container from a MinIO (or other S3-compatible) object.
type MinIOFetcher struct {
	Client *minio.Client
	Bucket string
	Key    string
}

// MinIO creates a fetcher for a MinIO object.
func MinIO(client *minio.Client, bucket, key string) *MinIOFetcher {
	return &MinIOFetcher{Client: client, Bucket: bucket, Key: key}
}

func (f *MinIOFetcher) Name() string { return "minio://" + f.Bucket + "/" + f.Key }

func (f *MinIOFetcher) Fetch(ctx context.Context) ([]byte, error) {
	obj, err := f.Client.GetObject(ctx, f.Bucket, f.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, &Error{Op: "get", Origin: f.Name(), Err: err}
	}
	defer obj.Close()

	b, err := io.ReadAll(obj)
	if err != nil {
		return nil, &Error{Op: "read", Origin: f.Name(), Err: err}
	}
	return b, nil
}
