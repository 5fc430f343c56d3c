package source

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Fetcher reads a container from an S3 object.
type S3Fetcher struct {
	Client *s3.Client
	Bucket string
	Key    string
}

// S3 creates a fetcher for an S3 object.
func S3(client *s3.Client, bucket, key string) *S3Fetcher {
	return &S3Fetcher{Client: client, Bucket: bucket, Key: key}
}

// S3FromDefaultConfig builds an S3 fetcher using the ambient AWS configuration
// (environment, shared config files, instance metadata).
func S3FromDefaultConfig(ctx context.Context, bucket, key string) (*S3Fetcher, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, &Error{Op: "config", Origin: "s3://" + bucket + "/" + key, Err: err}
	}
	return S3(s3.NewFromConfig(cfg), bucket, key), nil
}

func (f *S3Fetcher) Name() string { return "s3://" + f.Bucket + "/" + f.Key }

func (f *S3Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	buf := manager.NewWriteAtBuffer(nil)
	downloader := manager.NewDownloader(f.Client)

	_, err := downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(f.Bucket),
		Key:    aws.String(f.Key),
	})
	if err != nil {
		return nil, &Error{Op: "get", Origin: f.Name(), Err: err}
	}
	return buf.Bytes(), nil
}
