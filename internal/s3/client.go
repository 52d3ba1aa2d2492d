package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"social-publisher/internal"
)

// Client reads media objects that posts reference as s3://bucket/key.
type Client interface {
	Head(ctx context.Context, bucket, key string) (ObjectInfo, error)
	Download(ctx context.Context, bucket, key string, w io.WriterAt) (int64, error)
}

type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	ETag        string
}

// ErrNotExist is returned when the object is missing.
var ErrNotExist = errors.New("s3 object does not exist")

type s3Client struct {
	api *awss3.Client
	dl  *manager.Downloader
}

func New(cfg internal.Config) (Client, error) {
	endpoint := cfg.S3Endpoint
	forcePathStyle := endpoint != "" && !strings.Contains(endpoint, "amazonaws.com")

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, err
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		o.UsePathStyle = forcePathStyle
		if endpoint != "" {
			o.BaseEndpoint = &endpoint
		}
	})

	return &s3Client{
		api: client,
		dl:  manager.NewDownloader(client),
	}, nil
}

func (c *s3Client) Head(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	out, err := c.api.HeadObject(ctx, &awss3.HeadObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return ObjectInfo{}, mapErr(err)
	}
	info := ObjectInfo{Key: key, ContentType: deref(out.ContentType), ETag: deref(out.ETag)}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	return info, nil
}

// Download writes the object into w using concurrent ranged GETs.
func (c *s3Client) Download(ctx context.Context, bucket, key string, w io.WriterAt) (int64, error) {
	n, err := c.dl.Download(ctx, w, &awss3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return n, mapErr(err)
	}
	return n, nil
}

// ParseURI splits s3://bucket/key. ok is false for any other scheme.
func ParseURI(uri string) (bucket, key string, ok bool) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "s3" || u.Host == "" {
		return "", "", false
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", false
	}
	return u.Host, key, true
}

func mapErr(err error) error {
	var (
		noSuchKey *types.NoSuchKey
		notFound  *types.NotFound
	)
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %v", ErrNotExist, err)
	}
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
