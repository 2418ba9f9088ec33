// Package objectstore provides an S3-compatible bucket client (AWS S3,
// Cloudflare R2, MinIO) used to fetch statement exports and to publish
// snapshots and database backups.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// ErrNoBucket is returned when the client is built without a bucket name.
var ErrNoBucket = errors.New("no bucket configured")

// API is the subset of the S3 client the object store uses.
type API interface {
	manager.UploadAPIClient
	manager.DownloadAPIClient
	s3.ListObjectsV2APIClient
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Config holds bucket connection settings. Endpoint is only needed for
// S3-compatible services; it switches to path-style addressing.
type Config struct {
	Bucket          string
	Prefix          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Object describes one stored object.
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Client reads and writes objects under one bucket prefix.
type Client struct {
	api        API
	bucket     string
	prefix     string
	uploader   *manager.Uploader
	downloader *manager.Downloader
	log        zerolog.Logger
}

// New creates a client from cfg, resolving credentials from the static keys
// when given and from the default AWS chain otherwise.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, ErrNoBucket
	}

	region := cfg.Region
	if region == "" && cfg.Endpoint != "" {
		region = "auto"
	} else if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithAPI(api, cfg.Bucket, cfg.Prefix, log), nil
}

// NewWithAPI creates a client over an existing S3 API implementation.
func NewWithAPI(api API, bucket, prefix string, log zerolog.Logger) *Client {
	return &Client{
		api:        api,
		bucket:     bucket,
		prefix:     strings.Trim(prefix, "/"),
		uploader:   manager.NewUploader(api),
		downloader: manager.NewDownloader(api),
		log:        log.With().Str("client", "objectstore").Str("bucket", bucket).Logger(),
	}
}

// Bucket returns the bucket name
func (c *Client) Bucket() string {
	return c.bucket
}

// Key joins name under the client prefix.
func (c *Client) Key(name string) string {
	if c.prefix == "" {
		return name
	}
	return path.Join(c.prefix, name)
}

// Ping checks the bucket is reachable with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err != nil {
		return fmt.Errorf("failed to access bucket %s: %w", c.bucket, err)
	}
	return nil
}

// Upload stores body under name.
func (c *Client) Upload(ctx context.Context, name string, body io.Reader, size int64) error {
	key := c.Key(name)
	_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	c.log.Info().Str("key", key).Int64("size_bytes", size).Msg("Uploaded object")
	return nil
}

// UploadFile stores the local file at path under name.
func (c *Client) UploadFile(ctx context.Context, name, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}
	return c.Upload(ctx, name, f, info.Size())
}

// List returns the objects whose name starts with namePrefix, sorted by key.
func (c *Client) List(ctx context.Context, namePrefix string) ([]Object, error) {
	prefix := c.Key(namePrefix)
	if c.prefix != "" && namePrefix == "" {
		prefix = c.prefix + "/"
	}

	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})

	var objects []Object
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			objects = append(objects, Object{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// Download writes the object key to the local file at localPath.
func (c *Client) Download(ctx context.Context, key, localPath string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory for %s: %w", localPath, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(localPath), ".download-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	n, err := c.downloader.Download(ctx, tmp, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to download %s: %w", key, err)
	}

	if err := os.Rename(tmpPath, localPath); err != nil {
		return 0, fmt.Errorf("failed to move %s into place: %w", localPath, err)
	}
	return n, nil
}

// Delete removes the object key.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// SyncCSV downloads every .csv object under the prefix into dir, skipping
// files already present with the same size. It returns the local paths
// written.
func (c *Client) SyncCSV(ctx context.Context, dir string) ([]string, error) {
	objects, err := c.List(ctx, "")
	if err != nil {
		return nil, err
	}

	var written []string
	for _, obj := range objects {
		name := path.Base(obj.Key)
		if !strings.EqualFold(path.Ext(name), ".csv") {
			continue
		}

		local := filepath.Join(dir, name)
		if info, err := os.Stat(local); err == nil && info.Size() == obj.Size {
			c.log.Debug().Str("key", obj.Key).Msg("Already synced, skipping")
			continue
		}

		if _, err := c.Download(ctx, obj.Key, local); err != nil {
			return written, err
		}
		written = append(written, local)
	}

	c.log.Info().
		Int("objects", len(objects)).
		Int("downloaded", len(written)).
		Str("dir", dir).
		Msg("Synced statements from bucket")
	return written, nil
}
