package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory bucket answering single-part requests.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	headErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) put(key, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = []byte(body)
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.put(aws.ToString(in.Key), string(data))
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	data, ok := f.objects[aws.ToString(in.Key)]
	f.mu.Unlock()
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	n := int64(len(data))
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(n),
		ContentRange:  aws.String(fmt.Sprintf("bytes 0-%d/%d", n-1, n)),
	}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	modified := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
	for key, data := range f.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, types.Object{
				Key:          aws.String(key),
				Size:         aws.Int64(int64(len(data))),
				LastModified: aws.Time(modified),
			})
		}
	}
	return out, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headErr
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNoBucket)
}

func TestClient_Key(t *testing.T) {
	assert.Equal(t, "a.csv", NewWithAPI(newFakeS3(), "b", "", zerolog.Nop()).Key("a.csv"))
	assert.Equal(t, "ibkr/2024/a.csv", NewWithAPI(newFakeS3(), "b", "/ibkr/2024/", zerolog.Nop()).Key("a.csv"))
}

func TestClient_Ping(t *testing.T) {
	api := newFakeS3()
	c := NewWithAPI(api, "statements", "", zerolog.Nop())
	assert.NoError(t, c.Ping(context.Background()))

	api.headErr = errors.New("forbidden")
	assert.Error(t, c.Ping(context.Background()))
}

func TestClient_UploadListDelete(t *testing.T) {
	api := newFakeS3()
	c := NewWithAPI(api, "statements", "snapshots", zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, c.Upload(ctx, "b.msgpack", strings.NewReader("bbb"), 3))
	require.NoError(t, c.Upload(ctx, "a.msgpack", strings.NewReader("a"), 1))
	api.put("elsewhere/c.msgpack", "c")

	objects, err := c.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "snapshots/a.msgpack", objects[0].Key)
	assert.Equal(t, int64(3), objects[1].Size)

	require.NoError(t, c.Delete(ctx, objects[0].Key))
	objects, err = c.List(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestClient_Download(t *testing.T) {
	api := newFakeS3()
	api.put("exports/U1.csv", "Statement,Header,Field Name,Field Value\n")
	c := NewWithAPI(api, "statements", "exports", zerolog.Nop())

	local := filepath.Join(t.TempDir(), "nested", "U1.csv")
	n, err := c.Download(context.Background(), "exports/U1.csv", local)
	require.NoError(t, err)
	assert.Equal(t, int64(40), n)

	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "Statement,Header,Field Name,Field Value\n", string(data))

	_, err = c.Download(context.Background(), "exports/missing.csv", local)
	assert.Error(t, err)
}

func TestClient_SyncCSV(t *testing.T) {
	api := newFakeS3()
	api.put("exports/U1_2024Q1.csv", "one")
	api.put("exports/U1_2024Q2.CSV", "two")
	api.put("exports/readme.txt", "skip")
	c := NewWithAPI(api, "statements", "exports", zerolog.Nop())
	dir := t.TempDir()
	ctx := context.Background()

	written, err := c.SyncCSV(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "U1_2024Q1.csv"),
		filepath.Join(dir, "U1_2024Q2.CSV"),
	}, written)
	assert.NoFileExists(t, filepath.Join(dir, "readme.txt"))

	written, err = c.SyncCSV(ctx, dir)
	require.NoError(t, err)
	assert.Empty(t, written)
}
