package repo

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 — минимальная подмена S3API
type fakeS3 struct {
	objects map[string][]byte
	buckets []string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.buckets = append(f.buckets, aws.ToString(in.Bucket))
	f.objects[aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3ObjectStore_PutGetDelete(t *testing.T) {
	f := &fakeS3{objects: map[string][]byte{}}
	store := NewS3ObjectStore(f, "evidence-bucket")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "evidence/1/a", []byte("cipher")))
	assert.Equal(t, []string{"evidence-bucket"}, f.buckets)

	got, err := store.Get(ctx, "evidence/1/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("cipher"), got)

	require.NoError(t, store.Delete(ctx, "evidence/1/a"))
	_, err = store.Get(ctx, "evidence/1/a")
	assert.True(t, errors.Is(err, ErrObjectNotFound))
}

func TestNewS3Client_CustomEndpoint(t *testing.T) {
	c, err := NewS3Client(context.Background(), S3Options{
		Region:    "us-east-1",
		Endpoint:  "http://127.0.0.1:9000",
		AccessKey: "admin",
		SecretKey: "secret",
	})
	require.NoError(t, err)
	assert.NotNil(t, c)
	assert.Equal(t, "us-east-1", c.Options().Region)
	assert.True(t, c.Options().UsePathStyle)
}
