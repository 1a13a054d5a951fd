package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"esign-backend/internal/shared/storage/object"
)

// Store implements ObjectStore using Amazon S3.
type Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	prefix    string
	kmsKeyID  string
}

// New creates a new S3-backed object store.
func New(ctx context.Context, region, bucket, prefix, kmsKeyID string) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		prefix:    normalizePrefix(prefix),
		kmsKeyID:  strings.TrimSpace(kmsKeyID),
	}, nil
}

// Save uploads the reader contents to S3 under the owner's namespace.
func (s *Store) Save(ctx context.Context, ownerID string, fileName string, r io.Reader) (string, int64, string, error) {
	storageKey, err := object.NewKey(ownerID, fileName)
	if err != nil {
		return "", 0, "", err
	}
	if err := ctx.Err(); err != nil {
		return "", 0, "", err
	}

	objectKey := applyPrefix(s.prefix, storageKey)
	mimeType, head, err := object.Sniff(r)
	if err != nil {
		return "", 0, "", err
	}
	counter := &countingReader{r: io.MultiReader(bytes.NewReader(head), r)}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        counter,
		ContentType: aws.String(mimeType),
	}
	if s.kmsKeyID != "" {
		input.ServerSideEncryption = s3types.ServerSideEncryptionAwsKms
		input.SSEKMSKeyId = aws.String(s.kmsKeyID)
	} else {
		input.ServerSideEncryption = s3types.ServerSideEncryptionAes256
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", 0, "", fmt.Errorf("s3 put object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}

	return storageKey, counter.n, mimeType, nil
}

// Open downloads a stored object for reading.
func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	objectKey := applyPrefix(s.prefix, storageKey)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var missing *s3types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, object.ErrNotFound
		}
		return nil, fmt.Errorf("s3 get object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return out.Body, nil
}

// Delete removes the object. S3 treats deleting a missing key as success.
func (s *Store) Delete(ctx context.Context, storageKey string) error {
	objectKey := applyPrefix(s.prefix, storageKey)
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	}); err != nil {
		return fmt.Errorf("s3 delete object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return nil
}

// PresignGet returns a time-limited download URL that names the file.
func (s *Store) PresignGet(ctx context.Context, storageKey, downloadName string, ttl time.Duration) (string, error) {
	objectKey := applyPrefix(s.prefix, storageKey)
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	}
	if downloadName != "" {
		input.ResponseContentDisposition = aws.String(contentDisposition(downloadName))
	}
	req, err := s.presigner.PresignGetObject(ctx, input, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("s3 presign get bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return req.URL, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func contentDisposition(name string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}

func normalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

func applyPrefix(prefix, key string) string {
	cleanPrefix := strings.Trim(prefix, "/")
	cleanKey := strings.TrimLeft(key, "/")
	if cleanPrefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return cleanPrefix
	}
	return cleanPrefix + "/" + cleanKey
}

var (
	_ object.ObjectStore = (*Store)(nil)
	_ object.Presigner   = (*Store)(nil)
)
