package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

const (
	reportImageFolder = "reports"
	// imageURLTTL bounds how long a signed link on a report detail works.
	imageURLTTL = 15 * time.Minute
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// ImageBucket stores report photos in a single bucket under reports/.
type ImageBucket struct {
	store   ObjectStore
	bucket  string
	maxSize int64
}

// NewImageBucket binds store to bucket. maxSize <= 0 disables the size cap.
func NewImageBucket(store ObjectStore, bucket string, maxSize int64) *ImageBucket {
	return &ImageBucket{store: store, bucket: bucket, maxSize: maxSize}
}

// Ensure creates the bucket when missing.
func (b *ImageBucket) Ensure(ctx context.Context) error {
	return b.store.EnsureBucket(ctx, b.bucket)
}

// Save uploads a processed photo and returns its object key.
func (b *ImageBucket) Save(ctx context.Context, fileName, contentType string, data []byte) (string, error) {
	if err := validateContentType(contentType); err != nil {
		return "", err
	}
	if err := b.validateSize(int64(len(data))); err != nil {
		return "", err
	}

	key := path.Join(reportImageFolder, path.Base(fileName))
	if err := b.store.PutObject(ctx, b.bucket, key, contentType, bytes.NewReader(data), int64(len(data))); err != nil {
		return "", err
	}
	return key, nil
}

// Fetch downloads the object at key, reading at most the configured maximum size.
func (b *ImageBucket) Fetch(ctx context.Context, key string) ([]byte, error) {
	rc, err := b.store.GetObject(ctx, b.bucket, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var reader io.Reader = rc
	if b.maxSize > 0 {
		reader = io.LimitReader(rc, b.maxSize+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	if err := b.validateSize(int64(len(data))); err != nil {
		return nil, fmt.Errorf("object %s: %w", key, err)
	}
	return data, nil
}

// URL returns a short-lived download link for key.
func (b *ImageBucket) URL(ctx context.Context, key string) (string, error) {
	return b.store.PresignGet(ctx, b.bucket, key, imageURLTTL)
}

func (b *ImageBucket) validateSize(n int64) error {
	if n <= 0 {
		return fmt.Errorf("image is empty")
	}
	if b.maxSize > 0 && n > b.maxSize {
		return fmt.Errorf("image size %d bytes exceeds maximum of %d bytes", n, b.maxSize)
	}
	return nil
}

func validateContentType(contentType string) error {
	normalized := strings.TrimSpace(strings.ToLower(strings.Split(contentType, ";")[0]))
	if !allowedImageTypes[normalized] {
		return fmt.Errorf("content type %q is not allowed", contentType)
	}
	return nil
}
