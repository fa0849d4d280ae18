package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

type memoryStore struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (m *memoryStore) EnsureBucket(context.Context, string) error { return nil }

func (m *memoryStore) PutObject(_ context.Context, bucket, key, contentType string, r io.Reader, _ int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[bucket+"/"+key] = data
	m.types[bucket+"/"+key] = contentType
	return nil
}

func (m *memoryStore) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) PresignGet(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
	return "https://files.test/" + bucket + "/" + key + "?ttl=" + ttl.String(), nil
}

func TestImageBucketRoundTrip(t *testing.T) {
	store := newMemoryStore()
	bucket := NewImageBucket(store, "report-images", 1024)
	ctx := context.Background()

	key, err := bucket.Save(ctx, "5d1c.jpg", "image/jpeg", []byte("jpeg"))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if key != "reports/5d1c.jpg" {
		t.Fatalf("unexpected key %q", key)
	}
	if store.types["report-images/"+key] != "image/jpeg" {
		t.Fatalf("content type not forwarded: %q", store.types["report-images/"+key])
	}

	data, err := bucket.Fetch(ctx, key)
	if err != nil || string(data) != "jpeg" {
		t.Fatalf("fetch returned %q err=%v", data, err)
	}

	url, err := bucket.URL(ctx, key)
	if err != nil || !strings.HasPrefix(url, "https://files.test/report-images/reports/5d1c.jpg") {
		t.Fatalf("unexpected url %q err=%v", url, err)
	}
}

func TestImageBucketKeepsKeysInsideFolder(t *testing.T) {
	bucket := NewImageBucket(newMemoryStore(), "report-images", 0)
	key, err := bucket.Save(context.Background(), "../../etc/passwd.jpg", "image/jpeg", []byte("x"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if key != "reports/passwd.jpg" {
		t.Fatalf("unexpected key %q", key)
	}
}

func TestImageBucketRejectsNonImages(t *testing.T) {
	bucket := NewImageBucket(newMemoryStore(), "report-images", 1024)
	if _, err := bucket.Save(context.Background(), "doc.pdf", "application/pdf", []byte("%PDF")); err == nil {
		t.Fatal("expected pdf to be rejected")
	}
}

func TestImageBucketEnforcesSize(t *testing.T) {
	store := newMemoryStore()
	bucket := NewImageBucket(store, "report-images", 4)
	ctx := context.Background()

	if _, err := bucket.Save(ctx, "big.jpg", "image/jpeg", []byte("too large")); err == nil {
		t.Fatal("expected oversize upload to be rejected")
	}
	if _, err := bucket.Save(ctx, "empty.jpg", "image/jpeg", nil); err == nil {
		t.Fatal("expected empty upload to be rejected")
	}

	store.objects["report-images/reports/grown.jpg"] = []byte("grew after upload")
	if _, err := bucket.Fetch(ctx, "reports/grown.jpg"); err == nil {
		t.Fatal("expected oversize object to be rejected on fetch")
	}
}
