// Package gcsstore moves statement documents in and out of Google Cloud
// Storage. Credentials come from Application Default Credentials.
package gcsstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// StorageService abstracts object storage for fetching and uploading
// statement documents. It exists so the worker and tests can swap the
// backend.
type StorageService interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
	Upload(ctx context.Context, bucket, object string, r io.Reader) (string, error)
	FilenameFromURI(uri string) string
}

// Client implements StorageService over GCS.
type Client struct {
	gcs *storage.Client
}

// New creates a Client. The caller owns the lifetime via Close.
func New(ctx context.Context) (*Client, error) {
	gcs, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcsstore: create storage client: %w", err)
	}
	return &Client{gcs: gcs}, nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	return c.gcs.Close()
}

// Fetch downloads the object bytes for a "gs://bucket/path" URI.
func (c *Client) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := splitURI(uri)
	if err != nil {
		return nil, err
	}

	r, err := c.gcs.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcsstore: open %s: %w", uri, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gcsstore: read %s: %w", uri, err)
	}
	return data, nil
}

// Upload writes r to the bucket under object and returns the gs:// URI.
func (c *Client) Upload(ctx context.Context, bucket, object string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := c.gcs.Bucket(bucket).Object(object).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcsstore: write gs://%s/%s: %w", bucket, object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcsstore: finalize gs://%s/%s: %w", bucket, object, err)
	}
	return fmt.Sprintf("gs://%s/%s", bucket, object), nil
}

// FilenameFromURI returns the last path element of a gs:// URI.
func (c *Client) FilenameFromURI(uri string) string {
	return path.Base(strings.TrimPrefix(uri, "gs://"))
}

func splitURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("gcsstore: invalid GCS URI %q", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("gcsstore: invalid GCS URI %q", uri)
	}
	return parts[0], parts[1], nil
}

var _ StorageService = (*Client)(nil)
