package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const archivePrefix = "exports"

// Archiver stores rendered exports in a Cloud Storage bucket.
type Archiver struct {
	client *storage.Client
	bucket string
}

// NewArchiver creates an Archiver for bucket. Without options the client
// uses Application Default Credentials.
func NewArchiver(ctx context.Context, bucket string, opts ...option.ClientOption) (*Archiver, error) {
	if bucket == "" {
		return nil, errors.New("NewArchiver: bucket name is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewArchiver: create storage client: %w", err)
	}
	return &Archiver{client: client, bucket: bucket}, nil
}

// NewArchiverWithClient wraps an existing storage client.
func NewArchiverWithClient(client *storage.Client, bucket string) *Archiver {
	return &Archiver{client: client, bucket: bucket}
}

// Close releases the underlying storage client.
func (a *Archiver) Close() error {
	return a.client.Close()
}

// ObjectName returns the object path for a document archived at now,
// e.g. "exports/2026/10/19/transactions_2026-10-19.csv".
func ObjectName(filename string, now time.Time) string {
	return path.Join(archivePrefix, now.Format("2006/01/02"), filename)
}

// Archive uploads doc and returns its gs:// URI.
func (a *Archiver) Archive(ctx context.Context, doc Document, now time.Time) (string, error) {
	objectName := ObjectName(doc.Filename, now)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = doc.ContentType

	if _, err := w.Write(doc.Content); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Archive: write object %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Archive: finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", a.bucket, objectName), nil
}

// Fetch downloads a previously archived document by its gs:// URI.
func (a *Archiver) Fetch(ctx context.Context, uri string) (Document, error) {
	bucket, objectName, err := ParseURI(uri)
	if err != nil {
		return Document{}, err
	}

	r, err := a.client.Bucket(bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("Fetch: open object %s/%s: %w", bucket, objectName, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("Fetch: read object: %w", err)
	}

	return Document{
		Filename:    path.Base(objectName),
		ContentType: r.Attrs.ContentType,
		Content:     data,
	}, nil
}

// ParseURI splits gs://bucket/path/to/object into bucket and object name.
func ParseURI(uri string) (bucket, objectName string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}
