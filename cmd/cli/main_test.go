package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dvloznov/spendquest/internal/export"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockFetcher is a mock implementation of archiveFetcher for testing.
type MockFetcher struct {
	FetchFunc func(ctx context.Context, uri string) (export.Document, error)
}

func (m *MockFetcher) Fetch(ctx context.Context, uri string) (export.Document, error) {
	return m.FetchFunc(ctx, uri)
}

func TestFetchExport(t *testing.T) {
	var gotURI string
	fetcher := &MockFetcher{FetchFunc: func(ctx context.Context, uri string) (export.Document, error) {
		gotURI = uri
		return export.Document{Filename: "transactions_2026-10-19.csv", Content: []byte("Date,Description\n")}, nil
	}}

	out := filepath.Join(t.TempDir(), "copy.csv")
	path, err := fetchExport(context.Background(), fetcher, "gs://b/exports/2026/10/19/transactions_2026-10-19.csv", out)
	require.NoError(t, err)

	assert.Equal(t, out, path)
	assert.Equal(t, "gs://b/exports/2026/10/19/transactions_2026-10-19.csv", gotURI)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "Date,Description\n", string(data))
}

func TestFetchExport_DefaultsToArchivedName(t *testing.T) {
	t.Chdir(t.TempDir())
	fetcher := &MockFetcher{FetchFunc: func(ctx context.Context, uri string) (export.Document, error) {
		return export.Document{Filename: "transactions_2026-10-19.csv", Content: []byte("x")}, nil
	}}

	path, err := fetchExport(context.Background(), fetcher, "gs://b/o.csv", "")
	require.NoError(t, err)
	assert.Equal(t, "transactions_2026-10-19.csv", path)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestFetchExport_Error(t *testing.T) {
	missing := errors.New("object not found")
	fetcher := &MockFetcher{FetchFunc: func(ctx context.Context, uri string) (export.Document, error) {
		return export.Document{}, missing
	}}

	_, err := fetchExport(context.Background(), fetcher, "gs://b/o.csv", filepath.Join(t.TempDir(), "x.csv"))
	assert.ErrorIs(t, err, missing)
}

func TestDetectMIMEType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	assert.Equal(t, "image/jpeg", detectMIMEType("receipt.JPG", nil))
	assert.Equal(t, "image/png", detectMIMEType("receipt", png))
}
