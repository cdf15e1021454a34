package export

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/fsouza/fake-gcs-server/fakestorage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

const testBucket = "ledger-exports"

func newTestArchiver(t *testing.T) (*Archiver, *fakestorage.Server) {
	t.Helper()

	server, err := fakestorage.NewServerWithOptions(fakestorage.Options{NoListener: true})
	require.NoError(t, err)
	t.Cleanup(server.Stop)
	server.CreateBucketWithOpts(fakestorage.CreateBucketOpts{Name: testBucket})

	client, err := storage.NewClient(
		context.Background(),
		option.WithoutAuthentication(),
		option.WithHTTPClient(server.HTTPClient()))
	require.NoError(t, err)

	return NewArchiverWithClient(client, testBucket), server
}

func TestArchiver_Archive(t *testing.T) {
	archiver, server := newTestArchiver(t)
	doc := Document{
		Filename:    "transactions_2026-10-19.csv",
		ContentType: CSVContentType,
		Content:     []byte("Date,Description,Amount,Type,Category\n"),
	}

	uri, err := archiver.Archive(context.Background(), doc, testNow)
	require.NoError(t, err)
	assert.Equal(t, "gs://ledger-exports/exports/2026/10/19/transactions_2026-10-19.csv", uri)

	obj, err := server.GetObject(testBucket, "exports/2026/10/19/transactions_2026-10-19.csv")
	require.NoError(t, err)
	assert.Equal(t, doc.Content, obj.Content)

	fetched, err := archiver.Fetch(context.Background(), uri)
	require.NoError(t, err)
	assert.Equal(t, doc.Filename, fetched.Filename)
	assert.Equal(t, doc.Content, fetched.Content)
}

func TestArchiver_FetchMissing(t *testing.T) {
	archiver, _ := newTestArchiver(t)

	_, err := archiver.Fetch(context.Background(), "gs://ledger-exports/exports/missing.csv")

	assert.Error(t, err)
}

func TestNewArchiver_RequiresBucket(t *testing.T) {
	_, err := NewArchiver(context.Background(), "")

	assert.Error(t, err)
}

func TestObjectName(t *testing.T) {
	got := ObjectName("a.csv", time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "exports/2026/02/03/a.csv", got)
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://bucket/exports/a.csv", "bucket", "exports/a.csv", false},
		{"gs://bucket", "", "", true},
		{"gs:///a.csv", "", "", true},
		{"https://bucket/a.csv", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantObject, object)
		})
	}
}
