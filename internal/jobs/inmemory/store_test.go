package inmemory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dvloznov/spendquest/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveAndGet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	job := &jobs.ExtractReceiptJob{JobID: "j1", SessionID: "s1", Image: []byte{1}, Status: jobs.JobStatusPending}

	require.NoError(t, store.SaveJob(ctx, job))
	job.Status = jobs.JobStatusFailed // caller changes must not leak in

	got, err := store.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusPending, got.Status)
	assert.Nil(t, got.Image)

	_, err = store.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)

	assert.Error(t, store.SaveJob(ctx, &jobs.ExtractReceiptJob{}))
}

func TestStore_ListJobs(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		session := "s1"
		status := jobs.JobStatusCompleted
		if i%2 == 1 {
			session = "s2"
			status = jobs.JobStatusFailed
		}
		require.NoError(t, store.SaveJob(ctx, &jobs.ExtractReceiptJob{
			JobID:     fmt.Sprintf("j%d", i),
			SessionID: session,
			Status:    status,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	ids := func(list []*jobs.ExtractReceiptJob) []string {
		out := make([]string, len(list))
		for i, j := range list {
			out[i] = j.JobID
		}
		return out
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all newest first", jobs.JobFilter{}, []string{"j4", "j3", "j2", "j1", "j0"}},
		{"by session", jobs.JobFilter{SessionID: "s2"}, []string{"j3", "j1"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusCompleted}, []string{"j4", "j2", "j0"}},
		{"limit and offset", jobs.JobFilter{Limit: 2, Offset: 1}, []string{"j3", "j2"}},
		{"offset past end", jobs.JobFilter{Offset: 10}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListJobs(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestStore_UpdateJobStatus(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.SaveJob(ctx, &jobs.ExtractReceiptJob{JobID: "j1", Status: jobs.JobStatusRunning}))

	require.NoError(t, store.UpdateJobStatus(ctx, "j1", jobs.JobStatusFailed, "boom"))
	got, err := store.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)

	assert.ErrorIs(t, store.UpdateJobStatus(ctx, "nope", jobs.JobStatusFailed, ""), jobs.ErrJobNotFound)
}
