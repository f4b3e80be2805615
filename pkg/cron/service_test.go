package cron

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(filepath.Join(t.TempDir(), "cron.json"), nil)
}

func TestComputeNextRunAt(t *testing.T) {
	next := computeNextRun(Schedule{Kind: "at", AtMs: 12345}, 0)
	assert.Equal(t, int64(12345), next)
}

func TestComputeNextRunEvery(t *testing.T) {
	now := time.Now().UnixMilli()
	next := computeNextRun(Schedule{Kind: "every", EveryMs: 60000}, now)
	assert.Equal(t, now+60000, next)
}

func TestComputeNextRunCronExpression(t *testing.T) {
	now := time.Now().UnixMilli()
	next := computeNextRun(Schedule{Kind: "cron", Expr: "0 9 * * *"}, now)
	assert.Greater(t, next, now)
}

func TestComputeNextRunInvalidExpression(t *testing.T) {
	assert.Equal(t, int64(0), computeNextRun(Schedule{Kind: "cron", Expr: "not a cron"}, 0))
}

func TestAddListRemoveJob(t *testing.T) {
	s := newTestService(t)
	s.loadStore()

	job := s.AddJob("reminder", Schedule{Kind: "every", EveryMs: 60000}, "drink water", "telegram", "42", false)
	require.NotEmpty(t, job.ID)
	assert.Equal(t, "telegram", job.Payload.Channel)
	assert.Equal(t, "42", job.Payload.To)

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "reminder", jobs[0].Name)

	assert.True(t, s.RemoveJob(job.ID))
	assert.Empty(t, s.ListJobs())
	assert.False(t, s.RemoveJob(job.ID))
}

func TestJobsPersistAcrossServices(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "cron.json")

	s1 := NewService(storePath, nil)
	s1.loadStore()
	s1.AddJob("daily", Schedule{Kind: "cron", Expr: "0 9 * * *"}, "standup", "feishu", "oc_1", false)

	s2 := NewService(storePath, nil)
	s2.loadStore()
	jobs := s2.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "daily", jobs[0].Name)
	assert.Equal(t, "standup", jobs[0].Payload.Message)
}

func TestOneShotJobRemovedAfterRun(t *testing.T) {
	fired := make(chan Job, 1)
	s := NewService(filepath.Join(t.TempDir(), "cron.json"), func(job Job) {
		fired <- job
	})
	s.loadStore()

	s.AddJob("once", Schedule{Kind: "at", AtMs: time.Now().UnixMilli() - 1000}, "ping", "telegram", "42", true)
	s.processDue()

	select {
	case job := <-fired:
		assert.Equal(t, "ping", job.Payload.Message)
	default:
		t.Fatal("job did not fire")
	}
	assert.Empty(t, s.ListJobs())
}
