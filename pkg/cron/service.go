package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Service runs scheduled jobs from a JSON store and hands fired jobs to the
// OnJob callback.
type Service struct {
	StorePath string
	OnJob     func(Job)
	store     *jobStore
	mu        sync.RWMutex
}

// NewService creates a cron service persisting jobs at storePath.
func NewService(storePath string, onJob func(Job)) *Service {
	return &Service{
		StorePath: storePath,
		OnJob:     onJob,
	}
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

func computeNextRun(schedule Schedule, fromMs int64) int64 {
	switch schedule.Kind {
	case "at":
		return schedule.AtMs
	case "every":
		if schedule.EveryMs <= 0 {
			return 0
		}
		return fromMs + schedule.EveryMs
	case "cron":
		if schedule.Expr == "" {
			return 0
		}
		sched, err := cronParser.Parse(schedule.Expr)
		if err != nil {
			log.Error("Invalid cron expression", "expr", schedule.Expr, "error", err)
			return 0
		}
		return sched.Next(time.UnixMilli(fromMs)).UnixMilli()
	}
	return 0
}

func (s *Service) loadStore() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store != nil {
		return
	}
	s.store = &jobStore{Version: 1, Jobs: []Job{}}

	data, err := os.ReadFile(s.StorePath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Error("Failed to load cron store", "error", err)
		}
		return
	}
	if err := json.Unmarshal(data, s.store); err != nil {
		log.Error("Failed to parse cron store", "error", err)
	}
}

func (s *Service) saveStoreLocked() {
	if s.store == nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.StorePath), 0755); err != nil {
		log.Error("Failed to create cron store directory", "error", err)
		return
	}
	data, err := json.MarshalIndent(s.store, "", "  ")
	if err != nil {
		log.Error("Failed to marshal cron store", "error", err)
		return
	}
	if err := os.WriteFile(s.StorePath, data, 0644); err != nil {
		log.Error("Failed to save cron store", "error", err)
	}
}

func (s *Service) saveStore() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveStoreLocked()
}

// Start loads the store and runs the scheduler loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.loadStore()
	s.recomputeNextRuns()
	s.saveStore()
	go s.loop(ctx)

	s.mu.RLock()
	count := len(s.store.Jobs)
	s.mu.RUnlock()
	log.Info("Cron service started", "jobs", count)
}

func (s *Service) recomputeNextRuns() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowMs()
	for i := range s.store.Jobs {
		job := &s.store.Jobs[i]
		if job.Enabled {
			job.State.NextRunAtMs = computeNextRun(job.Schedule, now)
		}
	}
}

func (s *Service) nextWakeMs() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var minNext int64
	for _, job := range s.store.Jobs {
		if job.Enabled && job.State.NextRunAtMs > 0 {
			if minNext == 0 || job.State.NextRunAtMs < minNext {
				minNext = job.State.NextRunAtMs
			}
		}
	}
	return minNext
}

func (s *Service) loop(ctx context.Context) {
	for {
		delay := 10 * time.Second
		if next := s.nextWakeMs(); next > 0 {
			if until := time.Duration(next-nowMs()) * time.Millisecond; until < delay {
				delay = until
			}
			if delay < 0 {
				delay = 0
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
			s.processDue()
		}
	}
}

func (s *Service) processDue() {
	s.mu.RLock()
	now := nowMs()
	var due []Job
	for _, job := range s.store.Jobs {
		if job.Enabled && job.State.NextRunAtMs > 0 && now >= job.State.NextRunAtMs {
			due = append(due, job)
		}
	}
	s.mu.RUnlock()

	for i := range due {
		s.executeJob(&due[i])
		s.commitJob(due[i])
	}

	if len(due) > 0 {
		s.saveStore()
	}
}

// commitJob writes post-run state back into the store, removing or disabling
// one-shot jobs and recomputing the next run for recurring ones.
func (s *Service) commitJob(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, j := range s.store.Jobs {
		if j.ID == job.ID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}

	s.store.Jobs[idx] = job
	if job.Schedule.Kind == "at" {
		if job.DeleteAfterRun {
			s.store.Jobs = append(s.store.Jobs[:idx], s.store.Jobs[idx+1:]...)
		} else {
			s.store.Jobs[idx].Enabled = false
			s.store.Jobs[idx].State.NextRunAtMs = 0
		}
	} else {
		s.store.Jobs[idx].State.NextRunAtMs = computeNextRun(job.Schedule, nowMs())
	}
}

func (s *Service) executeJob(job *Job) {
	log.Info("Cron: executing job", "name", job.Name, "id", job.ID)
	startMs := nowMs()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Cron: job panicked", "id", job.ID, "panic", r)
			job.State.LastStatus = "error"
			job.State.LastError = fmt.Sprintf("panic: %v", r)
		}
	}()

	if s.OnJob != nil {
		s.OnJob(*job)
	}

	job.State.LastStatus = "ok"
	job.State.LastError = ""
	job.State.LastRunAtMs = startMs
	job.UpdatedAtMs = nowMs()
}

// ListJobs returns all jobs ordered by next run time.
func (s *Service) ListJobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.store == nil {
		return nil
	}

	jobs := make([]Job, len(s.store.Jobs))
	copy(jobs, s.store.Jobs)
	sort.Slice(jobs, func(i, j int) bool {
		n1, n2 := jobs[i].State.NextRunAtMs, jobs[j].State.NextRunAtMs
		if n1 == 0 {
			return false
		}
		if n2 == 0 {
			return true
		}
		return n1 < n2
	})
	return jobs
}

// AddJob creates a job delivering message to the given chat and persists it.
func (s *Service) AddJob(name string, schedule Schedule, message, channel, to string, deleteAfterRun bool) Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		s.store = &jobStore{Version: 1, Jobs: []Job{}}
	}

	now := nowMs()
	job := Job{
		ID:       uuid.New().String()[:8],
		Name:     name,
		Enabled:  true,
		Schedule: schedule,
		Payload: Payload{
			Message: message,
			Channel: channel,
			To:      to,
		},
		State: JobState{
			NextRunAtMs: computeNextRun(schedule, now),
		},
		CreatedAtMs:    now,
		UpdatedAtMs:    now,
		DeleteAfterRun: deleteAfterRun,
	}

	s.store.Jobs = append(s.store.Jobs, job)
	s.saveStoreLocked()
	return job
}

// RemoveJob deletes a job by ID. Returns false if no job matched.
func (s *Service) RemoveJob(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return false
	}

	kept := make([]Job, 0, len(s.store.Jobs))
	found := false
	for _, job := range s.store.Jobs {
		if job.ID == jobID {
			found = true
			continue
		}
		kept = append(kept, job)
	}
	if found {
		s.store.Jobs = kept
		s.saveStoreLocked()
	}
	return found
}
