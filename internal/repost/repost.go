// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package repost runs the delete-wait-resubmit workflow for expired or
// stale ads in the background. The upstream collapses a near-simultaneous
// identical repost as a duplicate, so each job sleeps a fixed cooldown
// between deleting the old ad and posting the new one.
package repost

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"admanager/internal/models"
	"admanager/internal/payload"
	"admanager/internal/wire"
)

// DefaultDelay is the cooldown between delete and resubmit. Three
// minutes is empirically enough for the upstream to stop treating the
// resubmission as a duplicate of the deleted ad.
const DefaultDelay = 3 * time.Minute

// Upstream is the subset of the API facade the workflow needs.
type Upstream interface {
	GetAd(ctx context.Context, userID, token, adID string) (wire.Document, error)
	DeleteAd(ctx context.Context, userID, token, adID string) error
	PostAd(ctx context.Context, userID, token string, payload []byte) (string, error)
}

// RecordStore is the subset of the ad store the workflow needs.
type RecordStore interface {
	Find(userID, adID string) (*models.AdRecord, error)
	Save(userID, adID, document string) (*models.AdRecord, error)
	Delete(userID, adID string) error
}

// Job is one repost request. Credentials travel with the job; a job must
// never read ambient session state, since it outlives the request that
// scheduled it.
type Job struct {
	ID     uuid.UUID
	UserID string
	Token  string
	AdID   string
	Delay  time.Duration
}

// Scheduler owns a bounded pool of workers draining a job queue. Jobs are
// fire-and-forget: failures are logged, never retried.
type Scheduler struct {
	api   Upstream
	store RecordStore
	jobs  chan Job
	done  chan struct{}
}

// NewScheduler starts workers goroutines draining a queue of queueSize
// pending jobs. Stop the scheduler with Shutdown.
func NewScheduler(api Upstream, store RecordStore, workers, queueSize int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	s := &Scheduler{
		api:   api,
		store: store,
		jobs:  make(chan Job, queueSize),
		done:  make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go s.worker()
	}
	return s
}

// Schedule queues a repost job. Returns an error when the queue is full
// rather than blocking the caller's request.
func (s *Scheduler) Schedule(job Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Delay <= 0 {
		job.Delay = DefaultDelay
	}
	select {
	case s.jobs <- job:
		slog.Info("repost scheduled", "job", job.ID, "ad", job.AdID, "delay", job.Delay)
		return nil
	default:
		return fmt.Errorf("repost queue full, ad %s not scheduled", job.AdID)
	}
}

// ScheduleAll queues one job per ad id. Jobs run independently; no
// cross-ad ordering is guaranteed. Returns the number scheduled.
func (s *Scheduler) ScheduleAll(userID, token string, adIDs []string, delay time.Duration) int {
	scheduled := 0
	for _, adID := range adIDs {
		err := s.Schedule(Job{UserID: userID, Token: token, AdID: adID, Delay: delay})
		if err != nil {
			slog.Error("repost not scheduled", "ad", adID, "error", err)
			continue
		}
		scheduled++
	}
	return scheduled
}

// Shutdown stops the workers. Queued jobs that have not started are
// dropped, and a job sleeping its cooldown is abandoned without posting.
func (s *Scheduler) Shutdown() {
	close(s.done)
}

func (s *Scheduler) worker() {
	for {
		select {
		case <-s.done:
			return
		case job := <-s.jobs:
			s.run(job)
		}
	}
}

// run executes one job: load the stored payload, refresh its picture
// links from the live ad, delete the old ad, sleep the cooldown, post
// the payload again, and swap the stored records. Any failure is logged
// exactly once and the job stops where it failed.
func (s *Scheduler) run(job Job) {
	ctx := context.Background()

	record, err := s.store.Find(job.UserID, job.AdID)
	if err != nil {
		slog.Error("repost failed", "job", job.ID, "ad", job.AdID, "stage", "load", "error", err)
		return
	}
	if record == nil {
		slog.Error("repost failed", "job", job.ID, "ad", job.AdID, "stage", "load", "error", "no stored payload")
		return
	}

	doc, err := wire.Parse([]byte(record.Document))
	if err != nil {
		slog.Error("repost failed", "job", job.ID, "ad", job.AdID, "stage", "parse", "error", err)
		return
	}

	// Stored snapshots can reference retired image hosts. The live ad
	// carries the current links, so pictures are refreshed from it before
	// the old ad disappears.
	live, err := s.api.GetAd(ctx, job.UserID, job.Token, job.AdID)
	if err != nil {
		slog.Error("repost failed", "job", job.ID, "ad", job.AdID, "stage", "refresh", "error", err)
		return
	}
	doc = payload.RefreshPictures(doc, live)

	body, err := doc.Marshal()
	if err != nil {
		slog.Error("repost failed", "job", job.ID, "ad", job.AdID, "stage", "marshal", "error", err)
		return
	}

	if err := s.api.DeleteAd(ctx, job.UserID, job.Token, job.AdID); err != nil {
		slog.Error("repost failed", "job", job.ID, "ad", job.AdID, "stage", "delete", "error", err)
		return
	}

	// The ad is gone upstream, so its record is stale from here on. The
	// record tracks what exists upstream, not what might be resubmitted.
	if err := s.store.Delete(job.UserID, job.AdID); err != nil {
		slog.Error("repost failed", "job", job.ID, "ad", job.AdID, "stage", "cleanup", "error", err)
		return
	}

	slog.Info("repost waiting", "job", job.ID, "ad", job.AdID, "delay", job.Delay)
	select {
	case <-s.done:
		return
	case <-time.After(job.Delay):
	}

	newAdID, err := s.api.PostAd(ctx, job.UserID, job.Token, body)
	if err != nil {
		// The old ad is already gone upstream and its record removed. No
		// retry, no compensation: the failure is logged exactly once.
		slog.Error("repost failed", "job", job.ID, "ad", job.AdID, "stage", "post", "error", err)
		return
	}

	if _, err := s.store.Save(job.UserID, newAdID, string(body)); err != nil {
		slog.Error("repost failed", "job", job.ID, "ad", job.AdID, "stage", "store", "error", err)
		return
	}

	slog.Info("repost completed", "job", job.ID, "old", job.AdID, "new", newAdID)
}
