// Package curation runs the scheduled availability sweep over curated
// videos. Videos that have never been checked, or whose last check is older
// than the configured interval, are probed against YouTube and their status
// updated accordingly.
package curation

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"tube-curator/internal/models"
	"tube-curator/internal/observability/metrics"
	"tube-curator/internal/storage"
	"tube-curator/internal/youtube"
)

const (
	defaultCheckInterval = 24 * time.Hour
	defaultBatchSize     = 200
	defaultConcurrency   = 8
)

// Config tunes a Validator. Zero values fall back to defaults sized for a
// catalog of a few thousand videos.
type Config struct {
	// CheckInterval is how stale a check may be before the video is due
	// again.
	CheckInterval time.Duration
	// BatchSize caps how many videos one sweep picks up.
	BatchSize int
	// Concurrency bounds the number of probes in flight.
	Concurrency int
}

func (cfg Config) withDefaults() Config {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = defaultCheckInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return cfg
}

// SweepResult summarizes one validation pass.
type SweepResult struct {
	Checked     int
	Unavailable int
	Failed      int
}

// Validator probes curated videos for availability and records the outcome.
type Validator struct {
	store   storage.Repository
	checker youtube.Checker
	logger  *slog.Logger
	metrics *metrics.Recorder
	cfg     Config
	clock   func() time.Time
}

// NewValidator wires a Validator against the given repository and probe.
func NewValidator(store storage.Repository, checker youtube.Checker, logger *slog.Logger, recorder *metrics.Recorder, cfg Config) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.Default()
	}
	return &Validator{
		store:   store,
		checker: checker,
		logger:  logger,
		metrics: recorder,
		cfg:     cfg.withDefaults(),
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// Sweep probes every video due for validation. Probe failures are logged and
// counted but never change a video's status; a flaky upstream must not
// demote healthy content. The first context cancellation aborts the sweep.
func (v *Validator) Sweep(ctx context.Context) (SweepResult, error) {
	cutoff := v.clock().Add(-v.cfg.CheckInterval)
	due := v.store.ListVideosForValidation(cutoff, v.cfg.BatchSize)
	if len(due) == 0 {
		return SweepResult{}, nil
	}

	v.metrics.ValidationSweepStarted()
	defer v.metrics.ValidationSweepFinished()
	v.logger.Info("validation sweep started", "due", len(due))

	var checked, unavailable, failed atomic.Int64

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(v.cfg.Concurrency)
	for _, video := range due {
		video := video
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			available, err := v.checker.VideoAvailable(groupCtx, video.YoutubeID)
			if err != nil {
				failed.Add(1)
				v.metrics.ObserveVideoChecked(false, true)
				v.logger.Warn("availability probe failed",
					"video_id", video.ID,
					"youtube_id", video.YoutubeID,
					"error", err)
				return nil
			}
			checked.Add(1)

			status := models.VideoStatusActive
			if !available {
				status = models.VideoStatusUnavailable
				unavailable.Add(1)
			}
			v.metrics.ObserveVideoChecked(!available, false)
			if _, err := v.store.MarkVideoStatus(video.ID, status, v.clock()); err != nil {
				v.logger.Error("mark video status", "video_id", video.ID, "error", err)
			}
			return nil
		})
	}
	err := group.Wait()

	result := SweepResult{
		Checked:     int(checked.Load()),
		Unavailable: int(unavailable.Load()),
		Failed:      int(failed.Load()),
	}
	v.logger.Info("validation sweep finished",
		"checked", result.Checked,
		"unavailable", result.Unavailable,
		"failed", result.Failed)
	return result, err
}
