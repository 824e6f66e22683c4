package curation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"tube-curator/internal/models"
	"tube-curator/internal/observability/metrics"
	"tube-curator/internal/storage"
)

type scriptedChecker struct {
	mu        sync.Mutex
	available map[string]bool
	failing   map[string]error
	probed    []string
}

func (c *scriptedChecker) VideoAvailable(_ context.Context, youtubeID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probed = append(c.probed, youtubeID)
	if err, ok := c.failing[youtubeID]; ok {
		return false, err
	}
	return c.available[youtubeID], nil
}

func (c *scriptedChecker) probeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.probed)
}

func newSweepFixture(t *testing.T, checker *scriptedChecker, cfg Config) (*Validator, *storage.Storage) {
	t.Helper()
	store := storage.NewStorage()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	validator := NewValidator(store, checker, logger, metrics.New(), cfg)
	return validator, store
}

func seedVideo(t *testing.T, store *storage.Storage, categoryID, youtubeID string) models.Video {
	t.Helper()
	video, err := store.CreateVideo(storage.VideoParams{
		YoutubeID:  youtubeID,
		Title:      "Video " + youtubeID,
		CategoryID: categoryID,
	})
	if err != nil {
		t.Fatalf("seed video %s: %v", youtubeID, err)
	}
	return video
}

func seedCategory(t *testing.T, store *storage.Storage) string {
	t.Helper()
	category, err := store.CreateCategory("Music", "", 0)
	if err != nil {
		t.Fatalf("seed category: %v", err)
	}
	return category.ID
}

func TestSweepMarksVideos(t *testing.T) {
	t.Parallel()
	checker := &scriptedChecker{available: map[string]bool{
		"alive-video": true,
		"gone-video":  false,
	}}
	validator, store := newSweepFixture(t, checker, Config{})
	categoryID := seedCategory(t, store)
	alive := seedVideo(t, store, categoryID, "alive-video")
	gone := seedVideo(t, store, categoryID, "gone-video")

	result, err := validator.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Checked != 2 || result.Unavailable != 1 || result.Failed != 0 {
		t.Fatalf("unexpected result %+v", result)
	}

	stored, _ := store.GetVideo(alive.ID)
	if stored.Status != models.VideoStatusActive {
		t.Fatalf("available video should go active, got %q", stored.Status)
	}
	if stored.LastCheckedAt == nil {
		t.Fatal("sweep must stamp LastCheckedAt")
	}
	stored, _ = store.GetVideo(gone.ID)
	if stored.Status != models.VideoStatusUnavailable {
		t.Fatalf("missing video should go unavailable, got %q", stored.Status)
	}
}

func TestSweepProbeFailureLeavesStatusUntouched(t *testing.T) {
	t.Parallel()
	checker := &scriptedChecker{failing: map[string]error{
		"flaky-video": errors.New("oembed timeout"),
	}}
	validator, store := newSweepFixture(t, checker, Config{})
	categoryID := seedCategory(t, store)
	video := seedVideo(t, store, categoryID, "flaky-video")

	result, err := validator.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Failed != 1 || result.Checked != 0 {
		t.Fatalf("unexpected result %+v", result)
	}

	stored, _ := store.GetVideo(video.ID)
	if stored.Status != models.VideoStatusPending {
		t.Fatalf("probe failure must not change status, got %q", stored.Status)
	}
	if stored.LastCheckedAt != nil {
		t.Fatal("probe failure must not stamp LastCheckedAt")
	}
}

func TestSweepSkipsRecentlyCheckedVideos(t *testing.T) {
	t.Parallel()
	checker := &scriptedChecker{available: map[string]bool{"fresh-video": true}}
	validator, store := newSweepFixture(t, checker, Config{CheckInterval: time.Hour})
	categoryID := seedCategory(t, store)
	video := seedVideo(t, store, categoryID, "fresh-video")
	if _, err := store.MarkVideoStatus(video.ID, models.VideoStatusActive, time.Now().UTC()); err != nil {
		t.Fatalf("mark video: %v", err)
	}

	result, err := validator.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Checked != 0 || checker.probeCount() != 0 {
		t.Fatalf("recently checked video must not be probed, result %+v probes %d", result, checker.probeCount())
	}
}

func TestSweepHonorsBatchSize(t *testing.T) {
	t.Parallel()
	checker := &scriptedChecker{available: map[string]bool{}}
	validator, store := newSweepFixture(t, checker, Config{BatchSize: 2})
	categoryID := seedCategory(t, store)
	for _, id := range []string{"video-one", "video-two", "video-three"} {
		seedVideo(t, store, categoryID, id)
		checker.available[id] = true
	}

	if _, err := validator.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if got := checker.probeCount(); got != 2 {
		t.Fatalf("expected 2 probes for batch size 2, got %d", got)
	}
}

func TestSweepEmptyCatalogIsNoop(t *testing.T) {
	t.Parallel()
	validator, _ := newSweepFixture(t, &scriptedChecker{}, Config{})

	result, err := validator.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result != (SweepResult{}) {
		t.Fatalf("empty catalog should sweep nothing, got %+v", result)
	}
}
