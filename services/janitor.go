package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-co-op/gocron"

	"pdf-term-stats/internal/logger"
)

const (
	// AnalysesDir holds one directory per analysis under the storage root.
	AnalysesDir = "analyses"
	janitorTag  = "artifact-janitor"
	sweepBatch  = 500
)

// Janitor periodically removes analysis artifacts and records older than the
// configured TTL.
type Janitor struct {
	scheduler *gocron.Scheduler
	store     *AnalysisStore
	root      string
	ttl       time.Duration
	now       func() time.Time
}

// NewJanitor creates a janitor over storageDir. store may be nil, in which
// case only files are swept.
func NewJanitor(storageDir string, ttl time.Duration, store *AnalysisStore) *Janitor {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &Janitor{
		scheduler: s,
		store:     store,
		root:      storageDir,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Start schedules Sweep every interval and starts the scheduler.
func (j *Janitor) Start(interval time.Duration) error {
	_, err := j.scheduler.Every(interval).SingletonMode().Tag(janitorTag).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if removed, err := j.Sweep(ctx); err != nil {
			logger.Error("Artifact sweep failed", "error", err)
		} else if removed > 0 {
			logger.Info("Artifact sweep finished", "removed", removed)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule janitor: %w", err)
	}
	j.scheduler.StartAsync()
	return nil
}

func (j *Janitor) Stop() {
	j.scheduler.Stop()
}

// Sweep deletes expired records with their artifacts, then any analysis
// directory whose modification time is past the TTL. It returns the number of
// directories removed.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	cutoff := j.now().Add(-j.ttl)
	removed := 0

	if j.store != nil {
		expired, err := j.store.ListExpired(ctx, cutoff, sweepBatch)
		if err != nil {
			return removed, err
		}
		for _, a := range expired {
			dir := j.analysisDir(a.ID)
			if err := os.RemoveAll(dir); err != nil {
				logger.Warn("Failed to remove analysis artifacts", "id", a.ID, "error", err)
				continue
			}
			if err := j.store.Delete(ctx, a.ID); err != nil {
				return removed, err
			}
			removed++
		}
	}

	entries, err := os.ReadDir(filepath.Join(j.root, AnalysesDir))
	if os.IsNotExist(err) {
		return removed, nil
	}
	if err != nil {
		return removed, fmt.Errorf("list analyses: %w", err)
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(j.analysisDir(e.Name())); err != nil {
			logger.Warn("Failed to remove expired artifacts", "name", e.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

func (j *Janitor) analysisDir(id string) string {
	return filepath.Join(j.root, AnalysesDir, id)
}

// AnalysisDir returns the artifact directory of an analysis under storageDir.
func AnalysisDir(storageDir, id string) string {
	return filepath.Join(storageDir, AnalysesDir, id)
}
