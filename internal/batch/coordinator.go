package batch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/wataru-taketani/feelcycle-hub-sub000/config"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/model"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/scraper"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/store"
)

// Coordinator owns the per-studio batch state of a daily scrape run. It
// hands out one studio at a time and records the outcome, so a run can be
// chained across many bounded invocations and survive restarts without
// reprocessing completed studios.
type Coordinator struct {
	cfg       *config.BatchConfig
	store     store.Store
	extractor scraper.Extractor
	now       func() time.Time
}

// NewCoordinator creates a coordinator over the given store and extractor.
func NewCoordinator(cfg *config.BatchConfig, s store.Store, extractor scraper.Extractor) *Coordinator {
	return &Coordinator{cfg: cfg, store: s, extractor: extractor, now: time.Now}
}

// StartRun prepares a fresh daily run. If studios are still mid-run (not
// all terminal) it resumes them untouched; otherwise it resets every
// studio to unset, clears the lesson store, and refreshes the roster from
// the live listing. Studios that disappeared from the listing are logged,
// never deleted.
func (c *Coordinator) StartRun(ctx context.Context) error {
	allTerminal, err := c.store.AllTerminal(ctx, c.cfg.RetryCap)
	if err != nil {
		return fmt.Errorf("failed to inspect batch state: %w", err)
	}
	if !allTerminal {
		log.Println("Previous run still has open studios; resuming instead of resetting.")
		return nil
	}

	if err := c.store.ResetBatch(ctx); err != nil {
		return err
	}

	deleted, err := c.store.ClearAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear lesson store: %w", err)
	}
	log.Printf("Cleared %d lessons ahead of the new run", deleted)

	if err := c.refreshRoster(ctx); err != nil {
		// Roster refresh failures are not fatal: the run proceeds over the
		// studios already known.
		log.Printf("Warning: roster refresh failed, continuing with known studios: %v", err)
	}
	return nil
}

func (c *Coordinator) refreshRoster(ctx context.Context) error {
	listed, err := c.extractor.ListStudios(ctx)
	if err != nil {
		return err
	}

	known, err := c.store.ListStudios(ctx)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(listed))
	for _, s := range listed {
		seen[s.Code] = true
	}
	for _, s := range known {
		if !seen[s.Code] {
			log.Printf("Studio %s (%s) missing from live listing; keeping it", s.Code, s.Name)
		}
	}

	if err := c.store.UpsertRoster(ctx, listed); err != nil {
		return err
	}
	log.Printf("Roster refreshed: %d studios listed", len(listed))
	return nil
}

// ProcessNext claims one studio, scrapes it, records the outcome, and
// reports how much work remains. processed is false when nothing was
// claimable (run finished, or every open studio is held by another
// invocation). Scrape failures are recorded on the studio, not returned;
// the error return covers only store-level failures.
func (c *Coordinator) ProcessNext(ctx context.Context) (remaining int, processed bool, err error) {
	studio, err := c.store.ClaimNext(ctx, c.cfg.RetryCap)
	if err != nil {
		return 0, false, err
	}
	if studio == nil {
		progress, err := c.store.BatchProgress(ctx, c.cfg.RetryCap)
		if err != nil {
			return 0, false, err
		}
		return progress.Remaining, false, nil
	}

	log.Printf("Scraping studio %s (%s), retry %d", studio.Code, studio.Name, studio.RetryCount)
	lessons, scrapeErr := c.extractor.ExtractLessons(ctx, studio.Code)
	if err := c.RecordOutcome(ctx, studio.Code, lessons, scrapeErr); err != nil {
		return 0, true, err
	}

	progress, err := c.store.BatchProgress(ctx, c.cfg.RetryCap)
	if err != nil {
		return 0, true, err
	}
	return progress.Remaining, true, nil
}

// RecordOutcome persists the result of one scrape. Success writes the
// records and completes the studio with its retry budget cleared; failure
// burns a retry and stores the cause. The run always continues.
func (c *Coordinator) RecordOutcome(ctx context.Context, code string, lessons []model.Lesson, scrapeErr error) error {
	now := c.now()
	if scrapeErr != nil {
		log.Printf("Studio %s failed: %v", code, scrapeErr)
		return c.store.MarkFailed(ctx, code, now, scrapeErr.Error())
	}

	result := c.store.UpsertMany(ctx, lessons)
	if len(result.Failures) > 0 {
		log.Printf("Studio %s: %d of %d lesson writes failed", code, len(result.Failures), len(lessons))
	}
	log.Printf("Studio %s completed: %d lessons stored", code, result.Written)
	return c.store.MarkCompleted(ctx, code, now)
}

// Progress reports the state of the current run.
func (c *Coordinator) Progress(ctx context.Context) (store.Progress, error) {
	return c.store.BatchProgress(ctx, c.cfg.RetryCap)
}
