package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wataru-taketani/feelcycle-hub-sub000/config"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/model"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/parse"
)

// ErrStudioNotFound is returned when the studio selector list renders but
// contains no entry for the requested code. Non-retryable: the source does
// not know the studio, retrying cannot help.
var ErrStudioNotFound = errors.New("studio not found in source listing")

// Extractor is what the batch coordinator consumes: studio roster and
// full per-studio lesson extraction.
type Extractor interface {
	ListStudios(ctx context.Context) ([]model.Studio, error)
	ExtractLessons(ctx context.Context, studioCode string) ([]model.Lesson, error)
}

// Session drives browser attempts against the reservation site. Each
// attempt opens a fresh browser and tears it down afterwards; partial
// browser state never survives into a retry.
type Session struct {
	cfg        *config.ScraperConfig
	newBrowser BrowserFactory
	loc        *time.Location
	now        func() time.Time
}

// NewSession creates a session that launches real Chrome instances.
func NewSession(cfg *config.ScraperConfig) (*Session, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", cfg.Timezone, err)
	}
	return &Session{
		cfg:        cfg,
		newBrowser: func() (Browser, error) { return NewChromeBrowser(cfg) },
		loc:        loc,
		now:        time.Now,
	}, nil
}

// NewSessionWithBrowser wires a custom browser factory and clock, for tests.
func NewSessionWithBrowser(cfg *config.ScraperConfig, factory BrowserFactory, loc *time.Location, now func() time.Time) *Session {
	return &Session{cfg: cfg, newBrowser: factory, loc: loc, now: now}
}

// ExtractLessons produces every lesson the source currently publishes for
// one studio, across all visible dates in a single logical pass. Transient
// failures are retried with exponential backoff and a completely fresh
// browser per attempt; a missing studio fails fast.
func (s *Session) ExtractLessons(ctx context.Context, studioCode string) ([]model.Lesson, error) {
	attempts := s.cfg.MaxRetries + 1
	backoff := s.cfg.BackoffBase

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lessons, err := s.attemptExtract(ctx, studioCode)
		if err == nil {
			return lessons, nil
		}
		if errors.Is(err, ErrStudioNotFound) {
			return nil, fmt.Errorf("studio %q: %w", studioCode, err)
		}
		lastErr = err
		log.Printf("Scrape attempt %d/%d for studio %s failed: %v", attempt, attempts, studioCode, err)

		if attempt < attempts {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("scrape of studio %q failed after %d attempts: %w", studioCode, attempts, lastErr)
}

// ExtractLessonsForDate is a convenience projection: the source always
// renders all dates at once, so a single-date lookup runs the full
// extraction and filters in memory.
func (s *Session) ExtractLessonsForDate(ctx context.Context, studioCode, date string) ([]model.Lesson, error) {
	all, err := s.ExtractLessons(ctx, studioCode)
	if err != nil {
		return nil, err
	}
	var filtered []model.Lesson
	for _, l := range all {
		if l.LessonDate == date {
			filtered = append(filtered, l)
		}
	}
	return filtered, nil
}

// ListStudios scrapes the studio selector list into roster records.
func (s *Session) ListStudios(ctx context.Context) ([]model.Studio, error) {
	attempts := s.cfg.MaxRetries + 1
	backoff := s.cfg.BackoffBase

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		studios, err := s.attemptListStudios(ctx)
		if err == nil {
			return studios, nil
		}
		lastErr = err
		log.Printf("Studio listing attempt %d/%d failed: %v", attempt, attempts, err)

		if attempt < attempts {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("studio listing failed after %d attempts: %w", attempts, lastErr)
}

func (s *Session) attemptExtract(ctx context.Context, studioCode string) ([]model.Lesson, error) {
	browser, err := s.newBrowser()
	if err != nil {
		return nil, fmt.Errorf("failed to open browser: %w", err)
	}
	defer browser.Close()

	lessons, err := s.extractWithBrowser(ctx, browser, studioCode)
	if err != nil && !errors.Is(err, ErrStudioNotFound) {
		s.captureFailure(ctx, browser, studioCode)
	}
	return lessons, err
}

func (s *Session) extractWithBrowser(ctx context.Context, browser Browser, studioCode string) ([]model.Lesson, error) {
	if err := browser.Navigate(ctx, s.cfg.BaseURL, s.cfg.NavigationTimeout); err != nil {
		return nil, err
	}
	if err := browser.WaitVisible(ctx, selStudioList, s.cfg.SelectorTimeout); err != nil {
		return nil, err
	}

	var labels []string
	if err := browser.Evaluate(ctx, listStudiosJS, &labels); err != nil {
		return nil, err
	}

	index := -1
	for i, label := range labels {
		_, code, err := parse.StudioEntry(label)
		if err != nil {
			continue
		}
		if code == strings.ToLower(studioCode) {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, ErrStudioNotFound
	}

	selector := fmt.Sprintf("%s:nth-child(%d)", selStudioList, index+1)
	if err := browser.Click(ctx, selector); err != nil {
		return nil, err
	}

	// The schedule grid re-renders after studio selection; give the SPA a
	// fixed settle period before waiting on the date headers.
	select {
	case <-time.After(s.cfg.SettleDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := browser.WaitVisible(ctx, selDateHeaders, s.cfg.SelectorTimeout); err != nil {
		return nil, err
	}

	var raw rawSchedule
	if err := browser.Evaluate(ctx, extractScheduleJS, &raw); err != nil {
		return nil, err
	}
	if len(raw.Days) == 0 {
		return nil, fmt.Errorf("schedule grid rendered no date headers for studio %q", studioCode)
	}

	return mapSchedule(strings.ToLower(studioCode), raw, s.now(), s.loc), nil
}

func (s *Session) attemptListStudios(ctx context.Context) ([]model.Studio, error) {
	browser, err := s.newBrowser()
	if err != nil {
		return nil, fmt.Errorf("failed to open browser: %w", err)
	}
	defer browser.Close()

	if err := browser.Navigate(ctx, s.cfg.BaseURL, s.cfg.NavigationTimeout); err != nil {
		return nil, err
	}
	if err := browser.WaitVisible(ctx, selStudioList, s.cfg.SelectorTimeout); err != nil {
		return nil, err
	}

	var labels []string
	if err := browser.Evaluate(ctx, listStudiosJS, &labels); err != nil {
		return nil, err
	}

	var studios []model.Studio
	for _, label := range labels {
		name, code, err := parse.StudioEntry(label)
		if err != nil {
			log.Printf("Warning: skipping unparseable studio entry %q: %v", label, err)
			continue
		}
		studios = append(studios, model.Studio{Code: code, Name: name})
	}
	if len(studios) == 0 {
		return nil, fmt.Errorf("studio list rendered no parseable entries")
	}
	return studios, nil
}

// captureFailure best-effort screenshots the page state of a failed
// attempt into the configured directory.
func (s *Session) captureFailure(ctx context.Context, browser Browser, studioCode string) {
	if s.cfg.ScreenshotDir == "" {
		return
	}
	buf, err := browser.Screenshot(ctx)
	if err != nil {
		log.Printf("Warning: could not capture failure screenshot for %s: %v", studioCode, err)
		return
	}
	name := fmt.Sprintf("%s-%s.png", studioCode, s.now().Format("20060102-150405"))
	path := filepath.Join(s.cfg.ScreenshotDir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		log.Printf("Warning: could not write failure screenshot %s: %v", path, err)
		return
	}
	log.Printf("Failure screenshot written to %s", path)
}
