package waitlist

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/model"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/notification"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/parse"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/store"
)

// Run starts the recurring monitor tick, expiry sweep, and TTL purge
// loops, blocking until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Println("Waitlist monitor is disabled. Not starting.")
		return
	}
	log.Println("Starting waitlist monitor...")

	tick := time.NewTicker(s.cfg.Tick)
	sweep := time.NewTicker(s.cfg.Sweep)
	purge := time.NewTicker(s.cfg.Purge)
	defer tick.Stop()
	defer sweep.Stop()
	defer purge.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Waitlist monitor shutting down.")
			return
		case <-tick.C:
			s.MonitorTick(ctx)
		case <-sweep.C:
			if n, err := s.ExpirySweep(ctx); err != nil {
				log.Printf("Error in expiry sweep: %v", err)
			} else if n > 0 {
				log.Printf("Expiry sweep: %d entries expired", n)
			}
		case <-purge.C:
			if n, err := s.lessons.PurgeExpired(ctx, s.now()); err != nil {
				log.Printf("Error purging expired lessons: %v", err)
			} else if n > 0 {
				log.Printf("Purged %d expired lessons", n)
			}
		}
	}
}

// autoResumeDelay is the quiet period after an alert before a paused
// entry re-arms itself.
const autoResumeDelay = time.Hour

// MonitorTick checks every active entry whose lesson falls inside the
// look-ahead window against the lesson store. On availability it appends
// a notification record, pauses the entry so it is not re-alerted, and
// dispatches a push. Paused entries whose auto-resume time has passed are
// re-armed first, so persistent availability alerts again after the quiet
// period. One entry's failure never blocks the rest of the tick. Returns
// how many entries were notified.
func (s *Service) MonitorTick(ctx context.Context) int {
	now := s.now()
	s.autoResume(ctx, now)

	var entries []model.Waitlist
	err := s.db.WithContext(ctx).
		Where("status = ? AND starts_at >= ? AND starts_at <= ?",
			model.WaitlistStatusActive, now, now.Add(s.cfg.Lookahead)).
		Find(&entries).Error
	if err != nil {
		log.Printf("Error fetching active waitlist entries: %v", err)
		return 0
	}

	notified := 0
	for _, entry := range entries {
		ok, err := s.checkEntry(ctx, entry, now)
		if err != nil {
			log.Printf("Error monitoring waitlist %s/%s: %v", entry.UserID, entry.WaitlistID, err)
			continue
		}
		if ok {
			notified++
		}
	}
	if notified > 0 {
		log.Printf("Monitor tick: %d of %d watched entries notified", notified, len(entries))
	}
	return notified
}

// autoResume re-arms paused entries whose quiet period ended. Entries a
// user paused by hand carry no marker and stay paused.
func (s *Service) autoResume(ctx context.Context, now time.Time) {
	res := s.db.WithContext(ctx).Model(&model.Waitlist{}).
		Where("status = ? AND auto_resume_at IS NOT NULL AND auto_resume_at <= ?",
			model.WaitlistStatusPaused, now).
		Updates(map[string]any{
			"status":         model.WaitlistStatusActive,
			"auto_resume_at": nil,
		})
	if res.Error != nil {
		log.Printf("Error auto-resuming paused entries: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("Auto-resumed %d paused entries", res.RowsAffected)
	}
}

// checkEntry evaluates one entry and reports whether it was notified.
func (s *Service) checkEntry(ctx context.Context, entry model.Waitlist, now time.Time) (bool, error) {
	lesson, err := s.lessons.FindLesson(ctx, entry.StudioCode, entry.LessonDate, entry.StartTime, entry.LessonName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Store lags the site, or the lesson was pulled; wait for the
			// next scrape rather than failing the entry.
			return false, nil
		}
		return false, err
	}
	if !lesson.Available {
		return false, nil
	}

	available, total := parse.SeatCounts(lesson.StatusText)

	record := model.WaitlistNotification{
		ID:             uuid.NewString(),
		UserID:         entry.UserID,
		WaitlistID:     entry.WaitlistID,
		SentAt:         now,
		AvailableSlots: available,
		TotalSlots:     total,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return false, fmt.Errorf("failed to append notification record: %w", err)
	}

	// Pause so the next tick does not re-alert the same availability; the
	// marker re-arms the entry once the quiet period passes.
	resumeAt := now.Add(autoResumeDelay)
	err = s.transition(ctx, entry.UserID, entry.WaitlistID, model.WaitlistStatusPaused,
		map[string]any{"auto_resume_at": resumeAt}, model.WaitlistStatusActive)
	if err != nil {
		return false, fmt.Errorf("failed to pause after notify: %w", err)
	}

	s.dispatcher.Dispatch(notification.Job{
		UserID:  entry.UserID,
		Message: availabilityMessage(entry, available),
	})
	return true, nil
}

func availabilityMessage(entry model.Waitlist, available int) string {
	msg := fmt.Sprintf("%s %s %s %s", entry.StudioName, entry.LessonDate, entry.StartTime, entry.LessonName)
	if entry.Instructor != "" {
		msg += fmt.Sprintf(" (%s)", entry.Instructor)
	}
	msg += " に空きが出ました！"
	if available > 0 {
		msg += fmt.Sprintf("残り%d席", available)
	}
	return msg
}

// ExpirySweep batch-expires every active or paused entry whose lesson
// time passed more than the grace period ago.
func (s *Service) ExpirySweep(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.cfg.ExpiryGrace)
	res := s.db.WithContext(ctx).Model(&model.Waitlist{}).
		Where("status IN ? AND starts_at < ?",
			[]model.WaitlistStatus{model.WaitlistStatusActive, model.WaitlistStatusPaused}, cutoff).
		Update("status", model.WaitlistStatusExpired)
	if res.Error != nil {
		return 0, fmt.Errorf("expiry sweep failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}
