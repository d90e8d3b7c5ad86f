package waitlist

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wataru-taketani/feelcycle-hub-sub000/config"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/model"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/notification"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/store"
)

// ErrInvalidTransition signals a status change outside the defined edges.
var ErrInvalidTransition = errors.New("invalid waitlist status transition")

// ErrValidation wraps synchronous rejection of a malformed request.
var ErrValidation = errors.New("validation failed")

// Dispatcher hands a notification job to the sending side.
type Dispatcher interface {
	Dispatch(job notification.Job)
}

// createWindow is how far ahead a lesson may be watched.
const createWindow = 30 * 24 * time.Hour

// waitlistTTL pads the lesson time before a stored entry self-expires.
const waitlistTTL = 25 * time.Hour

var (
	dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRe = regexp.MustCompile(`^\d{2}:\d{2}$`)
	codeRe = regexp.MustCompile(`^[a-z0-9]{2,4}$`)
)

// Service owns every status transition of waitlist entries.
type Service struct {
	db         *gorm.DB
	lessons    store.LessonStore
	dispatcher Dispatcher
	cfg        *config.MonitorConfig
	loc        *time.Location
	now        func() time.Time
}

// NewService creates the waitlist state machine.
func NewService(db *gorm.DB, lessons store.LessonStore, dispatcher Dispatcher, cfg *config.MonitorConfig, loc *time.Location) *Service {
	return &Service{
		db:         db,
		lessons:    lessons,
		dispatcher: dispatcher,
		cfg:        cfg,
		loc:        loc,
		now:        time.Now,
	}
}

// SetClock overrides the service clock, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// CreateInput carries a new watch request.
type CreateInput struct {
	UserID     string `json:"user_id"`
	StudioCode string `json:"studio_code"`
	StudioName string `json:"studio_name"`
	LessonDate string `json:"lesson_date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	LessonName string `json:"lesson_name"`
	Instructor string `json:"instructor"`
}

// WaitlistID builds the composite identity of the watched lesson occurrence.
func (in CreateInput) WaitlistID() string {
	return fmt.Sprintf("%s#%s#%s#%s", in.StudioCode, in.LessonDate, in.StartTime, in.LessonName)
}

func (s *Service) validate(in CreateInput) error {
	switch {
	case in.UserID == "":
		return fmt.Errorf("%w: user_id is required", ErrValidation)
	case in.LessonName == "":
		return fmt.Errorf("%w: lesson_name is required", ErrValidation)
	case !codeRe.MatchString(in.StudioCode):
		return fmt.Errorf("%w: studio_code %q is malformed", ErrValidation, in.StudioCode)
	case !dateRe.MatchString(in.LessonDate):
		return fmt.Errorf("%w: lesson_date %q must be YYYY-MM-DD", ErrValidation, in.LessonDate)
	case !timeRe.MatchString(in.StartTime):
		return fmt.Errorf("%w: start_time %q must be HH:MM", ErrValidation, in.StartTime)
	}

	date, err := time.ParseInLocation("2006-01-02", in.LessonDate, s.loc)
	if err != nil {
		return fmt.Errorf("%w: lesson_date %q is not a valid date", ErrValidation, in.LessonDate)
	}

	n := s.now().In(s.loc)
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, s.loc)
	if date.Before(today) {
		return fmt.Errorf("%w: lesson_date %q is in the past", ErrValidation, in.LessonDate)
	}
	if date.After(today.Add(createWindow)) {
		return fmt.Errorf("%w: lesson_date %q is more than 30 days ahead", ErrValidation, in.LessonDate)
	}
	return nil
}

// Create validates and persists a new active entry. A second create for
// the same lesson occurrence while the first is active or paused yields
// ErrAlreadyExists; a terminal entry for the same occurrence is revived
// instead. A lesson missing from the store is logged but does not block
// creation, because the store may lag the live site by a scrape cycle.
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Waitlist, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	if _, err := s.lessons.FindLesson(ctx, in.StudioCode, in.LessonDate, in.StartTime, in.LessonName); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("Waitlist create for %s %s %s %q: no matching stored lesson, proceeding anyway",
				in.StudioCode, in.LessonDate, in.StartTime, in.LessonName)
		} else {
			return nil, fmt.Errorf("lesson lookup failed: %w", err)
		}
	}

	startsAt, err := time.ParseInLocation("2006-01-02 15:04", in.LessonDate+" "+in.StartTime, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid lesson time", ErrValidation)
	}

	entry := model.Waitlist{
		UserID:     in.UserID,
		WaitlistID: in.WaitlistID(),
		StudioCode: in.StudioCode,
		StudioName: in.StudioName,
		LessonDate: in.LessonDate,
		StartTime:  in.StartTime,
		EndTime:    in.EndTime,
		LessonName: in.LessonName,
		Instructor: in.Instructor,
		Status:     model.WaitlistStatusActive,
		StartsAt:   startsAt,
		ExpiresAt:  startsAt.Add(waitlistTTL),
	}

	// Conditional create on the composite key; losing means an entry for
	// this occurrence already exists.
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to create waitlist entry: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return &entry, nil
	}

	var existing model.Waitlist
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND waitlist_id = ?", entry.UserID, entry.WaitlistID).
		First(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to load conflicting entry: %w", err)
	}
	if !existing.Status.Terminal() {
		return nil, fmt.Errorf("waitlist entry for %s: %w", entry.WaitlistID, store.ErrAlreadyExists)
	}

	// The previous watch ended; revive it as a fresh active entry.
	err = s.db.WithContext(ctx).Model(&model.Waitlist{}).
		Where("user_id = ? AND waitlist_id = ?", entry.UserID, entry.WaitlistID).
		Updates(map[string]any{
			"status":         model.WaitlistStatusActive,
			"auto_resume_at": nil,
			"starts_at":      entry.StartsAt,
			"expires_at":     entry.ExpiresAt,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to revive waitlist entry: %w", err)
	}
	entry.Status = model.WaitlistStatusActive
	return &entry, nil
}

// Get loads one entry.
func (s *Service) Get(ctx context.Context, userID, waitlistID string) (*model.Waitlist, error) {
	var entry model.Waitlist
	err := s.db.WithContext(ctx).
		Preload("Notifications").
		Where("user_id = ? AND waitlist_id = ?", userID, waitlistID).
		First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// ListByUser returns all of a user's entries, newest lesson first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]model.Waitlist, error) {
	var entries []model.Waitlist
	err := s.db.WithContext(ctx).
		Preload("Notifications").
		Where("user_id = ?", userID).
		Order("starts_at DESC").
		Find(&entries).Error
	return entries, err
}

// Pause stops monitoring: active → paused.
func (s *Service) Pause(ctx context.Context, userID, waitlistID string) error {
	return s.transition(ctx, userID, waitlistID, model.WaitlistStatusPaused, nil,
		model.WaitlistStatusActive)
}

// Resume restarts monitoring: paused → active, clearing any auto-resume marker.
func (s *Service) Resume(ctx context.Context, userID, waitlistID string) error {
	clear := map[string]any{"auto_resume_at": nil}
	return s.transition(ctx, userID, waitlistID, model.WaitlistStatusActive, clear,
		model.WaitlistStatusPaused)
}

// Cancel is the user-initiated terminal transition from any non-terminal state.
func (s *Service) Cancel(ctx context.Context, userID, waitlistID string) error {
	return s.transition(ctx, userID, waitlistID, model.WaitlistStatusCancelled, nil,
		model.WaitlistStatusActive, model.WaitlistStatusPaused)
}

// Complete marks an entry reserved externally. Terminal; never set by the
// monitor itself.
func (s *Service) Complete(ctx context.Context, userID, waitlistID string) error {
	return s.transition(ctx, userID, waitlistID, model.WaitlistStatusCompleted, nil,
		model.WaitlistStatusActive, model.WaitlistStatusPaused)
}

// transition applies target conditionally on the entry being in one of
// the allowed source states. The WHERE clause enforces the closed
// transition table even under races.
func (s *Service) transition(ctx context.Context, userID, waitlistID string, target model.WaitlistStatus, extra map[string]any, from ...model.WaitlistStatus) error {
	updates := map[string]any{"status": target}
	for k, v := range extra {
		updates[k] = v
	}

	res := s.db.WithContext(ctx).Model(&model.Waitlist{}).
		Where("user_id = ? AND waitlist_id = ? AND status IN ?", userID, waitlistID, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var entry model.Waitlist
		err := s.db.WithContext(ctx).
			Where("user_id = ? AND waitlist_id = ?", userID, waitlistID).
			First(&entry).Error
		if err == gorm.ErrRecordNotFound {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("cannot move %s entry to %s: %w", entry.Status, target, ErrInvalidTransition)
	}
	return nil
}
