package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/model"
)

// lessonTTL is how long past the lesson date a record survives if the
// per-run clear never happens.
const lessonTTL = 3 * 24 * time.Hour

// LessonStore is the persistence and query contract for scraped lessons.
type LessonStore interface {
	UpsertMany(ctx context.Context, lessons []model.Lesson) UpsertResult
	QueryByStudioAndDate(ctx context.Context, studioCode, date string, f LessonFilters) ([]model.Lesson, error)
	QueryByStudioAndDateRange(ctx context.Context, studioCode, startDate, endDate string, f LessonFilters) ([]model.Lesson, error)
	FindLesson(ctx context.Context, studioCode, date, startTime, name string) (*model.Lesson, error)
	ClearAll(ctx context.Context) (int64, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// UpsertMany writes every lesson as an independent idempotent upsert keyed
// on (studio_code, starts_at). One record's failure never aborts the rest;
// failures are collected per record.
func (s *gormStore) UpsertMany(ctx context.Context, lessons []model.Lesson) UpsertResult {
	var result UpsertResult
	now := time.Now()
	for i := range lessons {
		l := lessons[i]
		l.LastUpdated = now
		if l.ExpiresAt.IsZero() {
			l.ExpiresAt = l.StartsAt.Truncate(24 * time.Hour).Add(lessonTTL)
		}

		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "studio_code"}, {Name: "starts_at"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"lesson_date", "start_time", "end_time", "name", "instructor",
				"status_text", "available", "program", "last_updated", "expires_at",
			}),
		}).Create(&l).Error
		if err != nil {
			log.Printf("Error upserting lesson %s %s %s: %v", l.StudioCode, l.LessonDate, l.StartTime, err)
			result.Failures = append(result.Failures, UpsertFailure{
				StudioCode: l.StudioCode,
				StartTime:  l.StartTime,
				Err:        err,
			})
			continue
		}
		result.Written++
	}
	return result
}

// QueryByStudioAndDate returns the lessons for one studio and day.
func (s *gormStore) QueryByStudioAndDate(ctx context.Context, studioCode, date string, f LessonFilters) ([]model.Lesson, error) {
	return s.queryLessons(ctx, studioCode, date, date, f)
}

// QueryByStudioAndDateRange returns the lessons for one studio across a
// contiguous date span, both ends inclusive.
func (s *gormStore) QueryByStudioAndDateRange(ctx context.Context, studioCode, startDate, endDate string, f LessonFilters) ([]model.Lesson, error) {
	return s.queryLessons(ctx, studioCode, startDate, endDate, f)
}

func (s *gormStore) queryLessons(ctx context.Context, studioCode, startDate, endDate string, f LessonFilters) ([]model.Lesson, error) {
	q := s.db.WithContext(ctx).
		Where("studio_code = ?", studioCode).
		Where("lesson_date >= ? AND lesson_date <= ?", startDate, endDate)

	if f.Program != "" {
		q = q.Where("program = ?", f.Program)
	}
	if f.Instructor != "" {
		q = q.Where("instructor = ?", f.Instructor)
	}
	if f.StartFrom != "" {
		q = q.Where("start_time >= ?", f.StartFrom)
	}
	if f.StartTo != "" {
		q = q.Where("start_time <= ?", f.StartTo)
	}
	if f.AvailableOnly {
		q = q.Where("available = ?", true)
	}

	var lessons []model.Lesson
	if err := q.Order("lesson_date, start_time").Find(&lessons).Error; err != nil {
		return nil, fmt.Errorf("lesson query for studio %q failed: %w", studioCode, err)
	}
	return lessons, nil
}

// FindLesson looks up a single lesson by its waitlist identity fields.
// Returns ErrNotFound when no record matches.
func (s *gormStore) FindLesson(ctx context.Context, studioCode, date, startTime, name string) (*model.Lesson, error) {
	var lesson model.Lesson
	err := s.db.WithContext(ctx).
		Where("studio_code = ? AND lesson_date = ? AND start_time = ? AND name = ?",
			studioCode, date, startTime, name).
		First(&lesson).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &lesson, nil
}

// ClearAll deletes every lesson record and reports how many were removed.
// Safe to call on an empty table.
func (s *gormStore) ClearAll(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("1 = 1").Delete(&model.Lesson{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to clear lessons: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// PurgeExpired removes lessons whose TTL has lapsed. Backstop for runs
// where ClearAll was skipped.
func (s *gormStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&model.Lesson{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge expired lessons: %w", res.Error)
	}
	return res.RowsAffected, nil
}
