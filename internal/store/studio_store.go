package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/model"
)

// staleProcessingAfter is how long a studio may sit in processing before
// selection treats it as abandoned by a dead invocation.
const staleProcessingAfter = 10 * time.Minute

// StudioStore persists the studio roster and its batch fields. The batch
// fields are mutated only through these methods, on behalf of the batch
// coordinator.
type StudioStore interface {
	UpsertRoster(ctx context.Context, studios []model.Studio) error
	ListStudios(ctx context.Context) ([]model.Studio, error)
	ResetBatch(ctx context.Context) error
	AllTerminal(ctx context.Context, retryCap int) (bool, error)
	ClaimNext(ctx context.Context, retryCap int) (*model.Studio, error)
	MarkCompleted(ctx context.Context, code string, at time.Time) error
	MarkFailed(ctx context.Context, code string, at time.Time, cause string) error
	BatchProgress(ctx context.Context, retryCap int) (Progress, error)
}

// Store is the full persistence surface backed by one database handle.
type Store interface {
	LessonStore
	StudioStore
	DB() *gorm.DB
}

type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying handle for the API layer and tests.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// UpsertRoster creates new studios and refreshes display names of known
// ones. Studios absent from the listing are never deleted; a transient
// scrape gap must not purge real locations.
func (s *gormStore) UpsertRoster(ctx context.Context, studios []model.Studio) error {
	if len(studios) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(&studios).Error
	if err != nil {
		return fmt.Errorf("batch upsert studios failed: %w", err)
	}
	return nil
}

// ListStudios returns the whole roster ordered by code.
func (s *gormStore) ListStudios(ctx context.Context) ([]model.Studio, error) {
	var studios []model.Studio
	if err := s.db.WithContext(ctx).Order("code").Find(&studios).Error; err != nil {
		return nil, err
	}
	return studios, nil
}

// ResetBatch returns every studio to the unset state for a fresh run.
func (s *gormStore) ResetBatch(ctx context.Context) error {
	err := s.db.WithContext(ctx).Model(&model.Studio{}).
		Where("1 = 1").
		Updates(map[string]any{
			"batch_status": model.BatchStatusUnset,
			"retry_count":  0,
			"last_error":   "",
		}).Error
	if err != nil {
		return fmt.Errorf("failed to reset batch fields: %w", err)
	}
	return nil
}

// AllTerminal reports whether every studio has exited the run, i.e. is
// completed or failed past the retry cap. An empty roster counts as
// terminal so the first run can bootstrap it.
func (s *gormStore) AllTerminal(ctx context.Context, retryCap int) (bool, error) {
	var open int64
	err := s.db.WithContext(ctx).Model(&model.Studio{}).
		Where("NOT (batch_status = ? OR (batch_status = ? AND retry_count >= ?))",
			model.BatchStatusCompleted, model.BatchStatusFailed, retryCap).
		Count(&open).Error
	if err != nil {
		return false, err
	}
	return open == 0, nil
}

// ClaimNext picks the next studio to scrape and conditionally transitions
// it to processing, so racing invocations cannot both claim it. Preference
// order: never-attempted studios, then failed ones under the retry cap,
// then processing rows abandoned long enough to be considered stale.
// Returns nil when no work remains.
func (s *gormStore) ClaimNext(ctx context.Context, retryCap int) (*model.Studio, error) {
	now := time.Now()
	staleBefore := now.Add(-staleProcessingAfter)

	type candidateQuery struct {
		where []any
	}
	candidates := []candidateQuery{
		{where: []any{"batch_status = ?", model.BatchStatusUnset}},
		{where: []any{"batch_status = ? AND retry_count < ?", model.BatchStatusFailed, retryCap}},
		{where: []any{"batch_status = ? AND updated_at < ?", model.BatchStatusProcessing, staleBefore}},
	}

	for _, c := range candidates {
		var studio model.Studio
		err := s.db.WithContext(ctx).
			Where(c.where[0], c.where[1:]...).
			Order("retry_count, code").
			First(&studio).Error
		if err == gorm.ErrRecordNotFound {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to select next studio: %w", err)
		}

		// Conditional claim: only wins if the row is still in the state we saw.
		res := s.db.WithContext(ctx).Model(&model.Studio{}).
			Where("code = ? AND batch_status = ?", studio.Code, studio.BatchStatus).
			Update("batch_status", model.BatchStatusProcessing)
		if res.Error != nil {
			return nil, fmt.Errorf("failed to claim studio %q: %w", studio.Code, res.Error)
		}
		if res.RowsAffected == 0 {
			// Lost the race; the next invocation re-evaluates.
			continue
		}
		studio.BatchStatus = model.BatchStatusProcessing
		return &studio, nil
	}
	return nil, nil
}

// MarkCompleted records a successful scrape: terminal for the run, retry
// budget and error cleared.
func (s *gormStore) MarkCompleted(ctx context.Context, code string, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&model.Studio{}).
		Where("code = ?", code).
		Updates(map[string]any{
			"batch_status":      model.BatchStatusCompleted,
			"retry_count":       0,
			"last_error":        "",
			"last_processed_at": at,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark studio %q completed: %w", code, err)
	}
	return nil
}

// MarkFailed records a failed scrape and burns one retry.
func (s *gormStore) MarkFailed(ctx context.Context, code string, at time.Time, cause string) error {
	err := s.db.WithContext(ctx).Model(&model.Studio{}).
		Where("code = ?", code).
		Updates(map[string]any{
			"batch_status":      model.BatchStatusFailed,
			"retry_count":       gorm.Expr("retry_count + 1"),
			"last_error":        cause,
			"last_processed_at": at,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark studio %q failed: %w", code, err)
	}
	return nil
}

// BatchProgress counts studios per batch state.
func (s *gormStore) BatchProgress(ctx context.Context, retryCap int) (Progress, error) {
	var studios []model.Studio
	if err := s.db.WithContext(ctx).Find(&studios).Error; err != nil {
		return Progress{}, err
	}

	p := Progress{Total: len(studios)}
	for _, st := range studios {
		switch st.BatchStatus {
		case model.BatchStatusCompleted:
			p.Completed++
		case model.BatchStatusProcessing:
			p.Processing++
		case model.BatchStatusFailed:
			p.Failed++
		}
		if !st.BatchStatus.Terminal(st.RetryCount, retryCap) {
			p.Remaining++
		}
	}
	return p, nil
}
