package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/wataru-taketani/feelcycle-hub-sub000/config"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/model"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/store"
)

// fakeExtractor scripts per-studio scrape outcomes.
type fakeExtractor struct {
	studios  []model.Studio
	listErr  error
	results  map[string][][]model.Lesson // successive outcomes per studio
	failures map[string][]error
	calls    map[string]int
}

func newFakeExtractor(studios ...model.Studio) *fakeExtractor {
	return &fakeExtractor{
		studios:  studios,
		results:  make(map[string][][]model.Lesson),
		failures: make(map[string][]error),
		calls:    make(map[string]int),
	}
}

func (f *fakeExtractor) ListStudios(ctx context.Context) ([]model.Studio, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.studios, nil
}

func (f *fakeExtractor) ExtractLessons(ctx context.Context, code string) ([]model.Lesson, error) {
	i := f.calls[code]
	f.calls[code]++
	if errs := f.failures[code]; i < len(errs) && errs[i] != nil {
		return nil, errs[i]
	}
	if results := f.results[code]; len(results) > 0 {
		if i >= len(results) {
			i = len(results) - 1
		}
		return results[i], nil
	}
	return nil, nil
}

func newTestCoordinator(t *testing.T, extractor *fakeExtractor) (*Coordinator, store.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Studio{}, &model.Lesson{}))

	s := store.NewGormStore(db)
	cfg := &config.BatchConfig{RetryCap: 2, Concurrency: 1}
	return NewCoordinator(cfg, s, extractor), s
}

func lessonsFor(code string, names ...string) []model.Lesson {
	var lessons []model.Lesson
	base := time.Date(2025, 7, 24, 10, 0, 0, 0, time.UTC)
	for i, name := range names {
		start := base.Add(time.Duration(i) * time.Hour)
		lessons = append(lessons, model.Lesson{
			StudioCode: code,
			StartsAt:   start,
			LessonDate: "2025-07-24",
			StartTime:  start.Format("15:04"),
			Name:       name,
			Available:  true,
		})
	}
	return lessons
}

func TestCoordinator_StartRunResetsWhenAllTerminal(t *testing.T) {
	ctx := context.Background()
	extractor := newFakeExtractor(
		model.Studio{Code: "gnz", Name: "銀座"},
		model.Studio{Code: "ykh", Name: "横浜"},
	)
	coord, s := newTestCoordinator(t, extractor)

	// Leftovers from yesterday: terminal statuses and stale lessons.
	require.NoError(t, s.UpsertRoster(ctx, []model.Studio{{Code: "gnz", Name: "銀座"}}))
	require.NoError(t, s.MarkCompleted(ctx, "gnz", time.Now()))
	s.UpsertMany(ctx, lessonsFor("gnz", "BB2 House 1"))

	require.NoError(t, coord.StartRun(ctx))

	// Batch fields are reset and the lesson store is empty before any write.
	studios, err := s.ListStudios(ctx)
	require.NoError(t, err)
	require.Len(t, studios, 2, "roster refresh should add ykh")
	for _, st := range studios {
		assert.Equal(t, model.BatchStatusUnset, st.BatchStatus)
	}

	lessons, err := s.QueryByStudioAndDate(ctx, "gnz", "2025-07-24", store.LessonFilters{})
	require.NoError(t, err)
	assert.Empty(t, lessons)
}

func TestCoordinator_StartRunResumesOpenRun(t *testing.T) {
	ctx := context.Background()
	extractor := newFakeExtractor(model.Studio{Code: "gnz", Name: "銀座"})
	coord, s := newTestCoordinator(t, extractor)

	require.NoError(t, s.UpsertRoster(ctx, []model.Studio{
		{Code: "gnz", Name: "銀座"},
		{Code: "ykh", Name: "横浜"},
	}))
	require.NoError(t, s.MarkCompleted(ctx, "gnz", time.Now()))
	s.UpsertMany(ctx, lessonsFor("gnz", "BB2 House 1"))

	// ykh is still unset, so the run is open: nothing may be cleared.
	require.NoError(t, coord.StartRun(ctx))

	lessons, err := s.QueryByStudioAndDate(ctx, "gnz", "2025-07-24", store.LessonFilters{})
	require.NoError(t, err)
	assert.Len(t, lessons, 1, "resume must not clear completed studios' lessons")
}

func TestCoordinator_TransientFailureThenSuccess(t *testing.T) {
	ctx := context.Background()
	extractor := newFakeExtractor(model.Studio{Code: "gnz", Name: "銀座"})
	extractor.failures["gnz"] = []error{errors.New("navigation timeout")}
	extractor.results["gnz"] = [][]model.Lesson{
		nil, // attempt 1 fails before producing anything
		lessonsFor("gnz", "BB2 House 1", "BSL Deep 1"),
	}
	coord, s := newTestCoordinator(t, extractor)
	require.NoError(t, coord.StartRun(ctx))

	// Attempt 1: transient failure is recorded, not propagated.
	remaining, processed, err := coord.ProcessNext(ctx)
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, 1, remaining)

	studios, _ := s.ListStudios(ctx)
	assert.Equal(t, model.BatchStatusFailed, studios[0].BatchStatus)
	assert.Equal(t, 1, studios[0].RetryCount)
	assert.Contains(t, studios[0].LastError, "navigation timeout")

	// Attempt 2 succeeds: completed, retry budget cleared, exactly the
	// second attempt's records stored.
	remaining, processed, err = coord.ProcessNext(ctx)
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Zero(t, remaining)

	studios, _ = s.ListStudios(ctx)
	assert.Equal(t, model.BatchStatusCompleted, studios[0].BatchStatus)
	assert.Zero(t, studios[0].RetryCount)
	assert.Empty(t, studios[0].LastError)

	lessons, err := s.QueryByStudioAndDate(ctx, "gnz", "2025-07-24", store.LessonFilters{})
	require.NoError(t, err)
	assert.Len(t, lessons, 2)
}

func TestCoordinator_RetryCapExhaustsStudio(t *testing.T) {
	ctx := context.Background()
	extractor := newFakeExtractor(model.Studio{Code: "gnz", Name: "銀座"})
	extractor.failures["gnz"] = []error{
		errors.New("boom 1"), errors.New("boom 2"), errors.New("boom 3"),
	}
	coord, _ := newTestCoordinator(t, extractor)
	require.NoError(t, coord.StartRun(ctx))

	for i := 0; i < 2; i++ {
		_, processed, err := coord.ProcessNext(ctx)
		require.NoError(t, err)
		assert.True(t, processed)
	}

	// Past the cap the studio is never selected again this run.
	remaining, processed, err := coord.ProcessNext(ctx)
	require.NoError(t, err)
	assert.False(t, processed)
	assert.Zero(t, remaining)
	assert.Equal(t, 2, extractor.calls["gnz"], "no scrape beyond the retry cap")

	p, err := coord.Progress(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Progress{Total: 1, Failed: 1}, p)
}

func TestCoordinator_RosterRefreshFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	extractor := newFakeExtractor()
	extractor.listErr = errors.New("listing page down")
	coord, s := newTestCoordinator(t, extractor)

	require.NoError(t, s.UpsertRoster(ctx, []model.Studio{{Code: "gnz", Name: "銀座"}}))
	require.NoError(t, s.MarkCompleted(ctx, "gnz", time.Now()))

	require.NoError(t, coord.StartRun(ctx), "run proceeds over known studios")

	studios, err := s.ListStudios(ctx)
	require.NoError(t, err)
	assert.Len(t, studios, 1)
}
