package waitlist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/model"
)

func TestMonitorTick_NotifiesAndPauses(t *testing.T) {
	svc, s, dispatcher := newTestService(t)
	ctx := context.Background()

	in := validInput() // gnz 2025-07-24 19:30 BSL Deep 1
	_, err := svc.Create(ctx, in)
	require.NoError(t, err)

	res := s.UpsertMany(ctx, []model.Lesson{{
		StudioCode: "gnz",
		StartsAt:   time.Date(2025, 7, 24, 19, 30, 0, 0, time.UTC),
		LessonDate: "2025-07-24",
		StartTime:  "19:30",
		Name:       "BSL Deep 1",
		Instructor: "Taro",
		StatusText: "残り2/20",
		Available:  true,
	}})
	require.Equal(t, 1, res.Written)

	notified := svc.MonitorTick(ctx)
	assert.Equal(t, 1, notified)

	// The entry is paused so the next tick does not re-alert.
	entry, err := svc.Get(ctx, in.UserID, in.WaitlistID())
	require.NoError(t, err)
	assert.Equal(t, model.WaitlistStatusPaused, entry.Status)

	// Exactly one notification record with the parsed slot counts.
	require.Len(t, entry.Notifications, 1)
	assert.Equal(t, 2, entry.Notifications[0].AvailableSlots)
	assert.Equal(t, 20, entry.Notifications[0].TotalSlots)
	assert.NotEmpty(t, entry.Notifications[0].ID)

	// Exactly one push dispatched, addressed to the watcher.
	require.Len(t, dispatcher.jobs, 1)
	assert.Equal(t, "user-1", dispatcher.jobs[0].UserID)
	assert.Contains(t, dispatcher.jobs[0].Message, "BSL Deep 1")
	assert.Contains(t, dispatcher.jobs[0].Message, "残り2席")

	// A second tick over the same snapshot is quiet.
	assert.Zero(t, svc.MonitorTick(ctx))
	assert.Len(t, dispatcher.jobs, 1)
}

func TestMonitorTick_SkipsUnavailableAndMissingLessons(t *testing.T) {
	svc, s, dispatcher := newTestService(t)
	ctx := context.Background()

	full := validInput()
	_, err := svc.Create(ctx, full)
	require.NoError(t, err)

	missing := validInput()
	missing.LessonName = "BB2 House 1"
	_, err = svc.Create(ctx, missing)
	require.NoError(t, err)

	// Only the first entry's lesson exists, and it is full.
	res := s.UpsertMany(ctx, []model.Lesson{{
		StudioCode: "gnz",
		StartsAt:   time.Date(2025, 7, 24, 19, 30, 0, 0, time.UTC),
		LessonDate: "2025-07-24",
		StartTime:  "19:30",
		Name:       "BSL Deep 1",
		StatusText: "満席",
		Available:  false,
	}})
	require.Equal(t, 1, res.Written)

	assert.Zero(t, svc.MonitorTick(ctx))
	assert.Empty(t, dispatcher.jobs)

	for _, in := range []CreateInput{full, missing} {
		entry, err := svc.Get(ctx, in.UserID, in.WaitlistID())
		require.NoError(t, err)
		assert.Equal(t, model.WaitlistStatusActive, entry.Status)
	}
}

func TestMonitorTick_HonorsLookaheadWindow(t *testing.T) {
	svc, s, dispatcher := newTestService(t)
	ctx := context.Background()

	// Lesson far beyond the look-ahead window (default 48h from testNow).
	in := validInput()
	in.LessonDate = "2025-08-10"
	_, err := svc.Create(ctx, in)
	require.NoError(t, err)

	res := s.UpsertMany(ctx, []model.Lesson{{
		StudioCode: "gnz",
		StartsAt:   time.Date(2025, 8, 10, 19, 30, 0, 0, time.UTC),
		LessonDate: "2025-08-10",
		StartTime:  "19:30",
		Name:       "BSL Deep 1",
		StatusText: "残り5席",
		Available:  true,
	}})
	require.Equal(t, 1, res.Written)

	assert.Zero(t, svc.MonitorTick(ctx))
	assert.Empty(t, dispatcher.jobs)
}

func TestExpirySweep(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	in := validInput() // lesson at 2025-07-24 19:30
	_, err := svc.Create(ctx, in)
	require.NoError(t, err)

	pausedIn := validInput()
	pausedIn.LessonName = "BB2 House 1"
	_, err = svc.Create(ctx, pausedIn)
	require.NoError(t, err)
	require.NoError(t, svc.Pause(ctx, pausedIn.UserID, pausedIn.WaitlistID()))

	// Not yet 24h past the lesson: nothing expires.
	svc.SetClock(func() time.Time { return time.Date(2025, 7, 25, 6, 0, 0, 0, time.UTC) })
	n, err := svc.ExpirySweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// Two days later both the active and the paused entry expire.
	svc.SetClock(func() time.Time { return time.Date(2025, 7, 26, 0, 0, 0, 0, time.UTC) })
	n, err = svc.ExpirySweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, i := range []CreateInput{in, pausedIn} {
		entry, err := svc.Get(ctx, i.UserID, i.WaitlistID())
		require.NoError(t, err)
		assert.Equal(t, model.WaitlistStatusExpired, entry.Status)
	}

	// Expired is terminal: the sweep never fires twice for the same entry.
	n, err = svc.ExpirySweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMonitorTick_AutoResumeReAlerts(t *testing.T) {
	svc, s, dispatcher := newTestService(t)
	ctx := context.Background()

	in := validInput()
	_, err := svc.Create(ctx, in)
	require.NoError(t, err)

	res := s.UpsertMany(ctx, []model.Lesson{{
		StudioCode: "gnz",
		StartsAt:   time.Date(2025, 7, 24, 19, 30, 0, 0, time.UTC),
		LessonDate: "2025-07-24",
		StartTime:  "19:30",
		Name:       "BSL Deep 1",
		StatusText: "残り2/20",
		Available:  true,
	}})
	require.Equal(t, 1, res.Written)

	require.Equal(t, 1, svc.MonitorTick(ctx))

	entry, err := svc.Get(ctx, in.UserID, in.WaitlistID())
	require.NoError(t, err)
	assert.Equal(t, model.WaitlistStatusPaused, entry.Status)
	require.NotNil(t, entry.AutoResumeAt)
	assert.Equal(t, testNow.Add(time.Hour).Unix(), entry.AutoResumeAt.Unix())

	// Inside the quiet period the entry stays paused.
	svc.SetClock(func() time.Time { return testNow.Add(30 * time.Minute) })
	assert.Zero(t, svc.MonitorTick(ctx))
	require.Len(t, dispatcher.jobs, 1)

	// Past the quiet period the entry re-arms and, with availability still
	// open, alerts again.
	svc.SetClock(func() time.Time { return testNow.Add(2 * time.Hour) })
	assert.Equal(t, 1, svc.MonitorTick(ctx))
	require.Len(t, dispatcher.jobs, 2)

	entry, err = svc.Get(ctx, in.UserID, in.WaitlistID())
	require.NoError(t, err)
	assert.Equal(t, model.WaitlistStatusPaused, entry.Status)
	assert.Len(t, entry.Notifications, 2)
}

func TestMonitorTick_ManualPauseIsNotAutoResumed(t *testing.T) {
	svc, s, dispatcher := newTestService(t)
	ctx := context.Background()

	in := validInput()
	_, err := svc.Create(ctx, in)
	require.NoError(t, err)
	require.NoError(t, svc.Pause(ctx, in.UserID, in.WaitlistID()))

	res := s.UpsertMany(ctx, []model.Lesson{{
		StudioCode: "gnz",
		StartsAt:   time.Date(2025, 7, 24, 19, 30, 0, 0, time.UTC),
		LessonDate: "2025-07-24",
		StartTime:  "19:30",
		Name:       "BSL Deep 1",
		StatusText: "残り2/20",
		Available:  true,
	}})
	require.Equal(t, 1, res.Written)

	// A hand-paused entry carries no marker and never re-arms on its own.
	svc.SetClock(func() time.Time { return testNow.Add(3 * time.Hour) })
	assert.Zero(t, svc.MonitorTick(ctx))
	assert.Empty(t, dispatcher.jobs)

	entry, err := svc.Get(ctx, in.UserID, in.WaitlistID())
	require.NoError(t, err)
	assert.Equal(t, model.WaitlistStatusPaused, entry.Status)
}
