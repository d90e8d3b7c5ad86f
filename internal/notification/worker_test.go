package notification

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/model"
)

// mockSender is a mock implementation of the Sender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

// A helper function to create an in-memory database with a subscription row.
func newTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.PushSubscription{}))
	return db
}

func seedSubscription(t *testing.T, db *gorm.DB, userID, endpoint string) {
	t.Helper()
	require.NoError(t, db.Create(&model.PushSubscription{
		UserID:   userID,
		Endpoint: endpoint,
		P256DH:   "test_p256dh",
		Auth:     "test_auth",
	}).Error)
}

func okResponse(code int) *http.Response {
	return &http.Response{
		StatusCode: code,
		Body:       io.NopCloser(bytes.NewBufferString("")),
	}
}

func TestWorkerPool_Dispatch(t *testing.T) {
	db := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	// Dispatch a job
	wp.Dispatch(Job{UserID: "user-1", Message: "hello"})

	// Check if the job is in the channel
	select {
	case job := <-wp.jobs:
		assert.Equal(t, "user-1", job.UserID)
		assert.Equal(t, "hello", job.Message)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	db := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	t.Run("sends notification for subscribed user", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		seedSubscription(t, db, "user-send", "https://example.com/push")

		wp.SetSender(&mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				assert.Equal(t, "https://example.com/push", sub.Endpoint)
				assert.Equal(t, "test_p256dh", sub.Keys.P256dh)
				assert.Equal(t, "キャンセル待ちのレッスンに空きが出ました", string(payload))
				wg.Done()
				return okResponse(http.StatusCreated), nil
			},
		})

		wp.Dispatch(Job{UserID: "user-send", Message: "キャンセル待ちのレッスンに空きが出ました"})
		wg.Wait()
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		seedSubscription(t, db, "user-gone", "https://example.com/expired")

		// Sender reports 410 Gone; the worker must drop the subscription.
		wp.SetSender(&mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return okResponse(http.StatusGone), nil
			},
		})

		wp.Dispatch(Job{UserID: "user-gone", Message: "空きが出ました"})

		assert.Eventually(t, func() bool {
			var count int64
			db.Model(&model.PushSubscription{}).
				Where("user_id = ?", "user-gone").
				Count(&count)
			return count == 0
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("drops job when user has no subscription", func(t *testing.T) {
		called := false
		wp.SetSender(&mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				called = true
				return okResponse(http.StatusCreated), nil
			},
		})

		wp.Dispatch(Job{UserID: "user-unknown", Message: "空きが出ました"})

		// A short sleep to allow the worker to process the job
		time.Sleep(100 * time.Millisecond)
		assert.False(t, called, "nothing should be sent for unsubscribed users")
	})
}
