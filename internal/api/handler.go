package api

import (
	"context"

	"github.com/SherClockHolmes/webpush-go"

	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/batch"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/store"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/waitlist"
)

// BatchRunner executes one full scrape sweep.
type BatchRunner interface {
	RunOnce(ctx context.Context)
}

// Handler holds shared dependencies for API handlers. baseCtx is the
// application lifetime; background work started by a handler hangs off
// it so it stops with the process rather than outliving shutdown.
type Handler struct {
	baseCtx   context.Context
	store     store.Store
	waitlists *waitlist.Service
	coord     *batch.Coordinator
	runner    BatchRunner
	webpush   *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(baseCtx context.Context, s store.Store, wl *waitlist.Service, coord *batch.Coordinator, runner BatchRunner, webpushOptions *webpush.Options) *Handler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Handler{
		baseCtx:   baseCtx,
		store:     s,
		waitlists: wl,
		coord:     coord,
		runner:    runner,
		webpush:   webpushOptions,
	}
}
