// Package upload implements the Batch Uploader: the ticker-driven loop
// that flushes pending events through the Transport Core when online,
// grounded on the teacher's session.Manager.Run(ctx) loop.
package upload

import (
	"context"
	"log/slog"
	"time"

	"oneshim-edge/internal/agenterr"
	"oneshim-edge/internal/connectivity"
	"oneshim-edge/internal/storage"
)

// Uploader periodically pulls unsent events from the Event Store,
// batches them, and uploads them through Transport whenever the
// Connectivity Manager reports online.
type Uploader struct {
	store        *storage.Store
	transport    Transport
	connectivity *connectivity.Manager

	batchMaxEvents int
	batchInterval  time.Duration
	tickInterval   time.Duration

	lastFlush time.Time
}

// Transport is the subset of the Transport Core the uploader depends on.
type Transport interface {
	UploadBatch(ctx context.Context, batch any) error
}

// New builds an Uploader. tickInterval governs how often the loop
// checks whether a flush is due; batchInterval/batchMaxEvents govern
// when a flush actually fires.
func New(store *storage.Store, transport Transport, conn *connectivity.Manager, batchMaxEvents int, batchInterval, tickInterval time.Duration) *Uploader {
	return &Uploader{
		store:          store,
		transport:      transport,
		connectivity:   conn,
		batchMaxEvents: batchMaxEvents,
		batchInterval:  batchInterval,
		tickInterval:   tickInterval,
		lastFlush:      time.Now(),
	}
}

// Run drives the upload cycle until ctx is canceled.
func (u *Uploader) Run(ctx context.Context) {
	ticker := time.NewTicker(u.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("batch uploader stopping")
			return
		case <-ticker.C:
			u.maybeFlush(ctx)
		}
	}
}

func (u *Uploader) maybeFlush(ctx context.Context) {
	if !u.connectivity.IsOnline() {
		return
	}

	pending, err := u.store.GetPendingEvents(ctx, u.batchMaxEvents+1)
	if err != nil {
		slog.Error("failed to load pending events", "error", err)
		return
	}

	due := len(pending) >= u.batchMaxEvents || time.Since(u.lastFlush) >= u.batchInterval
	if !due || len(pending) == 0 {
		return
	}

	u.flush(ctx, pending)
}

func (u *Uploader) flush(ctx context.Context, pending []storage.Event) {
	ids := make([]string, len(pending))
	for i, e := range pending {
		ids[i] = e.EventID
	}

	err := u.transport.UploadBatch(ctx, pending)
	u.lastFlush = time.Now()

	if err == nil {
		if err := u.store.MarkAsSent(ctx, ids); err != nil {
			slog.Error("failed to mark events sent after successful upload", "error", err)
			return
		}
		u.connectivity.RecordSuccess()
		slog.Info("batch uploaded", "count", len(ids))
		return
	}

	if agenterr.Is(err, agenterr.RateLimit) {
		if ae, ok := err.(*agenterr.Error); ok && ae.RetryAfterSecs > 0 {
			slog.Warn("batch upload rate-limited, sleeping before next attempt", "retry_after_secs", ae.RetryAfterSecs)
			select {
			case <-time.After(time.Duration(ae.RetryAfterSecs) * time.Second):
			case <-ctx.Done():
			}
		}
		return
	}

	slog.Warn("batch upload failed, events remain unsent", "error", err, "count", len(ids))
	u.connectivity.RecordFailure()
}
