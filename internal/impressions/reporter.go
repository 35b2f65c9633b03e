// Package impressions delivers watch impressions, falling back to a local
// queue when the network is down and flushing the queue later.
package impressions

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/davecarlow/vertigo/internal/api"
	"github.com/davecarlow/vertigo/internal/logging"
	"github.com/davecarlow/vertigo/internal/store"
)

// Sender posts impressions to the service.
type Sender interface {
	RecordImpression(ctx context.Context, imp api.Impression) error
}

// Queue persists impressions that could not be delivered.
type Queue interface {
	QueueImpression(imp api.Impression) error
	PendingImpressions() ([]store.PendingImpression, error)
	DeleteImpression(id int64) error
}

// Reporter delivers impressions, queueing on failure. A nil Queue disables
// the fallback.
type Reporter struct {
	sender Sender
	queue  Queue
}

// NewReporter creates a Reporter.
func NewReporter(sender Sender, queue Queue) *Reporter {
	return &Reporter{sender: sender, queue: queue}
}

// Deliver sends one impression, queueing it locally if the send fails. The
// UI treats this as fire-and-forget; the error is logged, never surfaced.
func (r *Reporter) Deliver(ctx context.Context, imp api.Impression) {
	err := r.sender.RecordImpression(ctx, imp)
	if err == nil {
		return
	}
	logging.Warn("impression send failed, queueing", "item", imp.ItemID, "error", err)
	if r.queue == nil {
		return
	}
	if err := r.queue.QueueImpression(imp); err != nil {
		logging.Error("impression queue failed", "item", imp.ItemID, "error", err)
	}
}

// flushConcurrency bounds parallel sends during a queue flush.
const flushConcurrency = 4

// FlushPending sends every queued impression, deleting the ones that land.
// Failures leave their rows queued for the next flush. Returns the number
// delivered.
func (r *Reporter) FlushPending(ctx context.Context) (int, error) {
	if r.queue == nil {
		return 0, nil
	}
	pending, err := r.queue.PendingImpressions()
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	var delivered atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(flushConcurrency)
	for _, p := range pending {
		g.Go(func() error {
			if err := r.sender.RecordImpression(ctx, p.Impression); err != nil {
				return err
			}
			if err := r.queue.DeleteImpression(p.ID); err != nil {
				return err
			}
			delivered.Add(1)
			return nil
		})
	}
	err = g.Wait()
	return int(delivered.Load()), err
}
