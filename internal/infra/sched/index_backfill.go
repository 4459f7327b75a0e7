package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/infra/worker"
)

const (
	backfillJob     = "index_backfill"
	backfillLockKey = "lock:index_backfill"
	backfillBatch   = 50
)

// Indexer exposes documents whose embedding is missing and indexes one.
type Indexer interface {
	PendingIndex(ctx context.Context, limit int) ([]*model.Document, error)
	Index(ctx context.Context, d *model.Document) error
}

// Locker serialises backfill passes across instances.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// Submitter queues background tasks.
type Submitter interface {
	Submit(task worker.Task) error
}

// IndexBackfill retries vector indexing for documents whose embedding
// failed at upload time. Each document becomes one pool task.
type IndexBackfill struct {
	interval time.Duration
	docs     Indexer
	pool     Submitter
	lock     Locker // optional
	log      *zerolog.Logger
}

func NewIndexBackfill(interval time.Duration, docs Indexer, pool Submitter, lock Locker, logger *zerolog.Logger) *IndexBackfill {
	l := logger.With().Str("component", "IndexBackfill").Logger()
	return &IndexBackfill{interval: interval, docs: docs, pool: pool, lock: lock, log: &l}
}

func (b *IndexBackfill) Run(ctx context.Context) error {
	b.log.Info().Dur("interval", b.interval).Msg("Starting index backfill")
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info().Msg("Stopping index backfill")
			return ctx.Err()
		case <-ticker.C:
			b.Pass(ctx)
		}
	}
}

// Pass queues one batch of pending documents and reports how many were
// submitted. A pass held by another instance submits nothing.
func (b *IndexBackfill) Pass(ctx context.Context) int {
	if b.lock != nil {
		token, err := b.lock.TryLock(ctx, backfillLockKey, b.interval)
		if err != nil {
			b.log.Debug().Err(err).Msg("backfill lock not acquired")
			return 0
		}
		defer func() {
			if err := b.lock.Unlock(context.WithoutCancel(ctx), backfillLockKey, token); err != nil {
				b.log.Warn().Err(err).Msg("backfill unlock failed")
			}
		}()
	}

	docs, err := b.docs.PendingIndex(ctx, backfillBatch)
	if err != nil {
		b.log.Error().Err(err).Msg("listing unindexed documents failed")
		return 0
	}
	submitted := 0
	for _, d := range docs {
		d := d
		err := b.pool.Submit(worker.Task{
			Name: backfillJob,
			Run:  func(ctx context.Context) error { return b.docs.Index(ctx, d) },
		})
		if errors.Is(err, worker.ErrQueueFull) {
			b.log.Warn().Int("remaining", len(docs)-submitted).Msg("worker queue full; deferring to next pass")
			break
		}
		if err != nil {
			b.log.Warn().Err(err).Str("document_id", d.ID).Msg("backfill submit failed")
			continue
		}
		submitted++
	}
	if submitted > 0 {
		b.log.Info().Int("count", submitted).Msg("documents queued for indexing")
	}
	return submitted
}
