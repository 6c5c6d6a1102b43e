package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/surewhynot/realtime/internal/domain"
	"github.com/surewhynot/realtime/internal/history"
	"github.com/surewhynot/realtime/internal/presence"
)

type IdentityStore interface {
	UpsertBatch(ctx context.Context, ids []domain.Identity) error
	LoadAll(ctx context.Context) ([]domain.Identity, error)
}

type MessageStore interface {
	SaveBatch(ctx context.Context, msgs []domain.Message) error
	LoadRecent(ctx context.Context, perRoom int) ([]domain.Message, error)
}

// Persister flushes changed identities and new messages in batches and
// restores them on boot.
type Persister struct {
	tracker  *presence.Tracker
	history  *history.Store
	ids      IdentityStore
	msgs     MessageStore
	interval time.Duration
	perRoom  int
	log      *slog.Logger
}

func NewPersister(tracker *presence.Tracker, store *history.Store, ids IdentityStore, msgs MessageStore,
	interval time.Duration, perRoom int, log *slog.Logger,
) *Persister {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if perRoom <= 0 {
		perRoom = history.DefaultCapacity
	}
	if log == nil {
		log = slog.Default()
	}
	return &Persister{
		tracker: tracker, history: store, ids: ids, msgs: msgs,
		interval: interval, perRoom: perRoom, log: log.With("component", "persister"),
	}
}

// Restore loads identities and the recent history of every room.
func (p *Persister) Restore(ctx context.Context) error {
	ids, err := p.ids.LoadAll(ctx)
	if err != nil {
		return err
	}
	p.tracker.Restore(ids)

	msgs, err := p.msgs.LoadRecent(ctx, p.perRoom)
	if err != nil {
		return err
	}
	p.history.Restore(msgs)

	p.log.Info("state restored", "identities", len(ids), "messages", len(msgs))
	return nil
}

// Flush writes pending changes. Failed batches are queued again.
func (p *Persister) Flush(ctx context.Context) error {
	var errs []error

	if ids := p.tracker.DrainDirty(); len(ids) > 0 {
		if err := p.ids.UpsertBatch(ctx, ids); err != nil {
			keys := make([]string, len(ids))
			for i, u := range ids {
				keys[i] = u.ID
			}
			p.tracker.MarkDirty(keys...)
			errs = append(errs, err)
		}
	}
	if msgs := p.history.Drain(); len(msgs) > 0 {
		if err := p.msgs.SaveBatch(ctx, msgs); err != nil {
			p.history.Requeue(msgs)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run flushes every interval and once more when ctx is done.
func (p *Persister) Run(ctx context.Context) error {
	t := time.NewTicker(p.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			err := p.Flush(final)
			cancel()
			if err != nil {
				p.log.Error("final flush failed", "err", err)
			}
			return nil
		case <-t.C:
			if err := p.Flush(ctx); err != nil {
				p.log.Warn("flush failed", "err", err)
			}
		}
	}
}
