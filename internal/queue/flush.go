package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Subscriber delivers connectivity transitions. *netstatus.Monitor satisfies it.
type Subscriber interface {
	Subscribe(cb func(online bool)) (unsubscribe func())
}

// AutoFlush processes the queue in the background on every offline to online
// transition reported by sub. The returned func stops listening.
func (q *Queue) AutoFlush(sub Subscriber, r Replayer) (stop func()) {
	var (
		mu        sync.Mutex
		first     = true
		wasOnline bool
	)
	return sub.Subscribe(func(online bool) {
		mu.Lock()
		prev, initial := wasOnline, first
		wasOnline, first = online, false
		mu.Unlock()

		if initial || prev || !online {
			return
		}
		// Subscribers run while the monitor holds its lock; replay elsewhere.
		go q.flush(context.Background(), r, "reconnect")
	})
}

// Run flushes the queue every interval until ctx is done. A non-positive
// interval means one minute.
func (q *Queue) Run(ctx context.Context, r Replayer, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if q.online != nil && !q.online() {
				continue
			}
			if q.Size(ctx) == 0 {
				continue
			}
			q.flush(ctx, r, "interval")
		}
	}
}

func (q *Queue) flush(ctx context.Context, r Replayer, trigger string) {
	res, err := q.Process(ctx, r)
	switch {
	case errors.Is(err, ErrProcessing):
		zap.L().Debug("queue: flush skipped, already processing", zap.String("trigger", trigger))
	case err != nil:
		zap.L().Error("queue: flush failed", zap.String("trigger", trigger), zap.Error(err))
	default:
		zap.L().Debug("queue: flush done",
			zap.String("trigger", trigger),
			zap.Int("succeeded", res.Succeeded),
			zap.Int("failed", res.Failed),
		)
	}
}
