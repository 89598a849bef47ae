// Package queue implements the durable FIFO of mutating requests deferred
// while the device is offline.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hirely/hirely-cli/internal/model"
	"github.com/hirely/hirely-cli/internal/store"
)

// DefaultKey is the storage key holding the serialized queue.
const DefaultKey = "hirely_offline_queue"

var (
	// ErrNotDurable marks an Add whose item could not be persisted.
	ErrNotDurable = eris.New("queue: request not durably queued")
	// ErrProcessing is returned when a Process run is already in flight.
	ErrProcessing = eris.New("queue: processing already in progress")
)

// PersistError reports a failed write of a newly queued request. It matches
// ErrNotDurable with errors.Is and unwraps to the storage failure.
type PersistError struct {
	ID  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("queue: request %s not durably queued: %v", e.ID, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Is reports whether target is ErrNotDurable.
func (e *PersistError) Is(target error) bool { return target == ErrNotDurable }

// NewRequest describes a request to defer.
type NewRequest struct {
	URL        string
	Method     string
	Body       []byte // any encoding; replayed byte-for-byte
	Headers    map[string]string
	MaxRetries int // zero means model.DefaultMaxRetries
}

// Replayer sends a queued request once. Implementations refresh credentials
// on every call rather than reusing headers captured at enqueue time.
type Replayer interface {
	Replay(ctx context.Context, req model.QueuedRequest) error
}

// ReplayFunc adapts a function to Replayer.
type ReplayFunc func(ctx context.Context, req model.QueuedRequest) error

// Replay calls f.
func (f ReplayFunc) Replay(ctx context.Context, req model.QueuedRequest) error {
	return f(ctx, req)
}

// Result summarizes one Process run.
type Result struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Queue is a FIFO of deferred requests persisted as one JSON array in a KV.
type Queue struct {
	kv         store.KV
	key        string
	maxRetries int
	now        func() time.Time
	online     func() bool

	mu         sync.Mutex
	processing atomic.Bool
}

// Option configures a Queue.
type Option func(*Queue)

// WithKey sets the storage key.
func WithKey(key string) Option {
	return func(q *Queue) {
		if key != "" {
			q.key = key
		}
	}
}

// WithMaxRetries sets the default replay ceiling for new requests.
func WithMaxRetries(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.maxRetries = n
		}
	}
}

// WithClock overrides the time source used for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithConnectivity makes the periodic flush skip ticks while online reports false.
func WithConnectivity(online func() bool) Option {
	return func(q *Queue) { q.online = online }
}

// New creates a Queue stored in kv.
func New(kv store.KV, opts ...Option) *Queue {
	q := &Queue{
		kv:         kv,
		key:        DefaultKey,
		maxRetries: model.DefaultMaxRetries,
		now:        time.Now,
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Add appends req and persists the queue. The id is returned even when
// persisting fails; the error then matches ErrNotDurable.
func (q *Queue) Add(ctx context.Context, req NewRequest) (string, error) {
	now := q.now()
	item := model.QueuedRequest{
		ID:         newID(now),
		URL:        req.URL,
		Method:     strings.ToUpper(req.Method),
		Body:       req.Body,
		Headers:    req.Headers,
		Timestamp:  now.UnixMilli(),
		MaxRetries: req.MaxRetries,
	}
	if item.MaxRetries <= 0 {
		item.MaxRetries = q.maxRetries
	}
	if item.Headers == nil {
		item.Headers = map[string]string{}
	}

	q.mu.Lock()
	err := q.update(ctx, func(items []model.QueuedRequest) []model.QueuedRequest {
		return append(items, item)
	})
	q.mu.Unlock()

	if err != nil {
		zap.L().Error("queue: failed to persist request",
			zap.String("id", item.ID),
			zap.String("method", item.Method),
			zap.String("url", item.URL),
			zap.Error(err),
		)
		return item.ID, &PersistError{ID: item.ID, Err: err}
	}

	zap.L().Info("queue: request deferred",
		zap.String("id", item.ID),
		zap.String("method", item.Method),
		zap.String("url", item.URL),
	)
	return item.ID, nil
}

// Size returns the number of queued requests. Unreadable storage counts as empty.
func (q *Queue) Size(ctx context.Context) int {
	return len(q.Items(ctx))
}

// Items returns a snapshot of the queue in insertion order.
func (q *Queue) Items(ctx context.Context) []model.QueuedRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load(ctx)
}

// Clear removes every queued request.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return eris.Wrap(q.kv.Delete(ctx, q.key), "queue: clear")
}

// Process replays queued requests in insertion order. Each outcome is
// persisted before the next replay starts. Only one Process runs at a time;
// a concurrent call returns ErrProcessing.
func (q *Queue) Process(ctx context.Context, r Replayer) (Result, error) {
	if !q.processing.CompareAndSwap(false, true) {
		return Result{}, ErrProcessing
	}
	defer q.processing.Store(false)

	var res Result
	for _, item := range q.Items(ctx) {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		replayErr := r.Replay(ctx, item)
		log := zap.L().With(
			zap.String("id", item.ID),
			zap.String("method", item.Method),
			zap.String("url", item.URL),
		)

		if replayErr == nil {
			if err := q.remove(ctx, item.ID); err != nil {
				return res, err
			}
			res.Succeeded++
			log.Info("queue: replay succeeded")
			continue
		}

		dropped, err := q.recordFailure(ctx, item.ID)
		if err != nil {
			return res, err
		}
		if dropped {
			res.Failed++
			log.Warn("queue: replay retries exhausted, dropping request",
				zap.Int("max_retries", item.MaxRetries),
				zap.Error(replayErr),
			)
			continue
		}
		log.Warn("queue: replay failed, keeping request",
			zap.Int("retry_count", item.RetryCount+1),
			zap.Error(replayErr),
		)
	}

	if res.Succeeded > 0 || res.Failed > 0 {
		zap.L().Info("queue: processed",
			zap.Int("succeeded", res.Succeeded),
			zap.Int("failed", res.Failed),
		)
	}
	return res, nil
}

func (q *Queue) remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	err := q.update(ctx, func(items []model.QueuedRequest) []model.QueuedRequest {
		out := items[:0]
		for _, it := range items {
			if it.ID != id {
				out = append(out, it)
			}
		}
		return out
	})
	return eris.Wrapf(err, "queue: remove %s", id)
}

// recordFailure bumps the retry count of id and drops it once exhausted.
func (q *Queue) recordFailure(ctx context.Context, id string) (dropped bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	err = q.update(ctx, func(items []model.QueuedRequest) []model.QueuedRequest {
		out := items[:0]
		for _, it := range items {
			if it.ID == id {
				it.RetryCount++
				if it.Exhausted() {
					dropped = true
					continue
				}
			}
			out = append(out, it)
		}
		return out
	})
	return dropped, eris.Wrapf(err, "queue: record failure %s", id)
}

// update runs a read-modify-write of the stored array. Callers hold q.mu.
func (q *Queue) update(ctx context.Context, fn func([]model.QueuedRequest) []model.QueuedRequest) error {
	return q.kv.Update(ctx, q.key, func(old []byte) ([]byte, error) {
		return json.Marshal(fn(decode(old)))
	})
}

func (q *Queue) load(ctx context.Context) []model.QueuedRequest {
	raw, err := q.kv.Get(ctx, q.key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			zap.L().Warn("queue: storage unavailable, treating as empty", zap.Error(err))
		}
		return []model.QueuedRequest{}
	}
	return decode(raw)
}

func decode(raw []byte) []model.QueuedRequest {
	items := []model.QueuedRequest{}
	if len(raw) == 0 {
		return items
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		zap.L().Warn("queue: corrupt stored queue, treating as empty", zap.Error(err))
		return []model.QueuedRequest{}
	}
	return items
}

func newID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix)
}
