// Package membus provides an in-memory implementation of eventbus.EventBus.
package membus

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/escala-app/escala/errors"
	"github.com/escala-app/escala/eventbus"
	"github.com/escala-app/escala/logging"
	"google.golang.org/grpc/codes"
)

// Option configures the bus.
type Option func(*Bus)

// WithWorkerPool sets the number of worker goroutines for processing events.
// Default is 4 workers. Set to 0 to use unbounded goroutines.
func WithWorkerPool(size int) Option {
	return func(b *Bus) {
		b.workers = size
	}
}

// New returns a new in-memory EventBus. ctx is passed to subscribers.
func New(ctx context.Context, opts ...Option) *Bus {
	b := &Bus{
		subscriberCtx: logging.With(ctx, logging.FromContext(ctx).Named("eventbus")),
		workers:       4,
		jobs:          make(chan job, 64),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type job struct {
	ctx     context.Context
	handler eventbus.Handler
	msg     *eventbus.Message
}

// Bus is an in-memory implementation of EventBus.
type Bus struct {
	subscribers   map[string][]eventbus.Handler
	subscriberCtx context.Context

	mu sync.Mutex
	wg sync.WaitGroup

	jobs    chan job
	workers int
	started bool
	stopped bool
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic string, handler eventbus.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribers == nil {
		b.subscribers = make(map[string][]eventbus.Handler)
	}
	b.subscribers[topic] = append(b.subscribers[topic], handler)
}

// Publish sends a message to all subscribers. Messages published after
// Shutdown are dropped.
func (b *Bus) Publish(topic string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		logging.Warnw(b.subscriberCtx, "eventbus: publish after shutdown", "topic", topic)
		return
	}
	if !b.started {
		b.startWorkers()
		b.started = true
	}

	handlers := b.subscribers[topic]
	if len(handlers) == 0 {
		return
	}

	ctx := logging.With(b.subscriberCtx, logging.FromContext(b.subscriberCtx).Named(topic))
	logging.Debugw(ctx, "publishing message", "subscribers", len(handlers))

	for _, handler := range handlers {
		msg := eventbus.NewMessage(generateMessageID(), topic, data)
		b.wg.Add(1)
		if b.workers == 0 {
			go b.execute(ctx, handler, msg)
		} else {
			b.jobs <- job{ctx: ctx, handler: handler, msg: msg}
		}
	}
}

func generateMessageID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (b *Bus) startWorkers() {
	for range b.workers {
		go b.worker()
	}
}

func (b *Bus) worker() {
	for job := range b.jobs {
		b.execute(job.ctx, job.handler, job.msg)
	}
}

// Shutdown closes the job channel and waits for all workers to finish.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if !b.stopped {
		b.stopped = true
		close(b.jobs)
	}
	b.mu.Unlock()

	return b.Wait(ctx)
}

// Wait blocks until all pending messages are processed.
func (b *Bus) Wait(ctx context.Context) error {
	c := make(chan struct{})
	go func() {
		defer close(c)
		b.wg.Wait()
	}()
	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return errors.NewC("eventbus: timeout waiting for handlers to finish", codes.DeadlineExceeded)
	}
}

func (b *Bus) execute(ctx context.Context, handler eventbus.Handler, msg *eventbus.Message) {
	defer func() {
		if r := recover(); r != nil {
			skipFrames := 2
			numFrames := 5
			logging.Errorw(ctx, "eventbus: recovered from panic",
				"error", r, "error.stack_trace", errors.Wrap(r, 0).MinimalStack(skipFrames, numFrames))
		}
		b.wg.Done()
	}()
	if err := handler(ctx, msg); err != nil {
		logging.Errorw(ctx, "eventbus: handler error", "error", err, "message_id", msg.ID)
	}
}
