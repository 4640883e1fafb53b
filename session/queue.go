package session

import (
	"context"

	"github.com/escala-app/escala/errors"
	"github.com/escala-app/escala/logging"
)

// do enqueues run and waits for its result. Unless always is set, an
// operation whose ctx is done by the time it reaches the front of the queue
// is skipped and the caller stops waiting as soon as ctx is done.
func (s *Store) do(ctx context.Context, always bool, run func(context.Context) error) error {
	o := &op{ctx: ctx, run: run, always: always, result: make(chan error, 1)}

	s.qmu.Lock()
	if s.closed {
		s.qmu.Unlock()
		return errors.Mark(ErrClosed, 1)
	}
	s.queue = append(s.queue, o)
	s.qmu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}

	if always {
		return <-o.result
	}
	select {
	case err := <-o.result:
		return err
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), 1)
	}
}

func (s *Store) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.wake:
			for o := s.next(); o != nil; o = s.next() {
				o.result <- s.exec(o)
			}
		case <-s.quit:
			for o := s.next(); o != nil; o = s.next() {
				o.result <- errors.Mark(ErrClosed, 0)
			}
			return
		}
	}
}

func (s *Store) next() *op {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	o := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return o
}

func (s *Store) pending() int {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	return len(s.queue)
}

func (s *Store) exec(o *op) (err error) {
	if !o.always {
		if err := o.ctx.Err(); err != nil {
			return errors.Wrap(err, 0)
		}
	}
	defer func() {
		if r := recover(); r != nil {
			e := errors.Wrap(r, 2)
			logging.Errorw(o.ctx, "session: recovered from panic",
				"error", r, "error.stack_trace", e.MinimalStack(0, 5))
			err = e
		}
	}()
	return o.run(o.ctx)
}
