// Package stream adapts callback-style calls into single-value, optional-value
// and stream contracts, and provides the replayable subject used for state
// streams.
//
// All adapters are cold and single-shot: the underlying call is enqueued when
// the first consumer subscribes, and a second subscription fails with
// call.ErrCallConsumed. Disposing a subscription before the call resolves
// silently drops the outcome.
package stream

import (
	"context"
	"iter"
	"sync/atomic"

	"github.com/Sternrassler/callstream/pkg/call"
)

type handlers[T any] struct {
	success func(T)
	empty   func()
	fail    func(error)
}

// emitter delivers at most one terminal event, and only while the
// subscription is still interested.
type emitter[T any] struct {
	sub *Subscription
	h   handlers[T]
}

func (e emitter[T]) success(v T) {
	if e.sub.terminate() && e.h.success != nil {
		e.h.success(v)
	}
}

func (e emitter[T]) empty() {
	if e.sub.terminate() && e.h.empty != nil {
		e.h.empty()
	}
}

func (e emitter[T]) fail(err error) {
	if e.sub.terminate() && e.h.fail != nil {
		e.h.fail(err)
	}
}

type source[T any] struct {
	start    func(ctx context.Context, e emitter[T])
	consumed atomic.Bool
}

func callSource[T any](c call.Call[T]) *source[T] {
	return &source[T]{
		start: func(ctx context.Context, e emitter[T]) {
			c.Enqueue(ctx, call.Callbacks[T]{
				Success: func(_ int, body T) { e.success(body) },
				Empty:   e.empty,
				Error: func(status int, message string) {
					e.fail(call.NewTransportError(status, message))
				},
			})
		},
	}
}

func (s *source[T]) subscribe(ctx context.Context, h handlers[T]) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	e := emitter[T]{sub: newSubscription(cancel, nil), h: h}

	if !s.consumed.CompareAndSwap(false, true) {
		e.fail(call.ErrCallConsumed)
		return e.sub
	}

	s.start(ctx, e)
	return e.sub
}

// await blocks until the source resolves or ctx is done.
func (s *source[T]) await(ctx context.Context, emptyErr error) (T, bool, error) {
	type result struct {
		value T
		ok    bool
		err   error
	}
	ch := make(chan result, 1)

	sub := s.subscribe(ctx, handlers[T]{
		success: func(v T) { ch <- result{value: v, ok: true} },
		empty:   func() { ch <- result{err: emptyErr} },
		fail:    func(err error) { ch <- result{err: err} },
	})

	select {
	case r := <-ch:
		return r.value, r.ok, r.err
	case <-ctx.Done():
		sub.Dispose()
		// a result delivered before Dispose wins over the context error
		select {
		case r := <-ch:
			return r.value, r.ok, r.err
		default:
		}
		var zero T
		return zero, false, ctx.Err()
	}
}

// Single emits exactly one value or one error.
type Single[T any] struct {
	src *source[T]
}

// ToSingle adapts c into a Single. A successful response without a body
// fails with call.ErrEmptyBody.
func ToSingle[T any](c call.Call[T]) *Single[T] {
	return &Single[T]{src: callSource(c)}
}

// FromFunc creates a Single that runs fn on its own goroutine when
// subscribed. Errors returned by fn are delivered unchanged.
func FromFunc[T any](fn func(ctx context.Context) (T, error)) *Single[T] {
	return &Single[T]{src: &source[T]{
		start: func(ctx context.Context, e emitter[T]) {
			go func() {
				v, err := fn(ctx)
				if err != nil {
					e.fail(err)
					return
				}
				e.success(v)
			}()
		},
	}}
}

// Subscribe starts the call. Exactly one of onSuccess or onError is invoked,
// unless the subscription is disposed first.
func (s *Single[T]) Subscribe(ctx context.Context, onSuccess func(T), onError func(error)) *Subscription {
	return s.src.subscribe(ctx, handlers[T]{
		success: onSuccess,
		empty: func() {
			if onError != nil {
				onError(call.ErrEmptyBody)
			}
		},
		fail: onError,
	})
}

// Get subscribes and waits for the value.
func (s *Single[T]) Get(ctx context.Context) (T, error) {
	v, _, err := s.src.await(ctx, call.ErrEmptyBody)
	return v, err
}

// Maybe emits zero or one value. An empty response completes without a value.
type Maybe[T any] struct {
	src *source[T]
}

// ToMaybe adapts c into a Maybe.
func ToMaybe[T any](c call.Call[T]) *Maybe[T] {
	return &Maybe[T]{src: callSource(c)}
}

// Subscribe starts the call. onSuccess is terminal; onComplete is invoked
// only when the response had no body.
func (m *Maybe[T]) Subscribe(ctx context.Context, onSuccess func(T), onComplete func(), onError func(error)) *Subscription {
	return m.src.subscribe(ctx, handlers[T]{
		success: onSuccess,
		empty:   onComplete,
		fail:    onError,
	})
}

// Get subscribes and waits. ok is false when the response had no body.
func (m *Maybe[T]) Get(ctx context.Context) (value T, ok bool, err error) {
	return m.src.await(ctx, nil)
}

// Stream emits zero or one value followed by completion.
type Stream[T any] struct {
	src *source[T]
}

// ToStream adapts c into a Stream.
func ToStream[T any](c call.Call[T]) *Stream[T] {
	return &Stream[T]{src: callSource(c)}
}

// Subscribe starts the call. On success onNext is followed by onComplete;
// an empty response only completes.
func (s *Stream[T]) Subscribe(ctx context.Context, onNext func(T), onComplete func(), onError func(error)) *Subscription {
	return s.src.subscribe(ctx, handlers[T]{
		success: func(v T) {
			if onNext != nil {
				onNext(v)
			}
			if onComplete != nil {
				onComplete()
			}
		},
		empty: onComplete,
		fail:  onError,
	})
}

// All returns an iterator over the stream. The call starts when iteration
// begins; an error is yielded as the last element.
func (s *Stream[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		v, ok, err := s.src.await(ctx, nil)
		if err != nil {
			var zero T
			yield(zero, err)
			return
		}
		if ok {
			yield(v, nil)
		}
	}
}
