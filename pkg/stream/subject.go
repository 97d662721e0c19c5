package stream

import (
	"slices"
	"sync"
)

// Subject is a replayable value bus. Every observer receives the latest
// value as soon as it subscribes and then every later value, in order.
//
// Delivery is serialized: values published from inside an observer callback
// (or from another goroutine during delivery) are queued and delivered after
// the current one.
type Subject[T any] struct {
	mu        sync.Mutex
	value     T
	hasValue  bool
	seq       uint64
	observers []*observer[T]
	queue     []delivery[T]
	emitting  bool
	closed    bool
}

type observer[T any] struct {
	fn    func(T)
	since uint64
	sub   *Subscription
}

type delivery[T any] struct {
	seq    uint64
	value  T
	target *observer[T]
}

// NewSubject creates a subject without an initial value.
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{}
}

// NewSeededSubject creates a subject whose first value is v.
func NewSeededSubject[T any](v T) *Subject[T] {
	return &Subject[T]{value: v, hasValue: true}
}

// Next publishes v to every observer. It is a no-op after Close.
func (s *Subject[T]) Next(v T) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.seq++
	s.value = v
	s.hasValue = true
	s.queue = append(s.queue, delivery[T]{seq: s.seq, value: v})
	if s.emitting {
		s.mu.Unlock()
		return
	}
	s.emitting = true
	s.drain()
}

// Value returns the latest value, if any.
func (s *Subject[T]) Value() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.hasValue
}

// Observe registers fn and replays the latest value to it.
func (s *Subject[T]) Observe(fn func(T)) *Subscription {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub := newSubscription(nil, nil)
		sub.Dispose()
		return sub
	}

	o := &observer[T]{fn: fn, since: s.seq}
	o.sub = newSubscription(nil, func() { s.remove(o) })
	s.observers = append(s.observers, o)
	if s.hasValue {
		s.queue = append(s.queue, delivery[T]{seq: s.seq, value: s.value, target: o})
	}
	if s.emitting || len(s.queue) == 0 {
		s.mu.Unlock()
		return o.sub
	}
	s.emitting = true
	s.drain()
	return o.sub
}

// Close disposes every observer. Later values are dropped.
func (s *Subject[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	observers := s.observers
	s.observers = nil
	s.queue = nil
	s.mu.Unlock()

	for _, o := range observers {
		o.sub.Dispose()
	}
}

// drain delivers queued values. Called with s.mu held; returns with it released.
func (s *Subject[T]) drain() {
	for len(s.queue) > 0 {
		d := s.queue[0]
		s.queue = s.queue[1:]

		var targets []*observer[T]
		if d.target != nil {
			targets = []*observer[T]{d.target}
		} else {
			targets = slices.Clone(s.observers)
		}
		s.mu.Unlock()

		for _, o := range targets {
			// observers registered after this value was published got it as replay
			if d.target == nil && d.seq <= o.since {
				continue
			}
			if !o.sub.IsDisposed() {
				o.fn(d.value)
			}
		}

		s.mu.Lock()
	}
	s.emitting = false
	s.mu.Unlock()
}

func (s *Subject[T]) remove(o *observer[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = slices.DeleteFunc(s.observers, func(x *observer[T]) bool { return x == o })
}
