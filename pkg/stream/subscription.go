package stream

import (
	"context"
	"sync"
)

// Disposable is anything whose pending effects can be cancelled.
type Disposable interface {
	Dispose()
	IsDisposed() bool
}

// Subscription is the consumer side of a stream. Once disposed, no further
// events are delivered to the consumer's callbacks. A subscription also
// reports disposed after it has delivered its terminal event.
type Subscription struct {
	mu        sync.Mutex
	disposed  bool
	cancel    context.CancelFunc
	onDispose func()
}

func newSubscription(cancel context.CancelFunc, onDispose func()) *Subscription {
	return &Subscription{
		cancel:    cancel,
		onDispose: onDispose,
	}
}

// Dispose stops event delivery and cancels the subscription context.
// It is safe to call more than once.
func (s *Subscription) Dispose() {
	s.terminate()
}

// IsDisposed reports whether the subscription no longer delivers events.
func (s *Subscription) IsDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// terminate marks the subscription finished. It returns false if it was
// already finished, in which case the caller must not deliver anything.
func (s *Subscription) terminate() bool {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return false
	}
	s.disposed = true
	cancel, onDispose := s.cancel, s.onDispose
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if onDispose != nil {
		onDispose()
	}
	return true
}

// Composite groups disposables so they can be cancelled together.
type Composite struct {
	mu       sync.Mutex
	items    []Disposable
	disposed bool
}

// NewComposite creates an empty composite.
func NewComposite() *Composite {
	return &Composite{}
}

// Add tracks d. If the composite is already disposed, d is disposed
// immediately and Add returns false. Finished items are pruned on each Add.
func (c *Composite) Add(d Disposable) bool {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		d.Dispose()
		return false
	}

	live := c.items[:0]
	for _, item := range c.items {
		if !item.IsDisposed() {
			live = append(live, item)
		}
	}
	c.items = live
	if !d.IsDisposed() {
		c.items = append(c.items, d)
	}
	c.mu.Unlock()
	return true
}

// Len returns the number of tracked items.
func (c *Composite) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Dispose disposes every tracked item and every item added later.
func (c *Composite) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	items := c.items
	c.items = nil
	c.mu.Unlock()

	for _, item := range items {
		item.Dispose()
	}
}

// IsDisposed reports whether Dispose has been called.
func (c *Composite) IsDisposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}
