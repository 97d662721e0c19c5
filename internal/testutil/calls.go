// Package testutil provides testing utilities for callstream.
package testutil

import (
	"context"
	"sync"

	"github.com/Sternrassler/callstream/pkg/call"
)

// Succeed returns a call that resolves synchronously with body.
func Succeed[T any](body T) call.Call[T] {
	return call.Func[T](func(ctx context.Context, cb call.Callback[T]) {
		cb.OnSuccess(200, body)
	})
}

// Empty returns a call that resolves synchronously without a body.
func Empty[T any]() call.Call[T] {
	return call.Func[T](func(ctx context.Context, cb call.Callback[T]) {
		cb.OnSuccessEmpty()
	})
}

// Fail returns a call that resolves synchronously with an error.
func Fail[T any](status int, message string) call.Call[T] {
	return call.Func[T](func(ctx context.Context, cb call.Callback[T]) {
		cb.OnError(status, message)
	})
}

// Pending is a call that stays unresolved until the test resolves it.
type Pending[T any] struct {
	mu       sync.Mutex
	cb       call.Callback[T]
	ctx      context.Context
	count    int
	enqueued chan struct{}
}

// NewPending creates an unresolved call.
func NewPending[T any]() *Pending[T] {
	return &Pending[T]{enqueued: make(chan struct{})}
}

// Enqueue implements call.Call.
func (p *Pending[T]) Enqueue(ctx context.Context, cb call.Callback[T]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	if p.cb != nil {
		return
	}
	p.cb = cb
	p.ctx = ctx
	close(p.enqueued)
}

// Enqueued is closed once the call has been started.
func (p *Pending[T]) Enqueued() <-chan struct{} {
	return p.enqueued
}

// Count returns how many times Enqueue was called.
func (p *Pending[T]) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// Context returns the context the call was started with.
func (p *Pending[T]) Context() context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ctx
}

// Resolve completes the call with body.
func (p *Pending[T]) Resolve(body T) {
	p.callback().OnSuccess(200, body)
}

// ResolveEmpty completes the call without a body.
func (p *Pending[T]) ResolveEmpty() {
	p.callback().OnSuccessEmpty()
}

// Reject completes the call with an error.
func (p *Pending[T]) Reject(status int, message string) {
	p.callback().OnError(status, message)
}

func (p *Pending[T]) callback() call.Callback[T] {
	<-p.enqueued
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cb
}
