// Package call defines the boundary to a single outstanding HTTP call.
//
// A Call resolves exactly once into one of three outcomes: a success carrying
// a decoded body, a success without a body, or an error carrying the HTTP
// status and a message. The stream and pagination packages build on this
// boundary; the client package provides an HTTP-backed implementation.
package call

import "context"

// Callback receives the classified outcome of a call.
type Callback[T any] interface {
	// OnSuccess is invoked for a successful response with a body.
	OnSuccess(status int, body T)

	// OnSuccessEmpty is invoked for a successful response without a body.
	OnSuccessEmpty()

	// OnError is invoked for transport failures (status 0) and HTTP errors.
	OnError(status int, message string)
}

// Call is one pending request. Enqueue starts it and reports the outcome to
// cb, usually from another goroutine. A call may be enqueued only once.
type Call[T any] interface {
	Enqueue(ctx context.Context, cb Callback[T])
}

// Func adapts a function to the Call interface.
type Func[T any] func(ctx context.Context, cb Callback[T])

// Enqueue implements Call.
func (f Func[T]) Enqueue(ctx context.Context, cb Callback[T]) {
	f(ctx, cb)
}

// Callbacks adapts plain functions to the Callback interface.
// Nil fields are ignored.
type Callbacks[T any] struct {
	Success func(status int, body T)
	Empty   func()
	Error   func(status int, message string)
}

// OnSuccess implements Callback.
func (c Callbacks[T]) OnSuccess(status int, body T) {
	if c.Success != nil {
		c.Success(status, body)
	}
}

// OnSuccessEmpty implements Callback.
func (c Callbacks[T]) OnSuccessEmpty() {
	if c.Empty != nil {
		c.Empty()
	}
}

// OnError implements Callback.
func (c Callbacks[T]) OnError(status int, message string) {
	if c.Error != nil {
		c.Error(status, message)
	}
}

// Map returns a call that resolves like c with its body converted by fn.
func Map[T, U any](c Call[T], fn func(T) U) Call[U] {
	return Func[U](func(ctx context.Context, cb Callback[U]) {
		c.Enqueue(ctx, Callbacks[T]{
			Success: func(status int, body T) { cb.OnSuccess(status, fn(body)) },
			Empty:   cb.OnSuccessEmpty,
			Error:   cb.OnError,
		})
	})
}
