package pagination

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/Sternrassler/callstream/pkg/call"
	"github.com/Sternrassler/callstream/pkg/logging"
	"github.com/Sternrassler/callstream/pkg/stream"
	"github.com/rs/zerolog"
)

// ErrRequestInFlight is reported when Refresh or Update is called while the
// pager is still waiting for a previous page.
var ErrRequestInFlight = errors.New("pagination: request already in flight")

// PageCallFunc builds the call for one page of size perPage.
type PageCallFunc[T any, A any] func(api A, page, perPage int) call.Call[Page[T]]

// Pager fetches pages on demand and accumulates their items.
type Pager[T any, A any] struct {
	api     A
	perPage int
	call    PageCallFunc[T, A]
	logger  zerolog.Logger

	subs       *stream.Composite
	data       *stream.Subject[[]T]
	refreshing *stream.Subject[bool]
	updating   *stream.Subject[bool]

	mu          sync.Mutex
	accumulated []T
	page        int
	lastPage    int
	inFlight    bool
	publishing  bool
	deferred    func()
	disposed    bool
}

// New creates a pager over api. fn builds the call for a page.
func New[T any, A any](api A, perPage int, fn PageCallFunc[T, A]) *Pager[T, A] {
	return &Pager[T, A]{
		api:        api,
		perPage:    perPage,
		call:       fn,
		logger:     logging.NewLogger(logging.ComponentPager),
		subs:       stream.NewComposite(),
		data:       stream.NewSeededSubject([]T{}),
		refreshing: stream.NewSeededSubject(false),
		updating:   stream.NewSeededSubject(false),
		page:       0,
		lastPage:   1,
	}
}

// Refresh resets the page cursor and fetches page 0. The fetched items are
// appended to the list already accumulated.
func (p *Pager[T, A]) Refresh(ctx context.Context, onError func(error)) {
	p.mu.Lock()
	if !p.acquire(func() { p.Refresh(ctx, onError) }, onError) {
		return
	}
	p.page = 0
	page := p.page
	p.mu.Unlock()

	p.fetch(ctx, "refresh", page, p.refreshing, onError)
}

// Update fetches the page after the current one. It does not check the last
// page; callers use Cursor to decide whether more pages exist.
func (p *Pager[T, A]) Update(ctx context.Context, onError func(error)) {
	p.mu.Lock()
	if !p.acquire(func() { p.Update(ctx, onError) }, onError) {
		return
	}
	page := p.page + 1
	p.mu.Unlock()

	p.fetch(ctx, "update", page, p.updating, onError)
}

// acquire takes the single-flight gate. Called with p.mu held; on failure
// it releases p.mu and reports the rejection.
//
// While a finished page is being published the gate is still held. One
// request made in that window (typically from an observer) is deferred
// and run once the gate opens.
func (p *Pager[T, A]) acquire(retry func(), onError func(error)) bool {
	if p.disposed {
		p.mu.Unlock()
		p.logger.Debug().Msg("Pager disposed, ignoring request")
		return false
	}
	if p.inFlight && p.publishing && p.deferred == nil {
		p.deferred = retry
		p.mu.Unlock()
		p.logger.Debug().Msg("Request deferred until the current page is published")
		return false
	}
	if p.inFlight {
		p.mu.Unlock()
		pagerRejectedTotal.Inc()
		p.logger.Debug().Msg("Request rejected, another page is in flight")
		if onError != nil {
			onError(ErrRequestInFlight)
		}
		return false
	}
	p.inFlight = true
	return true
}

// release opens the gate and runs a deferred request, if any.
func (p *Pager[T, A]) release() {
	p.mu.Lock()
	p.inFlight = false
	p.publishing = false
	next := p.deferred
	p.deferred = nil
	p.mu.Unlock()

	if next != nil {
		next()
	}
}

func (p *Pager[T, A]) fetch(ctx context.Context, operation string, page int, flag *stream.Subject[bool], onError func(error)) {
	p.logger.Debug().
		Str("operation", operation).
		Int("page", page).
		Int("per_page", p.perPage).
		Msg("Fetching page")

	flag.Next(true)

	sub := stream.ToSingle(p.call(p.api, page, p.perPage)).Subscribe(ctx,
		func(pg Page[T]) {
			p.mu.Lock()
			p.page = pg.CurrentPage()
			p.lastPage = pg.LastPage()
			p.accumulated = append(p.accumulated, pg.Data()...)
			snapshot := slices.Clone(p.accumulated)
			p.publishing = true
			p.mu.Unlock()

			pagesFetchedTotal.WithLabelValues(operation).Inc()
			p.logger.Debug().
				Str("operation", operation).
				Int("current_page", pg.CurrentPage()).
				Int("last_page", pg.LastPage()).
				Int("items", len(snapshot)).
				Msg("Page received")

			flag.Next(false)
			p.data.Next(snapshot)
			p.release()
		},
		func(err error) {
			pageErrorsTotal.WithLabelValues(operation).Inc()
			p.logger.Warn().
				Err(err).
				Str("operation", operation).
				Int("page", page).
				Msg("Page fetch failed")

			flag.Next(false)
			p.release()
			if onError != nil {
				onError(err)
			}
		},
	)
	p.subs.Add(sub)
}

// ObserveData calls fn with a snapshot of the accumulated items, first with
// the current list and then after every change.
func (p *Pager[T, A]) ObserveData(fn func([]T)) *stream.Subscription {
	return p.observe(p.data.Observe(fn))
}

// ObserveRefreshing calls fn with the refreshing flag, current value first.
func (p *Pager[T, A]) ObserveRefreshing(fn func(bool)) *stream.Subscription {
	return p.observe(p.refreshing.Observe(fn))
}

// ObserveUpdating calls fn with the updating flag, current value first.
func (p *Pager[T, A]) ObserveUpdating(fn func(bool)) *stream.Subscription {
	return p.observe(p.updating.Observe(fn))
}

func (p *Pager[T, A]) observe(sub *stream.Subscription) *stream.Subscription {
	p.subs.Add(sub)
	return sub
}

// Cursor returns the current page and the last page reported by the API.
// Before the first response they are 0 and 1.
func (p *Pager[T, A]) Cursor() (page, lastPage int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page, p.lastPage
}

// Items returns a snapshot of the accumulated items.
func (p *Pager[T, A]) Items() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.accumulated)
}

// Dispose cancels outstanding requests and observers. Results of requests
// already on the wire are dropped. Safe to call more than once.
func (p *Pager[T, A]) Dispose() {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return
	}
	p.disposed = true
	p.mu.Unlock()

	p.subs.Dispose()
	p.data.Close()
	p.refreshing.Close()
	p.updating.Close()
}
