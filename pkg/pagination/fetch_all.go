package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/callstream/pkg/call"
	"github.com/Sternrassler/callstream/pkg/stream"
	"github.com/rs/zerolog/log"
)

// AllPagesFunc builds the call for one page of a paginated endpoint.
type AllPagesFunc[T any, A any] func(api A, page int) call.Call[Page[T]]

// WalkPages fetches pages sequentially, starting at page 1, and hands each
// page's items to onNext. It continues while the response reports
// CurrentPage < LastPage and returns nil after the last page. The first
// error stops the walk; no further pages are requested.
func WalkPages[T any, A any](ctx context.Context, api A, fn AllPagesFunc[T, A], onNext func(page int, items []T)) error {
	for page := 1; ; page++ {
		pg, err := stream.ToSingle(fn(api, page)).Get(ctx)
		if err != nil {
			pageErrorsTotal.WithLabelValues("walk").Inc()
			return fmt.Errorf("fetch page %d: %w", page, err)
		}
		pagesFetchedTotal.WithLabelValues("walk").Inc()

		if onNext != nil {
			onNext(page, pg.Data())
		}

		if pg.CurrentPage() >= pg.LastPage() {
			return nil
		}
	}
}

// FetchAllPages walks every page and returns their items concatenated in
// page order. If any page fails, no items are returned.
func FetchAllPages[T any, A any](ctx context.Context, api A, fn AllPagesFunc[T, A]) ([]T, error) {
	start := time.Now()
	defer func() {
		fetchAllDuration.WithLabelValues("sequential").Observe(time.Since(start).Seconds())
	}()

	items := []T{}
	pages := 0
	err := WalkPages(ctx, api, fn, func(page int, data []T) {
		items = append(items, data...)
		pages++
	})
	if err != nil {
		log.Warn().
			Err(err).
			Int("fetched_pages", pages).
			Msg("Fetch all pages failed")
		return nil, err
	}

	log.Info().
		Int("pages", pages).
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return items, nil
}

// SingleAllPages returns FetchAllPages as a single-value result. The walk
// starts when the result is subscribed.
func SingleAllPages[T any, A any](api A, fn AllPagesFunc[T, A]) *stream.Single[[]T] {
	return stream.FromFunc(func(ctx context.Context) ([]T, error) {
		return FetchAllPages(ctx, api, fn)
	})
}
