package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/callstream/pkg/logging"
	"github.com/Sternrassler/callstream/pkg/stream"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrTooManyPages is returned when the first page reports more pages than
// Config.MaxPages allows.
var ErrTooManyPages = errors.New("pagination: last page exceeds limit")

// Config holds concurrent fetcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel page requests.
	MaxConcurrency int

	// Timeout per page fetch.
	Timeout time.Duration

	// ProgressEvery logs progress after this many pages (0 disables).
	ProgressEvery int

	// MaxPages caps the last page accepted from the first response.
	MaxPages int
}

// DefaultConfig returns a conservative configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 10,
		Timeout:        15 * time.Second,
		ProgressEvery:  50,
		MaxPages:       10000,
	}
}

// ConcurrentFetcher fetches every page of an endpoint in parallel.
type ConcurrentFetcher[T any, A any] struct {
	api    A
	fn     AllPagesFunc[T, A]
	config Config
	logger zerolog.Logger
}

// NewConcurrentFetcher creates a fetcher. Zero config fields fall back to
// DefaultConfig values.
func NewConcurrentFetcher[T any, A any](api A, fn AllPagesFunc[T, A], config Config) *ConcurrentFetcher[T, A] {
	defaults := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxPages <= 0 {
		config.MaxPages = defaults.MaxPages
	}
	if config.ProgressEvery < 0 {
		config.ProgressEvery = 0
	}

	return &ConcurrentFetcher[T, A]{
		api:    api,
		fn:     fn,
		config: config,
		logger: logging.NewLogger(logging.ComponentFetcher),
	}
}

// FetchAll fetches page 1 to learn the last page, then pages 2..last with at
// most MaxConcurrency requests in flight. Items are returned in page order.
// The first failing page cancels the rest and fails the whole fetch.
func (f *ConcurrentFetcher[T, A]) FetchAll(ctx context.Context) ([]T, error) {
	start := time.Now()
	defer func() {
		fetchAllDuration.WithLabelValues("concurrent").Observe(time.Since(start).Seconds())
	}()

	first, err := f.fetchPage(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("fetch first page: %w", err)
	}

	lastPage := first.LastPage()
	if first.CurrentPage() >= lastPage {
		f.logger.Info().
			Int("pages", 1).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete (single page)")
		return append([]T{}, first.Data()...), nil
	}

	if lastPage > f.config.MaxPages {
		f.logger.Error().
			Int("last_page", lastPage).
			Int("max_pages", f.config.MaxPages).
			Msg("Refusing fetch, too many pages")
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyPages, lastPage, f.config.MaxPages)
	}

	f.logger.Info().
		Int("total_pages", lastPage).
		Int("max_concurrency", f.config.MaxConcurrency).
		Msg("Starting parallel page fetch")

	results := make([][]T, lastPage+1)
	results[1] = first.Data()

	var fetched atomic.Int64
	fetched.Store(1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.config.MaxConcurrency)

	for page := 2; page <= lastPage; page++ {
		g.Go(func() error {
			pg, err := f.fetchPage(gctx, page)
			if err != nil {
				f.logger.Warn().
					Err(err).
					Int("page", page).
					Msg("Page fetch failed")
				return fmt.Errorf("fetch page %d: %w", page, err)
			}
			results[page] = pg.Data()

			n := fetched.Add(1)
			if f.config.ProgressEvery > 0 && n%int64(f.config.ProgressEvery) == 0 {
				f.logger.Info().
					Int64("fetched", n).
					Int("total", lastPage).
					Float64("progress_pct", float64(n)/float64(lastPage)*100).
					Msg("Fetch progress")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := []T{}
	for _, data := range results[1:] {
		items = append(items, data...)
	}

	f.logger.Info().
		Int("pages", lastPage).
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return items, nil
}

func (f *ConcurrentFetcher[T, A]) fetchPage(ctx context.Context, page int) (Page[T], error) {
	pageCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	pg, err := stream.ToSingle(f.fn(f.api, page)).Get(pageCtx)
	if err != nil {
		pageErrorsTotal.WithLabelValues("concurrent").Inc()
		return nil, err
	}
	pagesFetchedTotal.WithLabelValues("concurrent").Inc()
	return pg, nil
}
