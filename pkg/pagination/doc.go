// Package pagination provides page-based pagination helpers on top of
// call.Call.
//
// Three helpers are provided:
//
//   - Pager fetches one page at a time on demand (Refresh, Update), appends
//     each page to an accumulated list and publishes the list and its
//     loading flags to observers.
//   - FetchAllPages / WalkPages / SingleAllPages walk every page of an
//     endpoint sequentially, starting at page 1, until the last page.
//   - ConcurrentFetcher learns the page count from page 1 and fetches the
//     remaining pages with a bounded worker pool.
//
// Example usage:
//
//	pager := pagination.New(api, 20, func(c *client.Client, page, perPage int) call.Call[pagination.Page[Order]] {
//		return client.GetPage[Order](c, "/v1/orders", page, perPage)
//	})
//	defer pager.Dispose()
//
//	pager.ObserveData(func(orders []Order) { render(orders) })
//	pager.Refresh(ctx, func(err error) { log.Warn().Err(err).Msg("refresh failed") })
//
// Pager accepts one request at a time. A Refresh or Update issued while
// another request is outstanding is rejected with ErrRequestInFlight.
//
// Refresh resets the page cursor but does not clear the accumulated list:
// the refreshed page is appended after the items already shown. Callers that
// want a fresh list create a new Pager.
package pagination
