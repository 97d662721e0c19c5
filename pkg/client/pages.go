package client

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/Sternrassler/callstream/pkg/call"
	"github.com/Sternrassler/callstream/pkg/pagination"
)

// GetPage returns a call for one page of endpoint. The response must use the
// pagination.Response envelope. perPage <= 0 leaves the page size to the
// server.
func GetPage[T any](c *Client, endpoint string, page, perPage int) call.Call[pagination.Page[T]] {
	query := url.Values{}
	query.Set(c.config.PageParam, strconv.Itoa(page))
	if perPage > 0 {
		query.Set(c.config.PerPageParam, strconv.Itoa(perPage))
	}

	raw := NewCall[pagination.Response[T]](c, http.MethodGet, endpoint, query)
	return call.Map(raw, func(r pagination.Response[T]) pagination.Page[T] {
		return &r
	})
}

// PageFunc binds endpoint for use with pagination.New.
func PageFunc[T any](endpoint string) pagination.PageCallFunc[T, *Client] {
	return func(c *Client, page, perPage int) call.Call[pagination.Page[T]] {
		return GetPage[T](c, endpoint, page, perPage)
	}
}

// AllPagesFunc binds endpoint and a fixed page size for use with
// pagination.FetchAllPages and pagination.NewConcurrentFetcher.
func AllPagesFunc[T any](endpoint string, perPage int) pagination.AllPagesFunc[T, *Client] {
	return func(c *Client, page int) call.Call[pagination.Page[T]] {
		return GetPage[T](c, endpoint, page, perPage)
	}
}
