package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/Sternrassler/callstream/pkg/call"
)

// maxErrorMessage caps how much of an error body is reported.
const maxErrorMessage = 512

// httpCall is a single HTTP exchange decoded into T.
type httpCall[T any] struct {
	client   *Client
	method   string
	endpoint string
	query    url.Values
	consumed atomic.Bool
}

// NewCall returns a call that performs one request and decodes the JSON body
// into T. A 204 or empty body resolves through OnSuccessEmpty, a status of
// 400 or above through OnError with that status, and a failure without a
// response through OnError with status 0. The call may be enqueued once.
func NewCall[T any](c *Client, method, endpoint string, query url.Values) call.Call[T] {
	return &httpCall[T]{
		client:   c,
		method:   method,
		endpoint: endpoint,
		query:    query,
	}
}

// Get returns a GET call for endpoint.
func Get[T any](c *Client, endpoint string) call.Call[T] {
	return NewCall[T](c, http.MethodGet, endpoint, nil)
}

// Enqueue implements call.Call. The request runs on its own goroutine.
func (h *httpCall[T]) Enqueue(ctx context.Context, cb call.Callback[T]) {
	if !h.consumed.CompareAndSwap(false, true) {
		cb.OnError(0, call.ErrCallConsumed.Error())
		return
	}
	go h.execute(ctx, cb)
}

func (h *httpCall[T]) execute(ctx context.Context, cb call.Callback[T]) {
	req, err := h.client.newRequest(ctx, h.method, h.endpoint, h.query)
	if err != nil {
		cb.OnError(0, err.Error())
		return
	}

	resp, err := h.client.Do(req)
	if err != nil {
		cb.OnError(0, err.Error())
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		cb.OnError(0, fmt.Sprintf("read response body: %v", err))
		return
	}

	if resp.StatusCode >= 400 {
		cb.OnError(resp.StatusCode, errorMessage(resp, body))
		return
	}

	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		cb.OnSuccessEmpty()
		return
	}

	var value T
	if err := json.Unmarshal(body, &value); err != nil {
		cb.OnError(0, fmt.Sprintf("decode response: %v", err))
		return
	}
	cb.OnSuccess(resp.StatusCode, value)
}

// errorMessage extracts a message from an error response. JSON bodies of
// the form {"error": "..."} yield the error text; other bodies are reported
// verbatim up to maxErrorMessage bytes; empty bodies yield the status line.
func errorMessage(resp *http.Response, body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return resp.Status
	}
	if len(text) > maxErrorMessage {
		cut := maxErrorMessage
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}
