package integration

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/Sternrassler/callstream/internal/testutil"
	"github.com/Sternrassler/callstream/pkg/cache"
	"github.com/Sternrassler/callstream/pkg/call"
	"github.com/Sternrassler/callstream/pkg/client"
	"github.com/Sternrassler/callstream/pkg/metrics"
	"github.com/Sternrassler/callstream/pkg/pagination"
	"github.com/Sternrassler/callstream/pkg/stream"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const userAgent = "callstream-integration/1.0 (test@example.com)"

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})
	t.Cleanup(func() { _ = redisClient.Close() })

	return redisClient
}

func newClient(t *testing.T, baseURL string, redisClient *redis.Client, retry client.RetryConfig) *client.Client {
	t.Helper()

	cfg := client.DefaultConfig(baseURL, userAgent)
	cfg.Redis = redisClient
	cfg.Retry = retry
	cfg.Timeout = 5 * time.Second

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func sequence(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// TestFullRequestFlow covers rate limit check, network request, rate limit
// update and cache write for one call.
func TestFullRequestFlow(t *testing.T) {
	redisClient := setupRedis(t)
	ctx := context.Background()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/status", testutil.NewCacheableResponse(`{"players": 42}`, `"s1"`))

	c := newClient(t, mock.URL(), redisClient, client.DefaultRetryConfig())

	status, err := stream.ToSingle(client.Get[map[string]int](c, "/status")).Get(ctx)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if status["players"] != 42 {
		t.Errorf("players = %d, want 42", status["players"])
	}

	if exists, _ := redisClient.Exists(ctx, "callstream:rate_limit:state").Result(); exists != 1 {
		t.Error("rate limit state not stored")
	}

	entry, err := c.Cache().Get(ctx, cache.Key{Method: http.MethodGet, Endpoint: "/status"})
	if err != nil {
		t.Fatalf("cache entry missing: %v", err)
	}
	if entry.ETag != `"s1"` {
		t.Errorf("cached ETag = %q", entry.ETag)
	}
}

// TestNotModified revalidates a cached entry and serves the 304 from cache.
func TestNotModified(t *testing.T) {
	redisClient := setupRedis(t)
	ctx := context.Background()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetHandler("/status", testutil.NewConditionalHandler(`"s1"`, `{"players": 7}`))

	c := newClient(t, mock.URL(), redisClient, client.DefaultRetryConfig())

	for i := range 3 {
		status, err := stream.ToSingle(client.Get[map[string]int](c, "/status")).Get(ctx)
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		if status["players"] != 7 {
			t.Errorf("request %d: players = %d, want 7", i, status["players"])
		}
	}

	if got := mock.GetConditionalCount(); got != 2 {
		t.Errorf("conditional requests = %d, want 2", got)
	}
}

// TestFetchAllPagesWithCache fetches a collection twice; the second pass is
// answered from revalidated cache entries.
func TestFetchAllPagesWithCache(t *testing.T) {
	redisClient := setupRedis(t)
	ctx := context.Background()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetPagedItems("/items", sequence(25), 10)

	c := newClient(t, mock.URL(), redisClient, client.DefaultRetryConfig())
	fn := client.AllPagesFunc[int]("/items", 10)

	for pass := range 2 {
		items, err := pagination.FetchAllPages(ctx, c, fn)
		if err != nil {
			t.Fatalf("pass %d failed: %v", pass, err)
		}
		if !slices.Equal(items, sequence(25)) {
			t.Errorf("pass %d: items = %v", pass, items)
		}
	}

	keys, err := redisClient.Keys(ctx, "callstream:cache:*").Result()
	if err != nil {
		t.Fatalf("list cache keys: %v", err)
	}
	if len(keys) != 3 {
		t.Errorf("cached pages = %d, want 3 (%v)", len(keys), keys)
	}
}

// TestConcurrentFetchOrder checks page order under parallel requests.
func TestConcurrentFetchOrder(t *testing.T) {
	redisClient := setupRedis(t)

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetPagedItems("/items", sequence(240), 20)

	c := newClient(t, mock.URL(), redisClient, client.DefaultRetryConfig())
	fetcher := pagination.NewConcurrentFetcher(c, client.AllPagesFunc[int]("/items", 20), pagination.Config{
		MaxConcurrency: 6,
	})

	items, err := fetcher.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if !slices.Equal(items, sequence(240)) {
		t.Errorf("expected 240 ordered items, got %d", len(items))
	}
}

// TestRateLimitBlock stops requests once the budget is critical.
func TestRateLimitBlock(t *testing.T) {
	redisClient := setupRedis(t)
	ctx := context.Background()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/busy", testutil.NewRateLimitResponse())

	c := newClient(t, mock.URL(), redisClient, client.DefaultRetryConfig())

	_, err := stream.ToSingle(client.Get[map[string]any](c, "/busy")).Get(ctx)
	var transportErr *call.TransportError
	if !errors.As(err, &transportErr) || transportErr.Class != call.ErrorClassRateLimit {
		t.Fatalf("first error = %v, want rate_limit transport error", err)
	}

	_, err = stream.ToSingle(client.Get[map[string]any](c, "/busy")).Get(ctx)
	if !errors.As(err, &transportErr) || transportErr.StatusCode != 0 {
		t.Errorf("second error = %v, want blocked request without status", err)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("requests = %d, want 1", mock.GetRequestCount())
	}
}

// TestRetry5xxErrors retries server errors when retries are enabled.
func TestRetry5xxErrors(t *testing.T) {
	redisClient := setupRedis(t)

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/broken", testutil.NewServerErrorResponse())

	retry := client.BackoffRetryConfig()
	retry.InitialBackoff = 10 * time.Millisecond

	c := newClient(t, mock.URL(), redisClient, retry)

	_, err := stream.ToSingle(client.Get[map[string]any](c, "/broken")).Get(context.Background())
	var transportErr *call.TransportError
	if !errors.As(err, &transportErr) || transportErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("error = %v, want status 500", err)
	}
	if got := mock.GetRequestCount(); got != 3 {
		t.Errorf("requests = %d, want 3", got)
	}
}

// TestNoRetry4xxErrors never retries client errors.
func TestNoRetry4xxErrors(t *testing.T) {
	redisClient := setupRedis(t)

	mock := testutil.NewMockAPI()
	defer mock.Close()

	retry := client.BackoffRetryConfig()
	retry.InitialBackoff = 10 * time.Millisecond

	c := newClient(t, mock.URL(), redisClient, retry)

	_, err := stream.ToSingle(client.Get[map[string]any](c, "/missing")).Get(context.Background())
	var transportErr *call.TransportError
	if !errors.As(err, &transportErr) || transportErr.StatusCode != http.StatusNotFound {
		t.Errorf("error = %v, want status 404", err)
	}
	if got := mock.GetRequestCount(); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
}

// TestMetricsIncremented checks that a request flow records metrics.
func TestMetricsIncremented(t *testing.T) {
	redisClient := setupRedis(t)

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetPagedItems("/items", sequence(5), 10)

	c := newClient(t, mock.URL(), redisClient, client.DefaultRetryConfig())
	if _, err := pagination.FetchAllPages(context.Background(), c, client.AllPagesFunc[int]("/items", 10)); err != nil {
		t.Fatalf("FetchAllPages failed: %v", err)
	}

	names, err := metrics.Names()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, want := range []string{
		"callstream_requests_total",
		"callstream_request_duration_seconds",
		"callstream_rate_limit_remaining",
		"callstream_fetch_all_duration_seconds",
	} {
		if !slices.Contains(names, want) {
			t.Errorf("metric %s not recorded", want)
		}
	}

	server := httptest.NewServer(metrics.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("scrape metrics: %v", err)
	}
	defer resp.Body.Close()
	if body, _ := io.ReadAll(resp.Body); len(body) == 0 {
		t.Error("empty metrics exposition")
	}
}
