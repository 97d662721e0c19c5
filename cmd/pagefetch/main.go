// Command pagefetch downloads every page of a paginated JSON endpoint and
// writes the combined items to stdout as one JSON array.
//
// Configuration comes from the environment:
//
//	BASE_URL      API root (required)
//	ENDPOINT      paginated path, e.g. /v1/orders (required)
//	PER_PAGE      page size sent as per_page (default 100)
//	CONCURRENCY   parallel page requests; 1 walks pages in order (default 1)
//	RETRIES       attempts per request (default 1)
//	TIMEOUT       per-request timeout (default 30s)
//	REDIS_URL     enables caching and rate limit tracking (optional)
//	METRICS_ADDR  serves /metrics and /health while running (optional)
//	USER_AGENT    User-Agent header (default callstream-pagefetch/0.1.0)
//	LOG_LEVEL     debug, info, warn, error (default info)
//	LOG_PRETTY    human-readable logs when true
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/callstream/pkg/client"
	"github.com/Sternrassler/callstream/pkg/logging"
	"github.com/Sternrassler/callstream/pkg/metrics"
	"github.com/Sternrassler/callstream/pkg/pagination"
	"github.com/redis/go-redis/v9"
)

type config struct {
	baseURL     string
	endpoint    string
	perPage     int
	concurrency int
	retries     int
	timeout     time.Duration
	redisURL    string
	metricsAddr string
	userAgent   string
	logLevel    string
	logPretty   bool
}

func main() {
	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pagefetch: %v\n", err)
		os.Exit(2)
	}

	logging.Setup(logging.Config{
		Level:  cfg.logLevel,
		Pretty: cfg.logPretty,
		Output: os.Stderr,
	})
	logger := logging.NewLogger(logging.ComponentPageFetch)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		logger.Error().Err(err).Msg("Fetch failed")
		stop()
		os.Exit(1)
	}
}

// loadConfig reads the configuration through getenv.
func loadConfig(getenv func(string) string) (config, error) {
	env := func(key, defaultValue string) string {
		if value := getenv(key); value != "" {
			return value
		}
		return defaultValue
	}

	cfg := config{
		baseURL:     env("BASE_URL", ""),
		endpoint:    env("ENDPOINT", ""),
		redisURL:    env("REDIS_URL", ""),
		metricsAddr: env("METRICS_ADDR", ""),
		userAgent:   env("USER_AGENT", "callstream-pagefetch/0.1.0"),
		logLevel:    env("LOG_LEVEL", "info"),
	}

	if cfg.baseURL == "" {
		return config{}, errors.New("BASE_URL is required")
	}
	if cfg.endpoint == "" {
		return config{}, errors.New("ENDPOINT is required")
	}

	var err error
	if cfg.perPage, err = envInt(env, "PER_PAGE", 100); err != nil {
		return config{}, err
	}
	if cfg.concurrency, err = envInt(env, "CONCURRENCY", 1); err != nil {
		return config{}, err
	}
	if cfg.retries, err = envInt(env, "RETRIES", 1); err != nil {
		return config{}, err
	}

	if cfg.timeout, err = time.ParseDuration(env("TIMEOUT", "30s")); err != nil {
		return config{}, fmt.Errorf("TIMEOUT: %w", err)
	}

	if cfg.logPretty, err = strconv.ParseBool(env("LOG_PRETTY", "false")); err != nil {
		return config{}, fmt.Errorf("LOG_PRETTY: %w", err)
	}

	return cfg, nil
}

func envInt(env func(string, string) string, key string, defaultValue int) (int, error) {
	n, err := strconv.Atoi(env(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("%s must be >= 1 (got %d)", key, n)
	}
	return n, nil
}

// run fetches every page and writes the items to out.
func run(ctx context.Context, cfg config, out io.Writer) error {
	logger := logging.NewLogger(logging.ComponentPageFetch)

	clientCfg := client.DefaultConfig(cfg.baseURL, cfg.userAgent)
	clientCfg.Timeout = cfg.timeout
	clientCfg.Retry.MaxAttempts = cfg.retries

	if cfg.redisURL != "" {
		redisClient, err := connectRedis(ctx, cfg.redisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		clientCfg.Redis = redisClient
		logger.Info().Str("redis", cfg.redisURL).Msg("Connected to Redis")
	}

	if cfg.metricsAddr != "" {
		shutdown := serveMetrics(cfg.metricsAddr)
		defer shutdown()
	}

	c, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer c.Close()

	fn := client.AllPagesFunc[json.RawMessage](cfg.endpoint, cfg.perPage)

	var items []json.RawMessage
	if cfg.concurrency > 1 {
		fetcher := pagination.NewConcurrentFetcher(c, fn, pagination.Config{
			MaxConcurrency: cfg.concurrency,
			Timeout:        cfg.timeout,
		})
		items, err = fetcher.FetchAll(ctx)
	} else {
		items, err = pagination.FetchAllPages(ctx, c, fn)
	}
	if err != nil {
		return fmt.Errorf("fetch %s: %w", cfg.endpoint, err)
	}

	if err := json.NewEncoder(out).Encode(items); err != nil {
		return fmt.Errorf("write items: %w", err)
	}

	logger.Info().
		Str("endpoint", cfg.endpoint).
		Int("items", len(items)).
		Msg("Wrote items")
	return nil
}

// connectRedis accepts either a redis:// URL or a plain host:port.
func connectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts := &redis.Options{Addr: redisURL}
	if strings.Contains(redisURL, "://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		opts = parsed
	}

	redisClient := redis.NewClient(opts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", redisURL, err)
	}
	return redisClient, nil
}

// serveMetrics starts the metrics server and returns its shutdown func.
func serveMetrics(addr string) func() {
	logger := logging.NewLogger(logging.ComponentPageFetch)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", healthHandler)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}
