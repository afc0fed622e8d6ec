package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL    = "https://api.openweathermap.org"
	maxBodyBytes      = 1 << 20
	defaultAttempts   = 3
	defaultRetryDelay = 5 * time.Second
)

type OpenWeatherClient struct {
	apiKey     string
	baseURL    string
	latitude   float64
	longitude  float64
	attempts   int
	retryDelay time.Duration
	location   *time.Location
	client     *http.Client
	logger     *slog.Logger
}

type ClientConfig struct {
	APIKey     string
	BaseURL    string
	Latitude   float64
	Longitude  float64
	Timeout    time.Duration
	Attempts   int
	RetryDelay time.Duration
	// Location used for observation timestamps, time.Local when nil.
	Location *time.Location
	Logger   *slog.Logger
}

type httpStatusError struct {
	service string
	status  int
	body    string
}

func (e httpStatusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("%s bad status: %d", e.service, e.status)
	}
	return fmt.Sprintf("%s bad status: %d: %s", e.service, e.status, e.body)
}

func NewOpenWeatherClient(cfg ClientConfig) *OpenWeatherClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	retryDelay := cfg.RetryDelay
	if retryDelay < 0 {
		retryDelay = defaultRetryDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &OpenWeatherClient{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		latitude:   cfg.Latitude,
		longitude:  cfg.Longitude,
		attempts:   attempts,
		retryDelay: retryDelay,
		location:   loc,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Get fetches the current weather and parses it. Transport failures and
// server errors are retried with a fixed delay; parse errors are returned
// immediately.
func (c *OpenWeatherClient) Get(ctx context.Context) (*Observation, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("openweather api key is empty")
	}
	return getWithRetry(ctx, "openweather", c.attempts, c.retryDelay, c.logger, c.fetch)
}

func getWithRetry(ctx context.Context, service string, attempts int, delay time.Duration, logger *slog.Logger, fetch func(context.Context) (*Observation, error)) (*Observation, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		obs, err := fetch(ctx)
		if err == nil {
			return obs, nil
		}
		if !isTransient(err) {
			return nil, err
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		logger.Warn("weather fetch failed, retrying",
			"service", service,
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay,
			"err", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("%s failed after %d attempts: %w", service, attempts, lastErr)
}

func (c *OpenWeatherClient) fetch(ctx context.Context) (*Observation, error) {
	query := url.Values{}
	query.Set("appid", c.apiKey)
	query.Set("lat", fmt.Sprintf("%.6f", c.latitude))
	query.Set("lon", fmt.Sprintf("%.6f", c.longitude))

	endpoint := c.baseURL + "/data/2.5/weather?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("openweather request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openweather request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("openweather read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Error responses often carry a "message" we can show as is.
		if _, perr := ParseJSON(body, c.location); isUpstreamError(perr) {
			return nil, perr
		}
		return nil, httpStatusError{service: "openweather", status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	return ParseJSON(body, c.location)
}

func isUpstreamError(err error) bool {
	return errors.Is(err, ErrNoStationsNearby) || errors.Is(err, ErrUpstream)
}

func isTransient(err error) bool {
	var pe *ParseError
	if errors.As(err, &pe) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		var urlErr *url.Error
		// Per-request client timeouts surface as url.Error and are worth a retry.
		return errors.As(err, &urlErr) && urlErr.Timeout()
	}
	var se httpStatusError
	if errors.As(err, &se) {
		return se.status >= 500 || se.status == http.StatusTooManyRequests
	}
	return true
}
