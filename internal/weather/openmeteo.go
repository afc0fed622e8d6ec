package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	DefaultOpenMeteoURL    = "https://api.open-meteo.com"
	DefaultGeocodingURL    = "https://geocoding-api.open-meteo.com"
	openMeteoCurrentFields = "temperature_2m,wind_speed_10m"
)

// OpenMeteoClient is a keyless Provider backed by the Open-Meteo forecast
// API. The location comes from coordinates, or from geocoding a city name
// when both coordinates are zero.
type OpenMeteoClient struct {
	baseURL      string
	geocodingURL string
	city         string
	country      string
	attempts     int
	retryDelay   time.Duration
	client       *http.Client
	logger       *slog.Logger

	// mu guards the resolved location, filled by the first geocoding call.
	mu        sync.Mutex
	latitude  float64
	longitude float64
	station   string
}

type OpenMeteoConfig struct {
	BaseURL      string
	GeocodingURL string
	City         string
	Country      string
	Latitude     float64
	Longitude    float64
	Timeout      time.Duration
	Attempts     int
	RetryDelay   time.Duration
	Logger       *slog.Logger
}

type openMeteoResponse struct {
	Error    bool   `json:"error"`
	Reason   string `json:"reason"`
	Timezone string `json:"timezone"`
	Current  *struct {
		Time        string   `json:"time"`
		Temperature *float64 `json:"temperature_2m"`
		WindSpeed   *float64 `json:"wind_speed_10m"`
	} `json:"current"`
}

type openMeteoGeoResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

func NewOpenMeteoClient(cfg OpenMeteoConfig) *OpenMeteoClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultOpenMeteoURL
	}
	geocodingURL := strings.TrimRight(cfg.GeocodingURL, "/")
	if geocodingURL == "" {
		geocodingURL = DefaultGeocodingURL
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
	return &OpenMeteoClient{
		baseURL:      baseURL,
		geocodingURL: geocodingURL,
		city:         cfg.City,
		country:      cfg.Country,
		latitude:     cfg.Latitude,
		longitude:    cfg.Longitude,
		attempts:     attempts,
		retryDelay:   retryDelay,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (c *OpenMeteoClient) Get(ctx context.Context) (*Observation, error) {
	return getWithRetry(ctx, "open-meteo", c.attempts, c.retryDelay, c.logger, c.fetch)
}

func (c *OpenMeteoClient) fetch(ctx context.Context) (*Observation, error) {
	lat, lon, station, err := c.resolveLocation(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("latitude", fmt.Sprintf("%.6f", lat))
	query.Set("longitude", fmt.Sprintf("%.6f", lon))
	query.Set("current", openMeteoCurrentFields)
	query.Set("wind_speed_unit", "kn")
	query.Set("timezone", "auto")

	body, status, err := c.get(ctx, c.baseURL+"/v1/forecast?"+query.Encode())
	if err != nil {
		return nil, err
	}

	var payload openMeteoResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		if status < 200 || status >= 300 {
			return nil, httpStatusError{service: "open-meteo", status: status, body: strings.TrimSpace(string(body))}
		}
		return nil, newMalformedPayload(err)
	}
	if payload.Error {
		return nil, &ParseError{Kind: UpstreamMessage, Message: serviceErrorPrefix + payload.Reason}
	}
	if status < 200 || status >= 300 {
		return nil, httpStatusError{service: "open-meteo", status: status, body: strings.TrimSpace(string(body))}
	}

	return openMeteoObservation(payload, station)
}

func openMeteoObservation(payload openMeteoResponse, station string) (*Observation, error) {
	var opts []Option
	if station != "" {
		opts = append(opts, WithStation(station))
	}

	if payload.Current == nil || payload.Current.Temperature == nil {
		return nil, newMissingTemperature(station)
	}

	if observed, ok := parseOpenMeteoTime(payload.Current.Time, payload.Timezone); ok {
		opts = append(opts, WithObservedAt(observed))
	}

	knots := 0.0
	if payload.Current.WindSpeed != nil {
		knots = *payload.Current.WindSpeed
	}

	return NewObservation(*payload.Current.Temperature, knots, opts...), nil
}

func (c *OpenMeteoClient) resolveLocation(ctx context.Context) (float64, float64, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.latitude != 0 || c.longitude != 0 {
		return c.latitude, c.longitude, c.station, nil
	}

	if strings.TrimSpace(c.city) == "" {
		return 0, 0, "", fmt.Errorf("open-meteo location is empty")
	}

	query := url.Values{}
	query.Set("name", c.city)
	query.Set("count", "1")
	query.Set("format", "json")
	if strings.TrimSpace(c.country) != "" {
		query.Set("countryCode", c.country)
	}

	body, status, err := c.get(ctx, c.geocodingURL+"/v1/search?"+query.Encode())
	if err != nil {
		return 0, 0, "", fmt.Errorf("open-meteo geocoding: %w", err)
	}
	if status < 200 || status >= 300 {
		return 0, 0, "", httpStatusError{service: "open-meteo geocoding", status: status, body: strings.TrimSpace(string(body))}
	}

	var payload openMeteoGeoResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, 0, "", fmt.Errorf("open-meteo geocoding decode: %w", err)
	}

	if len(payload.Results) == 0 {
		return 0, 0, "", &ParseError{Kind: NoStationsNearby, Message: noStationsMessage}
	}

	c.latitude = payload.Results[0].Latitude
	c.longitude = payload.Results[0].Longitude
	if pretty, ok := PrettifyStationName(payload.Results[0].Name); ok {
		c.station = pretty
	}
	c.logger.Info("resolved location", "city", c.city, "lat", c.latitude, "lon", c.longitude)

	return c.latitude, c.longitude, c.station, nil
}

func (c *OpenMeteoClient) get(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("open-meteo request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("open-meteo request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("open-meteo read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// parseOpenMeteoTime reads the local "2006-01-02T15:04" timestamps the API
// returns for timezone=auto.
func parseOpenMeteoTime(value, timezone string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	loc := time.UTC
	if strings.TrimSpace(timezone) != "" {
		if parsed, err := time.LoadLocation(timezone); err == nil {
			loc = parsed
		}
	}

	if t, err := time.ParseInLocation("2006-01-02T15:04", value, loc); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(loc), true
	}
	return time.Time{}, false
}
