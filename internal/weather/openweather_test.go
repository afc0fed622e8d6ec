package weather

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(url string, attempts int) *OpenWeatherClient {
	return NewOpenWeatherClient(ClientConfig{
		APIKey:     "secret",
		BaseURL:    url,
		Latitude:   59.35,
		Longitude:  17.94,
		Timeout:    2 * time.Second,
		Attempts:   attempts,
		RetryDelay: 0,
		Location:   time.UTC,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestOpenWeatherClient_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/2.5/weather" {
			t.Errorf("path = %q; want /data/2.5/weather", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("appid") != "secret" || q.Get("lat") != "59.350000" || q.Get("lon") != "17.940000" {
			t.Errorf("query = %v; want appid, lat and lon set", q)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"name": "BROMMA FLYGPLATS", "dt": 1700000000, "main": {"temp": 271.15}, "wind": {"speed": 5}}`)
	}))
	defer srv.Close()

	obs, err := newTestClient(srv.URL, 1).Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v; want nil", err)
	}
	if got := obs.Centigrades(false); got != -2 {
		t.Errorf("Centigrades(false) = %d; want -2", got)
	}
	if station, _ := obs.Station(); station != "Bromma Flygplats" {
		t.Errorf("Station() = %q; want Bromma Flygplats", station)
	}
}

func TestOpenWeatherClient_retriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "upstream down", http.StatusBadGateway)
			return
		}
		io.WriteString(w, `{"main": {"temp": 280}}`)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL, 3).Get(context.Background()); err != nil {
		t.Fatalf("Get() error = %v; want nil", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d; want 3", got)
	}
}

func TestOpenWeatherClient_givesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 2).Get(context.Background())
	if err == nil {
		t.Fatal("Get() error = nil; want error")
	}
	if !strings.Contains(err.Error(), "after 2 attempts") {
		t.Errorf("err = %q; want mention of attempts", err.Error())
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d; want 2", got)
	}
}

func TestOpenWeatherClient_parseErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		target error
	}{
		{"not found city", http.StatusNotFound, `{"cod": "404", "message": "Error: Not found city"}`, ErrNoStationsNearby},
		{"upstream message", http.StatusUnauthorized, `{"cod": 401, "message": "Invalid API key"}`, ErrUpstream},
		{"missing temperature", http.StatusOK, `{"name": "Bromma"}`, ErrMissingTemperature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL, 3).Get(context.Background())
			if !errors.Is(err, tt.target) {
				t.Errorf("Get() error = %v; want %v", err, tt.target)
			}
			if got := calls.Load(); got != 1 {
				t.Errorf("calls = %d; want 1", got)
			}
		})
	}
}

func TestOpenWeatherClient_clientErrorWithoutMessage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 3).Get(context.Background())
	var se httpStatusError
	if !errors.As(err, &se) || se.status != http.StatusBadRequest {
		t.Errorf("Get() error = %v; want httpStatusError 400", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d; want 1", got)
	}
}

func TestOpenWeatherClient_emptyAPIKey(t *testing.T) {
	client := NewOpenWeatherClient(ClientConfig{BaseURL: "http://127.0.0.1:1"})
	if _, err := client.Get(context.Background()); err == nil {
		t.Fatal("Get() error = nil; want error for empty api key")
	}
}

func TestOpenWeatherClient_cancelledDuringRetryDelay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 5)
	client.retryDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Get(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Get() error = %v; want context.DeadlineExceeded", err)
	}
}
