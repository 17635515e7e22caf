package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestFX(url string) *FX {
	return NewFX(FXOptions{
		BaseURL:       url,
		BaseCurrency:  "USD",
		QuoteCurrency: "INR",
		Timeout:       time.Second,
	}, noopLogger())
}

func TestFXFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if base := r.URL.Query().Get("base"); base != "USD" {
			t.Fatalf("base = %q, want USD", base)
		}
		if symbols := r.URL.Query().Get("symbols"); symbols != "INR" {
			t.Fatalf("symbols = %q, want INR", symbols)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"base":  "USD",
			"rates": map[string]float64{"INR": 83.21},
		})
	}))
	defer srv.Close()

	rate, err := newTestFX(srv.URL).FetchRate(context.Background())
	if err != nil {
		t.Fatalf("FetchRate returned error: %v", err)
	}
	if rate != 83.21 {
		t.Fatalf("rate = %v, want 83.21", rate)
	}
}

func TestFXFetchMissingQuoteCurrency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"base":  "USD",
			"rates": map[string]float64{"EUR": 0.92},
		})
	}))
	defer srv.Close()

	_, err := newTestFX(srv.URL).FetchRate(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestFXFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestFX(srv.URL).FetchRate(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestFXFetchZeroRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"rates": map[string]float64{"INR": 0},
		})
	}))
	defer srv.Close()

	_, err := newTestFX(srv.URL).FetchRate(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
}
