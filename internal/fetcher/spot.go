package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"jewelry-rates/internal/rates"
)

// SpotOptions parameterise the spot price client.
type SpotOptions struct {
	BaseURL   string
	APIKey    string
	Currency  string
	Timeout   time.Duration
	UserAgent string
}

// Spot fetches spot metal prices from a GoldAPI-style provider.
type Spot struct {
	opts    SpotOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewSpot constructs a spot price fetcher.
func NewSpot(opts SpotOptions, logger zerolog.Logger) *Spot {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://www.goldapi.io/api"
	}

	if opts.Currency == "" {
		opts.Currency = "USD"
	}

	return &Spot{
		opts:    opts,
		logger:  logger.With().Str("component", "spot_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchSpot retrieves the USD price per troy ounce for a tracked metal.
func (s *Spot) FetchSpot(ctx context.Context, metal rates.Metal) (float64, error) {
	symbol, ok := metal.Symbol()
	if !ok {
		return 0, fmt.Errorf("%w: metal %q has no market symbol", ErrSourceUnavailable, metal)
	}

	endpoint := fmt.Sprintf("%s/%s/%s", s.baseURL, symbol, s.opts.Currency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-access-token", s.opts.APIKey)
	if ua := strings.TrimSpace(s.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: read body: %v", ErrSourceUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, parseProviderError(symbol, resp.StatusCode, payload)
	}

	var quote spotResponse
	if err := json.Unmarshal(payload, &quote); err != nil {
		return 0, fmt.Errorf("%w: decode %s response: %v", ErrSourceUnavailable, symbol, err)
	}

	if quote.Price == nil {
		return 0, fmt.Errorf("%w: no price field for %s", ErrSourceUnavailable, symbol)
	}

	price := *quote.Price
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0, fmt.Errorf("%w: unusable price %v for %s", ErrSourceUnavailable, price, symbol)
	}

	s.logger.Debug().Str("symbol", symbol).Float64("usd_per_oz", price).Msg("spot price fetched")
	return price, nil
}

type spotResponse struct {
	Price     *float64 `json:"price"`
	Metal     string   `json:"metal"`
	Currency  string   `json:"currency"`
	Timestamp int64    `json:"timestamp"`
}

type providerError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func parseProviderError(symbol string, status int, payload []byte) error {
	var apiErr providerError
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Error != "" {
			return fmt.Errorf("%w: %s provider error (%d): %s", ErrSourceUnavailable, symbol, status, apiErr.Error)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("%w: %s provider error (%d): %s", ErrSourceUnavailable, symbol, status, apiErr.Message)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("%w: %s provider error (%d): %s", ErrSourceUnavailable, symbol, status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("%w: %s provider error (%d)", ErrSourceUnavailable, symbol, status)
}

var _ SpotPriceFetcher = (*Spot)(nil)
