package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// FXOptions parameterise the exchange-rate client.
type FXOptions struct {
	BaseURL       string
	BaseCurrency  string
	QuoteCurrency string
	Timeout       time.Duration
}

// FX fetches exchange rates from an exchangerate.host-style provider.
type FX struct {
	opts    FXOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewFX constructs an exchange-rate fetcher.
func NewFX(opts FXOptions, logger zerolog.Logger) *FX {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.exchangerate.host"
	}
	if opts.BaseCurrency == "" {
		opts.BaseCurrency = "USD"
	}
	if opts.QuoteCurrency == "" {
		opts.QuoteCurrency = "INR"
	}

	return &FX{
		opts:    opts,
		logger:  logger.With().Str("component", "fx_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchRate retrieves the base-to-quote exchange rate.
func (f *FX) FetchRate(ctx context.Context) (float64, error) {
	query := url.Values{}
	query.Set("base", f.opts.BaseCurrency)
	query.Set("symbols", f.opts.QuoteCurrency)
	endpoint := f.baseURL + "/latest?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: read body: %v", ErrSourceUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: fx provider error (%d)", ErrSourceUnavailable, resp.StatusCode)
	}

	var body fxResponse
	if err := json.Unmarshal(payload, &body); err != nil {
		return 0, fmt.Errorf("%w: decode fx response: %v", ErrSourceUnavailable, err)
	}

	rate, ok := body.Rates[f.opts.QuoteCurrency]
	if !ok {
		return 0, fmt.Errorf("%w: no %s rate in fx response", ErrSourceUnavailable, f.opts.QuoteCurrency)
	}
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return 0, fmt.Errorf("%w: unusable fx rate %v", ErrSourceUnavailable, rate)
	}

	f.logger.Debug().
		Str("pair", f.opts.BaseCurrency+"/"+f.opts.QuoteCurrency).
		Float64("rate", rate).
		Msg("fx rate fetched")
	return rate, nil
}

type fxResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

var _ FXRateFetcher = (*FX)(nil)
