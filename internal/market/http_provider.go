package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kosix/stagebacktest/internal/numerics"
)

// httpClient is shared across requests, matching the teacher's pattern of
// a package-level client with a bounded timeout rather than a new client
// per call.
var httpClient = &http.Client{Timeout: 30 * time.Second}

// HTTPProvider is a reference BarProvider that fetches daily bars from a
// JSON vendor endpoint over HTTP. It is not wired to any specific KRX
// vendor (that wrapper is out of scope, spec §1) — it exists so the
// engine has a concrete, swappable non-fake BarProvider to depend on.
type HTTPProvider struct {
	BaseURL string
	APIKey  string
}

// NewHTTPProvider builds a provider against baseURL, authenticating with
// apiKey (typically loaded via godotenv from the caller's .env).
func NewHTTPProvider(baseURL, apiKey string) *HTTPProvider {
	return &HTTPProvider{BaseURL: baseURL, APIKey: apiKey}
}

type vendorBar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

type vendorBarsResponse struct {
	Ticker string      `json:"ticker"`
	Bars   []vendorBar `json:"bars"`
}

// FetchBars requests /bars?ticker=...&start=...&end=... and normalizes the
// response into a validated BarTable.
func (p *HTTPProvider) FetchBars(ctx context.Context, ticker string, start, end time.Time) (*numerics.BarTable, error) {
	const dateLayout = "2006-01-02"
	url := fmt.Sprintf("%s/bars?ticker=%s&start=%s&end=%s", p.BaseURL, ticker, start.Format(dateLayout), end.Format(dateLayout))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("market: HTTPProvider.FetchBars(%s): build request: %w", ticker, err)
	}
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("market: HTTPProvider.FetchBars(%s): %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("market: HTTPProvider.FetchBars(%s): vendor returned %d: %s", ticker, resp.StatusCode, string(body))
	}

	var parsed vendorBarsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("market: HTTPProvider.FetchBars(%s): decode response: %w", ticker, err)
	}

	bars := make([]numerics.Bar, 0, len(parsed.Bars))
	for _, vb := range parsed.Bars {
		d, err := time.Parse(dateLayout, vb.Date)
		if err != nil {
			return nil, fmt.Errorf("market: HTTPProvider.FetchBars(%s): bad date %q: %w", ticker, vb.Date, err)
		}
		bars = append(bars, numerics.Bar{
			Date: d, Open: vb.Open, High: vb.High, Low: vb.Low, Close: vb.Close, Volume: vb.Volume,
		})
	}
	return numerics.NewBarTable(ticker, bars)
}

type vendorUniverseResponse struct {
	Tag     string   `json:"tag"`
	Tickers []string `json:"tickers"`
}

// Tickers requests /universe?tag=... so HTTPProvider also satisfies
// UniverseProvider, letting cmd/backtest run against a single vendor
// endpoint for both bars and universe enumeration.
func (p *HTTPProvider) Tickers(ctx context.Context, tag Tag) ([]string, error) {
	url := fmt.Sprintf("%s/universe?tag=%s", p.BaseURL, tag)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("market: HTTPProvider.Tickers(%s): build request: %w", tag, err)
	}
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("market: HTTPProvider.Tickers(%s): %w", tag, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("market: HTTPProvider.Tickers(%s): vendor returned %d: %s", tag, resp.StatusCode, string(body))
	}

	var parsed vendorUniverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("market: HTTPProvider.Tickers(%s): decode response: %w", tag, err)
	}
	return parsed.Tickers, nil
}
