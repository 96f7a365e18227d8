package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kiosko-dev/backend-kiosko/internal/resilience"
)

// HTTPProvider fetches exchange rates from an external JSON endpoint.
type HTTPProvider struct {
	URL    string
	Client *resilience.HTTPClient
}

// FetchRates retrieves the rate table from the configured endpoint. The
// response is expected as {"base": "USD", "rates": {"EUR": 0.91, ...}}.
func (p *HTTPProvider) FetchRates(ctx context.Context) (Table, error) {
	if p == nil || p.Client == nil || p.URL == "" {
		return Table{}, ErrRatesUnavailable
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return Table{}, fmt.Errorf("build rates request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.Client.Do(ctx, req)
	if err != nil {
		return Table{}, fmt.Errorf("fetch rates: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Table{}, fmt.Errorf("fetch rates: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Table{}, fmt.Errorf("read rates response: %w", err)
	}
	var table Table
	if err := json.Unmarshal(body, &table); err != nil {
		return Table{}, fmt.Errorf("decode rates response: %w", err)
	}
	if table.Base == "" || len(table.Rates) == 0 {
		return Table{}, fmt.Errorf("decode rates response: empty table")
	}
	table.Base = normalise(table.Base)
	normalised := make(map[string]float64, len(table.Rates))
	for code, rate := range table.Rates {
		normalised[normalise(code)] = rate
	}
	table.Rates = normalised
	return table, nil
}
