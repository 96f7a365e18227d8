package currency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kiosko-dev/backend-kiosko/internal/resilience"
)

func providerFor(url string) *HTTPProvider {
	return &HTTPProvider{
		URL: url,
		Client: &resilience.HTTPClient{
			Client:      &http.Client{},
			MaxAttempts: 1,
		},
	}
}

func TestFetchRatesNormalisesCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"usd","rates":{"eur":0.91,"jpy":147.2}}`))
	}))
	t.Cleanup(srv.Close)

	table, err := providerFor(srv.URL).FetchRates(context.Background())
	if err != nil {
		t.Fatalf("FetchRates: %v", err)
	}
	if table.Base != "USD" {
		t.Fatalf("expected base USD, got %q", table.Base)
	}
	if table.Rates["EUR"] != 0.91 {
		t.Fatalf("expected upper-cased rate keys, got %+v", table.Rates)
	}
}

func TestFetchRatesRejectsEmptyTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"base":"","rates":{}}`))
	}))
	t.Cleanup(srv.Close)

	if _, err := providerFor(srv.URL).FetchRates(context.Background()); err == nil {
		t.Fatal("expected error for empty rate table")
	}
}

func TestFetchRatesRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	if _, err := providerFor(srv.URL).FetchRates(context.Background()); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestFetchRatesUnconfigured(t *testing.T) {
	var p *HTTPProvider
	if _, err := p.FetchRates(context.Background()); err == nil {
		t.Fatal("expected error from nil provider")
	}
}
