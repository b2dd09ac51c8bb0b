package stockApi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sam2008610/stock-performance-dashboard/config"
	"github.com/sam2008610/stock-performance-dashboard/internal/externalApi"
	"github.com/shopspring/decimal"
)

func newTestApi(t *testing.T, handler http.HandlerFunc) *StockApi {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.API.Timeout = 5 * time.Second
	cfg.API.StockApi.Url = srv.URL

	return New(cfg)
}

func TestGetQuote(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/stock" || r.URL.Query().Get("symbol") != "2330" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"2330","name":"TSMC","price":"600","change":"5","changePercent":"0.84","market":"TWSE","source":"FinMind"}`))
	})

	quote, err := api.GetQuote(context.Background(), "2330")
	if err != nil {
		t.Fatalf("GetQuote returned error: %v", err)
	}
	if quote.Symbol != "2330" || quote.Name != "TSMC" {
		t.Errorf("unexpected quote: %+v", quote)
	}
	if !quote.Price.Equal(decimal.NewFromInt(600)) {
		t.Errorf("got price %s, want 600", quote.Price)
	}
}

func TestGetQuoteNotFound(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := api.GetQuote(context.Background(), "9999")
	if !errors.Is(err, externalApi.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestGetQuoteBadRequest(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := api.GetQuote(context.Background(), "bad")
	if !errors.Is(err, externalApi.ErrBadRequest) {
		t.Errorf("got %v, want ErrBadRequest", err)
	}
}

func TestGetQuoteMalformedPayload(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"unexpected":"shape"}`))
	})

	if _, err := api.GetQuote(context.Background(), "2330"); err == nil {
		t.Error("expected error for payload without a symbol")
	}
}

func TestNotifyCacheClear(t *testing.T) {
	cleared := false
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/clear-cache" {
			cleared = true
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := api.NotifyCacheClear(context.Background()); err != nil {
		t.Fatalf("NotifyCacheClear returned error: %v", err)
	}
	if !cleared {
		t.Error("clear-cache endpoint should be called")
	}
}

func TestNotifyCacheClearFailure(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if err := api.NotifyCacheClear(context.Background()); err == nil {
		t.Error("expected error on non-200 status")
	}
}
