package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/sam2008610/stock-performance-dashboard/internal/model"
	"github.com/sam2008610/stock-performance-dashboard/internal/service"
	"github.com/shopspring/decimal"
)

type fakeStockInfo struct {
	quote    model.Quote
	quoteErr error
}

func (f *fakeStockInfo) GetStock(_ context.Context, _ string) (model.Quote, error) {
	return f.quote, f.quoteErr
}

func (f *fakeStockInfo) GetStockList(_ context.Context) ([]model.StockListEntry, string, error) {
	return []model.StockListEntry{{Symbol: "2330", Name: "TSMC"}}, "cache", nil
}

func (f *fakeStockInfo) ClearCache(_ context.Context) error { return nil }

type fakeTracker struct {
	addErr     error
	deleteErr  error
	rebuildErr error
}

func (f *fakeTracker) Transactions(_ context.Context) []model.Transaction { return nil }

func (f *fakeTracker) AddTransaction(_ context.Context, tx model.Transaction) (model.Transaction, error) {
	if f.addErr != nil {
		return model.Transaction{}, f.addErr
	}
	tx.ID = "generated-id"
	return tx, nil
}

func (f *fakeTracker) DeleteTransaction(_ context.Context, _ string) error { return f.deleteErr }

func (f *fakeTracker) Portfolio(_ context.Context) []model.PortfolioItem { return nil }

func (f *fakeTracker) Summary(_ context.Context) model.PortfolioSummary {
	return model.PortfolioSummary{}
}

func (f *fakeTracker) RefreshQuotes(_ context.Context) error { return nil }

func (f *fakeTracker) InitialSetup(_ context.Context) model.InitialSetup {
	return model.InitialSetup{}
}

func (f *fakeTracker) CompleteInitialSetup(_ context.Context, _ decimal.Decimal, _ string) error {
	return nil
}

func (f *fakeTracker) ResetInitialSetup(_ context.Context) error { return nil }

func (f *fakeTracker) AssetHistory(_ context.Context) []model.AssetSnapshot { return nil }

func (f *fakeTracker) AddAssetSnapshot(_ context.Context, cash, investment decimal.Decimal, note string) (model.AssetSnapshot, error) {
	return model.AssetSnapshot{Cash: cash, Investment: investment, Total: cash.Add(investment), Note: note}, nil
}

func (f *fakeTracker) RebuildAssetHistory(_ context.Context) ([]model.AssetSnapshot, error) {
	return nil, f.rebuildErr
}

func (f *fakeTracker) UpdateCashBalance(_ context.Context, _ decimal.Decimal) error { return nil }

func (f *fakeTracker) AssetTrend(_ context.Context) []model.TrendPoint { return nil }

func (f *fakeTracker) StockHistory(_ context.Context, _ string) []model.HoldingPoint { return nil }

func (f *fakeTracker) AllStocksHistory(_ context.Context) map[string][]model.HoldingPoint {
	return nil
}

func (f *fakeTracker) Backup(_ context.Context) (map[string]any, error) {
	return map[string]any{"transactions": []any{}}, nil
}

func (f *fakeTracker) Restore(_ context.Context, _ map[string]any) error { return nil }

func (f *fakeTracker) UploadBackup(_ context.Context) (string, error) { return "link", nil }

func (f *fakeTracker) Report(_ context.Context) ([]byte, string, error) {
	return []byte("bytes"), ".xlsx", nil
}

type fakeQuotes struct {
	refreshed  []string
	refreshErr error
	cleared    int
}

func (f *fakeQuotes) ForceRefresh(_ context.Context, symbol string) (model.Quote, error) {
	if f.refreshErr != nil {
		return model.Quote{}, f.refreshErr
	}
	f.refreshed = append(f.refreshed, symbol)
	return model.Quote{Symbol: symbol, Price: decimal.NewFromInt(600)}, nil
}

func (f *fakeQuotes) ClearAll(_ context.Context) (int, error) { return f.cleared, nil }

func newTestRouter(stockInfo StockInfoService, quotes QuoteService, tracker TrackerService) *chi.Mux {
	c := NewController(stockInfo, quotes, tracker)
	r := chi.NewRouter()
	r.Get("/api/stock", c.GetStock)
	r.Post("/api/quotes/{symbol}/refresh", c.RefreshQuote)
	r.Post("/api/quotes/clear", c.ClearQuotes)
	r.Post("/api/transactions", c.AddTransaction)
	r.Delete("/api/transactions/{id}", c.DeleteTransaction)
	r.Post("/api/assets/history/rebuild", c.RebuildAssetHistory)
	r.Get("/api/report", c.DownloadReport)
	return r
}

func TestGetStockHandler(t *testing.T) {
	stockInfo := &fakeStockInfo{
		quote: model.Quote{Symbol: "2330", Name: "TSMC", Price: decimal.NewFromInt(600)},
	}
	router := newTestRouter(stockInfo, &fakeQuotes{}, &fakeTracker{})

	t.Run("ok", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stock?symbol=2330", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("got status %d, want 200", rec.Code)
		}

		var quote model.Quote
		if err := json.Unmarshal(rec.Body.Bytes(), &quote); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if quote.Symbol != "2330" || quote.Name != "TSMC" {
			t.Errorf("unexpected quote: %+v", quote)
		}
	})

	t.Run("missing symbol", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stock", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("got status %d, want 400", rec.Code)
		}
	})

	t.Run("invalid symbol", func(t *testing.T) {
		stockInfo.quoteErr = service.ErrInvalidSymbol
		defer func() { stockInfo.quoteErr = nil }()

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stock?symbol=bad", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("got status %d, want 400", rec.Code)
		}
	})

	t.Run("not found", func(t *testing.T) {
		stockInfo.quoteErr = service.ErrNotFound
		defer func() { stockInfo.quoteErr = nil }()

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stock?symbol=9999", nil))

		if rec.Code != http.StatusNotFound {
			t.Errorf("got status %d, want 404", rec.Code)
		}
	})
}

func TestAddTransactionHandler(t *testing.T) {
	router := newTestRouter(&fakeStockInfo{}, &fakeQuotes{}, &fakeTracker{})

	t.Run("created", func(t *testing.T) {
		body := `{"type":"buy","symbol":"2330","date":"2024-01-10","quantity":"100","price":"10","fee":"5"}`
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body)))

		if rec.Code != http.StatusCreated {
			t.Fatalf("got status %d, want 201: %s", rec.Code, rec.Body.String())
		}

		var tx model.Transaction
		if err := json.Unmarshal(rec.Body.Bytes(), &tx); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if tx.ID != "generated-id" {
			t.Errorf("got id %q", tx.ID)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader("{not json")))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("got status %d, want 400", rec.Code)
		}
	})

	t.Run("validation error", func(t *testing.T) {
		failing := &fakeTracker{addErr: service.ErrValidation}
		rec := httptest.NewRecorder()
		newTestRouter(&fakeStockInfo{}, &fakeQuotes{}, failing).
			ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(`{}`)))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("got status %d, want 400", rec.Code)
		}
	})
}

func TestRefreshQuoteHandler(t *testing.T) {
	quotes := &fakeQuotes{}
	router := newTestRouter(&fakeStockInfo{}, quotes, &fakeTracker{})

	t.Run("ok", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/quotes/2330/refresh", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("got status %d, want 200", rec.Code)
		}
		if len(quotes.refreshed) != 1 || quotes.refreshed[0] != "2330" {
			t.Errorf("refreshed symbols: %v", quotes.refreshed)
		}
	})

	t.Run("invalid symbol", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/quotes/AAPL/refresh", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("got status %d, want 400", rec.Code)
		}
	})
}

func TestClearQuotesHandler(t *testing.T) {
	router := newTestRouter(&fakeStockInfo{}, &fakeQuotes{cleared: 3}, &fakeTracker{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/quotes/clear", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}

	var resp struct {
		Success bool `json:"success"`
		Removed int  `json:"removed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Removed != 3 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestDeleteTransactionHandler(t *testing.T) {
	router := newTestRouter(&fakeStockInfo{}, &fakeQuotes{}, &fakeTracker{deleteErr: service.ErrNotFound})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/transactions/no-such-id", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("got status %d, want 404", rec.Code)
	}
}

func TestRebuildHandlerSetupRequired(t *testing.T) {
	router := newTestRouter(&fakeStockInfo{}, &fakeQuotes{}, &fakeTracker{rebuildErr: service.ErrSetupRequired})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/assets/history/rebuild", nil))

	if rec.Code != http.StatusConflict {
		t.Errorf("got status %d, want 409", rec.Code)
	}
}

func TestDownloadReportHandler(t *testing.T) {
	router := newTestRouter(&fakeStockInfo{}, &fakeQuotes{}, &fakeTracker{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/report", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "report.xlsx") {
		t.Errorf("got content disposition %q", got)
	}
}
