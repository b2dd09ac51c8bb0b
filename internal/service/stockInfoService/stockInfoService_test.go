package stockInfoService

import (
	"context"
	"errors"
	"testing"

	"github.com/sam2008610/stock-performance-dashboard/internal/externalApi"
	"github.com/sam2008610/stock-performance-dashboard/internal/externalApi/finmindApi"
	"github.com/sam2008610/stock-performance-dashboard/internal/model"
	"github.com/sam2008610/stock-performance-dashboard/internal/service"
	"github.com/shopspring/decimal"
)

type fakeFinmind struct {
	priceErr error
	nameErr  error
	listErr  error

	price finmindApi.PriceInfo
	name  string
	otc   bool
	list  []model.StockListEntry

	listCalls int
}

func (f *fakeFinmind) GetPrice(_ context.Context, _ string) (finmindApi.PriceInfo, error) {
	if f.priceErr != nil {
		return finmindApi.PriceInfo{}, f.priceErr
	}
	return f.price, nil
}

func (f *fakeFinmind) GetName(_ context.Context, _ string) (string, bool, error) {
	if f.nameErr != nil {
		return "", false, f.nameErr
	}
	return f.name, f.otc, nil
}

func (f *fakeFinmind) GetStockList(_ context.Context) ([]model.StockListEntry, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list, nil
}

type fakeListCache struct {
	fresh []model.StockListEntry
	stale []model.StockListEntry

	missErr  error
	setCalls int
	cleared  bool
}

func (f *fakeListCache) SetStockList(_ context.Context, stocks []model.StockListEntry) error {
	f.setCalls++
	f.fresh = stocks
	f.stale = stocks
	return nil
}

func (f *fakeListCache) GetStockList(_ context.Context) ([]model.StockListEntry, error) {
	if f.fresh == nil {
		return nil, f.missErr
	}
	return f.fresh, nil
}

func (f *fakeListCache) GetStaleStockList(_ context.Context) ([]model.StockListEntry, error) {
	if f.stale == nil {
		return nil, f.missErr
	}
	return f.stale, nil
}

func (f *fakeListCache) ClearStockList(_ context.Context) error {
	f.fresh = nil
	f.stale = nil
	f.cleared = true
	return nil
}

func newFakeListCache() *fakeListCache {
	return &fakeListCache{missErr: errors.New("cache miss")}
}

func TestGetStock(t *testing.T) {
	ctx := context.Background()
	finmind := &fakeFinmind{
		price: finmindApi.PriceInfo{
			Price:         decimal.NewFromInt(600),
			Change:        decimal.NewFromInt(5),
			ChangePercent: decimal.NewFromFloat(0.84),
		},
		name: "TSMC",
	}
	svc := New(finmind, newFakeListCache())

	quote, err := svc.GetStock(ctx, "2330")
	if err != nil {
		t.Fatalf("GetStock returned error: %v", err)
	}

	if quote.Symbol != "2330" || quote.Name != "TSMC" {
		t.Errorf("unexpected quote: %+v", quote)
	}
	if !quote.Price.Equal(decimal.NewFromInt(600)) {
		t.Errorf("got price %s, want 600", quote.Price)
	}
	if quote.Market != "TWSE" {
		t.Errorf("got market %q, want TWSE", quote.Market)
	}
	if quote.Source != "FinMind" {
		t.Errorf("got source %q", quote.Source)
	}
	if quote.Timestamp == "" {
		t.Error("timestamp should be set")
	}
}

func TestGetStockOTCMarket(t *testing.T) {
	finmind := &fakeFinmind{
		price: finmindApi.PriceInfo{Price: decimal.NewFromInt(80), OTC: true},
		name:  "OTC Corp",
		otc:   true,
	}
	svc := New(finmind, newFakeListCache())

	quote, err := svc.GetStock(context.Background(), "5483")
	if err != nil {
		t.Fatal(err)
	}
	if quote.Market != "OTC" {
		t.Errorf("got market %q, want OTC", quote.Market)
	}
}

func TestGetStockInvalidSymbol(t *testing.T) {
	svc := New(&fakeFinmind{}, newFakeListCache())

	cases := []string{"", "12", "1234567", "abcd", "23 30"}
	for _, symbol := range cases {
		if _, err := svc.GetStock(context.Background(), symbol); !errors.Is(err, service.ErrInvalidSymbol) {
			t.Errorf("symbol %q: got %v, want ErrInvalidSymbol", symbol, err)
		}
	}
}

func TestGetStockNeitherResolves(t *testing.T) {
	finmind := &fakeFinmind{
		priceErr: externalApi.ErrNotFound,
		nameErr:  externalApi.ErrNotFound,
	}
	svc := New(finmind, newFakeListCache())

	_, err := svc.GetStock(context.Background(), "9999")
	if !errors.Is(err, service.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestGetStockPriceOnlyFallbackName(t *testing.T) {
	finmind := &fakeFinmind{
		price:   finmindApi.PriceInfo{Price: decimal.NewFromInt(100)},
		nameErr: externalApi.ErrNotFound,
	}
	svc := New(finmind, newFakeListCache())

	quote, err := svc.GetStock(context.Background(), "2330")
	if err != nil {
		t.Fatalf("GetStock returned error: %v", err)
	}
	if quote.Name != "Stock 2330" {
		t.Errorf("got name %q, want placeholder", quote.Name)
	}
}

func TestGetStockNameOnly(t *testing.T) {
	finmind := &fakeFinmind{
		priceErr: externalApi.ErrNotFound,
		name:     "TSMC",
	}
	svc := New(finmind, newFakeListCache())

	quote, err := svc.GetStock(context.Background(), "2330")
	if err != nil {
		t.Fatalf("GetStock returned error: %v", err)
	}
	if quote.Name != "TSMC" || !quote.Price.IsZero() {
		t.Errorf("unexpected quote: %+v", quote)
	}
}

func TestGetStockListFromCache(t *testing.T) {
	ctx := context.Background()
	cache := newFakeListCache()
	cache.fresh = []model.StockListEntry{{Symbol: "2330", Name: "TSMC"}}
	finmind := &fakeFinmind{}
	svc := New(finmind, cache)

	stocks, source, err := svc.GetStockList(ctx)
	if err != nil {
		t.Fatalf("GetStockList returned error: %v", err)
	}
	if source != "cache" {
		t.Errorf("got source %q, want cache", source)
	}
	if len(stocks) != 1 || finmind.listCalls != 0 {
		t.Errorf("cache hit should not reach upstream, got %d stocks, %d calls", len(stocks), finmind.listCalls)
	}
}

func TestGetStockListFromUpstream(t *testing.T) {
	ctx := context.Background()
	cache := newFakeListCache()
	finmind := &fakeFinmind{list: []model.StockListEntry{{Symbol: "2330", Name: "TSMC"}}}
	svc := New(finmind, cache)

	stocks, source, err := svc.GetStockList(ctx)
	if err != nil {
		t.Fatalf("GetStockList returned error: %v", err)
	}
	if source != "upstream" {
		t.Errorf("got source %q, want upstream", source)
	}
	if len(stocks) != 1 {
		t.Errorf("got %d stocks, want 1", len(stocks))
	}
	if cache.setCalls != 1 {
		t.Errorf("upstream result should be cached, got %d set calls", cache.setCalls)
	}
}

func TestGetStockListStaleFallback(t *testing.T) {
	ctx := context.Background()
	cache := newFakeListCache()
	cache.stale = []model.StockListEntry{{Symbol: "2330", Name: "TSMC"}}
	finmind := &fakeFinmind{listErr: errors.New("upstream down")}
	svc := New(finmind, cache)

	stocks, source, err := svc.GetStockList(ctx)
	if err != nil {
		t.Fatalf("GetStockList should fall back to stale copy, got error: %v", err)
	}
	if source != "stale-cache" {
		t.Errorf("got source %q, want stale-cache", source)
	}
	if len(stocks) != 1 {
		t.Errorf("got %d stocks, want 1", len(stocks))
	}
}

func TestGetStockListTotalFailure(t *testing.T) {
	cache := newFakeListCache()
	finmind := &fakeFinmind{listErr: errors.New("upstream down")}
	svc := New(finmind, cache)

	if _, _, err := svc.GetStockList(context.Background()); err == nil {
		t.Error("expected error when upstream and stale copy both fail")
	}
}

func TestRefreshStockList(t *testing.T) {
	cache := newFakeListCache()
	finmind := &fakeFinmind{list: []model.StockListEntry{{Symbol: "2330"}}}
	svc := New(finmind, cache)

	if err := svc.RefreshStockList(context.Background()); err != nil {
		t.Fatalf("RefreshStockList returned error: %v", err)
	}
	if cache.setCalls != 1 {
		t.Errorf("got %d set calls, want 1", cache.setCalls)
	}
}

func TestClearCache(t *testing.T) {
	cache := newFakeListCache()
	svc := New(&fakeFinmind{}, cache)

	if err := svc.ClearCache(context.Background()); err != nil {
		t.Fatalf("ClearCache returned error: %v", err)
	}
	if !cache.cleared {
		t.Error("cache should be cleared")
	}
}
