package quoteService

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sam2008610/stock-performance-dashboard/data/secure"
	"github.com/sam2008610/stock-performance-dashboard/internal/model"
	"github.com/sam2008610/stock-performance-dashboard/internal/service"
	"github.com/sam2008610/stock-performance-dashboard/utils"
	"golang.org/x/sync/errgroup"
)

const (
	priceKeyPrefix = "stock_price_"
	nameKeyPrefix  = "stock_name_"

	batchFetchLimit = 8
)

type QuoteApi interface {
	GetQuote(ctx context.Context, symbol string) (model.Quote, error)
	NotifyCacheClear(ctx context.Context) error
}

type Storage interface {
	Set(ctx context.Context, key string, value any, opts secure.Options) error
	GetJSON(ctx context.Context, key string, dst any) bool
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// QuoteService caches price and name lookups per symbol per calendar day.
// The persisted entry is authoritative; the in-memory mirror only serves
// synchronous reads within a session.
type QuoteService struct {
	api     QuoteApi
	storage Storage
	prices  *gocache.Cache
	names   *gocache.Cache
	now     func() time.Time
}

func New(api QuoteApi, storage Storage) *QuoteService {
	return &QuoteService{
		api:     api,
		storage: storage,
		prices:  gocache.New(gocache.NoExpiration, 10*time.Minute),
		names:   gocache.New(gocache.NoExpiration, 10*time.Minute),
		now:     time.Now,
	}
}

func (s *QuoteService) today() string {
	return s.now().Format("2006-01-02")
}

// untilMidnight bounds mirror entries to the current calendar day.
func (s *QuoteService) untilMidnight() time.Duration {
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	return midnight.Sub(now)
}

func priceKey(symbol string) string { return priceKeyPrefix + symbol }
func nameKey(symbol string) string  { return nameKeyPrefix + symbol }

// GetPrice returns the symbol's quote, fetching from the quote API at most
// once per symbol per calendar day. Fetch failures are returned as errors
// and never cached, so the next call retries unconditionally.
func (s *QuoteService) GetPrice(ctx context.Context, symbol string) (model.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "QuoteService.GetPrice"

	if err := service.ValidateSymbol(symbol); err != nil {
		return model.Quote{}, err
	}

	today := s.today()

	cached := model.CachedPrice{}
	if s.storage.GetJSON(ctx, priceKey(symbol), &cached) && cached.Date == today && cached.Price.Symbol != "" {
		s.prices.Set(symbol, cached.Price, s.untilMidnight())
		return cached.Price, nil
	}

	quote, err := s.api.GetQuote(ctx, symbol)
	if err != nil {
		slog.Warn("quote fetch failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
		return model.Quote{}, err
	}

	s.prices.Set(symbol, quote, s.untilMidnight())

	err = s.storage.Set(ctx, priceKey(symbol), model.CachedPrice{Price: quote, Date: today}, secure.DefaultOptions())
	if err != nil {
		slog.Error("can't persist price cache entry", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
	}

	return quote, nil
}

// GetName resolves the symbol's display name with the same daily cache
// pattern against a separate entry.
func (s *QuoteService) GetName(ctx context.Context, symbol string) (string, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "QuoteService.GetName"

	if err := service.ValidateSymbol(symbol); err != nil {
		return "", err
	}

	today := s.today()

	cached := model.CachedName{}
	if s.storage.GetJSON(ctx, nameKey(symbol), &cached) && cached.Date == today && cached.Name != "" {
		s.names.Set(symbol, cached.Name, s.untilMidnight())
		return cached.Name, nil
	}

	quote, err := s.api.GetQuote(ctx, symbol)
	if err != nil {
		slog.Warn("name fetch failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
		return "", err
	}

	if quote.Name == "" {
		return "", service.ErrNotFound
	}

	s.names.Set(symbol, quote.Name, s.untilMidnight())

	err = s.storage.Set(ctx, nameKey(symbol), model.CachedName{Name: quote.Name, Date: today}, secure.DefaultOptions())
	if err != nil {
		slog.Error("can't persist name cache entry", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
	}

	return quote.Name, nil
}

// MirrorPrice is the synchronous in-memory read. Never authoritative.
func (s *QuoteService) MirrorPrice(symbol string) (model.Quote, bool) {
	v, ok := s.prices.Get(symbol)
	if !ok {
		return model.Quote{}, false
	}
	quote, ok := v.(model.Quote)
	return quote, ok
}

// ForceRefresh evicts both cache entries for the symbol, then refetches
// unconditionally.
func (s *QuoteService) ForceRefresh(ctx context.Context, symbol string) (model.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "QuoteService.ForceRefresh"

	if err := service.ValidateSymbol(symbol); err != nil {
		return model.Quote{}, err
	}

	slog.Debug("ForceRefresh start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))

	if err := s.storage.Remove(ctx, priceKey(symbol)); err != nil {
		slog.Error("can't evict price cache entry", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}
	if err := s.storage.Remove(ctx, nameKey(symbol)); err != nil {
		slog.Error("can't evict name cache entry", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}
	s.prices.Delete(symbol)
	s.names.Delete(symbol)

	return s.GetPrice(ctx, symbol)
}

// ClearAll evicts every price/name cache entry, clears the mirrors and
// notifies the server-side cache-clear endpoint. Notification failure is
// logged, not fatal. Returns the number of evicted persistent entries.
func (s *QuoteService) ClearAll(ctx context.Context) (int, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "QuoteService.ClearAll"

	slog.Debug("ClearAll start", slog.String("rqID", rqID), slog.String("op", op))

	if err := s.api.NotifyCacheClear(ctx); err != nil {
		slog.Warn("server-side cache clear notification failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	s.prices.Flush()
	s.names.Flush()

	keys, err := s.storage.Keys(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range keys {
		if !strings.HasPrefix(key, priceKeyPrefix) && !strings.HasPrefix(key, nameKeyPrefix) {
			continue
		}
		if err := s.storage.Remove(ctx, key); err != nil {
			return removed, err
		}
		removed++
	}

	slog.Info("quote cache cleared", slog.String("rqID", rqID), slog.Int("removed", removed))

	return removed, nil
}

// GetPrices fetches quotes for all symbols concurrently and returns once all
// have settled. Symbols whose fetch failed are absent from the result.
func (s *QuoteService) GetPrices(ctx context.Context, symbols []string) map[string]model.Quote {
	result := make(map[string]model.Quote, len(symbols))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchFetchLimit)

	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			quote, err := s.GetPrice(gctx, symbol)
			if err != nil {
				// partial failure leaves the symbol absent, siblings keep going
				return nil
			}
			mu.Lock()
			result[symbol] = quote
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	return result
}

// GetNames is the batch variant of GetName.
func (s *QuoteService) GetNames(ctx context.Context, symbols []string) map[string]string {
	result := make(map[string]string, len(symbols))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchFetchLimit)

	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			name, err := s.GetName(gctx, symbol)
			if err != nil {
				return nil
			}
			mu.Lock()
			result[symbol] = name
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	return result
}

// IsValidStock reports whether the symbol resolves to a name.
func (s *QuoteService) IsValidStock(ctx context.Context, symbol string) bool {
	name, err := s.GetName(ctx, symbol)
	return err == nil && name != ""
}
