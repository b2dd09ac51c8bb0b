package stockInfoService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sam2008610/stock-performance-dashboard/internal/externalApi"
	"github.com/sam2008610/stock-performance-dashboard/internal/externalApi/finmindApi"
	"github.com/sam2008610/stock-performance-dashboard/internal/model"
	"github.com/sam2008610/stock-performance-dashboard/internal/service"
	"github.com/sam2008610/stock-performance-dashboard/utils"
)

const quoteSource = "FinMind"

type FinmindApi interface {
	GetPrice(ctx context.Context, symbol string) (finmindApi.PriceInfo, error)
	GetName(ctx context.Context, symbol string) (name string, otc bool, err error)
	GetStockList(ctx context.Context) ([]model.StockListEntry, error)
}

type StockListCache interface {
	SetStockList(ctx context.Context, stocks []model.StockListEntry) error
	GetStockList(ctx context.Context) ([]model.StockListEntry, error)
	GetStaleStockList(ctx context.Context) ([]model.StockListEntry, error)
	ClearStockList(ctx context.Context) error
}

// StockInfoService backs the quote proxy endpoints: symbol validation,
// upstream lookups, and the cached exchange stock list.
type StockInfoService struct {
	finmind FinmindApi
	cache   StockListCache
}

func New(finmind FinmindApi, cache StockListCache) *StockInfoService {
	return &StockInfoService{finmind: finmind, cache: cache}
}

// GetStock combines price and name lookups into one quote. A symbol is valid
// as long as either resolves; service.ErrNotFound when neither does.
func (s *StockInfoService) GetStock(ctx context.Context, symbol string) (model.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "StockInfoService.GetStock"

	if err := service.ValidateSymbol(symbol); err != nil {
		return model.Quote{}, err
	}

	slog.Debug("GetStock start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() {
		slog.Debug("GetStock finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	quote := model.Quote{
		Symbol:    symbol,
		Market:    "TWSE",
		Source:    quoteSource,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	hasPrice := false
	price, err := s.finmind.GetPrice(ctx, symbol)
	if err != nil {
		if !errors.Is(err, externalApi.ErrNotFound) {
			slog.Error("price lookup failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	} else {
		hasPrice = true
		quote.Price = price.Price
		quote.Change = price.Change
		quote.ChangePercent = price.ChangePercent
		if price.OTC {
			quote.Market = "OTC"
		}
	}

	hasName := false
	name, otc, err := s.finmind.GetName(ctx, symbol)
	if err != nil {
		if !errors.Is(err, externalApi.ErrNotFound) {
			slog.Error("name lookup failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	} else {
		hasName = true
		quote.Name = name
		if otc {
			quote.Market = "OTC"
		}
	}

	if !hasPrice && !hasName {
		slog.Warn("stock not found upstream", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
		return model.Quote{}, service.ErrNotFound
	}

	if quote.Name == "" {
		quote.Name = fmt.Sprintf("Stock %s", symbol)
	}

	return quote, nil
}

// GetStockList serves the exchange list from cache, refreshing it on miss.
// On upstream failure a stale cached copy is served rather than erroring.
func (s *StockInfoService) GetStockList(ctx context.Context) (stocks []model.StockListEntry, source string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "StockInfoService.GetStockList"

	stocks, err = s.cache.GetStockList(ctx)
	if err == nil {
		return stocks, "cache", nil
	}

	slog.Debug("stock list cache miss", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))

	stocks, err = s.finmind.GetStockList(ctx)
	if err != nil {
		slog.Warn("upstream stock list failed, trying stale copy", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))

		stale, staleErr := s.cache.GetStaleStockList(ctx)
		if staleErr != nil {
			return nil, "", err
		}
		return stale, "stale-cache", nil
	}

	if err := s.cache.SetStockList(ctx, stocks); err != nil {
		slog.Error("can't cache stock list", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	return stocks, "upstream", nil
}

// RefreshStockList re-fetches the exchange list unconditionally. Scheduler job.
func (s *StockInfoService) RefreshStockList(ctx context.Context) error {
	stocks, err := s.finmind.GetStockList(ctx)
	if err != nil {
		return err
	}
	return s.cache.SetStockList(ctx, stocks)
}

// ClearCache drops the server-side stock list cache, stale copy included.
func (s *StockInfoService) ClearCache(ctx context.Context) error {
	return s.cache.ClearStockList(ctx)
}
