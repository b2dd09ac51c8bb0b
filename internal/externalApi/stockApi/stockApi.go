package stockApi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-resty/resty/v2"
	"github.com/sam2008610/stock-performance-dashboard/config"
	"github.com/sam2008610/stock-performance-dashboard/internal/externalApi"
	"github.com/sam2008610/stock-performance-dashboard/internal/model"
	"github.com/sam2008610/stock-performance-dashboard/utils"
)

// StockApi dials the quote proxy. The proxy is treated as an opaque HTTP API
// returning a model.Quote or an error status.
type StockApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *StockApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.StockApi.Url)
	return &StockApi{client: client}
}

func (a *StockApi) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug("start StockApi.GetQuote", slog.String("rqID", rqID), slog.String("symbol", symbol))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParam("symbol", symbol).
		Get("/api/stock")

	if err != nil {
		slog.Error("error while dialing StockApi", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return model.Quote{}, err
	}

	switch resp.StatusCode() {
	case 200:
	case 404:
		return model.Quote{}, externalApi.ErrNotFound
	case 400:
		return model.Quote{}, externalApi.ErrBadRequest
	default:
		slog.Error("StockApi bad status", slog.String("rqID", rqID), slog.Int("status", resp.StatusCode()))
		return model.Quote{}, fmt.Errorf("stock api status %d", resp.StatusCode())
	}

	quote := model.Quote{}
	if err := json.Unmarshal(resp.Body(), &quote); err != nil {
		slog.Error("can't unmarshal StockApi response", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return model.Quote{}, err
	}

	if quote.Symbol == "" {
		slog.Error("StockApi returned malformed payload", slog.String("rqID", rqID), slog.String("body", string(resp.Body())))
		return model.Quote{}, fmt.Errorf("malformed quote payload for %s", symbol)
	}

	slog.Debug("StockApi.GetQuote completed", slog.String("rqID", rqID), slog.String("symbol", symbol))

	return quote, nil
}

// NotifyCacheClear tells the proxy to drop its server-side caches.
// Best-effort, callers log and continue on failure.
func (a *StockApi) NotifyCacheClear(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	resp, err := a.client.R().
		SetContext(ctx).
		Get("/api/clear-cache")

	if err != nil {
		return err
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("clear cache status %d", resp.StatusCode())
	}

	slog.Debug("StockApi.NotifyCacheClear completed", slog.String("rqID", rqID))

	return nil
}
