package finmindApi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sam2008610/stock-performance-dashboard/config"
	"github.com/sam2008610/stock-performance-dashboard/internal/externalApi"
	"github.com/sam2008610/stock-performance-dashboard/internal/model"
	"github.com/sam2008610/stock-performance-dashboard/utils"
	"github.com/shopspring/decimal"
)

const (
	datasetPrice    = "TaiwanStockPrice"
	datasetPriceOTC = "TaiwanStockPriceOTC"
	datasetInfo     = "TaiwanStockInfo"
	datasetInfoOTC  = "TaiwanStockInfoOTC"

	priceLookbackDays = 7
)

type FinmindApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *FinmindApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.FinmindApi.Url)
	return &FinmindApi{client: client}
}

type rawResponse struct {
	Msg    string          `json:"msg"`
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type priceRow struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

type infoRow struct {
	StockID          string `json:"stock_id"`
	StockName        string `json:"stock_name"`
	IndustryCategory string `json:"industry_category"`
	Type             string `json:"type"`
}

// PriceInfo carries the latest close and its move against the previous close.
type PriceInfo struct {
	Price         decimal.Decimal
	Change        decimal.Decimal
	ChangePercent decimal.Decimal
	OTC           bool
}

func (a *FinmindApi) fetchDataset(ctx context.Context, dataset string, params map[string]string) (json.RawMessage, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	query := map[string]string{"dataset": dataset}
	for k, v := range params {
		query[k] = v
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(query).
		Get("/api/v4/data")

	if err != nil {
		slog.Error("error while dialing FinmindApi", slog.String("rqID", rqID), slog.String("dataset", dataset), slog.String("err", err.Error()))
		return nil, err
	}

	if resp.StatusCode() != 200 {
		slog.Error("FinmindApi bad status", slog.String("rqID", rqID), slog.String("dataset", dataset), slog.Int("status", resp.StatusCode()))
		return nil, fmt.Errorf("finmind status %d", resp.StatusCode())
	}

	raw := rawResponse{}
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		slog.Error("can't unmarshal FinmindApi response", slog.String("rqID", rqID), slog.String("dataset", dataset), slog.String("err", err.Error()))
		return nil, err
	}

	return raw.Data, nil
}

func (a *FinmindApi) fetchPriceRows(ctx context.Context, dataset, symbol string) ([]priceRow, error) {
	now := time.Now()
	params := map[string]string{
		"data_id":    symbol,
		"start_date": now.AddDate(0, 0, -priceLookbackDays).Format("2006-01-02"),
		"end_date":   now.Format("2006-01-02"),
	}

	data, err := a.fetchDataset(ctx, dataset, params)
	if err != nil {
		return nil, err
	}

	var rows []priceRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}

	return rows, nil
}

// GetPrice returns the latest close for symbol, trying the listed dataset
// first and falling back to OTC. externalApi.ErrNotFound when neither has
// rows.
func (a *FinmindApi) GetPrice(ctx context.Context, symbol string) (PriceInfo, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("start FinmindApi.GetPrice", slog.String("rqID", rqID), slog.String("symbol", symbol))

	otc := false
	rows, err := a.fetchPriceRows(ctx, datasetPrice, symbol)
	if err != nil {
		return PriceInfo{}, err
	}

	if len(rows) == 0 {
		rows, err = a.fetchPriceRows(ctx, datasetPriceOTC, symbol)
		if err != nil {
			return PriceInfo{}, err
		}
		otc = len(rows) > 0
	}

	if len(rows) == 0 {
		return PriceInfo{}, externalApi.ErrNotFound
	}

	latest := decimal.NewFromFloat(rows[len(rows)-1].Close)
	info := PriceInfo{Price: latest, OTC: otc}

	if len(rows) > 1 {
		previous := decimal.NewFromFloat(rows[len(rows)-2].Close)
		info.Change = latest.Sub(previous)
		if !previous.IsZero() {
			info.ChangePercent = info.Change.Div(previous).Mul(decimal.NewFromInt(100))
		}
	}

	slog.Debug("FinmindApi.GetPrice completed", slog.String("rqID", rqID), slog.String("symbol", symbol))

	return info, nil
}

func (a *FinmindApi) fetchInfoRows(ctx context.Context, dataset string, params map[string]string) ([]infoRow, error) {
	data, err := a.fetchDataset(ctx, dataset, params)
	if err != nil {
		return nil, err
	}

	var rows []infoRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}

	return rows, nil
}

// GetName resolves the registered company name, listed first then OTC.
func (a *FinmindApi) GetName(ctx context.Context, symbol string) (name string, otc bool, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("start FinmindApi.GetName", slog.String("rqID", rqID), slog.String("symbol", symbol))

	params := map[string]string{"data_id": symbol}

	rows, err := a.fetchInfoRows(ctx, datasetInfo, params)
	if err != nil {
		return "", false, err
	}

	if len(rows) > 0 {
		return rows[0].StockName, false, nil
	}

	rows, err = a.fetchInfoRows(ctx, datasetInfoOTC, params)
	if err != nil {
		return "", false, err
	}

	if len(rows) > 0 {
		return rows[0].StockName, true, nil
	}

	return "", false, externalApi.ErrNotFound
}

// GetStockList fetches the full exchange list, listed and OTC merged.
func (a *FinmindApi) GetStockList(ctx context.Context) ([]model.StockListEntry, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("start FinmindApi.GetStockList", slog.String("rqID", rqID))

	var stocks []model.StockListEntry

	for _, src := range []struct {
		dataset string
		market  string
	}{
		{datasetInfo, "TWSE"},
		{datasetInfoOTC, "OTC"},
	} {
		rows, err := a.fetchInfoRows(ctx, src.dataset, nil)
		if err != nil {
			slog.Error("failed to fetch stock list dataset", slog.String("rqID", rqID), slog.String("dataset", src.dataset), slog.String("err", err.Error()))
			return nil, err
		}

		for _, row := range rows {
			entryType := row.Type
			if entryType == "" {
				entryType = "stock"
			}
			stocks = append(stocks, model.StockListEntry{
				Symbol:   row.StockID,
				Name:     row.StockName,
				Market:   src.market,
				Industry: row.IndustryCategory,
				Type:     entryType,
			})
		}
	}

	slog.Debug("FinmindApi.GetStockList completed", slog.String("rqID", rqID), slog.Int("count", len(stocks)))

	return stocks, nil
}
