package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sam2008610/stock-performance-dashboard/internal/model"
	"github.com/sam2008610/stock-performance-dashboard/internal/service"
	"github.com/sam2008610/stock-performance-dashboard/utils"
	"github.com/shopspring/decimal"
)

type StockInfoService interface {
	GetStock(ctx context.Context, symbol string) (model.Quote, error)
	GetStockList(ctx context.Context) (stocks []model.StockListEntry, source string, err error)
	ClearCache(ctx context.Context) error
}

type QuoteService interface {
	ForceRefresh(ctx context.Context, symbol string) (model.Quote, error)
	ClearAll(ctx context.Context) (int, error)
}

type TrackerService interface {
	Transactions(ctx context.Context) []model.Transaction
	AddTransaction(ctx context.Context, tx model.Transaction) (model.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	Portfolio(ctx context.Context) []model.PortfolioItem
	Summary(ctx context.Context) model.PortfolioSummary
	RefreshQuotes(ctx context.Context) error
	InitialSetup(ctx context.Context) model.InitialSetup
	CompleteInitialSetup(ctx context.Context, cash decimal.Decimal, startDate string) error
	ResetInitialSetup(ctx context.Context) error
	AssetHistory(ctx context.Context) []model.AssetSnapshot
	AddAssetSnapshot(ctx context.Context, cash, investment decimal.Decimal, note string) (model.AssetSnapshot, error)
	RebuildAssetHistory(ctx context.Context) ([]model.AssetSnapshot, error)
	UpdateCashBalance(ctx context.Context, newCash decimal.Decimal) error
	AssetTrend(ctx context.Context) []model.TrendPoint
	StockHistory(ctx context.Context, symbol string) []model.HoldingPoint
	AllStocksHistory(ctx context.Context) map[string][]model.HoldingPoint
	Backup(ctx context.Context) (map[string]any, error)
	Restore(ctx context.Context, data map[string]any) error
	UploadBackup(ctx context.Context) (string, error)
	Report(ctx context.Context) (fileBytes []byte, fileExtension string, err error)
}

type Controller struct {
	stockInfo StockInfoService
	quotes    QuoteService
	tracker   TrackerService
}

func NewController(stockInfo StockInfoService, quotes QuoteService, tracker TrackerService) *Controller {
	return &Controller{stockInfo: stockInfo, quotes: quotes, tracker: tracker}
}

func (c *Controller) GetStock(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		sendJSONError(w, "symbol query parameter is required", http.StatusBadRequest)
		return
	}

	quote, err := c.stockInfo.GetStock(r.Context(), symbol)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, quote)
}

func (c *Controller) GetStockList(w http.ResponseWriter, r *http.Request) {
	stocks, source, err := c.stockInfo.GetStockList(r.Context())
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"stocks": stocks, "source": source})
}

func (c *Controller) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := c.stockInfo.ClearCache(r.Context()); err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "stock list cache cleared",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (c *Controller) RefreshQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if err := service.ValidateSymbol(symbol); err != nil {
		sendServiceError(w, r, err)
		return
	}

	quote, err := c.quotes.ForceRefresh(r.Context(), symbol)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, quote)
}

func (c *Controller) ClearQuotes(w http.ResponseWriter, r *http.Request) {
	removed, err := c.quotes.ClearAll(r.Context())
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "removed": removed})
}

func (c *Controller) GetTransactions(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, c.tracker.Transactions(r.Context()))
}

func (c *Controller) AddTransaction(w http.ResponseWriter, r *http.Request) {
	var tx model.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		sendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	created, err := c.tracker.AddTransaction(r.Context(), tx)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusCreated, created)
}

func (c *Controller) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := c.tracker.DeleteTransaction(r.Context(), id); err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (c *Controller) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, c.tracker.Portfolio(r.Context()))
}

func (c *Controller) GetPortfolioSummary(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, c.tracker.Summary(r.Context()))
}

func (c *Controller) ForceRefreshQuotes(w http.ResponseWriter, r *http.Request) {
	if err := c.tracker.RefreshQuotes(r.Context()); err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true})
}

type initialSetupRequest struct {
	InitialCash decimal.Decimal `json:"initialCash"`
	StartDate   string          `json:"startDate"`
}

func (c *Controller) GetInitialSetup(w http.ResponseWriter, r *http.Request) {
	setup := c.tracker.InitialSetup(r.Context())
	sendJSON(w, http.StatusOK, setup)
}

func (c *Controller) CompleteInitialSetup(w http.ResponseWriter, r *http.Request) {
	var req initialSetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := c.tracker.CompleteInitialSetup(r.Context(), req.InitialCash, req.StartDate); err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (c *Controller) ResetInitialSetup(w http.ResponseWriter, r *http.Request) {
	if err := c.tracker.ResetInitialSetup(r.Context()); err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (c *Controller) GetAssetHistory(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, c.tracker.AssetHistory(r.Context()))
}

type assetSnapshotRequest struct {
	Cash       decimal.Decimal `json:"cash"`
	Investment decimal.Decimal `json:"investment"`
	Note       string          `json:"note"`
}

func (c *Controller) AddAssetSnapshot(w http.ResponseWriter, r *http.Request) {
	var req assetSnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	snapshot, err := c.tracker.AddAssetSnapshot(r.Context(), req.Cash, req.Investment, req.Note)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusCreated, snapshot)
}

func (c *Controller) RebuildAssetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := c.tracker.RebuildAssetHistory(r.Context())
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, history)
}

type cashBalanceRequest struct {
	Cash decimal.Decimal `json:"cash"`
}

func (c *Controller) UpdateCashBalance(w http.ResponseWriter, r *http.Request) {
	var req cashBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := c.tracker.UpdateCashBalance(r.Context(), req.Cash); err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (c *Controller) GetAssetTrend(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, c.tracker.AssetTrend(r.Context()))
}

func (c *Controller) GetStockHistory(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if err := service.ValidateSymbol(symbol); err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, c.tracker.StockHistory(r.Context(), symbol))
}

func (c *Controller) GetAllStocksHistory(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, c.tracker.AllStocksHistory(r.Context()))
}

func (c *Controller) DownloadBackup(w http.ResponseWriter, r *http.Request) {
	backup, err := c.tracker.Backup(r.Context())
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="backup.json"`)
	sendJSON(w, http.StatusOK, backup)
}

func (c *Controller) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		sendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := c.tracker.Restore(r.Context(), data); err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (c *Controller) UploadBackup(w http.ResponseWriter, r *http.Request) {
	link, err := c.tracker.UploadBackup(r.Context())
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"link": link})
}

func (c *Controller) DownloadReport(w http.ResponseWriter, r *http.Request) {
	fileBytes, ext, err := c.tracker.Report(r.Context())
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="report%s"`, ext))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(fileBytes)
}

func sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		sendJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrInvalidSymbol), errors.Is(err, service.ErrValidation):
		sendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrSetupRequired):
		sendJSONError(w, err.Error(), http.StatusConflict)
	default:
		slog.Error(
			"request failed",
			slog.String("rqID", utils.GetRequestIDFromCtx(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("err", err.Error()),
		)
		sendJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}

func sendJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", slog.String("err", err.Error()))
	}
}

func sendJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
