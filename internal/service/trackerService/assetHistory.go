package trackerService

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/sam2008610/stock-performance-dashboard/data/secure"
	"github.com/sam2008610/stock-performance-dashboard/internal/model"
	"github.com/sam2008610/stock-performance-dashboard/internal/service"
	"github.com/sam2008610/stock-performance-dashboard/utils"
	"github.com/shopspring/decimal"
)

const (
	noteLatest  = "latest"
	noteStart   = "start (rebuilt)"
	noteRebuilt = "rebuilt: %s %s"
)

// persistAssetHistory must be called with mu held. The history and setup are
// stored as plain JSON; the sensitive material lives in the transaction log.
func (s *TrackerService) persistAssetHistory(ctx context.Context) error {
	return s.storage.Set(ctx, assetHistoryKey, s.assetHistory, secure.PlainOptions())
}

func (s *TrackerService) persistInitialSetup(ctx context.Context) error {
	return s.storage.Set(ctx, initialSetupKey, s.initialSetup, secure.PlainOptions())
}

func (s *TrackerService) InitialSetup(ctx context.Context) model.InitialSetup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialSetup
}

// CompleteInitialSetup records the tracked start state and seeds the history
// with one snapshot at startDate.
func (s *TrackerService) CompleteInitialSetup(ctx context.Context, cash decimal.Decimal, startDate string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TrackerService.CompleteInitialSetup"

	if _, err := time.Parse("2006-01-02", startDate); err != nil {
		return fmt.Errorf("%w: bad start date %q", service.ErrValidation, startDate)
	}
	if cash.IsNegative() {
		return fmt.Errorf("%w: initial cash must not be negative", service.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialSetup = model.InitialSetup{
		InitialCash: cash,
		StartDate:   startDate,
		IsCompleted: true,
	}

	s.assetHistory = []model.AssetSnapshot{{
		Date:       startDate,
		Cash:       cash,
		Investment: decimal.Zero,
		Total:      cash,
	}}

	if err := s.persistAssetHistory(ctx); err != nil {
		slog.Error("can't persist asset history", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}
	if err := s.persistInitialSetup(ctx); err != nil {
		slog.Error("can't persist initial setup", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Info("initial setup completed", slog.String("rqID", rqID), slog.String("startDate", startDate))

	return nil
}

// AddAssetSnapshot appends an explicit user snapshot dated today.
func (s *TrackerService) AddAssetSnapshot(ctx context.Context, cash, investment decimal.Decimal, note string) (model.AssetSnapshot, error) {
	snapshot := model.AssetSnapshot{
		Date:       s.today(),
		Cash:       cash,
		Investment: investment,
		Total:      cash.Add(investment),
		Note:       note,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.assetHistory = append(s.assetHistory, snapshot)
	if err := s.persistAssetHistory(ctx); err != nil {
		s.assetHistory = s.assetHistory[:len(s.assetHistory)-1]
		return model.AssetSnapshot{}, err
	}

	return snapshot, nil
}

// UpdateCashBalance rewrites the cash figure of the newest snapshot.
func (s *TrackerService) UpdateCashBalance(ctx context.Context, newCash decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.assetHistory) == 0 {
		return service.ErrNotFound
	}

	latest := &s.assetHistory[len(s.assetHistory)-1]
	latest.Cash = newCash
	latest.Total = newCash.Add(latest.Investment)

	return s.persistAssetHistory(ctx)
}

// ResetInitialSetup wipes the setup and the whole history.
func (s *TrackerService) ResetInitialSetup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialSetup = model.InitialSetup{}
	s.assetHistory = nil

	if err := s.storage.Remove(ctx, initialSetupKey); err != nil {
		return err
	}
	return s.storage.Remove(ctx, assetHistoryKey)
}

// RebuildAssetHistory reconstructs the history by replaying the transaction
// log backward from the current state: seed cash and holdings from "now",
// undo each transaction newest-first, clamp holdings at zero, then flip the
// sequence to ascending date order and replace the stored history wholesale.
// Assumes every position was opened after the tracked start date. Re-running
// after new transactions were recorded replaces the previous result.
func (s *TrackerService) RebuildAssetHistory(ctx context.Context) ([]model.AssetSnapshot, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TrackerService.RebuildAssetHistory"

	s.mu.RLock()
	setup := s.initialSetup
	s.mu.RUnlock()

	if !setup.IsCompleted {
		return nil, service.ErrSetupRequired
	}

	slog.Debug("RebuildAssetHistory start", slog.String("rqID", rqID), slog.String("op", op))

	portfolio := s.Portfolio(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := make([]model.Transaction, len(s.transactions))
	copy(sorted, s.transactions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date > sorted[j].Date
	})

	currentCash := setup.InitialCash

	holdings := make(map[string]*model.StockHolding, len(portfolio))
	for _, item := range portfolio {
		holdings[item.Symbol] = &model.StockHolding{
			Quantity:  item.Quantity,
			TotalCost: item.TotalCost,
		}
	}

	history := make([]model.AssetSnapshot, 0, len(sorted)+2)

	investment := sumInvestment(holdings)
	history = append(history, model.AssetSnapshot{
		Date:       s.today(),
		Cash:       currentCash,
		Investment: investment,
		Total:      currentCash.Add(investment),
		Note:       noteLatest,
	})

	for _, tx := range sorted {
		amount := tx.Amount()

		holding, ok := holdings[tx.Symbol]
		if !ok {
			holding = &model.StockHolding{}
			holdings[tx.Symbol] = holding
		}

		if tx.Type == model.Buy {
			currentCash = currentCash.Add(amount)
			holding.Quantity = holding.Quantity.Sub(tx.Quantity)
			holding.TotalCost = holding.TotalCost.Sub(amount)
		} else {
			currentCash = currentCash.Sub(amount)
			holding.Quantity = holding.Quantity.Add(tx.Quantity)
			holding.TotalCost = holding.TotalCost.Add(amount)
		}

		if holding.Quantity.IsNegative() {
			slog.Warn("replay implies negative holding, clamping",
				slog.String("rqID", rqID),
				slog.String("op", op),
				slog.String("symbol", tx.Symbol),
				slog.String("quantity", holding.Quantity.String()),
			)
			holding.Quantity = decimal.Zero
			holding.TotalCost = decimal.Zero
		}
		if holding.TotalCost.IsNegative() {
			slog.Warn("replay implies negative cost basis, clamping",
				slog.String("rqID", rqID),
				slog.String("op", op),
				slog.String("symbol", tx.Symbol),
				slog.String("totalCost", holding.TotalCost.String()),
			)
			holding.TotalCost = decimal.Zero
		}

		investment = sumInvestment(holdings)
		history = append(history, model.AssetSnapshot{
			Date:       tx.Date,
			Cash:       currentCash,
			Investment: investment,
			Total:      currentCash.Add(investment),
			Note:       fmt.Sprintf(noteRebuilt, tx.Type, tx.Symbol),
		})
	}

	if len(sorted) > 0 {
		history = append(history, model.AssetSnapshot{
			Date:       setup.StartDate,
			Cash:       currentCash,
			Investment: decimal.Zero,
			Total:      currentCash,
			Note:       noteStart,
		})
	}

	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Date < history[j].Date
	})

	s.assetHistory = history
	if err := s.persistAssetHistory(ctx); err != nil {
		slog.Error("can't persist rebuilt history", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	slog.Info("asset history rebuilt", slog.String("rqID", rqID), slog.Int("snapshots", len(history)))

	out := make([]model.AssetSnapshot, len(history))
	copy(out, history)
	return out, nil
}

func sumInvestment(holdings map[string]*model.StockHolding) decimal.Decimal {
	total := decimal.Zero
	for _, holding := range holdings {
		if holding.Quantity.IsPositive() {
			total = total.Add(holding.TotalCost)
		}
	}
	return total
}

func (s *TrackerService) AssetHistory(ctx context.Context) []model.AssetSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.AssetSnapshot, len(s.assetHistory))
	copy(out, s.assetHistory)
	return out
}

// AssetTrend derives the cash/investment split per snapshot.
func (s *TrackerService) AssetTrend(ctx context.Context) []model.TrendPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trend := make([]model.TrendPoint, 0, len(s.assetHistory))
	for _, snapshot := range s.assetHistory {
		point := model.TrendPoint{
			Date:       snapshot.Date,
			Cash:       snapshot.Cash,
			Investment: snapshot.Investment,
			Total:      snapshot.Total,
		}
		if snapshot.Total.IsPositive() {
			point.CashPercentage = snapshot.Cash.Div(snapshot.Total).Mul(hundred)
			point.InvestmentPercentage = snapshot.Investment.Div(snapshot.Total).Mul(hundred)
		}
		trend = append(trend, point)
	}
	return trend
}

// CurrentAssets returns the newest snapshot, or false when the history is
// empty.
func (s *TrackerService) CurrentAssets(ctx context.Context) (model.AssetSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.assetHistory) == 0 {
		return model.AssetSnapshot{}, false
	}
	return s.assetHistory[len(s.assetHistory)-1], true
}

func (s *TrackerService) TrackingDays(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialSetup.IsCompleted || len(s.assetHistory) == 0 {
		return 0
	}

	start, err := time.Parse("2006-01-02", s.initialSetup.StartDate)
	if err != nil {
		return 0
	}

	days := int(s.now().Sub(start).Hours()/24) + 1
	if days < 0 {
		return 0
	}
	return days
}

func (s *TrackerService) MinMaxTotal(ctx context.Context) (min, max decimal.Decimal) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, snapshot := range s.assetHistory {
		if i == 0 || snapshot.Total.LessThan(min) {
			min = snapshot.Total
		}
		if i == 0 || snapshot.Total.GreaterThan(max) {
			max = snapshot.Total
		}
	}
	return min, max
}

// StockHistory computes the symbol's holding at each snapshot date by folding
// all transactions up to and including that date, clamped at zero.
func (s *TrackerService) StockHistory(ctx context.Context, symbol string) []model.HoldingPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialSetup.IsCompleted {
		return nil
	}

	relevant := make([]model.Transaction, 0)
	for _, tx := range s.transactions {
		if tx.Symbol == symbol {
			relevant = append(relevant, tx)
		}
	}
	sort.SliceStable(relevant, func(i, j int) bool {
		return relevant[i].Date < relevant[j].Date
	})

	points := make([]model.HoldingPoint, 0, len(s.assetHistory))
	for _, snapshot := range s.assetHistory {
		quantity := decimal.Zero
		totalCost := decimal.Zero

		for _, tx := range relevant {
			if tx.Date > snapshot.Date {
				break
			}
			if tx.Type == model.Buy {
				quantity = quantity.Add(tx.Quantity)
				totalCost = totalCost.Add(tx.Amount())
			} else {
				quantity = quantity.Sub(tx.Quantity)
				totalCost = totalCost.Sub(tx.Amount())
			}
		}

		if quantity.IsNegative() {
			quantity = decimal.Zero
			totalCost = decimal.Zero
		}

		points = append(points, model.HoldingPoint{
			Date:      snapshot.Date,
			Quantity:  quantity,
			TotalCost: totalCost,
		})
	}

	return points
}

// AllStocksHistory maps every held symbol to its holding history.
func (s *TrackerService) AllStocksHistory(ctx context.Context) map[string][]model.HoldingPoint {
	portfolio := s.Portfolio(ctx)

	out := make(map[string][]model.HoldingPoint, len(portfolio))
	for _, item := range portfolio {
		out[item.Symbol] = s.StockHistory(ctx, item.Symbol)
	}
	return out
}
