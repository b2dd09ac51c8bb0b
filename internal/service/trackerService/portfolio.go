package trackerService

import (
	"context"
	"sort"

	"github.com/sam2008610/stock-performance-dashboard/internal/model"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Portfolio folds the whole transaction log into per-symbol holdings. The
// fold walks entries in log order, not date order: re-inserting a historical
// entry reorders the fold on purpose, it reflects recorded history. Quantity
// and cost may go negative mid-fold; only symbols ending with quantity > 0
// survive, sorted by current value descending.
func (s *TrackerService) Portfolio(ctx context.Context) []model.PortfolioItem {
	s.mu.RLock()
	transactions := make([]model.Transaction, len(s.transactions))
	copy(transactions, s.transactions)
	s.mu.RUnlock()

	symbols := make([]string, 0)
	for _, tx := range transactions {
		if tx.AssetType == model.AssetTWStock {
			symbols = append(symbols, tx.Symbol)
		}
	}
	prices := s.quotes.GetPrices(ctx, uniqueStrings(symbols))

	items := make(map[string]*model.PortfolioItem)
	order := make([]string, 0)

	for _, tx := range transactions {
		item, ok := items[tx.Symbol]
		if !ok {
			item = &model.PortfolioItem{
				Symbol:    tx.Symbol,
				StockName: tx.StockName,
				AssetType: tx.AssetType,
			}
			items[tx.Symbol] = item
			order = append(order, tx.Symbol)
		}

		total := tx.Amount()
		if tx.Type == model.Buy {
			item.Quantity = item.Quantity.Add(tx.Quantity)
			item.TotalCost = item.TotalCost.Add(total)
		} else {
			item.Quantity = item.Quantity.Sub(tx.Quantity)
			item.TotalCost = item.TotalCost.Sub(total)
		}
	}

	result := make([]model.PortfolioItem, 0, len(order))
	for _, symbol := range order {
		item := items[symbol]

		if item.Quantity.IsPositive() {
			item.AvgCost = item.TotalCost.Div(item.Quantity)
		} else {
			item.AvgCost = decimal.Zero
		}

		if quote, ok := prices[symbol]; ok {
			item.CurrentPrice = quote.Price
		}
		item.CurrentValue = item.Quantity.Mul(item.CurrentPrice)

		if item.TotalCost.IsPositive() {
			item.ReturnRate = item.CurrentValue.Sub(item.TotalCost).Div(item.TotalCost).Mul(hundred)
		} else {
			item.ReturnRate = decimal.Zero
		}

		if item.Quantity.IsPositive() {
			result = append(result, *item)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CurrentValue.GreaterThan(result[j].CurrentValue)
	})

	return result
}

// Summary computes the aggregate metrics over the full log.
func (s *TrackerService) Summary(ctx context.Context) model.PortfolioSummary {
	portfolio := s.Portfolio(ctx)

	s.mu.RLock()
	totalInvestment := decimal.Zero
	for _, tx := range s.transactions {
		if tx.Type == model.Buy {
			totalInvestment = totalInvestment.Add(tx.Amount())
		} else {
			totalInvestment = totalInvestment.Sub(tx.Amount())
		}
	}
	s.mu.RUnlock()

	currentValue := decimal.Zero
	for _, item := range portfolio {
		currentValue = currentValue.Add(item.CurrentValue)
	}

	summary := model.PortfolioSummary{
		TotalInvestment: totalInvestment,
		CurrentValue:    currentValue,
	}

	if !totalInvestment.IsZero() {
		summary.TotalReturnRate = currentValue.Sub(totalInvestment).Div(totalInvestment).Mul(hundred)
	}

	return summary
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
