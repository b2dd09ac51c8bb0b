package model

import "github.com/shopspring/decimal"

// AssetSnapshot is a point-in-time asset state. Total always equals
// Cash + Investment.
type AssetSnapshot struct {
	Date       string          `json:"date"` // yyyy-mm-dd
	Cash       decimal.Decimal `json:"cash"`
	Investment decimal.Decimal `json:"investment"`
	Total      decimal.Decimal `json:"total"`
	Note       string          `json:"note,omitempty"`
}

type InitialSetup struct {
	InitialCash decimal.Decimal `json:"initialCash"`
	StartDate   string          `json:"startDate"`
	IsCompleted bool            `json:"isCompleted"`
}

// StockHolding is replay-only state. Both fields are clamped to >= 0 after
// every undo step.
type StockHolding struct {
	Quantity  decimal.Decimal `json:"quantity"`
	TotalCost decimal.Decimal `json:"totalCost"`
}

type TrendPoint struct {
	Date                 string          `json:"date"`
	Cash                 decimal.Decimal `json:"cash"`
	Investment           decimal.Decimal `json:"investment"`
	Total                decimal.Decimal `json:"total"`
	CashPercentage       decimal.Decimal `json:"cashPercentage"`
	InvestmentPercentage decimal.Decimal `json:"investmentPercentage"`
}

type HoldingPoint struct {
	Date      string          `json:"date"`
	Quantity  decimal.Decimal `json:"quantity"`
	TotalCost decimal.Decimal `json:"totalCost"`
}
