package model

import "github.com/shopspring/decimal"

type TransactionType string

const (
	Buy  TransactionType = "buy"
	Sell TransactionType = "sell"
)

type AssetType string

const (
	AssetTWStock          AssetType = "tw_stock"
	AssetUSStock          AssetType = "us_stock"
	AssetCrypto           AssetType = "crypto"
	AssetBond             AssetType = "bond"
	AssetFinancialProduct AssetType = "financial_product"
)

// Transaction is append/delete only. The only field ever rewritten in place
// is StockName, backfilled once the quote proxy resolves it.
type Transaction struct {
	ID        string          `json:"id"`
	Type      TransactionType `json:"type"`
	AssetType AssetType       `json:"assetType"`
	Symbol    string          `json:"symbol"`
	StockName string          `json:"stockName"`
	Date      string          `json:"date"` // yyyy-mm-dd
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Fee       decimal.Decimal `json:"fee"`
	Total     decimal.Decimal `json:"total"`
}

// Amount recomputes quantity*price+fee. Stored Total is never trusted during
// aggregation or replay.
func (t Transaction) Amount() decimal.Decimal {
	return t.Quantity.Mul(t.Price).Add(t.Fee)
}

type PortfolioItem struct {
	Symbol       string          `json:"symbol"`
	StockName    string          `json:"stockName"`
	AssetType    AssetType       `json:"assetType"`
	Quantity     decimal.Decimal `json:"quantity"`
	TotalCost    decimal.Decimal `json:"totalCost"`
	AvgCost      decimal.Decimal `json:"avgCost"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	CurrentValue decimal.Decimal `json:"currentValue"`
	ReturnRate   decimal.Decimal `json:"returnRate"`
}

type PortfolioSummary struct {
	TotalInvestment decimal.Decimal `json:"totalInvestment"`
	CurrentValue    decimal.Decimal `json:"currentValue"`
	TotalReturnRate decimal.Decimal `json:"totalReturnRate"`
}
