package model

// Report bundles everything the spreadsheet export renders.
type Report struct {
	Transactions []Transaction
	Portfolio    []PortfolioItem
	Summary      PortfolioSummary
	AssetHistory []AssetSnapshot
}
