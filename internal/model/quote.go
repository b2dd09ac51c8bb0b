package model

import "github.com/shopspring/decimal"

// Quote is the quote proxy response shape.
type Quote struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"changePercent"`
	Market        string          `json:"market"` // TWSE or OTC
	Source        string          `json:"source"`
	Timestamp     string          `json:"timestamp"`
}

// CachedPrice is valid only while Date matches the current calendar day.
type CachedPrice struct {
	Price Quote  `json:"price"`
	Date  string `json:"date"`
}

type CachedName struct {
	Name string `json:"name"`
	Date string `json:"date"`
}

type StockListEntry struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Market   string `json:"market"`
	Industry string `json:"industry"`
	Type     string `json:"type"`
}
