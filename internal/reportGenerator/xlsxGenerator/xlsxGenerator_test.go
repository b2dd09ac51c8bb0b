package xlsxGenerator

import (
	"bytes"
	"context"
	"testing"

	"github.com/sam2008610/stock-performance-dashboard/internal/model"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func TestGenerate(t *testing.T) {
	report := model.Report{
		Transactions: []model.Transaction{{
			Date:     "2024-01-10",
			Type:     model.Buy,
			Symbol:   "2330",
			Quantity: decimal.NewFromInt(100),
			Price:    decimal.NewFromInt(10),
			Fee:      decimal.NewFromInt(5),
		}},
		Portfolio: []model.PortfolioItem{{
			Symbol:    "2330",
			StockName: "TSMC",
			Quantity:  decimal.NewFromInt(100),
			TotalCost: decimal.NewFromInt(1005),
		}},
		Summary: model.PortfolioSummary{
			TotalInvestment: decimal.NewFromInt(1005),
		},
		AssetHistory: []model.AssetSnapshot{{
			Date:  "2024-01-01",
			Cash:  decimal.NewFromInt(1000),
			Total: decimal.NewFromInt(1000),
		}},
	}

	fileBytes, ext, err := New().Generate(context.Background(), report)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if ext != ".xlsx" {
		t.Errorf("got extension %q, want .xlsx", ext)
	}
	if len(fileBytes) == 0 {
		t.Fatal("expected a non-empty workbook")
	}

	f, err := excelize.OpenReader(bytes.NewReader(fileBytes))
	if err != nil {
		t.Fatalf("workbook does not open: %v", err)
	}
	defer f.Close()

	for _, sheet := range []string{"Transactions", "Portfolio", "Asset History"} {
		if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
			t.Errorf("missing sheet %q", sheet)
		}
	}

	symbol, err := f.GetCellValue("Transactions", "C2")
	if err != nil {
		t.Fatal(err)
	}
	if symbol != "2330" {
		t.Errorf("got cell value %q, want 2330", symbol)
	}
}

func TestGenerateEmptyReport(t *testing.T) {
	fileBytes, ext, err := New().Generate(context.Background(), model.Report{})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if ext != ".xlsx" || len(fileBytes) == 0 {
		t.Errorf("got (%d bytes, %q)", len(fileBytes), ext)
	}
}
