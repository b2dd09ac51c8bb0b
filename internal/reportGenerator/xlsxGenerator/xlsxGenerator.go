package xlsxGenerator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sam2008610/stock-performance-dashboard/internal/model"
	"github.com/sam2008610/stock-performance-dashboard/utils"
	"github.com/xuri/excelize/v2"
)

type XLSXGenerator struct{}

func New() *XLSXGenerator {
	return &XLSXGenerator{}
}

// Generate renders transactions, the current portfolio and the asset history
// as one workbook with a sheet per section.
func (g *XLSXGenerator) Generate(ctx context.Context, report model.Report) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXGenerator.Generate"

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{"#cfe2f3"},
		},
	})
	if err != nil {
		return nil, "", err
	}

	if err := g.fillTransactions(f, headerStyle, report.Transactions); err != nil {
		return nil, "", err
	}
	if err := g.fillPortfolio(f, headerStyle, report.Portfolio, report.Summary); err != nil {
		return nil, "", err
	}
	if err := g.fillAssetHistory(f, headerStyle, report.AssetHistory); err != nil {
		return nil, "", err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		slog.Error("got error while deleting Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func newSheet(f *excelize.File, name string, styleID int, header []any) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return err
	}
	endCell, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(name, "A1", endCell, styleID)
}

func (g *XLSXGenerator) fillTransactions(f *excelize.File, styleID int, transactions []model.Transaction) error {
	const sheet = "Transactions"

	err := newSheet(f, sheet, styleID, []any{"Date", "Type", "Symbol", "Name", "Asset type", "Quantity", "Price", "Fee", "Total"})
	if err != nil {
		return err
	}

	for i, tx := range transactions {
		row := []any{
			tx.Date,
			string(tx.Type),
			tx.Symbol,
			tx.StockName,
			string(tx.AssetType),
			tx.Quantity.InexactFloat64(),
			tx.Price.InexactFloat64(),
			tx.Fee.InexactFloat64(),
			tx.Amount().InexactFloat64(),
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}

	return nil
}

func (g *XLSXGenerator) fillPortfolio(f *excelize.File, styleID int, portfolio []model.PortfolioItem, summary model.PortfolioSummary) error {
	const sheet = "Portfolio"

	err := newSheet(f, sheet, styleID, []any{"Symbol", "Name", "Quantity", "Total cost", "Avg cost", "Current price", "Current value", "Return %"})
	if err != nil {
		return err
	}

	for i, item := range portfolio {
		row := []any{
			item.Symbol,
			item.StockName,
			item.Quantity.InexactFloat64(),
			item.TotalCost.InexactFloat64(),
			item.AvgCost.InexactFloat64(),
			item.CurrentPrice.InexactFloat64(),
			item.CurrentValue.InexactFloat64(),
			item.ReturnRate.InexactFloat64(),
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}

	summaryRow := []any{
		"TOTAL", "",
		"",
		summary.TotalInvestment.InexactFloat64(),
		"", "",
		summary.CurrentValue.InexactFloat64(),
		summary.TotalReturnRate.InexactFloat64(),
	}
	return f.SetSheetRow(sheet, fmt.Sprintf("A%d", len(portfolio)+3), &summaryRow)
}

func (g *XLSXGenerator) fillAssetHistory(f *excelize.File, styleID int, history []model.AssetSnapshot) error {
	const sheet = "Asset History"

	err := newSheet(f, sheet, styleID, []any{"Date", "Cash", "Investment", "Total", "Note"})
	if err != nil {
		return err
	}

	for i, snapshot := range history {
		row := []any{
			snapshot.Date,
			snapshot.Cash.InexactFloat64(),
			snapshot.Investment.InexactFloat64(),
			snapshot.Total.InexactFloat64(),
			snapshot.Note,
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}

	return nil
}
