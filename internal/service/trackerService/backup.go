package trackerService

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sam2008610/stock-performance-dashboard/data/secure"
	"github.com/sam2008610/stock-performance-dashboard/internal/model"
	"github.com/sam2008610/stock-performance-dashboard/utils"
)

// Backup exports every stored key decrypted into a plain mapping.
func (s *TrackerService) Backup(ctx context.Context) (map[string]any, error) {
	return s.storage.Backup(ctx)
}

// Restore re-applies a backup mapping and reloads all in-memory state from
// storage. Aborts on the first key that fails to persist.
func (s *TrackerService) Restore(ctx context.Context, data map[string]any) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TrackerService.Restore"

	slog.Debug("Restore start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("keys", len(data)))

	if err := s.storage.Restore(ctx, data, secure.DefaultOptions()); err != nil {
		slog.Error("restore failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return s.Initialize(ctx)
}

// UploadBackup pushes the backup JSON to cloud storage and returns the
// download link.
func (s *TrackerService) UploadBackup(ctx context.Context) (string, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TrackerService.UploadBackup"

	if s.cloud == nil {
		return "", errors.New("cloud storage is not configured")
	}

	backup, err := s.Backup(ctx)
	if err != nil {
		return "", err
	}

	payload, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("backup_%s.json", s.now().Format("20060102_150405"))

	link, err := s.cloud.UploadFile(ctx, bytes.NewReader(payload), filename)
	if err != nil {
		slog.Error("backup upload failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	slog.Info("backup uploaded", slog.String("rqID", rqID), slog.String("filename", filename))

	return link, nil
}

// Report renders the current state as a spreadsheet.
func (s *TrackerService) Report(ctx context.Context) (fileBytes []byte, fileExtension string, err error) {
	report := model.Report{
		Transactions: s.Transactions(ctx),
		Portfolio:    s.Portfolio(ctx),
		Summary:      s.Summary(ctx),
		AssetHistory: s.AssetHistory(ctx),
	}

	return s.reports.Generate(ctx, report)
}
