package trackerService

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sam2008610/stock-performance-dashboard/data/secure"
	"github.com/sam2008610/stock-performance-dashboard/internal/model"
	"github.com/sam2008610/stock-performance-dashboard/internal/service"
	"github.com/sam2008610/stock-performance-dashboard/utils"
)

const (
	transactionsKey = "transactions"
	assetHistoryKey = "asset_history"
	initialSetupKey = "initial_setup"
)

type Storage interface {
	Set(ctx context.Context, key string, value any, opts secure.Options) error
	GetJSON(ctx context.Context, key string, dst any) bool
	Remove(ctx context.Context, key string) error
	MigrateToEncrypted(ctx context.Context, key string) error
	Backup(ctx context.Context) (map[string]any, error)
	Restore(ctx context.Context, data map[string]any, opts secure.Options) error
}

type Quotes interface {
	GetPrices(ctx context.Context, symbols []string) map[string]model.Quote
	GetNames(ctx context.Context, symbols []string) map[string]string
}

type ReportGenerator interface {
	Generate(ctx context.Context, report model.Report) (fileBytes []byte, fileExtension string, err error)
}

type CloudStorage interface {
	UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error)
}

// TrackerService owns the transaction log, the derived portfolio and the
// asset history. All state is guarded by mu; the storage layer is the source
// of truth across restarts.
type TrackerService struct {
	storage Storage
	quotes  Quotes
	reports ReportGenerator
	cloud   CloudStorage // nil when backup upload is disabled

	mu           sync.RWMutex
	transactions []model.Transaction
	assetHistory []model.AssetSnapshot
	initialSetup model.InitialSetup

	now func() time.Time
}

func New(storage Storage, quotes Quotes, reports ReportGenerator, cloud CloudStorage) *TrackerService {
	return &TrackerService{
		storage: storage,
		quotes:  quotes,
		reports: reports,
		cloud:   cloud,
		now:     time.Now,
	}
}

func (s *TrackerService) today() string {
	return s.now().Format("2006-01-02")
}

// Initialize loads persisted state. Legacy transactions without an assetType
// are defaulted to tw_stock, and a plaintext transaction log left behind by
// an encryption outage is migrated back to encrypted form.
func (s *TrackerService) Initialize(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TrackerService.Initialize"

	slog.Debug("Initialize start", slog.String("rqID", rqID), slog.String("op", op))

	s.mu.Lock()
	defer s.mu.Unlock()

	var transactions []model.Transaction
	if s.storage.GetJSON(ctx, transactionsKey, &transactions) {
		for i := range transactions {
			if transactions[i].AssetType == "" {
				transactions[i].AssetType = model.AssetTWStock
			}
		}
		s.transactions = transactions
	}

	var history []model.AssetSnapshot
	if s.storage.GetJSON(ctx, assetHistoryKey, &history) {
		s.assetHistory = history
	}

	var setup model.InitialSetup
	if s.storage.GetJSON(ctx, initialSetupKey, &setup) {
		s.initialSetup = setup
	}

	if err := s.storage.MigrateToEncrypted(ctx, transactionsKey); err != nil {
		slog.Warn("transaction log migration to encrypted failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	slog.Info("tracker state loaded",
		slog.String("rqID", rqID),
		slog.Int("transactions", len(s.transactions)),
		slog.Int("snapshots", len(s.assetHistory)),
		slog.Bool("setupCompleted", s.initialSetup.IsCompleted),
	)

	return nil
}

// persistTransactions must be called with mu held.
func (s *TrackerService) persistTransactions(ctx context.Context) error {
	return s.storage.Set(ctx, transactionsKey, s.transactions, secure.DefaultOptions())
}

func (s *TrackerService) Transactions(ctx context.Context) []model.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out
}

// RecentTransactions returns the newest n log entries, newest first.
func (s *TrackerService) RecentTransactions(ctx context.Context, n int) []model.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.transactions) {
		n = len(s.transactions)
	}

	out := make([]model.Transaction, 0, n)
	for i := len(s.transactions) - 1; i >= len(s.transactions)-n; i-- {
		out = append(out, s.transactions[i])
	}
	return out
}

func validateTransaction(tx model.Transaction) error {
	if tx.Type != model.Buy && tx.Type != model.Sell {
		return fmt.Errorf("%w: unknown type %q", service.ErrValidation, tx.Type)
	}
	if tx.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", service.ErrValidation)
	}
	if tx.AssetType == model.AssetTWStock {
		if err := service.ValidateSymbol(tx.Symbol); err != nil {
			return err
		}
	}
	if !tx.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", service.ErrValidation)
	}
	if tx.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", service.ErrValidation)
	}
	if tx.Fee.IsNegative() {
		return fmt.Errorf("%w: fee must not be negative", service.ErrValidation)
	}
	if _, err := time.Parse("2006-01-02", tx.Date); err != nil {
		return fmt.Errorf("%w: bad date %q", service.ErrValidation, tx.Date)
	}
	return nil
}

// AddTransaction appends to the log. The id is assigned here and Total is
// recomputed, whatever the caller sent.
func (s *TrackerService) AddTransaction(ctx context.Context, tx model.Transaction) (model.Transaction, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TrackerService.AddTransaction"

	slog.Debug("AddTransaction start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", tx.Symbol))
	defer func() {
		slog.Debug("AddTransaction finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", tx.Symbol))
	}()

	if tx.AssetType == "" {
		tx.AssetType = model.AssetTWStock
	}

	if err := validateTransaction(tx); err != nil {
		return model.Transaction{}, err
	}

	tx.ID = uuid.NewString()
	tx.Total = tx.Amount()

	s.mu.Lock()
	s.transactions = append(s.transactions, tx)
	err := s.persistTransactions(ctx)
	if err != nil {
		// roll back the append so memory matches storage
		s.transactions = s.transactions[:len(s.transactions)-1]
	}
	s.mu.Unlock()

	if err != nil {
		slog.Error("can't persist transactions", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Transaction{}, err
	}

	if tx.AssetType == model.AssetTWStock {
		go func() {
			if err := s.RefreshQuotes(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("quote refresh after add failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
			}
		}()
	}

	return tx, nil
}

func (s *TrackerService) DeleteTransaction(ctx context.Context, id string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TrackerService.DeleteTransaction"

	s.mu.Lock()
	idx := -1
	for i, tx := range s.transactions {
		if tx.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return service.ErrNotFound
	}

	removed := s.transactions[idx]
	s.transactions = append(s.transactions[:idx], s.transactions[idx+1:]...)
	err := s.persistTransactions(ctx)
	s.mu.Unlock()

	if err != nil {
		slog.Error("can't persist transactions", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Info("transaction deleted", slog.String("rqID", rqID), slog.String("id", id), slog.String("symbol", removed.Symbol))

	return nil
}

// trackedSymbols returns unique tw_stock symbols in log order.
// Callers must hold mu.
func (s *TrackerService) trackedSymbols() []string {
	seen := make(map[string]struct{})
	symbols := make([]string, 0)
	for _, tx := range s.transactions {
		if tx.AssetType != model.AssetTWStock {
			continue
		}
		if _, ok := seen[tx.Symbol]; ok {
			continue
		}
		seen[tx.Symbol] = struct{}{}
		symbols = append(symbols, tx.Symbol)
	}
	return symbols
}

// RefreshQuotes re-fetches prices and names for every symbol in the log and
// backfills stock names that resolved since the transaction was recorded.
// Runs on a fixed scheduler interval and after each tw_stock append.
func (s *TrackerService) RefreshQuotes(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TrackerService.RefreshQuotes"

	s.mu.RLock()
	symbols := s.trackedSymbols()
	s.mu.RUnlock()

	if len(symbols) == 0 {
		return nil
	}

	slog.Debug("RefreshQuotes start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("symbols", len(symbols)))

	s.quotes.GetPrices(ctx, symbols)
	names := s.quotes.GetNames(ctx, symbols)

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for i := range s.transactions {
		name, ok := names[s.transactions[i].Symbol]
		if ok && name != "" && s.transactions[i].StockName != name {
			s.transactions[i].StockName = name
			changed = true
		}
	}

	if !changed {
		return nil
	}

	if err := s.persistTransactions(ctx); err != nil {
		slog.Error("can't persist backfilled names", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Info("stock names backfilled", slog.String("rqID", rqID), slog.String("op", op))

	return nil
}
