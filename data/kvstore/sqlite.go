package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/sam2008610/stock-performance-dashboard/utils"
)

// Sqlite is the plain string-keyed backing store. Encryption lives a layer
// above, in data/secure.
type Sqlite struct {
	db *sqlx.DB
}

func NewSqlite(db *sqlx.DB) *Sqlite {
	return &Sqlite{db: db}
}

func (r *Sqlite) Get(ctx context.Context, key string) (value string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT value FROM kv_store WHERE key = ?`

	defer func() {
		if err != nil && !errors.Is(err, ErrNotFound) {
			slog.Error("kvstore Get failed", slog.String("rqID", rqID), slog.String("key", key), slog.String("err", err.Error()))
		}
	}()

	err = r.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}

	return value, nil
}

func (r *Sqlite) Set(ctx context.Context, key, value string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `INSERT INTO kv_store(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`

	defer func() {
		if err != nil {
			slog.Error("kvstore Set failed", slog.String("rqID", rqID), slog.String("key", key), slog.String("err", err.Error()))
		}
	}()

	_, err = r.db.ExecContext(ctx, query, key, value)
	return err
}

func (r *Sqlite) Remove(ctx context.Context, key string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `DELETE FROM kv_store WHERE key = ?`

	defer func() {
		if err != nil {
			slog.Error("kvstore Remove failed", slog.String("rqID", rqID), slog.String("key", key), slog.String("err", err.Error()))
		}
	}()

	_, err = r.db.ExecContext(ctx, query, key)
	return err
}

func (r *Sqlite) Has(ctx context.Context, key string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM kv_store WHERE key = ?)`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, key).Scan(&exists)
	if err != nil {
		rqID := utils.GetRequestIDFromCtx(ctx)
		slog.Error("kvstore Has failed", slog.String("rqID", rqID), slog.String("key", key), slog.String("err", err.Error()))
		return false, err
	}

	return exists, nil
}

// Keys returns every stored key. The store is small and local, a full scan
// is fine.
func (r *Sqlite) Keys(ctx context.Context) (keys []string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT key FROM kv_store ORDER BY key`

	defer func() {
		if err != nil {
			slog.Error("kvstore Keys failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		}
	}()

	err = r.db.SelectContext(ctx, &keys, query)
	if err != nil {
		return nil, err
	}

	return keys, nil
}
