package secure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sam2008610/stock-performance-dashboard/data/kvstore"
	"github.com/sam2008610/stock-performance-dashboard/internal/crypto"
	"github.com/sam2008610/stock-performance-dashboard/utils"
)

// internalKeyPrefix marks keys the storage layer owns itself, e.g. the master
// secret. They are skipped by Backup and never re-encrypted.
const internalKeyPrefix = "__crypto_"

type Options struct {
	Encrypt             bool
	FallbackToPlainText bool
}

func DefaultOptions() Options {
	return Options{Encrypt: true, FallbackToPlainText: true}
}

func PlainOptions() Options {
	return Options{Encrypt: false, FallbackToPlainText: true}
}

type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context) ([]string, error)
}

type Cipher interface {
	Encrypt(ctx context.Context, plaintext string) (crypto.EncryptedRecord, error)
	Decrypt(ctx context.Context, rec crypto.EncryptedRecord) (string, error)
}

// Storage wraps the plain key-value store with transparent encryption on
// write and decryption on read.
type Storage struct {
	store  Store
	cipher Cipher
}

func New(store Store, cipher Cipher) *Storage {
	return &Storage{store: store, cipher: cipher}
}

// Set serializes value (strings pass through, everything else is marshalled
// to JSON) and persists it, encrypting per opts. Every call either persists
// something or returns an error.
func (s *Storage) Set(ctx context.Context, key string, value any, opts Options) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	stringValue, err := serialize(value)
	if err != nil {
		slog.Error("can't serialize value", slog.String("rqID", rqID), slog.String("key", key), slog.String("err", err.Error()))
		return err
	}

	if !opts.Encrypt {
		return s.store.Set(ctx, key, stringValue)
	}

	rec, err := s.cipher.Encrypt(ctx, stringValue)
	if err != nil {
		slog.Warn("encryption failed", slog.String("rqID", rqID), slog.String("key", key), slog.String("err", err.Error()))

		if opts.FallbackToPlainText {
			slog.Info("falling back to plain text storage", slog.String("rqID", rqID), slog.String("key", key))
			return s.store.Set(ctx, key, stringValue)
		}
		return fmt.Errorf("set %s: %w", key, err)
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	return s.store.Set(ctx, key, string(payload))
}

// Get returns the stored value with transparent decryption. Absent keys and
// undecryptable records both report found == false; a corrupt record is
// logged, never surfaced as an error.
func (s *Storage) Get(ctx context.Context, key string) (value string, found bool) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			slog.Error("failed to read key", slog.String("rqID", rqID), slog.String("key", key), slog.String("err", err.Error()))
		}
		return "", false
	}

	rec, ok := crypto.ParseEncryptedRecord([]byte(raw))
	if !ok {
		return raw, true
	}

	plaintext, err := s.cipher.Decrypt(ctx, rec)
	if err != nil {
		slog.Error("failed to decrypt key", slog.String("rqID", rqID), slog.String("key", key), slog.String("err", err.Error()))
		return "", false
	}

	return plaintext, true
}

// GetJSON decodes the stored (and decrypted) value into dst. Absent keys,
// undecryptable records and unparsable payloads all report false.
func (s *Storage) GetJSON(ctx context.Context, key string, dst any) bool {
	value, found := s.Get(ctx, key)
	if !found {
		return false
	}

	if err := json.Unmarshal([]byte(value), dst); err != nil {
		rqID := utils.GetRequestIDFromCtx(ctx)
		slog.Error("stored value is not valid JSON", slog.String("rqID", rqID), slog.String("key", key), slog.String("err", err.Error()))
		return false
	}

	return true
}

func (s *Storage) Remove(ctx context.Context, key string) error {
	return s.store.Remove(ctx, key)
}

func (s *Storage) Has(ctx context.Context, key string) bool {
	exists, err := s.store.Has(ctx, key)
	if err != nil {
		return false
	}
	return exists
}

func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	return s.store.Keys(ctx)
}

// MigrateToEncrypted re-stores a plaintext value with encryption forced on.
// No-op when the key is absent or already encrypted.
func (s *Storage) MigrateToEncrypted(ctx context.Context, key string) error {
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil
		}
		return err
	}

	if _, ok := crypto.ParseEncryptedRecord([]byte(raw)); ok {
		return nil
	}

	return s.Set(ctx, key, raw, Options{Encrypt: true, FallbackToPlainText: false})
}

// ListEncryptedKeys scans the whole store. O(n) over total key count,
// acceptable for a small local store.
func (s *Storage) ListEncryptedKeys(ctx context.Context) ([]string, error) {
	keys, err := s.store.Keys(ctx)
	if err != nil {
		return nil, err
	}

	encrypted := make([]string, 0, len(keys))
	for _, key := range keys {
		raw, err := s.store.Get(ctx, key)
		if err != nil {
			continue
		}
		if _, ok := crypto.ParseEncryptedRecord([]byte(raw)); ok {
			encrypted = append(encrypted, key)
		}
	}

	return encrypted, nil
}

// Backup decrypts everything into a plain mapping, skipping internal keys.
// Structured values come back as decoded JSON, everything else as strings.
func (s *Storage) Backup(ctx context.Context) (map[string]any, error) {
	keys, err := s.store.Keys(ctx)
	if err != nil {
		return nil, err
	}

	backup := make(map[string]any, len(keys))
	for _, key := range keys {
		if strings.HasPrefix(key, internalKeyPrefix) {
			continue
		}

		value, found := s.Get(ctx, key)
		if !found {
			continue
		}

		var structured any
		if err := json.Unmarshal([]byte(value), &structured); err == nil {
			backup[key] = structured
		} else {
			backup[key] = value
		}
	}

	return backup, nil
}

// Restore re-applies Set per key, aborting on the first failure and
// reporting which key failed.
func (s *Storage) Restore(ctx context.Context, data map[string]any, opts Options) error {
	for key, value := range data {
		if err := s.Set(ctx, key, value, opts); err != nil {
			return fmt.Errorf("restore failed at key %s: %w", key, err)
		}
	}
	return nil
}

// ClearEncryptedData removes every encrypted record, leaving plaintext keys
// in place. Returns the number of removed keys.
func (s *Storage) ClearEncryptedData(ctx context.Context) (int, error) {
	keys, err := s.ListEncryptedKeys(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range keys {
		if err := s.store.Remove(ctx, key); err != nil {
			return removed, err
		}
		removed++
	}

	return removed, nil
}

func serialize(value any) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}
