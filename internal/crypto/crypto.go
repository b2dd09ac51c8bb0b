package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/sam2008610/stock-performance-dashboard/data/kvstore"
	"github.com/sam2008610/stock-performance-dashboard/utils"
	"golang.org/x/crypto/pbkdf2"
)

const (
	masterKeyStorageKey = "__crypto_master_key"

	saltSize         = 16
	ivSize           = 12
	keySize          = 32
	masterSecretSize = 32
	pbkdf2Iterations = 100000

	roundTripProbe = "test encryption data"
)

var (
	ErrNothingToEncrypt = errors.New("error nothing to encrypt")
	ErrEncryptionFailed = errors.New("error encryption failed")
	ErrDecryptionFailed = errors.New("error decryption failed")
	ErrMalformedRecord  = errors.New("error malformed encrypted record")
)

// EncryptedRecord is the persisted ciphertext envelope. Data, IV and Salt are
// base64; IV and Salt are regenerated on every Encrypt call.
type EncryptedRecord struct {
	Data      string `json:"data"`
	IV        string `json:"iv"`
	Salt      string `json:"salt"`
	Encrypted bool   `json:"encrypted"`
}

func (r EncryptedRecord) Valid() bool {
	return r.Encrypted && r.Data != "" && r.IV != "" && r.Salt != ""
}

// ParseEncryptedRecord reports whether raw is a stored EncryptedRecord.
func ParseEncryptedRecord(raw []byte) (EncryptedRecord, bool) {
	var rec EncryptedRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return EncryptedRecord{}, false
	}
	return rec, rec.Valid()
}

type KeyStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

type Service struct {
	keys KeyStore
	mu   sync.Mutex
}

func New(keys KeyStore) *Service {
	return &Service{keys: keys}
}

// masterSecret returns the persisted master secret, generating it lazily.
// Losing the secret makes every prior record permanently undecryptable, the
// accepted trust boundary for a device-local store.
func (s *Service) masterSecret(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	secret, err := s.keys.Get(ctx, masterKeyStorageKey)
	if err == nil {
		return secret, nil
	}
	if !errors.Is(err, kvstore.ErrNotFound) {
		return "", err
	}

	raw := make([]byte, masterSecretSize)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	secret = hex.EncodeToString(raw)

	if err := s.keys.Set(ctx, masterKeyStorageKey, secret); err != nil {
		slog.Error("failed to store master key", slog.String("err", err.Error()))
		return "", err
	}

	return secret, nil
}

func deriveKey(secret string, salt []byte) []byte {
	return pbkdf2.Key([]byte(secret), salt, pbkdf2Iterations, keySize, sha256.New)
}

func (s *Service) Encrypt(ctx context.Context, plaintext string) (EncryptedRecord, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	if plaintext == "" {
		return EncryptedRecord{}, ErrNothingToEncrypt
	}

	secret, err := s.masterSecret(ctx)
	if err != nil {
		slog.Error("can't get master secret", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return EncryptedRecord{}, ErrEncryptionFailed
	}

	salt := make([]byte, saltSize)
	iv := make([]byte, ivSize)
	if _, err := rand.Read(salt); err != nil {
		return EncryptedRecord{}, ErrEncryptionFailed
	}
	if _, err := rand.Read(iv); err != nil {
		return EncryptedRecord{}, ErrEncryptionFailed
	}

	aead, err := newAEAD(secret, salt)
	if err != nil {
		slog.Error("can't build AEAD", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return EncryptedRecord{}, ErrEncryptionFailed
	}

	ciphertext := aead.Seal(nil, iv, []byte(plaintext), nil)

	return EncryptedRecord{
		Data:      base64.StdEncoding.EncodeToString(ciphertext),
		IV:        base64.StdEncoding.EncodeToString(iv),
		Salt:      base64.StdEncoding.EncodeToString(salt),
		Encrypted: true,
	}, nil
}

func (s *Service) Decrypt(ctx context.Context, rec EncryptedRecord) (string, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	if !rec.Valid() {
		return "", ErrMalformedRecord
	}

	data, err := base64.StdEncoding.DecodeString(rec.Data)
	if err != nil {
		return "", ErrMalformedRecord
	}
	iv, err := base64.StdEncoding.DecodeString(rec.IV)
	if err != nil || len(iv) != ivSize {
		return "", ErrMalformedRecord
	}
	salt, err := base64.StdEncoding.DecodeString(rec.Salt)
	if err != nil || len(salt) != saltSize {
		return "", ErrMalformedRecord
	}

	secret, err := s.masterSecret(ctx)
	if err != nil {
		slog.Error("can't get master secret", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return "", ErrDecryptionFailed
	}

	aead, err := newAEAD(secret, salt)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	plaintext, err := aead.Open(nil, iv, data, nil)
	if err != nil {
		// authentication failure: tampered ciphertext or wrong key
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

func newAEAD(secret string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(secret, salt))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// TestRoundTrip is a startup health check, not part of the hot path.
func (s *Service) TestRoundTrip(ctx context.Context) error {
	rec, err := s.Encrypt(ctx, roundTripProbe)
	if err != nil {
		return err
	}

	plaintext, err := s.Decrypt(ctx, rec)
	if err != nil {
		return err
	}

	if plaintext != roundTripProbe {
		return errors.New("round trip mismatch")
	}

	return nil
}

// ResetMasterKey drops the master secret. Existing encrypted records become
// permanently undecryptable.
func (s *Service) ResetMasterKey(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys.Remove(ctx, masterKeyStorageKey)
}
