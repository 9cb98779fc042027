package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/pbkdf2"
)

// KeyLen — длина ключа для AES‑256 (в байтах).
const KeyLen = 32

const (
	// MinSecretLen — минимальная длина процессного секрета.
	MinSecretLen = 16
	// MinIterations — нижняя граница числа итераций PBKDF2.
	MinIterations = 100_000
	// DefaultIterations используется, если число итераций не задано в конфиге.
	DefaultIterations = 210_000

	saltPrefix = "evidence-vault:owner:"
)

var (
	// ErrConfiguration — процессный секрет отсутствует или непригоден.
	ErrConfiguration = errors.New("key derivation is not configured")
	// ErrInvalidOwner — ключ запрошен для пустой ссылки на владельца.
	ErrInvalidOwner = errors.New("invalid owner reference")
)

// KeyDeriver выводит симметричный ключ владельца из процессного секрета.
// Создаётся один раз при старте и передаётся в сервисы; ключи не кешируются.
type KeyDeriver struct {
	secret     []byte
	iterations int
}

// NewKeyDeriver создаёт KeyDeriver. Проверка конфигурации выполняется
// в Validate и повторно при каждом DeriveKey.
func NewKeyDeriver(secret string, iterations int) *KeyDeriver {
	if iterations == 0 {
		iterations = DefaultIterations
	}
	return &KeyDeriver{secret: []byte(secret), iterations: iterations}
}

// Validate возвращает ErrConfiguration, если секрет пустой, слишком короткий
// или число итераций ниже допустимого.
func (d *KeyDeriver) Validate() error {
	if d == nil || len(d.secret) == 0 {
		return fmt.Errorf("%w: EVIDENCE_SECRET is empty", ErrConfiguration)
	}
	if len(d.secret) < MinSecretLen {
		return fmt.Errorf("%w: EVIDENCE_SECRET must be at least %d bytes", ErrConfiguration, MinSecretLen)
	}
	if d.iterations < MinIterations {
		return fmt.Errorf("%w: KDF iterations %d below minimum %d", ErrConfiguration, d.iterations, MinIterations)
	}
	return nil
}

// DeriveKey детерминированно выводит 256‑битный ключ для владельца ownerRef.
// PBKDF2-HMAC-SHA256: пароль — процессный секрет, соль — ссылка на владельца.
func (d *KeyDeriver) DeriveKey(ownerRef int64) ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if ownerRef <= 0 {
		return nil, ErrInvalidOwner
	}
	salt := []byte(saltPrefix + strconv.FormatInt(ownerRef, 10))
	return pbkdf2.Key(d.secret, salt, d.iterations, KeyLen, sha256.New), nil
}

// String не раскрывает секрет в логах.
func (d *KeyDeriver) String() string {
	if d == nil {
		return "KeyDeriver(<nil>)"
	}
	return fmt.Sprintf("KeyDeriver(iterations=%d, secret=<redacted>)", d.iterations)
}

// WipeKey затирает ключ после использования.
func WipeKey(key []byte) {
	memguard.WipeBytes(key)
}
